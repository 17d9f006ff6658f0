package config

import (
	"encoding/json"
	"os"

	"github.com/dmitrijs2005/archivia/internal/flagx"
	"github.com/dmitrijs2005/archivia/internal/timex"
)

// JsonConfig is the JSON file shape. Durations use timex.Duration so both
// "90s" and integer nanoseconds are accepted.
type JsonConfig struct {
	EndpointAddrHTTP              string         `json:"endpoint_addr_http"`
	EndpointAddrGRPC              string         `json:"endpoint_addr_grpc"`
	DatabaseDSN                   string         `json:"database_dsn"`
	MongoURI                      string         `json:"mongo_uri"`
	MongoDatabase                 string         `json:"mongo_database"`
	MongoCollection               string         `json:"mongo_collection"`
	SecretKey                     string         `json:"secret_key"`
	AccessTokenValidityDuration   timex.Duration `json:"access_token_validity_duration"`
	UploadSessionValidityDuration timex.Duration `json:"upload_session_validity_duration"`
	PresignValidityDuration       timex.Duration `json:"presign_validity_duration"`
	S3RootUser                    string         `json:"s3_root_user"`
	S3RootPassword                string         `json:"s3_root_password"`
	S3Bucket                      string         `json:"s3_bucket"`
	S3Region                      string         `json:"s3_region"`
	S3BaseEndpoint                string         `json:"s3_base_endpoint"`
	ChunkSize                     int64          `json:"chunk_size"`
	MaxArchiveSize                int64          `json:"max_archive_size"`
	StagingDir                    string         `json:"staging_dir"`
	LogLevel                      string         `json:"log_level"`
	HealthCheckInterval           timex.Duration `json:"health_check_interval"`
}

func toJson(c *Config) *JsonConfig {
	return &JsonConfig{
		EndpointAddrHTTP:              c.EndpointAddrHTTP,
		EndpointAddrGRPC:              c.EndpointAddrGRPC,
		DatabaseDSN:                   c.DatabaseDSN,
		MongoURI:                      c.MongoURI,
		MongoDatabase:                 c.MongoDatabase,
		MongoCollection:               c.MongoCollection,
		SecretKey:                     c.SecretKey,
		AccessTokenValidityDuration:   timex.Duration{Duration: c.AccessTokenValidityDuration},
		UploadSessionValidityDuration: timex.Duration{Duration: c.UploadSessionValidityDuration},
		PresignValidityDuration:       timex.Duration{Duration: c.PresignValidityDuration},
		S3RootUser:                    c.S3RootUser,
		S3RootPassword:                c.S3RootPassword,
		S3Bucket:                      c.S3Bucket,
		S3Region:                      c.S3Region,
		S3BaseEndpoint:                c.S3BaseEndpoint,
		ChunkSize:                     c.ChunkSize,
		MaxArchiveSize:                c.MaxArchiveSize,
		StagingDir:                    c.StagingDir,
		LogLevel:                      c.LogLevel,
		HealthCheckInterval:           timex.Duration{Duration: c.HealthCheckInterval},
	}
}

// parseJson overlays values from the JSON file named by -c/-config (or
// ARCHIVIA_CONFIG) onto config. Keys absent from the file keep their current
// values. An unreadable file or invalid JSON panics.
func parseJson(config *Config) {
	jsonConfigFile := flagx.ConfigFilePath()

	// nothing to load
	if jsonConfigFile == "" {
		return
	}

	file, err := os.ReadFile(jsonConfigFile)
	if err != nil {
		panic(err)
	}

	c := toJson(config)
	if err := json.Unmarshal(file, c); err != nil {
		panic(err)
	}

	config.EndpointAddrHTTP = c.EndpointAddrHTTP
	config.EndpointAddrGRPC = c.EndpointAddrGRPC
	config.DatabaseDSN = c.DatabaseDSN
	config.MongoURI = c.MongoURI
	config.MongoDatabase = c.MongoDatabase
	config.MongoCollection = c.MongoCollection
	config.SecretKey = c.SecretKey
	config.AccessTokenValidityDuration = c.AccessTokenValidityDuration.Duration
	config.UploadSessionValidityDuration = c.UploadSessionValidityDuration.Duration
	config.PresignValidityDuration = c.PresignValidityDuration.Duration
	config.S3RootUser = c.S3RootUser
	config.S3RootPassword = c.S3RootPassword
	config.S3Bucket = c.S3Bucket
	config.S3Region = c.S3Region
	config.S3BaseEndpoint = c.S3BaseEndpoint
	config.ChunkSize = c.ChunkSize
	config.MaxArchiveSize = c.MaxArchiveSize
	config.StagingDir = c.StagingDir
	config.LogLevel = c.LogLevel
	config.HealthCheckInterval = c.HealthCheckInterval.Duration
}
