package config

import (
	"flag"
	"time"

	"github.com/dmitrijs2005/archivia/internal/flagx"
)

// parseFlags populates selected server Config fields from command-line flags.
//
// Supported flags (short forms):
//
//	-a string   HTTP bind address (e.g., ":8080")
//	-r string   gRPC health bind address (e.g., ":50051")
//	-d string   PostgreSQL DSN
//	-m string   MongoDB URI
//	-n string   MongoDB database
//	-s string   JWT HMAC secret key
//	-t int      API token validity, minutes
//	-o int      upload session validity, minutes
//	-u string   S3 root user
//	-p string   S3 root password
//	-b string   S3 bucket name
//	-g string   S3 region
//	-e string   S3 base endpoint (e.g., "http://127.0.0.1:9000/")
//	-k int      chunk size, bytes
//	-z int      max archive size, bytes
//	-w string   staging directory
//	-v string   log level
//
// The function first filters os.Args to only the flags it recognizes using
// flagx, avoiding collisions with the -c/-config flag.
func parseFlags(config *Config) {
	args := flagx.OSArgs("-a", "-r", "-d", "-m", "-n", "-s", "-t", "-o",
		"-u", "-p", "-b", "-g", "-e", "-k", "-z", "-w", "-v")

	fs := flag.NewFlagSet("main", flag.ContinueOnError)

	fs.StringVar(&config.EndpointAddrHTTP, "a", config.EndpointAddrHTTP, "HTTP address and port")
	fs.StringVar(&config.EndpointAddrGRPC, "r", config.EndpointAddrGRPC, "gRPC health address and port")
	fs.StringVar(&config.DatabaseDSN, "d", config.DatabaseDSN, "database DSN")
	fs.StringVar(&config.MongoURI, "m", config.MongoURI, "MongoDB URI")
	fs.StringVar(&config.MongoDatabase, "n", config.MongoDatabase, "MongoDB database")
	fs.StringVar(&config.SecretKey, "s", config.SecretKey, "secret key")

	accessTokenValidity := fs.Int("t", int(config.AccessTokenValidityDuration.Minutes()), "api token validity (in minutes)")
	uploadSessionValidity := fs.Int("o", int(config.UploadSessionValidityDuration.Minutes()), "upload session validity (in minutes)")

	fs.StringVar(&config.S3RootUser, "u", config.S3RootUser, "S3 root user")
	fs.StringVar(&config.S3RootPassword, "p", config.S3RootPassword, "S3 root password")
	fs.StringVar(&config.S3Bucket, "b", config.S3Bucket, "S3 bucket")
	fs.StringVar(&config.S3Region, "g", config.S3Region, "S3 region")
	fs.StringVar(&config.S3BaseEndpoint, "e", config.S3BaseEndpoint, "S3 base endpoint")

	fs.Int64Var(&config.ChunkSize, "k", config.ChunkSize, "chunk size (in bytes)")
	fs.Int64Var(&config.MaxArchiveSize, "z", config.MaxArchiveSize, "max archive size (in bytes)")
	fs.StringVar(&config.StagingDir, "w", config.StagingDir, "staging directory")
	fs.StringVar(&config.LogLevel, "v", config.LogLevel, "log level")

	if err := fs.Parse(args); err != nil {
		panic(err)
	}

	config.AccessTokenValidityDuration = time.Duration(*accessTokenValidity) * time.Minute
	config.UploadSessionValidityDuration = time.Duration(*uploadSessionValidity) * time.Minute
}
