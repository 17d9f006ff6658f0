// Package common contains shared constants and sentinel errors used across
// Archivia components.
package common

// AuthorizationHeaderName carries the bearer access token on API requests.
const AuthorizationHeaderName = "Authorization"

// Store names used in errors, logs and metric labels.
const (
	StorePlatform = "platform"
	StoreMetadata = "metadata"
	StoreObject   = "object"
)
