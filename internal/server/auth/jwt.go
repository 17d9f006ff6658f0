// Package auth signs and verifies the HS256 tokens used by the API: bearer
// tokens identifying the owner of a request, and upload session handles that
// carry the state of a chunked upload on the client side.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/dmitrijs2005/archivia/internal/common"
)

const (
	audienceAPI    = "archivia-api"
	audienceUpload = "archivia-upload"
)

// Claims is the payload of an API bearer token.
type Claims struct {
	jwt.RegisteredClaims
	OwnerID string `json:"owner_id"`
}

// GenerateToken mints an API token for ownerID.
func GenerateToken(ownerID string, secretKey []byte, validityDuration time.Duration) (string, error) {
	return sign(Claims{
		RegisteredClaims: registered(audienceAPI, validityDuration),
		OwnerID:          ownerID,
	}, secretKey)
}

// GetOwnerIDFromToken verifies an API token and returns its owner.
func GetOwnerIDFromToken(tokenString string, secretKey []byte) (string, error) {
	claims := &Claims{}
	if err := parse(tokenString, claims, audienceAPI, secretKey); err != nil {
		return "", err
	}
	if claims.OwnerID == "" {
		return "", fmt.Errorf("%w: missing owner", common.ErrInvalidToken)
	}
	return claims.OwnerID, nil
}

// UploadSession is the state of a chunked upload. The server keeps none of
// it; the client presents the signed handle on every call.
type UploadSession struct {
	OwnerID    string `json:"owner_id"`
	DocumentID string `json:"document_id"`
	UploadID   string `json:"upload_id"`
	// Key is where the content is committed; the parts go to StagingKey.
	Key        string `json:"key"`
	StagingKey string `json:"staging_key"`
	// PendingFileID is the pending file record this upload created, if any.
	PendingFileID  string `json:"pending_file_id,omitempty"`
	Filename       string `json:"filename"`
	ContentType    string `json:"content_type,omitempty"`
	Category       string `json:"category"`
	SequenceNumber int    `json:"seq"`
	Label          string `json:"label,omitempty"`
	SHA256         string `json:"sha256"`
	MD5            string `json:"md5,omitempty"`
	Size           int64  `json:"size"`
}

type sessionClaims struct {
	jwt.RegisteredClaims
	Session UploadSession `json:"upload"`
}

// SignSession returns a handle for s valid for validityDuration.
func SignSession(s UploadSession, secretKey []byte, validityDuration time.Duration) (string, error) {
	return sign(sessionClaims{
		RegisteredClaims: registered(audienceUpload, validityDuration),
		Session:          s,
	}, secretKey)
}

// ParseSession verifies a handle produced by SignSession.
func ParseSession(handle string, secretKey []byte) (*UploadSession, error) {
	claims := &sessionClaims{}
	if err := parse(handle, claims, audienceUpload, secretKey); err != nil {
		return nil, err
	}
	if claims.Session.UploadID == "" || claims.Session.Key == "" {
		return nil, fmt.Errorf("%w: incomplete upload session", common.ErrInvalidToken)
	}
	return &claims.Session, nil
}

func registered(audience string, validity time.Duration) jwt.RegisteredClaims {
	now := time.Now()
	return jwt.RegisteredClaims{
		Audience:  jwt.ClaimStrings{audience},
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(validity)),
	}
}

func sign(claims jwt.Claims, secretKey []byte) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)

	tokenString, err := token.SignedString(secretKey)
	if err != nil {
		return "", err
	}

	return tokenString, nil
}

func parse(tokenString string, claims jwt.Claims, audience string, secretKey []byte) error {
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		return secretKey, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithAudience(audience))
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return fmt.Errorf("%w: expired", common.ErrInvalidToken)
		}
		return fmt.Errorf("%w: %v", common.ErrInvalidToken, err)
	}

	if !token.Valid {
		return common.ErrInvalidToken
	}

	return nil
}
