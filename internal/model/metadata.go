package model

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// FileRecord represents a single item in the files metadata DynamoDB table.
type FileRecord struct {
	UserID      string `dynamodbav:"user_id" json:"user_id"`
	FileID      string `dynamodbav:"file_id" json:"file_id"`
	Filename    string `dynamodbav:"filename" json:"filename"`
	UploadTime  string `dynamodbav:"upload_time" json:"upload_time"`
	Size        string `dynamodbav:"size" json:"size"`
	StorageKey  string `dynamodbav:"s3_key" json:"storage_key"`
	Status      string `dynamodbav:"status,omitempty" json:"status,omitempty"`
	ContentType string `dynamodbav:"content_type,omitempty" json:"content_type,omitempty"`
}

// Status constants for FileRecord.Status.
const (
	StatusPending  = "PENDING"
	StatusUploaded = "UPLOADED"
)

// Ready reports whether the object behind the record has been stored.
// Records written before status tracking existed carry no status and are
// treated as uploaded.
func (r FileRecord) Ready() bool {
	return r.Status != StatusPending
}

// StorageKey builds the object key for a file: {user_id}/{file_id}_{filename}.
func StorageKey(userID, fileID, filename string) string {
	return fmt.Sprintf("%s/%s_%s", userID, fileID, filename)
}

// ParseStorageKey splits an object key produced by StorageKey. File IDs are
// UUIDs in canonical form and never contain an underscore, so the first one
// ends the ID. Keys whose ID segment is not such a UUID were not written by
// this service and are rejected.
func ParseStorageKey(key string) (userID, fileID, filename string, ok bool) {
	userID, rest, found := strings.Cut(key, "/")
	if !found || userID == "" {
		return "", "", "", false
	}
	fileID, filename, found = strings.Cut(rest, "_")
	if !found || len(fileID) != canonicalUUIDLen {
		return "", "", "", false
	}
	if _, err := uuid.Parse(fileID); err != nil {
		return "", "", "", false
	}
	return userID, fileID, filename, true
}

// canonicalUUIDLen is the length of the hyphenated form uuid.UUID.String
// produces.
const canonicalUUIDLen = 36
