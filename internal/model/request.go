package model

import "io"

// UploadRequest carries one multipart file part into the upload saga.
type UploadRequest struct {
	UserID         string
	Filename       string
	ContentType    string
	Size           int64
	IdempotencyKey string
	Body           io.Reader
}
