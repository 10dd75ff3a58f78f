package model

// Envelope status values.
const (
	ResultSuccess = "success"
	ResultError   = "error"
	ResultHealthy = "healthy"
)

// UploadResponse is returned on a successful POST /upload request.
type UploadResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
	FileID  string `json:"file_id"`
}

// ListFilesResponse is returned by GET /files.
type ListFilesResponse struct {
	Status string       `json:"status"`
	Files  []FileRecord `json:"files"`
}

// DownloadResponse is returned by GET /download/{file_id}.
type DownloadResponse struct {
	Status      string `json:"status"`
	DownloadURL string `json:"download_url"`
	Filename    string `json:"filename"`
}

// LogsResponse is returned by GET /logs.
type LogsResponse struct {
	Status string             `json:"status"`
	Logs   []ActivityLogEntry `json:"logs"`
}

// HealthResponse is returned by GET /health.
type HealthResponse struct {
	Status string `json:"status"`
}

// ErrorResponse is returned for any failed API request.
type ErrorResponse struct {
	Status  string `json:"status"`
	Kind    string `json:"kind"`
	Message string `json:"message"`
}
