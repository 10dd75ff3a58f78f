package model

import "time"

// Action is the kind of event recorded in the activity log.
type Action string

const (
	ActionUpload   Action = "upload"
	ActionDownload Action = "download"
	ActionTest     Action = "test"
)

// ActivityLogEntry represents a single item in the activity logs DynamoDB table.
type ActivityLogEntry struct {
	UserID    string `dynamodbav:"user_id" json:"user_id"`
	Timestamp string `dynamodbav:"timestamp" json:"timestamp"`
	Action    Action `dynamodbav:"action" json:"action"`
	FileID    string `dynamodbav:"file_id" json:"file_id"`
	Filename  string `dynamodbav:"filename" json:"filename"`
}

// TimestampLayout is fixed width so that lexicographic order of the sort key
// matches chronological order.
const TimestampLayout = "2006-01-02T15:04:05.000000Z"

// FormatTimestamp renders t in UTC using TimestampLayout.
func FormatTimestamp(t time.Time) string {
	return t.UTC().Format(TimestampLayout)
}

// ParseTimestamp accepts TimestampLayout and, for rows written by older
// clients, any RFC 3339 variant.
func ParseTimestamp(s string) (time.Time, error) {
	if t, err := time.Parse(TimestampLayout, s); err == nil {
		return t, nil
	}
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t, nil
	}
	return time.ParseInLocation("2006-01-02T15:04:05.999999", s, time.UTC)
}
