package enums

import "fmt"

// UploadStatus describes the lifecycle state of a slot upload.
type UploadStatus string

const (
	UploadStatusPending  UploadStatus = "pending"
	UploadStatusUploaded UploadStatus = "uploaded"
	UploadStatusFailed   UploadStatus = "failed"
	UploadStatusRemoved  UploadStatus = "removed"
)

var validUploadStatuses = []UploadStatus{
	UploadStatusPending,
	UploadStatusUploaded,
	UploadStatusFailed,
	UploadStatusRemoved,
}

// String returns the literal string for the status.
func (u UploadStatus) String() string {
	return string(u)
}

// IsValid reports whether the status is known.
func (u UploadStatus) IsValid() bool {
	for _, candidate := range validUploadStatuses {
		if candidate == u {
			return true
		}
	}
	return false
}

// Terminal reports whether the slot has left its in-flight state.
func (u UploadStatus) Terminal() bool {
	return u == UploadStatusUploaded || u == UploadStatusFailed || u == UploadStatusRemoved
}

// ParseUploadStatus converts raw input into an UploadStatus.
func ParseUploadStatus(value string) (UploadStatus, error) {
	for _, candidate := range validUploadStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid upload status %q", value)
}
