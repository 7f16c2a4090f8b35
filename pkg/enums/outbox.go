package enums

import "fmt"

// OutboxAggregateType maps to the aggregate_type_enum in Postgres.
type OutboxAggregateType string

const (
	AggregateApplication OutboxAggregateType = "application"
	AggregatePermit      OutboxAggregateType = "permit"
	AggregateUpload      OutboxAggregateType = "upload"
)

var validAggregateTypes = []OutboxAggregateType{
	AggregateApplication,
	AggregatePermit,
	AggregateUpload,
}

// IsValid reports whether the value matches the canonical aggregate_type enum.
func (a OutboxAggregateType) IsValid() bool {
	for _, candidate := range validAggregateTypes {
		if candidate == a {
			return true
		}
	}
	return false
}

// ParseOutboxAggregateType converts raw input into OutboxAggregateType.
func ParseOutboxAggregateType(value string) (OutboxAggregateType, error) {
	for _, candidate := range validAggregateTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid aggregate type %q", value)
}

// OutboxEventType maps to the event_type_enum in Postgres.
type OutboxEventType string

const (
	EventApplicationSubmitted OutboxEventType = "application_submitted"
	EventPermitCreated        OutboxEventType = "permit_created"
	EventPermitUpdated        OutboxEventType = "permit_updated"
	EventPermitStatusChanged  OutboxEventType = "permit_status_changed"
	EventPermitExpiringSoon   OutboxEventType = "permit_expiring_soon"
	EventUploadCompleted      OutboxEventType = "upload_completed"
	EventUploadOrphanDeleted  OutboxEventType = "upload_orphan_deleted"
)

var validOutboxEventTypes = []OutboxEventType{
	EventApplicationSubmitted,
	EventPermitCreated,
	EventPermitUpdated,
	EventPermitStatusChanged,
	EventPermitExpiringSoon,
	EventUploadCompleted,
	EventUploadOrphanDeleted,
}

// IsValid reports whether the value matches the canonical event_type enum.
func (e OutboxEventType) IsValid() bool {
	for _, candidate := range validOutboxEventTypes {
		if candidate == e {
			return true
		}
	}
	return false
}

// ParseOutboxEventType converts raw input into OutboxEventType.
func ParseOutboxEventType(value string) (OutboxEventType, error) {
	for _, candidate := range validOutboxEventTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid event type %q", value)
}
