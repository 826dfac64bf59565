package alert

import (
	"fmt"
	"time"

	"google.golang.org/protobuf/types/known/structpb"

	domain "github.com/oshokin/sos-beacon/internal/domain/alert"
)

// Struct field names beyond the notification fields.
const (
	FieldPhase     = "phase"
	FieldOpenedAt  = "opened_at"
	FieldDeadline  = "deadline"
	FieldUpdatedAt = "updated_at"
	FieldOutcome   = "outcome"
	FieldEvent     = "event"
	FieldAt        = "at"
)

// SnapshotToStruct converts a snapshot to its wire form. Alert fields are
// present only while an alert is open.
func SnapshotToStruct(s *domain.Snapshot) *structpb.Struct {
	if s == nil {
		s = &domain.Snapshot{Phase: domain.PhaseIdle}
	}

	fields := map[string]*structpb.Value{
		FieldPhase: structpb.NewStringValue(string(s.Phase)),
	}

	if !s.UpdatedAt.IsZero() {
		fields[FieldUpdatedAt] = timeValue(s.UpdatedAt)
	}

	if a := s.Alert; a != nil {
		fields[domain.FieldAlertID] = structpb.NewStringValue(a.ID)
		fields[domain.FieldMessage] = structpb.NewStringValue(a.Message)
		fields[FieldOpenedAt] = timeValue(a.OpenedAt)
		fields[FieldDeadline] = timeValue(a.Deadline)
	}

	return &structpb.Struct{Fields: fields}
}

// NotificationToStruct flattens a notification into {event, at, fields...}.
func NotificationToStruct(n domain.Notification) *structpb.Struct {
	fields := make(map[string]*structpb.Value, len(n.Fields)+2)

	for key, value := range n.Fields {
		v, err := structpb.NewValue(value)
		if err != nil {
			v = structpb.NewStringValue(fmt.Sprint(value))
		}

		fields[key] = v
	}

	fields[FieldEvent] = structpb.NewStringValue(n.Name)

	if !n.At.IsZero() {
		fields[FieldAt] = timeValue(n.At)
	}

	return &structpb.Struct{Fields: fields}
}

// NotificationFromStruct is the inverse of NotificationToStruct.
func NotificationFromStruct(s *structpb.Struct) domain.Notification {
	n := domain.Notification{Fields: make(map[string]any)}

	for key, value := range s.GetFields() {
		switch key {
		case FieldEvent:
			n.Name = value.GetStringValue()
		case FieldAt:
			n.At, _ = time.Parse(time.RFC3339Nano, value.GetStringValue())
		default:
			n.Fields[key] = value.AsInterface()
		}
	}

	return n
}

func timeValue(t time.Time) *structpb.Value {
	return structpb.NewStringValue(t.UTC().Format(time.RFC3339Nano))
}
