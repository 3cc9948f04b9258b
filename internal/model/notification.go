package model

import (
	"encoding/json"
	"time"

	"github.com/sirupsen/logrus"
)

// Type identifies the category of a notification. Consumers use it for
// routing and iconography; the inbox itself treats it as opaque apart from
// the action subset.
type Type string

const (
	TypeInterviewRequest        Type = "interview_request"
	TypeInterviewScheduled      Type = "interview_scheduled"
	TypeBeneficiaryUpdate       Type = "beneficiary_update"
	TypeBeneficiaryAssigned     Type = "beneficiary_assigned"
	TypeProgramApproval         Type = "program_approval"
	TypeEnrollmentApproved      Type = "enrollment_approved"
	TypeEnrollmentRejected      Type = "enrollment_rejected"
	TypeCoordinatorRegistration Type = "coordinator_registration"
	TypeSystemUpdate            Type = "system_update"
)

// IsAction reports whether t represents a completed workflow action
// (interview, enrollment or assignment confirmation). Action notifications
// expire after a day instead of a week.
func (t Type) IsAction() bool {
	switch t {
	case TypeInterviewScheduled, TypeEnrollmentApproved, TypeBeneficiaryAssigned:
		return true
	default:
		return false
	}
}

// Priority ranks how prominently a notification should be surfaced.
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
)

// Normalize maps unknown or empty priorities to PriorityMedium.
func (p Priority) Normalize() Priority {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh:
		return p
	default:
		return PriorityMedium
	}
}

// Notification is a single entry in a role's notification feed.
type Notification struct {
	// ID is a time-ordered identifier, unique within the feed.
	ID string `json:"id"`

	// Type is the notification category.
	Type Type `json:"type"`

	// Title and Message are display strings.
	Title   string `json:"title"`
	Message string `json:"message"`

	// Priority is one of low, medium or high.
	Priority Priority `json:"priority"`

	// Unread is true until the notification is explicitly marked read.
	Unread bool `json:"unread"`

	// Timestamp is when the notification was created.
	Timestamp time.Time `json:"timestamp"`

	// Data is the category-specific payload, nil when absent.
	Data Payload `json:"data,omitempty"`
}

// Input describes a notification to be added to the feed. Fields left
// empty are filled in by the inbox.
type Input struct {
	Type      Type
	Title     string
	Message   string
	Priority  Priority
	Timestamp *time.Time
	Data      Payload
}

// notificationJSON mirrors Notification with a raw payload so the payload
// variant can be chosen from the sibling type field.
type notificationJSON struct {
	ID        string          `json:"id"`
	Type      Type            `json:"type"`
	Title     string          `json:"title"`
	Message   string          `json:"message"`
	Priority  Priority        `json:"priority"`
	Unread    bool            `json:"unread"`
	Timestamp time.Time       `json:"timestamp"`
	Data      json.RawMessage `json:"data,omitempty"`
}

// UnmarshalJSON decodes a notification, resolving Data to the payload
// variant registered for its type. A payload that does not fit its
// variant decodes to GenericData, or to nil when it is not an object, so
// one odd record never fails a whole feed.
func (n *Notification) UnmarshalJSON(b []byte) error {
	var raw notificationJSON
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}

	data, err := DecodePayload(raw.Type, raw.Data)
	if err != nil {
		log := logrus.WithError(err).WithFields(logrus.Fields{
			"id":   raw.ID,
			"type": raw.Type,
		})
		var generic GenericData
		if json.Unmarshal(raw.Data, &generic) == nil {
			log.Debug("payload does not match its type; keeping it untyped")
			data = generic
		} else {
			log.Debug("dropping undecodable payload")
			data = nil
		}
	}

	*n = Notification{
		ID:        raw.ID,
		Type:      raw.Type,
		Title:     raw.Title,
		Message:   raw.Message,
		Priority:  raw.Priority.Normalize(),
		Unread:    raw.Unread,
		Timestamp: raw.Timestamp,
		Data:      data,
	}
	return nil
}
