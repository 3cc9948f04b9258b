package model

import (
	"bytes"
	"encoding/json"
	"time"
)

// Payload is the category-specific data attached to a notification.
// Each notification type has exactly one payload variant; unknown types
// decode to GenericData.
type Payload interface {
	payload()
}

// InterviewData accompanies interview_request and interview_scheduled.
type InterviewData struct {
	InterviewID     string     `json:"interviewId,omitempty"`
	BeneficiaryID   string     `json:"beneficiaryId,omitempty"`
	BeneficiaryName string     `json:"beneficiaryName,omitempty"`
	CoordinatorName string     `json:"coordinatorName,omitempty"`
	ScheduledAt     *time.Time `json:"scheduledAt,omitempty"`
	Location        string     `json:"location,omitempty"`
}

// BeneficiaryData accompanies beneficiary_update and beneficiary_assigned.
type BeneficiaryData struct {
	BeneficiaryID   string   `json:"beneficiaryId,omitempty"`
	BeneficiaryName string   `json:"beneficiaryName,omitempty"`
	CoordinatorID   string   `json:"coordinatorId,omitempty"`
	ChangedFields   []string `json:"changedFields,omitempty"`
}

// ProgramData accompanies program_approval.
type ProgramData struct {
	ProgramID   string `json:"programId,omitempty"`
	ProgramName string `json:"programName,omitempty"`
	Status      string `json:"status,omitempty"`
	RequestedBy string `json:"requestedBy,omitempty"`
}

// EnrollmentData accompanies enrollment_approved and enrollment_rejected.
type EnrollmentData struct {
	EnrollmentID    string `json:"enrollmentId,omitempty"`
	BeneficiaryID   string `json:"beneficiaryId,omitempty"`
	BeneficiaryName string `json:"beneficiaryName,omitempty"`
	ProgramName     string `json:"programName,omitempty"`
	Reason          string `json:"reason,omitempty"`
}

// CoordinatorData accompanies coordinator_registration.
type CoordinatorData struct {
	CoordinatorID   string `json:"coordinatorId,omitempty"`
	CoordinatorName string `json:"coordinatorName,omitempty"`
	Email           string `json:"email,omitempty"`
	Region          string `json:"region,omitempty"`
}

// SystemData accompanies system_update.
type SystemData struct {
	Version string `json:"version,omitempty"`
	Details string `json:"details,omitempty"`
}

// GenericData carries the payload of notification types this client does
// not know about.
type GenericData map[string]any

func (InterviewData) payload()   {}
func (BeneficiaryData) payload() {}
func (ProgramData) payload()     {}
func (EnrollmentData) payload()  {}
func (CoordinatorData) payload() {}
func (SystemData) payload()      {}
func (GenericData) payload()     {}

// DecodePayload decodes raw into the payload variant for t. Empty or null
// input yields a nil Payload.
func DecodePayload(t Type, raw json.RawMessage) (Payload, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil, nil
	}

	switch t {
	case TypeInterviewRequest, TypeInterviewScheduled:
		return decodeInto[InterviewData](trimmed)
	case TypeBeneficiaryUpdate, TypeBeneficiaryAssigned:
		return decodeInto[BeneficiaryData](trimmed)
	case TypeProgramApproval:
		return decodeInto[ProgramData](trimmed)
	case TypeEnrollmentApproved, TypeEnrollmentRejected:
		return decodeInto[EnrollmentData](trimmed)
	case TypeCoordinatorRegistration:
		return decodeInto[CoordinatorData](trimmed)
	case TypeSystemUpdate:
		return decodeInto[SystemData](trimmed)
	default:
		return decodeInto[GenericData](trimmed)
	}
}

func decodeInto[T Payload](raw []byte) (Payload, error) {
	var v T
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, err
	}
	return v, nil
}
