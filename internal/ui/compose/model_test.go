package compose

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/nhle/subsidy-console/internal/model"
)

func TestFormBindingsInput(t *testing.T) {
	fb := formBindings{
		kind:     string(model.TypeInterviewScheduled),
		title:    "  Interview scheduled ",
		message:  "Visit on Monday",
		priority: string(model.PriorityHigh),
		subject:  "Amina Okoro",
	}

	in := fb.input()
	assert.Equal(t, model.TypeInterviewScheduled, in.Type)
	assert.Equal(t, "Interview scheduled", in.Title)
	assert.Equal(t, model.PriorityHigh, in.Priority)
	assert.Equal(t, model.InterviewData{BeneficiaryName: "Amina Okoro"}, in.Data)
	assert.Nil(t, in.Timestamp)
}

func TestSubjectPayload(t *testing.T) {
	assert.Nil(t, subjectPayload(model.TypeSystemUpdate, ""))
	assert.Equal(t, model.CoordinatorData{CoordinatorName: "Jonas"}, subjectPayload(model.TypeCoordinatorRegistration, "Jonas"))
	assert.Equal(t, model.GenericData{"subject": "x"}, subjectPayload("harvest_report", "x"))
}

func TestValidateRequired(t *testing.T) {
	validate := validateRequired("Title")
	assert.EqualError(t, validate("   "), "Title is required")
	assert.NoError(t, validate("ok"))
}
