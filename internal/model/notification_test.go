package model

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTypeIsAction(t *testing.T) {
	actions := []Type{TypeInterviewScheduled, TypeEnrollmentApproved, TypeBeneficiaryAssigned}
	for _, typ := range actions {
		assert.True(t, typ.IsAction(), typ)
	}
	for _, typ := range []Type{TypeInterviewRequest, TypeProgramApproval, TypeSystemUpdate, "harvest_report"} {
		assert.False(t, typ.IsAction(), typ)
	}
}

func TestPriorityNormalize(t *testing.T) {
	assert.Equal(t, PriorityHigh, PriorityHigh.Normalize())
	assert.Equal(t, PriorityMedium, Priority("").Normalize())
	assert.Equal(t, PriorityMedium, Priority("urgent").Normalize())
}

func TestNotificationUnmarshalPicksPayloadVariant(t *testing.T) {
	tests := []struct {
		name string
		json string
		want Payload
	}{
		{
			name: "interview",
			json: `{"id":"1","type":"interview_scheduled","data":{"interviewId":"iv-9","beneficiaryName":"Amina Okoro"}}`,
			want: InterviewData{InterviewID: "iv-9", BeneficiaryName: "Amina Okoro"},
		},
		{
			name: "enrollment",
			json: `{"id":"2","type":"enrollment_rejected","data":{"enrollmentId":"e-1","reason":"incomplete"}}`,
			want: EnrollmentData{EnrollmentID: "e-1", Reason: "incomplete"},
		},
		{
			name: "unknown type keeps raw fields",
			json: `{"id":"3","type":"harvest_report","data":{"tonnes":12}}`,
			want: GenericData{"tonnes": float64(12)},
		},
		{
			name: "null data",
			json: `{"id":"4","type":"system_update","data":null}`,
			want: nil,
		},
		{
			name: "missing data",
			json: `{"id":"5","type":"program_approval"}`,
			want: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var n Notification
			require.NoError(t, json.Unmarshal([]byte(tt.json), &n))
			assert.Equal(t, tt.want, n.Data)
		})
	}
}

func TestNotificationUnmarshalNormalizesPriority(t *testing.T) {
	var n Notification
	require.NoError(t, json.Unmarshal([]byte(`{"id":"1","type":"system_update","priority":"critical","unread":true,"timestamp":"2024-03-10T08:30:00Z"}`), &n))

	assert.Equal(t, PriorityMedium, n.Priority)
	assert.True(t, n.Unread)
	assert.True(t, n.Timestamp.Equal(time.Date(2024, 3, 10, 8, 30, 0, 0, time.UTC)))
}

func TestDecodePayloadRejectsMismatchedVariant(t *testing.T) {
	_, err := DecodePayload(TypeBeneficiaryUpdate, json.RawMessage(`{"changedFields":"name"}`))
	assert.Error(t, err)
}

func TestNotificationUnmarshalKeepsMismatchedPayloadUntyped(t *testing.T) {
	tests := []struct {
		name string
		json string
		want Payload
	}{
		{
			name: "numeric id",
			json: `{"id":"7","type":"beneficiary_update","data":{"beneficiaryId":42}}`,
			want: GenericData{"beneficiaryId": float64(42)},
		},
		{
			name: "scalar field where a list is expected",
			json: `{"id":"8","type":"beneficiary_update","data":{"changedFields":"name"}}`,
			want: GenericData{"changedFields": "name"},
		},
		{
			name: "payload that is not an object",
			json: `{"id":"9","type":"system_update","data":"reboot"}`,
			want: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var n Notification
			require.NoError(t, json.Unmarshal([]byte(tt.json), &n))
			assert.Equal(t, tt.want, n.Data)
		})
	}
}

func TestNotificationListSurvivesOneOddPayload(t *testing.T) {
	var list []Notification
	err := json.Unmarshal([]byte(`[
		{"id":"1","type":"system_update","data":{"version":"2.1"}},
		{"id":"2","type":"beneficiary_update","data":{"beneficiaryId":42}}
	]`), &list)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, SystemData{Version: "2.1"}, list[0].Data)
	assert.Equal(t, GenericData{"beneficiaryId": float64(42)}, list[1].Data)

	b, err := json.Marshal(list)
	require.NoError(t, err)
	var again []Notification
	require.NoError(t, json.Unmarshal(b, &again))
	assert.Equal(t, list[1].Data, again[1].Data)
}

func TestNotificationJSONRoundTripKeepsVariant(t *testing.T) {
	ts := time.Date(2024, 3, 10, 8, 30, 0, 123, time.UTC)
	in := Notification{
		ID: "n-1", Type: TypeCoordinatorRegistration, Title: "New coordinator",
		Message: "Jonas registered", Priority: PriorityLow, Unread: true, Timestamp: ts,
		Data: CoordinatorData{CoordinatorName: "Jonas", Region: "North"},
	}

	b, err := json.Marshal(in)
	require.NoError(t, err)

	var out Notification
	require.NoError(t, json.Unmarshal(b, &out))
	assert.Equal(t, in.Data, out.Data)
	assert.True(t, in.Timestamp.Equal(out.Timestamp))
}
