package domain

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBatchAck_Constructors(t *testing.T) {
	ok := NewBatchAck(42)
	assert.True(t, ok.OK)
	assert.Equal(t, int64(0), ok.ErrorLine)
	assert.Equal(t, int64(42), ok.BatchID)

	failed := NewFailedBatchAck(42, 17)
	assert.False(t, failed.OK)
	assert.Equal(t, int64(17), failed.ErrorLine)
}

func TestBatchAck_Outcome(t *testing.T) {
	testCases := []struct {
		name       string
		ack        *BatchAck
		want       AckOutcome
		resumeFrom int64
	}{
		{name: "ok", ack: NewBatchAck(1), want: AckOK},
		{name: "ignored", ack: &BatchAck{BatchID: 2, OK: true, Ignored: true}, want: AckIgnored},
		{name: "resend wins over error line", ack: &BatchAck{BatchID: 3, ErrorLine: 9, Resend: true}, want: AckResend},
		{name: "resend wins over ignored", ack: &BatchAck{BatchID: 4, Resend: true, Ignored: true}, want: AckResend},
		{name: "resume", ack: NewFailedBatchAck(5, 12), want: AckResume, resumeFrom: 12},
		{name: "ok ignores resend flag", ack: &BatchAck{BatchID: 6, OK: true, Resend: true}, want: AckOK},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, tc.ack.Outcome())
			assert.Equal(t, tc.resumeFrom, tc.ack.ResumeFrom())
		})
	}
}

func TestBatchAck_FailedWithSQLError(t *testing.T) {
	ack := NewFailedBatchAck(42, 17).SetSQLError("23000", 1062, "Duplicate entry '7' for key 'PRIMARY'")
	ack.NodeID = "store-001"

	assert.Equal(t, AckResume, ack.Outcome())
	assert.Equal(t, int64(17), ack.ResumeFrom())
	assert.Equal(t, "23000", ack.SQLState)
	assert.Equal(t, 1062, ack.SQLCode)
}

func TestBatchAck_JSONOmitsErrorFieldsOnSuccess(t *testing.T) {
	ack := NewBatchAck(7)
	ack.NodeID = "store-001"
	ack.NetworkMillis, ack.FilterMillis, ack.DatabaseMillis = 10, 5, 30
	ack.ByteCount = 2048

	data, err := json.Marshal(ack)
	require.NoError(t, err)

	var fields map[string]any
	require.NoError(t, json.Unmarshal(data, &fields))
	for _, key := range []string{"errorLine", "sqlState", "sqlCode", "sqlMessage", "resend", "ignored"} {
		assert.NotContains(t, fields, key)
	}
	assert.Equal(t, true, fields["ok"])
	assert.Equal(t, int64(45), ack.TotalMillis())
}

func TestJobDefinition_Validate(t *testing.T) {
	assert.ErrorIs(t, JobDefinition{}.Validate(), ErrEmptyJobName)
	assert.NoError(t, JobDefinition{Name: "purge"}.Validate())
}
