package attendance_test

import (
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shuleapp/shule/core"
	"github.com/shuleapp/shule/core/attendance"
)

func TestSummarize(t *testing.T) {
	assert.Equal(t, attendance.Summary{}, attendance.Summarize(nil))

	recs := []attendance.Record{
		{Status: attendance.StatusPresent},
		{Status: attendance.StatusPresent},
		{Status: attendance.StatusLate},
	}
	assert.Equal(t, attendance.Summary{Total: 3, Present: 2, Late: 1, Rate: 67}, attendance.Summarize(recs))
}

func TestMarkClass_Validate(t *testing.T) {
	translator := core.NewTranslator()
	validate := validator.New()
	core.InitValidators(validate, translator)
	attendance.InitValidators(validate, translator)

	mc := attendance.MarkClass{
		ClassID: " 6F1C7B0E-3D5A-4C59-9E5B-2F0B7C1D9A11 ",
		Date:    "2026-03-02",
		Records: []attendance.Mark{
			{StudentID: "0b7e4a52-1c9f-4d3e-8a57-6c2d1e9f0a33"},
			{StudentID: "2c4d6e8f-0a1b-4c3d-9e5f-7a8b9c0d1e22", Status: " ABSENT "},
		},
	}
	require.NoError(t, mc.Validate(validate))
	assert.Equal(t, "6f1c7b0e-3d5a-4c59-9e5b-2f0b7c1d9a11", mc.ClassID)
	assert.Equal(t, attendance.StatusPresent, mc.Records[0].Status)
	assert.Equal(t, attendance.StatusAbsent, mc.Records[1].Status)

	mc.Records[1].Status = "excused"
	assert.Error(t, mc.Validate(validate))
}
