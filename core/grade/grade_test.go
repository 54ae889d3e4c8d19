package grade_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/shuleapp/shule/core/grade"
)

func TestLetter(t *testing.T) {
	tests := []struct {
		obtained, total float64
		wantPct         int
		wantLetter      string
	}{
		{obtained: 95, total: 100, wantPct: 95, wantLetter: "A+"},
		{obtained: 45, total: 50, wantPct: 90, wantLetter: "A+"},
		{obtained: 89.4, total: 100, wantPct: 89, wantLetter: "A"},
		{obtained: 7, total: 10, wantPct: 70, wantLetter: "B"},
		{obtained: 60, total: 100, wantPct: 60, wantLetter: "C"},
		{obtained: 59, total: 100, wantPct: 59, wantLetter: "F"},
		{obtained: 5, total: 0, wantPct: 0, wantLetter: "F"},
	}
	for _, tt := range tests {
		g := grade.Grade{MarksObtained: tt.obtained, TotalMarks: tt.total}.WithDerived()
		assert.Equal(t, tt.wantPct, g.Percentage, "%v/%v", tt.obtained, tt.total)
		assert.Equal(t, tt.wantLetter, g.Letter, "%v/%v", tt.obtained, tt.total)
	}
}
