package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidateLaunchInput(t *testing.T) {
	valid := LaunchInput{
		Name:      "Black Friday",
		StartDate: at("2024-11-24T00:00:00Z"),
		EndDate:   at("2024-11-27T23:59:59Z"),
	}
	assert.NoError(t, validateLaunchInput(valid))

	negativeGoal := int64(-1)
	negativeSales := -1
	tests := []struct {
		name  string
		input LaunchInput
	}{
		{name: "blank name", input: LaunchInput{Name: "  ", StartDate: valid.StartDate, EndDate: valid.EndDate}},
		{name: "missing dates", input: LaunchInput{Name: "x"}},
		{name: "end before start", input: LaunchInput{Name: "x", StartDate: valid.EndDate, EndDate: valid.StartDate}},
		{name: "end equals start", input: LaunchInput{Name: "x", StartDate: valid.StartDate, EndDate: valid.StartDate}},
		{name: "negative revenue goal", input: LaunchInput{Name: "x", StartDate: valid.StartDate, EndDate: valid.EndDate, RevenueGoalCents: &negativeGoal}},
		{name: "negative sales goal", input: LaunchInput{Name: "x", StartDate: valid.StartDate, EndDate: valid.EndDate, SalesGoal: &negativeSales}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.ErrorIs(t, validateLaunchInput(tt.input), ErrInvalidLaunch)
		})
	}
}
