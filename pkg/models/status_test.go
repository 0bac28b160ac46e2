package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDetailStatus_String(t *testing.T) {
	tests := []struct {
		status DetailStatus
		want   string
	}{
		{DetailStatusUnset, "unset"},
		{DetailStatusPending, "pending"},
		{DetailStatusSuccess, "success"},
		{DetailStatusFailure, "failure"},
		{DetailStatusNotFound, "not_found"},
		{DetailStatusDBError, "db_error"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.status.String())
	}
}

func TestDetailStatus_IsValid(t *testing.T) {
	tests := []struct {
		status DetailStatus
		want   bool
	}{
		{DetailStatusPending, true},
		{DetailStatusSuccess, true},
		{DetailStatusFailure, true},
		{DetailStatusUnset, false},
		{DetailStatusNotFound, false},
		{DetailStatusDBError, false},
		{DetailStatus("arbitrary"), false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.status.IsValid(), "DetailStatus(%q).IsValid()", string(tt.status))
	}
}

func TestDetailStatus_IsTerminal(t *testing.T) {
	assert.True(t, DetailStatusSuccess.IsTerminal())
	assert.True(t, DetailStatusFailure.IsTerminal())
	assert.False(t, DetailStatusPending.IsTerminal())
	assert.False(t, DetailStatusUnset.IsTerminal())
}
