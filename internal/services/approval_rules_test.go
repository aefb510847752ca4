package services

import (
	"errors"
	"testing"

	"fintrack/internal/models"
	apperrors "fintrack/pkg/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCheckTransition(t *testing.T) {
	tests := []struct {
		name    string
		from    string
		to      string
		wantErr bool
	}{
		{"草稿可提交", models.RecordStatusDraft, models.RecordStatusSubmitted, false},
		{"已提交可通过", models.RecordStatusSubmitted, models.RecordStatusApproved, false},
		{"已提交可驳回", models.RecordStatusSubmitted, models.RecordStatusRejected, false},
		{"草稿不能直接通过", models.RecordStatusDraft, models.RecordStatusApproved, true},
		{"草稿不能直接驳回", models.RecordStatusDraft, models.RecordStatusRejected, true},
		{"已通过是终态", models.RecordStatusApproved, models.RecordStatusSubmitted, true},
		{"已驳回不能直接重新提交", models.RecordStatusRejected, models.RecordStatusSubmitted, true},
		{"不能重复提交", models.RecordStatusSubmitted, models.RecordStatusSubmitted, true},
		{"未知状态被拒绝", "bogus", models.RecordStatusSubmitted, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := CheckTransition(tt.from, tt.to)
			if tt.wantErr {
				require.Error(t, err)
				var te *apperrors.InvalidTransitionError
				assert.True(t, errors.As(err, &te))
				assert.Equal(t, tt.from, te.From)
				assert.Equal(t, tt.to, te.To)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestTransitionTarget(t *testing.T) {
	assert.Equal(t, models.RecordStatusSubmitted, TransitionTarget(models.ActionSubmit))
	assert.Equal(t, models.RecordStatusApproved, TransitionTarget(models.ActionApprove))
	assert.Equal(t, models.RecordStatusRejected, TransitionTarget(models.ActionReject))
	assert.Equal(t, "", TransitionTarget("unknown"))
}
