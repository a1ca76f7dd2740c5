package core

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateScore_Bounds(t *testing.T) {
	require.NoError(t, ValidateScore(0))
	require.NoError(t, ValidateScore(100))
	require.NoError(t, ValidateScore(57))
	assert.ErrorIs(t, ValidateScore(-1), ErrScoreOutOfRange)
	assert.ErrorIs(t, ValidateScore(101), ErrScoreOutOfRange)
}

func TestScoreResult_Validate(t *testing.T) {
	valid := &ScoreResult{
		TotalScore: 73,
		Summary:    "solid overlap with the stated requirements",
		Matches: []RequirementMatch{
			{Requirement: "5y experience", Score: 80, Assessment: "exceeds"},
			{Requirement: "Go", Score: 66, Assessment: "meets"},
		},
	}
	require.NoError(t, valid.Validate())
}

func TestScoreResult_Validate_RejectsBadTotal(t *testing.T) {
	r := &ScoreResult{TotalScore: 120}
	assert.ErrorIs(t, r.Validate(), ErrScoreOutOfRange)
}

func TestScoreResult_Validate_RejectsBadMatch(t *testing.T) {
	r := &ScoreResult{
		TotalScore: 50,
		Matches: []RequirementMatch{
			{Requirement: "ok", Score: 50},
			{Requirement: "bad", Score: -3},
		},
	}
	err := r.Validate()
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrScoreOutOfRange)
	assert.Contains(t, err.Error(), "matches[1]")
}

func TestDomainExpertise_Validate(t *testing.T) {
	require.NoError(t, (&DomainExpertise{Name: "fintech", Assessment: "strong", Importance: 3}).Validate())
	assert.ErrorIs(t, (&DomainExpertise{Importance: 0}).Validate(), ErrImportanceOutOfRange)
	assert.ErrorIs(t, (&DomainExpertise{Importance: 6}).Validate(), ErrImportanceOutOfRange)
}

func TestQueueEntry_Validate(t *testing.T) {
	entry := &QueueEntry{
		JobID:     "job-1",
		Status:    JobStatusPending,
		CreatedAt: time.Now().UTC(),
	}
	require.NoError(t, entry.Validate())

	assert.ErrorIs(t, (&QueueEntry{Status: JobStatusPending}).Validate(), ErrEmptyJobID)
	assert.ErrorIs(t, (&QueueEntry{JobID: "j", Status: JobStatus(9)}).Validate(), ErrInvalidJobStatus)

	entry.RetryCount = -1
	assert.Error(t, entry.Validate())
}
