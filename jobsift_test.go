package jobsift

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/jobsift/jobsift/ai"
	"github.com/jobsift/jobsift/ai/mock"
	"github.com/jobsift/jobsift/core"
	"github.com/jobsift/jobsift/pipeline"
	"github.com/jobsift/jobsift/queue"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestSystem(t *testing.T, completer ai.Completer) *System {
	t.Helper()

	system, err := Open(context.Background(), "",
		WithInMemoryStorage(),
		WithBackoffTable([]time.Duration{time.Millisecond}),
		WithCompleters(map[pipeline.ProviderTag]ai.Completer{
			pipeline.ProviderOpenAI: completer,
			pipeline.ProviderGemini: completer,
		}),
		WithSubmitter(queue.SubmitterFunc(func(ctx context.Context, jobID, jobType string) error {
			return nil
		})),
	)
	require.NoError(t, err)
	t.Cleanup(func() { system.Close() })
	return system
}

// stageResponses answers each stage's call with output matching its schema.
func stageResponses() func(ctx context.Context, instructions, input string) (string, error) {
	return func(ctx context.Context, instructions, input string) (string, error) {
		switch {
		case strings.Contains(instructions, "Clean up the captured job posting"):
			return "Cleaned job posting text.", nil
		case strings.Contains(instructions, "concrete requirements"):
			return `{"req1": "5 years of Go"}`, nil
		case strings.Contains(instructions, "soft skills"):
			return `{"communication": {"name": "Communication", "description": "cross-team work"}}`, nil
		case strings.Contains(instructions, "domain of expertise"):
			return `{"name": "payments", "assessment": "core focus", "importance": 4}`, nil
		case strings.Contains(instructions, "Score how well"):
			return `{"totalScore": 70, "summary": "good fit", "matches": [{"requirement": "5 years of Go", "score": 70, "assessment": "meets"}]}`, nil
		default:
			return `{}`, nil
		}
	}
}

func TestSystem_IngestRunsWholeChain(t *testing.T) {
	completer := mock.NewMockCompleter()
	completer.CompleteFunc = stageResponses()
	system := newTestSystem(t, completer)
	ctx := context.Background()

	docID, err := system.Ingest(ctx, "u1", "j1", "Senior PM role at Acme...", "https://example.com/job")
	require.NoError(t, err)
	assert.Equal(t, "j1", docID)

	system.Drain()

	docs := system.DocumentStore()

	var extracted string
	require.NoError(t, docs.GetPath(ctx, "u1", "j1", core.PathExtractedText, &extracted))
	assert.Equal(t, "Cleaned job posting text.", extracted)

	var requirements map[string]string
	require.NoError(t, docs.GetPath(ctx, "u1", "j1", core.PathRequirements, &requirements))
	assert.Equal(t, "5 years of Go", requirements["req1"])

	var skills map[string]core.SoftSkill
	require.NoError(t, docs.GetPath(ctx, "u1", "j1", core.PathSoftSkills, &skills))
	assert.Contains(t, skills, "communication")

	var expertise core.DomainExpertise
	require.NoError(t, docs.GetPath(ctx, "u1", "j1", core.PathDomainExpertise, &expertise))
	assert.Equal(t, "payments", expertise.Name)

	var score core.ScoreResult
	require.NoError(t, docs.GetPath(ctx, "u1", "j1", core.PathScore, &score))
	assert.Equal(t, 70, score.TotalScore)
}

func TestSystem_IngestValidatesInput(t *testing.T) {
	completer := mock.NewMockCompleter()
	system := newTestSystem(t, completer)
	ctx := context.Background()

	_, err := system.Ingest(ctx, "", "j1", "text", "")
	assert.ErrorIs(t, err, core.ErrEmptySubjectID)

	_, err = system.Ingest(ctx, "u1", "j1", "", "")
	assert.ErrorIs(t, err, core.ErrEmptyRawText)
}

func TestSystem_IngestDerivesDocIDFromContent(t *testing.T) {
	completer := mock.NewMockCompleter()
	completer.CompleteFunc = stageResponses()
	system := newTestSystem(t, completer)
	ctx := context.Background()

	first, err := system.Ingest(ctx, "u1", "", "same capture", "")
	require.NoError(t, err)
	second, err := system.Ingest(ctx, "u1", "", "same capture", "")
	require.NoError(t, err)
	assert.Equal(t, first, second, "identical captures target the same document")
	assert.Len(t, first, 16)
}

func TestSystem_QueueIsWired(t *testing.T) {
	completer := mock.NewMockCompleter()
	system := newTestSystem(t, completer)
	ctx := context.Background()

	require.NoError(t, system.Queue().AddToQueue(ctx, "job-1"))
	report, err := system.Queue().ProcessQueue(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Submitted)

	stats, err := system.Queue().Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Active)
}
