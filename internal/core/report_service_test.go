package core

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newReportService(t *testing.T, output string) (*ReportService, *updaterFixture) {
	t.Helper()
	f := newUpdaterFixture(t, output)
	return NewReportService(f.reports, f.updater, 10, zap.NewNop()), f
}

func TestReportTriggersOnThreshold(t *testing.T) {
	svc, f := newReportService(t, "정치,문제단어,설명문")
	ctx := context.Background()

	for i := 1; i <= 9; i++ {
		out, err := svc.Submit(ctx, "문제단어", fmt.Sprintf("사유 %d", i))
		require.NoError(t, err)
		assert.Equal(t, i, out.Count)
		assert.False(t, out.Triggered)
	}
	assert.Zero(t, f.gen.calls)

	out, err := svc.Submit(ctx, "문제단어", "사유 10")
	require.NoError(t, err)
	assert.True(t, out.Triggered)
	assert.NoError(t, out.WorkflowErr)
	require.NotNil(t, out.Run)
	assert.Equal(t, StateCleared, out.Run.State)
	assert.Equal(t, 1, f.gen.calls)
	assert.Contains(t, f.gen.prompt, "- 사유 1\n")
	assert.Contains(t, f.gen.prompt, "- 사유 10\n")
}

func TestReportPastThresholdDoesNotRetrigger(t *testing.T) {
	svc, f := newReportService(t, "")
	f.gen.err = errors.New("generation down")
	ctx := context.Background()

	for i := 1; i <= 10; i++ {
		_, err := svc.Submit(ctx, "단어", "사유")
		require.NoError(t, err)
	}
	assert.Equal(t, 1, f.gen.calls)

	out, err := svc.Submit(ctx, "단어", "사유")
	require.NoError(t, err)
	assert.Equal(t, 11, out.Count)
	assert.False(t, out.Triggered)
	assert.Equal(t, 1, f.gen.calls)
}

func TestReportWorkflowFailureStillRecordsReport(t *testing.T) {
	svc, f := newReportService(t, "한필드")
	ctx := context.Background()

	var out ReportOutcome
	var err error
	for i := 0; i < 10; i++ {
		out, err = svc.Submit(ctx, "단어", "사유")
		require.NoError(t, err)
	}
	assert.True(t, out.Triggered)
	assert.ErrorIs(t, out.WorkflowErr, ErrGeneration)

	count, err := f.reports.CountReports(ctx, "단어")
	require.NoError(t, err)
	assert.Equal(t, 10, count)
}

func TestReportValidation(t *testing.T) {
	svc, f := newReportService(t, "")

	_, err := svc.Submit(context.Background(), " ", "사유")
	assert.ErrorIs(t, err, ErrValidation)
	_, err = svc.Submit(context.Background(), "단어", "")
	assert.ErrorIs(t, err, ErrValidation)

	count, err := f.reports.CountReports(context.Background(), "단어")
	require.NoError(t, err)
	assert.Zero(t, count)
}
