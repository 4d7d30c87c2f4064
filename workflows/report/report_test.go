package report

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/cschleiden/go-workflows/tester"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/cschleiden/orderflow/activities"
)

func previous(p string) any {
	return mock.MatchedBy(func(r activities.ReportRequest) bool {
		return r.Previous == p
	})
}

func Test_Next(t *testing.T) {
	at := time.Date(2024, 3, 10, 10, 0, 0, 0, time.UTC)

	next, err := Next(DefaultSchedule, at)
	require.NoError(t, err)
	require.Equal(t, time.Date(2024, 3, 11, 9, 0, 0, 0, time.UTC), next)

	next, err = Next("*/15 * * * *", at)
	require.NoError(t, err)
	require.Equal(t, time.Date(2024, 3, 10, 10, 15, 0, 0, time.UTC), next)

	_, err = Next("every day", at)
	require.Error(t, err)
}

func Test_GenerateDailyReport_CarriesLastCompletionResult(t *testing.T) {
	wt := tester.NewWorkflowTester[string](GenerateDailyReport)

	wt.OnActivity(a.GenerateOrderReport, mock.Anything, previous("")).Return("Report[1]: orders=1, revenue=10", nil).Once()
	wt.OnActivity(a.GenerateOrderReport, mock.Anything, previous("Report[1]: orders=1, revenue=10")).Return("Report[2]: orders=2, revenue=30", nil).Once()

	state := NewCronState("")
	state.MaxRuns = 2

	wt.Execute(context.Background(), state)

	require.True(t, wt.WorkflowFinished())

	r, err := wt.WorkflowResult()
	require.NoError(t, err)
	require.Equal(t, "Report[2]: orders=2, revenue=30", r)

	wt.AssertExpectations(t)
}

func Test_GenerateDailyReport_FailedRunKeepsPreviousResult(t *testing.T) {
	wt := tester.NewWorkflowTester[string](GenerateDailyReport)

	wt.OnActivity(a.GenerateOrderReport, mock.Anything, previous("")).Return("first", nil).Once()
	wt.OnActivity(a.GenerateOrderReport, mock.Anything, previous("first")).Return("", errors.New("ledger unavailable")).Once()
	wt.OnActivity(a.GenerateOrderReport, mock.Anything, previous("first")).Return("third", nil).Once()

	state := NewCronState("0 0 * * *")
	state.MaxRuns = 3

	wt.Execute(context.Background(), state)

	require.True(t, wt.WorkflowFinished())

	r, err := wt.WorkflowResult()
	require.NoError(t, err)
	require.Equal(t, "third", r)

	wt.AssertExpectations(t)
}

func Test_GenerateDailyReport_InvalidSchedule(t *testing.T) {
	wt := tester.NewWorkflowTester[string](GenerateDailyReport)

	wt.Execute(context.Background(), CronState{Version: StateVersion, Schedule: "whenever"})

	require.True(t, wt.WorkflowFinished())

	_, err := wt.WorkflowResult()
	require.ErrorContains(t, err, "whenever")
}
