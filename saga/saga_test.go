package saga

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/cschleiden/go-workflows/tester"
	"github.com/cschleiden/go-workflows/workflow"
	"github.com/stretchr/testify/require"
)

// run executes steps in a workflow, registering an undo per step, and compensates when a step
// named "fail" is reached. undo steps named "broken-*" fail.
func run(ctx workflow.Context, steps []string) (string, error) {
	var s Saga
	var undone []string

	for _, step := range steps {
		if step == "fail" {
			done, err := s.Compensate(ctx)
			r := strings.Join(undone, ",") + "|" + strings.Join(done, ",")
			if err != nil {
				r += "|" + err.Error()
			}

			return r, nil
		}

		step := step
		s.AddCompensation(step, func(ctx workflow.Context) error {
			if strings.HasPrefix(step, "broken-") {
				return errors.New("cannot undo " + step)
			}

			undone = append(undone, step)
			return nil
		})
	}

	return strings.Join(s.Steps(), ","), nil
}

func execute(t *testing.T, steps ...string) string {
	t.Helper()

	wt := tester.NewWorkflowTester[string](run)
	wt.Execute(context.Background(), steps)

	require.True(t, wt.WorkflowFinished())

	r, err := wt.WorkflowResult()
	require.NoError(t, err)

	return r
}

func Test_Saga_CompensatesInReverseOrder(t *testing.T) {
	require.Equal(t, "release,refund|release,refund", execute(t, "refund", "release", "fail"))
}

func Test_Saga_NothingToCompensate(t *testing.T) {
	require.Equal(t, "|", execute(t, "fail"))
}

func Test_Saga_FailedCompensationDoesNotStopOthers(t *testing.T) {
	r := execute(t, "refund", "broken-ship", "release", "fail")

	require.True(t, strings.HasPrefix(r, "release,refund|release,refund|"), r)
	require.Contains(t, r, "cannot undo broken-ship")
}

func Test_Saga_Steps(t *testing.T) {
	require.Equal(t, "refund,release", execute(t, "refund", "release"))
}
