package scenario

import (
	"context"

	"github.com/busmesh/testorch/supervisor"
)

// supervisorAdapter adapts an Executor to supervisor.ScenarioRunner, since
// Go interface satisfaction needs the named TestExecutionResult and
// supervisor.ScenarioResult types to match exactly despite identical
// fields.
type supervisorAdapter struct {
	executor *Executor
}

// AsScenarioRunner wraps e for use as a supervisor.Supervisor dependency.
func AsScenarioRunner(e *Executor) supervisor.ScenarioRunner {
	return &supervisorAdapter{executor: e}
}

func (a *supervisorAdapter) Initialize() error {
	return a.executor.Initialize()
}

func (a *supervisorAdapter) StartTest(ctx context.Context) (supervisor.ScenarioResult, error) {
	result, err := a.executor.StartTest(ctx)
	return supervisor.ScenarioResult{
		Passed:        result.Passed,
		ScenarioCount: result.ScenarioCount,
		PassedCount:   result.PassedCount,
		FailedCount:   result.FailedCount,
		EvidencePaths: result.EvidencePaths,
	}, err
}

func (a *supervisorAdapter) Stop() {
	a.executor.Stop()
}
