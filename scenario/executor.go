// Package scenario runs the BDD scenarios under a test's features/
// directory using godog, calling into the DSL gateway (package dslgateway)
// from user glue for produce/consume steps.
package scenario

import (
	"bytes"
	"context"
	"os"
	"path/filepath"

	"github.com/cucumber/godog"

	"github.com/busmesh/testorch/domain"
	"github.com/busmesh/testorch/infrastructure/errors"
	"github.com/busmesh/testorch/infrastructure/logging"
)

// GlueFunc registers step definitions against a godog.ScenarioContext.
type GlueFunc func(*godog.ScenarioContext)

var glueRegistry = map[string]GlueFunc{}

// RegisterGlue records a named glue package's step-registration function at
// init time. User glue is compiled into the orchestrator binary ahead of
// time; there is no dynamic plugin loading.
func RegisterGlue(pkg string, fn GlueFunc) {
	glueRegistry[pkg] = fn
}

// TestExecutionResult summarizes one StartTest run.
type TestExecutionResult struct {
	Passed        bool
	ScenarioCount int
	PassedCount   int
	FailedCount   int
	EvidencePaths []string
}

// Executor compiles and runs the feature files belonging to one live test.
type Executor struct {
	featuresDir string
	evidenceDir string
	gluePkgs    []string
	tags        string
	logger      *logging.Logger

	cancel context.CancelFunc
}

// Config configures a new Executor.
type Config struct {
	StorageDirective domain.StorageDirective
	GluePackages     []string
	Tags             string
	Logger           *logging.Logger
}

// New constructs an Executor bound to one test's materialized asset tree.
// It does no I/O; Initialize checks the asset tree and StartTest builds and
// runs the godog suite.
func New(cfg Config) *Executor {
	return &Executor{
		featuresDir: filepath.Join(cfg.StorageDirective.AssetRoot, "features"),
		evidenceDir: cfg.StorageDirective.EvidenceRoot,
		gluePkgs:    cfg.GluePackages,
		tags:        cfg.Tags,
		logger:      cfg.Logger,
	}
}

// Initialize checks that the feature directory exists and that every
// requested glue package is registered. It does not parse feature files,
// build the suite or check the tag filter against the features' tags; those
// happen, or are left to godog, when StartTest runs. It does not run anything.
func (e *Executor) Initialize() error {
	if _, err := os.Stat(e.featuresDir); err != nil {
		return errors.ScenarioCompileError(e.featuresDir, err)
	}
	for _, pkg := range e.gluePkgs {
		if _, ok := glueRegistry[pkg]; !ok {
			return errors.ScenarioCompileError(pkg, errors.InvalidConfiguration("glue package "+pkg+" is not registered"))
		}
	}
	return nil
}

// StartTest compiles a godog.TestSuite from the feature files and registered
// glue, runs every matching scenario sequentially, and writes a
// cucumber.json evidence artifact into the evidence root.
func (e *Executor) StartTest(ctx context.Context) (TestExecutionResult, error) {
	ctx, cancel := context.WithCancel(ctx)
	e.cancel = cancel
	defer cancel()

	var jsonBuf bytes.Buffer
	collector := &scenarioCollector{}

	opts := godog.Options{
		Format: "cucumber",
		Output: &jsonBuf,
		Paths:  []string{e.featuresDir},
		Tags:   e.tags,
	}

	suite := godog.TestSuite{
		ScenarioInitializer: func(sc *godog.ScenarioContext) {
			collector.attach(sc)
			for _, pkg := range e.gluePkgs {
				glueRegistry[pkg](sc)
			}
		},
		Options: &opts,
	}

	status := suite.Run()

	evidencePaths, err := e.writeEvidence(jsonBuf.Bytes())
	if err != nil {
		return TestExecutionResult{}, err
	}

	result := TestExecutionResult{
		Passed:        status == 0,
		ScenarioCount: collector.total,
		PassedCount:   collector.passed,
		FailedCount:   collector.failed,
		EvidencePaths: evidencePaths,
	}
	if status != 0 && collector.total == 0 {
		return result, errors.ScenarioRuntimeError("suite", errors.Internal("godog suite exited non-zero with no scenarios observed", nil))
	}
	return result, nil
}

func (e *Executor) writeEvidence(cucumberJSON []byte) ([]string, error) {
	if err := os.MkdirAll(e.evidenceDir, 0o755); err != nil {
		return nil, errors.StreamingFailure(e.evidenceDir, "cucumber.json", err)
	}
	path := filepath.Join(e.evidenceDir, "cucumber.json")
	if err := os.WriteFile(path, cucumberJSON, 0o644); err != nil {
		return nil, errors.StreamingFailure(e.evidenceDir, "cucumber.json", err)
	}
	return []string{path}, nil
}

// Stop cancels the context StartTest derived from its caller's. That context
// is not handed to the godog suite, so a scenario already running is not
// interrupted and suite.Run returns only when the suite finishes.
func (e *Executor) Stop() {
	if e.cancel != nil {
		e.cancel()
	}
}

// scenarioCollector tallies per-scenario pass/fail via godog's After hook,
// since TestSuite.Run only returns a process-style exit status.
type scenarioCollector struct {
	total  int
	passed int
	failed int
}

func (c *scenarioCollector) attach(sc *godog.ScenarioContext) {
	sc.After(func(ctx context.Context, s *godog.Scenario, err error) (context.Context, error) {
		c.total++
		if err != nil {
			c.failed++
		} else {
			c.passed++
		}
		return ctx, nil
	})
}
