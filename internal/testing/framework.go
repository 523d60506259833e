// internal/testing/framework.go
package testing

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"nettle/internal/pipeline"
)

// TestResult represents the result of checking a single fixture file.
type TestResult struct {
	Name     string
	File     string
	Passed   bool
	Failed   bool
	Skipped  bool
	Duration time.Duration
	Error    error
	Message  string
}

// TestSuite groups the fixtures discovered under one directory.
type TestSuite struct {
	Name      string
	File      string
	Results   []TestResult
	StartTime time.Time
	EndTime   time.Time
}

// TestConfig holds configuration for a fixture run.
type TestConfig struct {
	Verbose      bool
	Filter       string
	FailFast     bool
	OutputFormat string // "text", "json", "junit"
}

// TestStats tracks overall fixture statistics.
type TestStats struct {
	TotalTests   int
	PassedTests  int
	FailedTests  int
	SkippedTests int
	TotalTime    time.Duration
	Suites       int
}

// TestReporter is the interface different output formats implement.
type TestReporter interface {
	StartSuite(suite *TestSuite)
	EndSuite(suite *TestSuite)
	TestPassed(result TestResult)
	TestFailed(result TestResult)
	TestSkipped(result TestResult)
	Summary(stats *TestStats)
}

// failSuffix marks a fixture that is expected to fail compilation; every
// other fixture must compile without error.
const failSuffix = "_fail.nt"

// TestRunner compiles every fixture file discovered by DiscoverTests and
// reports whether each compiled (or failed) as its name expects. There is
// no VM to run assertions against, so a fixture's "test" is simply: does
// pipeline.Run succeed or fail the way its filename says it should. Run
// fails only on a syntax error or a duplicated function name; static
// errors and type errors in the lowered code do not make it fail.
type TestRunner struct {
	config   *TestConfig
	reporter TestReporter
	stats    *TestStats
}

// NewTestRunner creates a new test runner.
func NewTestRunner(config *TestConfig) *TestRunner {
	if config == nil {
		config = &TestConfig{OutputFormat: "text"}
	}

	var reporter TestReporter
	switch config.OutputFormat {
	case "json":
		reporter = NewJSONReporter()
	case "junit":
		reporter = NewJUnitReporter()
	default:
		reporter = NewTextReporter(config.Verbose)
	}

	return &TestRunner{config: config, reporter: reporter, stats: &TestStats{}}
}

// Run compiles every file in files and reports the outcome.
func (r *TestRunner) Run(files []string) *TestStats {
	startTime := time.Now()

	suite := &TestSuite{Name: "fixtures", StartTime: startTime}
	r.reporter.StartSuite(suite)

	for _, file := range files {
		if !r.shouldRun(file) {
			result := TestResult{Name: filepath.Base(file), File: file, Skipped: true}
			suite.Results = append(suite.Results, result)
			r.reporter.TestSkipped(result)
			continue
		}

		result := r.runFixture(file)
		suite.Results = append(suite.Results, result)
		if result.Passed {
			r.reporter.TestPassed(result)
		} else {
			r.reporter.TestFailed(result)
		}

		if r.config.FailFast && result.Failed {
			break
		}
	}

	suite.EndTime = time.Now()
	r.reporter.EndSuite(suite)
	r.updateStats(suite)

	r.stats.TotalTime = time.Since(startTime)
	r.reporter.Summary(r.stats)
	return r.stats
}

func (r *TestRunner) runFixture(file string) TestResult {
	name := filepath.Base(file)
	expectFailure := strings.HasSuffix(name, failSuffix)

	start := time.Now()
	_, err := compileFixture(file)
	duration := time.Since(start)

	result := TestResult{Name: name, File: file, Duration: duration}

	switch {
	case err == nil && expectFailure:
		result.Failed = true
		result.Message = "expected this fixture to fail compilation, but it compiled cleanly"
	case err != nil && !expectFailure:
		result.Failed = true
		result.Error = err
	default:
		result.Passed = true
	}
	return result
}

func (r *TestRunner) shouldRun(file string) bool {
	if r.config.Filter == "" {
		return true
	}
	return strings.Contains(file, r.config.Filter)
}

func (r *TestRunner) updateStats(suite *TestSuite) {
	r.stats.Suites++
	for _, result := range suite.Results {
		r.stats.TotalTests++
		switch {
		case result.Passed:
			r.stats.PassedTests++
		case result.Failed:
			r.stats.FailedTests++
		case result.Skipped:
			r.stats.SkippedTests++
		}
	}
}

func compileFixture(file string) (*pipeline.Result, error) {
	src, err := os.ReadFile(file)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", file, err)
	}
	return pipeline.Run(context.Background(), []pipeline.File{{Name: file, Source: string(src)}})
}

// DiscoverTests finds all fixture files matching pattern under dir,
// including subdirectories.
func DiscoverTests(dir string, pattern string) ([]string, error) {
	if pattern == "" {
		pattern = "*_test.nt"
	}

	var matches []string
	err := filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}
		if ok, _ := filepath.Match(pattern, filepath.Base(path)); ok {
			matches = append(matches, path)
		}
		return nil
	})
	return matches, err
}
