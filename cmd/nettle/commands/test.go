// cmd/nettle/commands/test.go
package commands

import (
	"fmt"
	"path/filepath"

	nettletesting "nettle/internal/testing"
)

// TestCommand discovers and compiles *_test.nt fixture files, reporting
// which compiled (or correctly failed to) as expected.
func TestCommand(args []string) error {
	var testFiles []string
	format := "text"

	var patterns []string
	for i := 0; i < len(args); i++ {
		switch args[i] {
		case "--json":
			format = "json"
		case "--junit":
			format = "junit"
		default:
			patterns = append(patterns, args[i])
		}
	}

	if len(patterns) == 0 {
		found, err := nettletesting.DiscoverTests(".", "*_test.nt")
		if err != nil {
			return fmt.Errorf("discovering fixtures: %w", err)
		}
		testFiles = found
		if len(testFiles) == 0 {
			fmt.Println("No fixture files found (looking for *_test.nt)")
			return nil
		}
	} else {
		for _, pattern := range patterns {
			matches, err := filepath.Glob(pattern)
			if err != nil {
				return fmt.Errorf("matching %q: %w", pattern, err)
			}
			testFiles = append(testFiles, matches...)
		}
	}

	runner := nettletesting.NewTestRunner(&nettletesting.TestConfig{OutputFormat: format})
	stats := runner.Run(testFiles)
	if stats.FailedTests > 0 {
		return fmt.Errorf("%d fixture(s) failed", stats.FailedTests)
	}
	return nil
}
