package testing

import (
	"os"
	"path/filepath"
	"testing"
)

func writeFixture(t *testing.T, dir, name, src string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(src), 0644); err != nil {
		t.Fatalf("writing fixture %s: %v", name, err)
	}
	return path
}

func TestRunnerPassesCleanFixture(t *testing.T) {
	dir := t.TempDir()
	file := writeFixture(t, dir, "ok_test.nt", `fn f() { return 1; }`)

	runner := NewTestRunner(&TestConfig{OutputFormat: "json"})
	stats := runner.Run([]string{file})

	if stats.PassedTests != 1 || stats.FailedTests != 0 {
		t.Fatalf("stats = %+v, want 1 passed, 0 failed", stats)
	}
}

func TestRunnerFailsFixtureThatFailsToCompile(t *testing.T) {
	dir := t.TempDir()
	file := writeFixture(t, dir, "broken_test.nt", `fn f() { return )1; }`)

	runner := NewTestRunner(&TestConfig{OutputFormat: "json"})
	stats := runner.Run([]string{file})

	if stats.FailedTests != 1 || stats.PassedTests != 0 {
		t.Fatalf("stats = %+v, want 1 failed, 0 passed", stats)
	}
}

func TestRunnerExpectsFailSuffixedFixturesToFail(t *testing.T) {
	dir := t.TempDir()
	file := writeFixture(t, dir, "bad_input_fail.nt", `fn f() { return )1; }`)

	runner := NewTestRunner(&TestConfig{OutputFormat: "json"})
	stats := runner.Run([]string{file})

	if stats.PassedTests != 1 {
		t.Fatalf("stats = %+v, want the _fail fixture to count as passed", stats)
	}
}

func TestRunnerFlagsFailSuffixedFixtureThatCompilesCleanly(t *testing.T) {
	dir := t.TempDir()
	file := writeFixture(t, dir, "unexpectedly_ok_fail.nt", `fn f() { return 1; }`)

	runner := NewTestRunner(&TestConfig{OutputFormat: "json"})
	stats := runner.Run([]string{file})

	if stats.FailedTests != 1 {
		t.Fatalf("stats = %+v, want a clean compile of a _fail fixture to be reported as failed", stats)
	}
}

func TestDiscoverTestsFindsNestedFixtures(t *testing.T) {
	dir := t.TempDir()
	sub := filepath.Join(dir, "nested")
	if err := os.MkdirAll(sub, 0755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	writeFixture(t, dir, "a_test.nt", `fn f() { return 1; }`)
	writeFixture(t, sub, "b_test.nt", `fn g() { return 2; }`)
	writeFixture(t, dir, "ignored.nt", `fn h() { return 3; }`)

	matches, err := DiscoverTests(dir, "*_test.nt")
	if err != nil {
		t.Fatalf("DiscoverTests failed: %v", err)
	}
	if len(matches) != 2 {
		t.Fatalf("DiscoverTests found %d files, want 2: %v", len(matches), matches)
	}
}

func TestRunnerFilterSkipsNonMatchingFixtures(t *testing.T) {
	dir := t.TempDir()
	a := writeFixture(t, dir, "alpha_test.nt", `fn f() { return 1; }`)
	b := writeFixture(t, dir, "beta_test.nt", `fn g() { return 2; }`)

	runner := NewTestRunner(&TestConfig{OutputFormat: "json", Filter: "alpha"})
	stats := runner.Run([]string{a, b})

	if stats.PassedTests != 1 || stats.SkippedTests != 1 {
		t.Fatalf("stats = %+v, want 1 passed, 1 skipped", stats)
	}
}
