package pipeline

import (
	"context"
	"strings"
	"testing"
)

func TestRunJoinsMultipleFilesDeterministically(t *testing.T) {
	files := []File{
		{Name: "b.nt", Source: `fn useA() { return helperA() + 1; }`},
		{Name: "a.nt", Source: `fn helperA() { return 41; }`},
	}

	res, err := Run(context.Background(), files)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if len(res.Module.Items) != 2 {
		t.Fatalf("got %d functions, want 2", len(res.Module.Items))
	}
	if res.Module.Items[0].Name.String() != "useA" {
		t.Errorf("first function = %s, want useA (input order, not completion order)", res.Module.Items[0].Name)
	}
}

func TestRunReportsParseErrorFromAnyFile(t *testing.T) {
	files := []File{
		{Name: "ok.nt", Source: `fn f() { return 1; }`},
		{Name: "bad.nt", Source: `fn g() { return )1; }`},
	}
	if _, err := Run(context.Background(), files); err == nil {
		t.Fatal("expected a parse error, got none")
	}
}

func TestRunRejectsDuplicateFunctionNamesAcrossFiles(t *testing.T) {
	files := []File{
		{Name: "one.nt", Source: `fn f() { return 1; }`},
		{Name: "two.nt", Source: `fn f() { return 2; }`},
	}
	_, err := Run(context.Background(), files)
	if err == nil {
		t.Fatal("expected a duplicate-function build error, got none")
	}
	if !strings.Contains(err.Error(), "one.nt") || !strings.Contains(err.Error(), "two.nt") {
		t.Errorf("error should name both files, got: %v", err)
	}
}

func TestSortedNamesIsAlphabetical(t *testing.T) {
	files := []File{
		{Name: "f.nt", Source: `fn zebra() { return 1; } fn apple() { return 2; }`},
	}
	res, err := Run(context.Background(), files)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	names := SortedNames(res.Module)
	if len(names) != 2 || names[0] != "apple" || names[1] != "zebra" {
		t.Errorf("SortedNames = %v, want [apple zebra]", names)
	}
}
