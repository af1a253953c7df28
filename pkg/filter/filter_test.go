package filter

import "testing"

func TestIncludedDefaultsToEverything(t *testing.T) {
	rules, err := Compile(Options{})
	if err != nil {
		t.Fatalf("Compile returned error: %v", err)
	}
	if !rules.Included("a.txt", "a.txt", 10, false) {
		t.Errorf("expected file to be included by default")
	}
}

func TestIncludedExtensionGlob(t *testing.T) {
	rules, err := Compile(Options{IncludePatterns: []string{"*.go"}})
	if err != nil {
		t.Fatalf("Compile returned error: %v", err)
	}
	if !rules.Included("main.go", "main.go", 10, false) {
		t.Errorf("expected main.go to be included")
	}
	if rules.Included("main.py", "main.py", 10, false) {
		t.Errorf("expected main.py to be excluded")
	}
}

func TestIncludedPrefixAndSuffixGlobs(t *testing.T) {
	rules, err := Compile(Options{IncludePatterns: []string{"test*", "*backup"}})
	if err != nil {
		t.Fatalf("Compile returned error: %v", err)
	}
	for _, name := range []string{"test_a.txt", "daily_backup"} {
		if !rules.Included(name, name, 10, false) {
			t.Errorf("expected %q to be included", name)
		}
	}
	if rules.Included("other.txt", "other.txt", 10, false) {
		t.Errorf("expected other.txt to be excluded")
	}
}

func TestExcludeOverridesInclude(t *testing.T) {
	rules, err := Compile(Options{
		IncludePatterns: []string{"*"},
		ExcludePatterns: []string{"*.tmp"},
	})
	if err != nil {
		t.Fatalf("Compile returned error: %v", err)
	}
	if rules.Included("scratch.tmp", "scratch.tmp", 10, false) {
		t.Errorf("expected scratch.tmp to be excluded")
	}
}

func TestExcludeHidden(t *testing.T) {
	rules, err := Compile(Options{ExcludeHidden: true})
	if err != nil {
		t.Fatalf("Compile returned error: %v", err)
	}
	if rules.Included(".git", ".git", 0, true) {
		t.Errorf("expected hidden entry to be excluded")
	}
}

func TestSizeBounds(t *testing.T) {
	rules, err := Compile(Options{MinFileSize: 100, MaxFileSize: 1000})
	if err != nil {
		t.Fatalf("Compile returned error: %v", err)
	}
	if rules.Included("small.bin", "small.bin", 10, false) {
		t.Errorf("expected undersized file to be excluded")
	}
	if rules.Included("large.bin", "large.bin", 10000, false) {
		t.Errorf("expected oversized file to be excluded")
	}
	if !rules.Included("ok.bin", "ok.bin", 500, false) {
		t.Errorf("expected in-range file to be included")
	}
}

func TestCaseInsensitive(t *testing.T) {
	rules, err := Compile(Options{IncludePatterns: []string{"*.TXT"}})
	if err != nil {
		t.Fatalf("Compile returned error: %v", err)
	}
	if !rules.Included("notes.txt", "notes.txt", 10, false) {
		t.Errorf("expected case-insensitive match to include notes.txt")
	}
}
