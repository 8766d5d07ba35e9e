package schema

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestParseSizeBinarySuffixes(t *testing.T) {
	cases := map[string]int64{
		"512":  512,
		"1K":   1024,
		"1k":   1024,
		"4M":   4 * 1024 * 1024,
		"1M":   1024 * 1024,
		"2G":   2 * 1024 * 1024 * 1024,
		"1KB":  1000,
		"3MB":  3 * 1000 * 1000,
		"1b":   512,
		"8w":   16,
		"100c": 100,
	}
	for input, want := range cases {
		got, err := ParseSize(input)
		if err != nil {
			t.Fatalf("ParseSize(%q): %v", input, err)
		}
		if got != want {
			t.Fatalf("ParseSize(%q) = %d, want %d", input, got, want)
		}
	}
}

func TestParseSizeRejectsBadInput(t *testing.T) {
	for _, input := range []string{"", "M", "-1M", "0", "abc", "1.5M"} {
		if _, err := ParseSize(input); !errors.Is(err, ErrConfig) {
			t.Fatalf("ParseSize(%q) = %v, want ErrConfig", input, err)
		}
	}
}

func TestPassSpecTotalBytes(t *testing.T) {
	spec := PassSpec{Type: PassString, Content: "AB", BlockSize: "1M", Count: 2}
	total, err := spec.TotalBytes()
	if err != nil {
		t.Fatalf("total bytes: %v", err)
	}
	if total != 2097152 {
		t.Fatalf("total = %d, want 2097152", total)
	}
	unbounded := PassSpec{Type: PassRandom, BlockSize: "4M"}
	total, err = unbounded.TotalBytes()
	if err != nil {
		t.Fatalf("total bytes: %v", err)
	}
	if total != 0 {
		t.Fatalf("unbounded total = %d, want 0", total)
	}
}

func TestValidateRequiresContentForString(t *testing.T) {
	spec := PassSpec{Type: PassString, BlockSize: "1M"}
	if err := spec.Validate(nil); !errors.Is(err, ErrConfig) {
		t.Fatalf("expected ErrConfig for empty string content, got %v", err)
	}
}

func TestValidateRejectsContentForStreamTypes(t *testing.T) {
	spec := PassSpec{Type: PassRandom, Content: "extra"}
	if err := spec.Validate(nil); !errors.Is(err, ErrConfig) {
		t.Fatalf("expected ErrConfig for stray content, got %v", err)
	}
}

func TestValidateMissingSourceFile(t *testing.T) {
	spec := PassSpec{Type: PassFile, Content: "/nonexistent"}
	if err := spec.Validate(nil); !errors.Is(err, ErrConfig) {
		t.Fatalf("expected ErrConfig for missing file, got %v", err)
	}
}

func TestValidateAcceptsPluginTypes(t *testing.T) {
	spec := PassSpec{Type: "custom:checker", BlockSize: "1M"}
	if err := spec.Validate(nil); !errors.Is(err, ErrConfig) {
		t.Fatalf("unregistered custom type should be ErrConfig, got %v", err)
	}
	extra := map[PassType]bool{"custom:checker": true}
	if err := spec.Validate(extra); err != nil {
		t.Fatalf("registered custom type: %v", err)
	}
}

func TestSchemaValidateReportsPassIndex(t *testing.T) {
	s := Schema{Passes: []PassSpec{
		{Type: PassZeros},
		{Type: PassString},
	}}
	s.Normalize()
	err := s.Validate(nil)
	if !errors.Is(err, ErrConfig) {
		t.Fatalf("expected ErrConfig, got %v", err)
	}
}

func TestSchemaEmptyIsNoOp(t *testing.T) {
	var s Schema
	if err := s.Validate(nil); err != nil {
		t.Fatalf("empty schema should validate: %v", err)
	}
}

func TestSchemaSaveLoadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "source.bin")
	if err := os.WriteFile(src, []byte("pattern"), 0o644); err != nil {
		t.Fatalf("write source: %v", err)
	}
	original := Schema{
		Device: "/dev/sdx",
		Loop:   true,
		Passes: []PassSpec{
			{Type: PassRandom, BlockSize: "4M"},
			{Type: PassString, BlockSize: "1M", Count: 2, Content: "AB"},
			{Type: PassFile, BlockSize: "1M", Content: src},
		},
	}
	path := filepath.Join(dir, "schema.yaml")
	if err := original.Save(path); err != nil {
		t.Fatalf("save: %v", err)
	}
	loaded, err := Load(path, nil)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if loaded.Device != original.Device || loaded.Loop != original.Loop {
		t.Fatalf("run settings lost: %+v", loaded)
	}
	if len(loaded.Passes) != len(original.Passes) {
		t.Fatalf("expected %d passes, got %d", len(original.Passes), len(loaded.Passes))
	}
	for i := range loaded.Passes {
		if loaded.Passes[i] != original.Passes[i] {
			t.Fatalf("pass %d mismatch: %+v vs %+v", i, loaded.Passes[i], original.Passes[i])
		}
	}
}

func TestSummaryTruncatesLongStrings(t *testing.T) {
	spec := PassSpec{Type: PassString, Content: "abcdefghijklmnopqrstuvwxyz", BlockSize: "1M"}
	summary := spec.Summary()
	want := "Type: String, Block Size: 1M, Count: until full (String: abcdefghijklmnopqrstuvwx...)"
	if summary != want {
		t.Fatalf("summary = %q, want %q", summary, want)
	}
}
