// internal/schema/schema.go
//
// This package defines the pass schema: the ordered list of overwrite passes
// a run executes against the target device, plus the helpers that validate
// user-supplied block sizes, counts, and content before anything touches the
// disk.

package schema

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// ErrConfig marks a schema or pass that failed validation. Validation errors
// are fatal before any write starts; callers match with errors.Is.
var ErrConfig = errors.New("invalid pass configuration")

// PassType identifies the content source for one overwrite pass.
type PassType string

const (
	PassRandom PassType = "random"
	PassZeros  PassType = "zeros"
	PassOnes   PassType = "ones"
	PassString PassType = "string"
	PassFile   PassType = "file"

	// CustomPrefix marks pass types contributed by pattern plugins, e.g.
	// "custom:dod-5220". The part after the colon names the pattern.
	CustomPrefix = "custom:"
)

// DefaultBlockSize is used when a pass does not specify one.
const DefaultBlockSize = "1M"

// PassSpec describes a single overwrite pass.
type PassSpec struct {
	Type      PassType `yaml:"type"`
	BlockSize string   `yaml:"block_size,omitempty"`
	Count     int64    `yaml:"count,omitempty"`
	Content   string   `yaml:"content,omitempty"`
}

// Schema is an ordered sequence of passes plus run-level settings.
type Schema struct {
	Device string     `yaml:"device,omitempty"`
	Loop   bool       `yaml:"loop,omitempty"`
	Passes []PassSpec `yaml:"passes"`
}

// NeedsContent reports whether the pass type requires a content value.
func (t PassType) NeedsContent() bool {
	return t == PassString || t == PassFile
}

// IsCustom reports whether the type names a plugin-provided pattern.
func (t PassType) IsCustom() bool {
	return strings.HasPrefix(string(t), CustomPrefix)
}

// CustomName returns the pattern name of a custom pass type, or "".
func (t PassType) CustomName() string {
	if !t.IsCustom() {
		return ""
	}
	return strings.TrimPrefix(string(t), CustomPrefix)
}

// Known reports whether the type is one of the built-in pass types.
func (t PassType) Known() bool {
	switch t {
	case PassRandom, PassZeros, PassOnes, PassString, PassFile:
		return true
	}
	return false
}

// BlockSizeBytes resolves the pass block size, applying the default.
func (p PassSpec) BlockSizeBytes() (int64, error) {
	raw := strings.TrimSpace(p.BlockSize)
	if raw == "" {
		raw = DefaultBlockSize
	}
	return ParseSize(raw)
}

// TotalBytes returns count*block_size for bounded passes, or 0 when the pass
// is unbounded (runs until the device is full).
func (p PassSpec) TotalBytes() (int64, error) {
	if p.Count <= 0 {
		return 0, nil
	}
	bs, err := p.BlockSizeBytes()
	if err != nil {
		return 0, err
	}
	return p.Count * bs, nil
}

// Summary renders a one-line human description of the pass, used by the
// schema display and the run journal.
func (p PassSpec) Summary() string {
	var b strings.Builder
	name := string(p.Type)
	if custom := p.Type.CustomName(); custom != "" {
		name = custom + " (custom)"
	} else if name != "" {
		name = strings.ToUpper(name[:1]) + name[1:]
	}
	b.WriteString("Type: " + name)
	bs := p.BlockSize
	if bs == "" {
		bs = DefaultBlockSize
	}
	b.WriteString(", Block Size: " + bs)
	if p.Count > 0 {
		b.WriteString(fmt.Sprintf(", Count: %d", p.Count))
	} else {
		b.WriteString(", Count: until full")
	}
	switch p.Type {
	case PassString:
		content := p.Content
		if len(content) > 24 {
			content = content[:24] + "..."
		}
		b.WriteString(fmt.Sprintf(" (String: %s)", content))
	case PassFile:
		b.WriteString(fmt.Sprintf(" (File: %s)", p.Content))
	}
	return b.String()
}

func (p *PassSpec) normalize() {
	p.Type = PassType(strings.ToLower(strings.TrimSpace(string(p.Type))))
	p.BlockSize = strings.TrimSpace(p.BlockSize)
	if p.Type != PassString {
		p.Content = strings.TrimSpace(p.Content)
	}
}

// Validate checks one pass independent of the rest of the schema. extraTypes
// lists plugin pass types that are acceptable in addition to the built-ins.
func (p PassSpec) Validate(extraTypes map[PassType]bool) error {
	if !p.Type.Known() && !extraTypes[p.Type] {
		return fmt.Errorf("schema: unknown pass type %q: %w", p.Type, ErrConfig)
	}
	if bs, err := p.BlockSizeBytes(); err != nil {
		return err
	} else if bs <= 0 {
		return fmt.Errorf("schema: block size must be positive: %w", ErrConfig)
	}
	if p.Count < 0 {
		return fmt.Errorf("schema: count must be positive when set: %w", ErrConfig)
	}
	if p.Type.NeedsContent() && p.Content == "" {
		return fmt.Errorf("schema: %s pass requires content: %w", p.Type, ErrConfig)
	}
	if !p.Type.NeedsContent() && !p.Type.IsCustom() && p.Content != "" {
		return fmt.Errorf("schema: %s pass does not take content: %w", p.Type, ErrConfig)
	}
	if p.Type == PassFile {
		info, err := os.Stat(p.Content)
		if err != nil {
			return fmt.Errorf("schema: source file %s: %w", p.Content, ErrConfig)
		}
		if info.IsDir() {
			return fmt.Errorf("schema: source file %s is a directory: %w", p.Content, ErrConfig)
		}
	}
	return nil
}

// Normalize trims and lowercases user-entered fields in place.
func (s *Schema) Normalize() {
	s.Device = strings.TrimSpace(s.Device)
	for i := range s.Passes {
		s.Passes[i].normalize()
	}
}

// Validate checks the whole schema. An empty pass list is allowed and yields
// a no-op run.
func (s Schema) Validate(extraTypes map[PassType]bool) error {
	for i, pass := range s.Passes {
		if err := pass.Validate(extraTypes); err != nil {
			return fmt.Errorf("schema: pass %d: %w", i+1, err)
		}
	}
	return nil
}

// Load reads and validates a schema file.
func Load(path string, extraTypes map[PassType]bool) (Schema, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Schema{}, fmt.Errorf("schema: read %s: %w", path, err)
	}
	var s Schema
	if err := yaml.Unmarshal(data, &s); err != nil {
		return Schema{}, fmt.Errorf("schema: parse %s: %w", path, err)
	}
	s.Normalize()
	if err := s.Validate(extraTypes); err != nil {
		return Schema{}, err
	}
	return s, nil
}

// Save writes the schema to path as YAML.
func (s Schema) Save(path string) error {
	data, err := yaml.Marshal(s)
	if err != nil {
		return fmt.Errorf("schema: encode: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("schema: write %s: %w", path, err)
	}
	return nil
}

// ParseSize parses a dd-style block size: a plain byte count optionally
// followed by a suffix. Single-letter suffixes are binary (K = 1024) to match
// dd; two-letter suffixes are decimal (KB = 1000).
func ParseSize(value string) (int64, error) {
	raw := strings.TrimSpace(value)
	if raw == "" {
		return 0, fmt.Errorf("schema: empty size: %w", ErrConfig)
	}
	upper := strings.ToUpper(raw)
	multiplier := int64(1)
	digits := upper
	for _, suffix := range sizeSuffixes {
		if strings.HasSuffix(upper, suffix.unit) {
			multiplier = suffix.factor
			digits = strings.TrimSuffix(upper, suffix.unit)
			break
		}
	}
	digits = strings.TrimSpace(digits)
	if digits == "" {
		return 0, fmt.Errorf("schema: size %q has no digits: %w", raw, ErrConfig)
	}
	n, err := strconv.ParseInt(digits, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("schema: size %q: %w", raw, ErrConfig)
	}
	if n <= 0 {
		return 0, fmt.Errorf("schema: size %q must be positive: %w", raw, ErrConfig)
	}
	if n > (1<<62)/multiplier {
		return 0, fmt.Errorf("schema: size %q overflows: %w", raw, ErrConfig)
	}
	return n * multiplier, nil
}

// Longest suffixes first so "KB" wins over "B".
var sizeSuffixes = []struct {
	unit   string
	factor int64
}{
	{"KB", 1000},
	{"MB", 1000 * 1000},
	{"GB", 1000 * 1000 * 1000},
	{"TB", 1000 * 1000 * 1000 * 1000},
	{"K", 1024},
	{"M", 1024 * 1024},
	{"G", 1024 * 1024 * 1024},
	{"T", 1024 * 1024 * 1024 * 1024},
	{"B", 512},
	{"C", 1},
	{"W", 2},
}
