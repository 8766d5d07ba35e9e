package plugins

import (
	"encoding/hex"
	"fmt"
	"strings"
)

// PatternDefinition describes a custom wipe pattern contributed by a plugin
// file under .diskpuri/patterns/.
//
// The struct mirrors the map shape a plugin's Patterns() function returns and
// is intentionally narrow so definitions can be validated before they are
// wired into the source registry.
type PatternDefinition struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description,omitempty"`
	// Hex is the pattern as hex-encoded bytes, e.g. "aa55".
	Hex string `yaml:"hex,omitempty"`
	// Repeat is the pattern as a literal string. Exactly one of Hex and
	// Repeat must be set.
	Repeat string `yaml:"repeat,omitempty"`

	// Path records which plugin file contributed the definition.
	Path string `yaml:"-"`
}

// Normalized returns a trimmed copy of the definition.
func (def PatternDefinition) Normalized() PatternDefinition {
	return PatternDefinition{
		Name:        strings.ToLower(strings.TrimSpace(def.Name)),
		Description: strings.TrimSpace(def.Description),
		Hex:         strings.ToLower(strings.TrimSpace(def.Hex)),
		Repeat:      def.Repeat,
		Path:        def.Path,
	}
}

// Validate enforces baseline requirements for a pattern definition.
func (def PatternDefinition) Validate() error {
	if def.Name == "" {
		return fmt.Errorf("pattern name is required")
	}
	if strings.ContainsAny(def.Name, " \t:") {
		return fmt.Errorf("pattern name %q must not contain spaces or colons", def.Name)
	}
	if def.Hex == "" && def.Repeat == "" {
		return fmt.Errorf("pattern %s needs hex or repeat content", def.Name)
	}
	if def.Hex != "" && def.Repeat != "" {
		return fmt.Errorf("pattern %s sets both hex and repeat", def.Name)
	}
	if _, err := def.Bytes(); err != nil {
		return err
	}
	return nil
}

// Bytes materializes the pattern content.
func (def PatternDefinition) Bytes() ([]byte, error) {
	if def.Hex != "" {
		data, err := hex.DecodeString(def.Hex)
		if err != nil {
			return nil, fmt.Errorf("pattern %s: bad hex: %w", def.Name, err)
		}
		if len(data) == 0 {
			return nil, fmt.Errorf("pattern %s: empty hex content", def.Name)
		}
		return data, nil
	}
	if def.Repeat == "" {
		return nil, fmt.Errorf("pattern %s: no content", def.Name)
	}
	return []byte(def.Repeat), nil
}
