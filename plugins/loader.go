// Package plugins loads custom wipe patterns from interpreted Go files.
// Users drop .go files under .diskpuri/patterns/; each must define
// Patterns() []map[string]any describing named deterministic byte patterns,
// which become custom:<name> pass types.
package plugins

import (
	"fmt"
	"go/parser"
	"go/token"
	"os"
	"path/filepath"
	"reflect"
	"sort"
	"strings"

	"github.com/traefik/yaegi/interp"
	"github.com/traefik/yaegi/stdlib"
	"gopkg.in/yaml.v3"

	"github.com/averyk/diskpuri/internal/source"
)

const patternFuncName = "Patterns"

// LoadDir evaluates every .go file in dir and collects the pattern
// definitions declared via Patterns(). A missing directory is not an error.
func LoadDir(dir string) ([]PatternDefinition, error) {
	trimmed := strings.TrimSpace(dir)
	if trimmed == "" {
		return nil, nil
	}
	entries, err := os.ReadDir(trimmed)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("plugin: read %s: %w", trimmed, err)
	}
	var defs []PatternDefinition
	seen := map[string]string{}
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".go" {
			continue
		}
		fileDefs, err := loadPatternFile(filepath.Join(trimmed, entry.Name()))
		if err != nil {
			return nil, err
		}
		for _, def := range fileDefs {
			if prev, dup := seen[def.Name]; dup {
				return nil, fmt.Errorf("plugin: pattern %s defined in both %s and %s", def.Name, prev, def.Path)
			}
			seen[def.Name] = def.Path
			defs = append(defs, def)
		}
	}
	sort.Slice(defs, func(i, j int) bool { return defs[i].Name < defs[j].Name })
	return defs, nil
}

// Install registers every definition with the source registry under its
// custom:<name> pass type.
func Install(reg *source.Registry, defs []PatternDefinition) error {
	for _, def := range defs {
		data, err := def.Bytes()
		if err != nil {
			return fmt.Errorf("plugin: %s: %w", def.Path, err)
		}
		if err := reg.RegisterPattern(def.Name, data); err != nil {
			return fmt.Errorf("plugin: %s: %w", def.Path, err)
		}
	}
	return nil
}

func loadPatternFile(path string) ([]PatternDefinition, error) {
	code, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("plugin: read %s: %w", path, err)
	}
	if len(strings.TrimSpace(string(code))) == 0 {
		return nil, fmt.Errorf("plugin: %s is empty", path)
	}
	i := interp.New(interp.Options{})
	if err := i.Use(stdlib.Symbols); err != nil {
		return nil, fmt.Errorf("plugin: interpreter setup: %w", err)
	}
	if _, err := i.EvalPath(path); err != nil {
		return nil, fmt.Errorf("plugin: interpret %s: %w", path, err)
	}
	fnValue, err := i.Eval(patternFuncName)
	if err != nil {
		// yaegi scopes symbols from non-main packages under the package name.
		if pkg := packageName(code); pkg != "" && pkg != "main" {
			fnValue, err = i.Eval(pkg + "." + patternFuncName)
		}
		if err != nil {
			return nil, fmt.Errorf("plugin: %s must define %s() ([]map[string]any, error): %w", path, patternFuncName, err)
		}
	}
	raw, callErr := invokePatternFunc(fnValue)
	if callErr != nil {
		return nil, fmt.Errorf("plugin: %s: %w", path, callErr)
	}
	defs := make([]PatternDefinition, 0, len(raw))
	for idx, entry := range raw {
		payload, err := yaml.Marshal(entry)
		if err != nil {
			return nil, fmt.Errorf("plugin: %s pattern[%d]: %w", path, idx, err)
		}
		var def PatternDefinition
		if err := yaml.Unmarshal(payload, &def); err != nil {
			return nil, fmt.Errorf("plugin: %s pattern[%d]: %w", path, idx, err)
		}
		def.Path = path
		def = def.Normalized()
		if err := def.Validate(); err != nil {
			return nil, fmt.Errorf("plugin: %s pattern[%d]: %w", path, idx, err)
		}
		defs = append(defs, def)
	}
	return defs, nil
}

func packageName(code []byte) string {
	file, err := parser.ParseFile(token.NewFileSet(), "", code, parser.PackageClauseOnly)
	if err != nil || file.Name == nil {
		return ""
	}
	return file.Name.Name
}

func invokePatternFunc(value reflect.Value) ([]map[string]any, error) {
	if !value.IsValid() {
		return nil, fmt.Errorf("missing %s function", patternFuncName)
	}
	fn := value
	if fn.Kind() != reflect.Func {
		return nil, fmt.Errorf("%s is not a function", patternFuncName)
	}
	results := fn.Call(nil)
	if len(results) == 0 || len(results) > 2 {
		return nil, fmt.Errorf("%s must return ([]map[string]any[, error])", patternFuncName)
	}
	if len(results) == 2 {
		if !results[1].IsNil() {
			if e, ok := results[1].Interface().(error); ok && e != nil {
				return nil, e
			}
			return nil, fmt.Errorf("%s returned non-error second value", patternFuncName)
		}
	}
	defsVal := results[0]
	if defs, ok := defsVal.Interface().([]map[string]any); ok {
		return defs, nil
	}
	if defsVal.Kind() == reflect.Slice {
		result := make([]map[string]any, defsVal.Len())
		for i := 0; i < defsVal.Len(); i++ {
			entry := defsVal.Index(i).Interface()
			m, ok := entry.(map[string]any)
			if !ok {
				return nil, fmt.Errorf("%s[%d] is not map[string]any", patternFuncName, i)
			}
			result[i] = m
		}
		return result, nil
	}
	return nil, fmt.Errorf("%s must return []map[string]any", patternFuncName)
}
