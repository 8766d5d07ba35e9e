package source

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"

	"github.com/averyk/diskpuri/internal/lifecycle"
	"github.com/averyk/diskpuri/internal/schema"
)

// Opener constructs the byte stream for a validated pass, registering any
// owned resources with the lifecycle registry.
type Opener func(spec schema.PassSpec, res *lifecycle.Registry) (io.Reader, error)

// Registry maps pass types to source openers and caches content buffers so
// repeated loop iterations over the same pass reuse one buffer.
type Registry struct {
	mu      sync.RWMutex
	openers map[schema.PassType]Opener
	buffers map[string][]byte
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		openers: map[schema.PassType]Opener{},
		buffers: map[string][]byte{},
	}
}

// Defaults returns a registry with the built-in pass types installed.
func Defaults() *Registry {
	r := NewRegistry()
	r.MustRegister(schema.PassRandom, openRandom)
	r.MustRegister(schema.PassZeros, openZeros)
	r.MustRegister(schema.PassOnes, r.bufferOpener(func(schema.PassSpec) []byte {
		return []byte{0xFF}
	}))
	r.MustRegister(schema.PassString, r.bufferOpener(func(spec schema.PassSpec) []byte {
		return []byte(spec.Content)
	}))
	r.MustRegister(schema.PassFile, openFile)
	return r
}

// Register installs an opener for a pass type.
func (r *Registry) Register(t schema.PassType, opener Opener) error {
	if t == "" {
		return fmt.Errorf("source: pass type is required")
	}
	if opener == nil {
		return fmt.Errorf("source: opener is required for %s", t)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.openers[t]; exists {
		return fmt.Errorf("source: %s already registered", t)
	}
	r.openers[t] = opener
	return nil
}

// MustRegister panics if registration fails.
func (r *Registry) MustRegister(t schema.PassType, opener Opener) {
	if err := r.Register(t, opener); err != nil {
		panic(err)
	}
}

// RegisterPattern installs a plugin-provided deterministic pattern under the
// custom:<name> pass type.
func (r *Registry) RegisterPattern(name string, pattern []byte) error {
	trimmed := strings.TrimSpace(name)
	if trimmed == "" {
		return fmt.Errorf("source: pattern name is required")
	}
	if len(pattern) == 0 {
		return fmt.Errorf("source: pattern %s is empty", trimmed)
	}
	owned := append([]byte{}, pattern...)
	t := schema.PassType(schema.CustomPrefix + trimmed)
	return r.Register(t, r.bufferOpener(func(schema.PassSpec) []byte {
		return owned
	}))
}

// Open builds the source for a pass.
func (r *Registry) Open(spec schema.PassSpec, res *lifecycle.Registry) (io.Reader, error) {
	r.mu.RLock()
	opener, ok := r.openers[spec.Type]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("source: unknown pass type %q: %w", spec.Type, schema.ErrConfig)
	}
	return opener(spec, res)
}

// Types returns the registered pass types in sorted order.
func (r *Registry) Types() []schema.PassType {
	r.mu.RLock()
	defer r.mu.RUnlock()
	types := make([]schema.PassType, 0, len(r.openers))
	for t := range r.openers {
		types = append(types, t)
	}
	sort.Slice(types, func(i, j int) bool { return types[i] < types[j] })
	return types
}

// CustomTypes returns the plugin-contributed pass types, used to extend
// schema validation beyond the built-ins.
func (r *Registry) CustomTypes() map[schema.PassType]bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	extra := map[schema.PassType]bool{}
	for t := range r.openers {
		if t.IsCustom() {
			extra[t] = true
		}
	}
	return extra
}

// bufferOpener builds openers for pattern-backed passes (ones, string,
// custom patterns). The materialized buffer is cached per (type, content,
// block size) and owned by the lifecycle registry.
func (r *Registry) bufferOpener(pattern func(schema.PassSpec) []byte) Opener {
	return func(spec schema.PassSpec, res *lifecycle.Registry) (io.Reader, error) {
		raw := pattern(spec)
		if len(raw) == 0 {
			return nil, fmt.Errorf("source: %s pass has no content: %w", spec.Type, schema.ErrConfig)
		}
		bs, err := spec.BlockSizeBytes()
		if err != nil {
			return nil, err
		}
		total, err := spec.TotalBytes()
		if err != nil {
			return nil, err
		}
		buf, err := r.contentBuffer(spec, raw, bs, total, res)
		if err != nil {
			return nil, err
		}
		return bounded(&cyclicReader{buf: buf}, total), nil
	}
}

func (r *Registry) contentBuffer(spec schema.PassSpec, pattern []byte, blockSize, total int64, res *lifecycle.Registry) ([]byte, error) {
	key := fmt.Sprintf("%s\x00%s\x00%d\x00%d", spec.Type, spec.Content, blockSize, total)
	r.mu.Lock()
	defer r.mu.Unlock()
	if buf, ok := r.buffers[key]; ok {
		return buf, nil
	}
	buf := buildBuffer(pattern, blockSize, total)
	r.buffers[key] = buf
	res.Register(lifecycle.ReleaseFunc(func() error {
		r.mu.Lock()
		defer r.mu.Unlock()
		delete(r.buffers, key)
		return nil
	}))
	return buf, nil
}
