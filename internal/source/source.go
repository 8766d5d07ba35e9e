// Package source builds the byte stream for one overwrite pass. A source is
// a plain io.Reader: bounded passes yield exactly count*block_size bytes and
// then io.EOF, unbounded passes never terminate on their own and are stopped
// externally by device exhaustion or cancellation.
package source

import (
	"fmt"
	"io"
	"os"

	"github.com/averyk/diskpuri/internal/lifecycle"
	"github.com/averyk/diskpuri/internal/schema"
)

const (
	urandomPath = "/dev/urandom"
	zeroPath    = "/dev/zero"

	// maxBufferBytes caps materialized content buffers. Larger passes replay
	// the buffer cyclically instead of growing it.
	maxBufferBytes = 4 << 20
)

// cyclicReader replays buf forever. Read never returns io.EOF.
type cyclicReader struct {
	buf []byte
	off int
}

func (c *cyclicReader) Read(p []byte) (int, error) {
	if len(c.buf) == 0 {
		return 0, fmt.Errorf("source: empty content buffer")
	}
	n := 0
	for n < len(p) {
		copied := copy(p[n:], c.buf[c.off:])
		n += copied
		c.off += copied
		if c.off == len(c.buf) {
			c.off = 0
		}
	}
	return n, nil
}

// repeatingFile replays a file from the start on every EOF.
type repeatingFile struct {
	f *os.File
}

func (r *repeatingFile) Read(p []byte) (int, error) {
	n, err := r.f.Read(p)
	if err == io.EOF {
		if _, serr := r.f.Seek(0, io.SeekStart); serr != nil {
			return n, fmt.Errorf("source: rewind %s: %w", r.f.Name(), serr)
		}
		if n > 0 {
			return n, nil
		}
		return r.f.Read(p)
	}
	return n, err
}

// buildBuffer materializes a content buffer by repeating pattern. The buffer
// size is a multiple of blockSize: total bytes when the pass is bounded and
// fits under the cap, otherwise the largest block multiple under the cap
// (at least one block). Deterministic for identical inputs.
func buildBuffer(pattern []byte, blockSize, total int64) []byte {
	size := blockSize
	if total > 0 && total <= maxBufferBytes {
		size = total
	} else if blockSize < maxBufferBytes {
		size = (maxBufferBytes / blockSize) * blockSize
	}
	buf := make([]byte, size)
	for off := 0; off < len(buf); off += len(pattern) {
		copy(buf[off:], pattern)
	}
	return buf
}

// bounded wraps r so it yields exactly total bytes when the pass carries a
// count, or passes r through untouched for until-full passes.
func bounded(r io.Reader, total int64) io.Reader {
	if total <= 0 {
		return r
	}
	return io.LimitReader(r, total)
}

func openStream(path string, spec schema.PassSpec, res *lifecycle.Registry) (io.Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("source: open %s: %w", path, err)
	}
	res.Register(lifecycle.ReleaseFunc(f.Close))
	total, err := spec.TotalBytes()
	if err != nil {
		return nil, err
	}
	return bounded(f, total), nil
}

func openRandom(spec schema.PassSpec, res *lifecycle.Registry) (io.Reader, error) {
	return openStream(urandomPath, spec, res)
}

func openZeros(spec schema.PassSpec, res *lifecycle.Registry) (io.Reader, error) {
	return openStream(zeroPath, spec, res)
}

func openFile(spec schema.PassSpec, res *lifecycle.Registry) (io.Reader, error) {
	f, err := os.Open(spec.Content)
	if err != nil {
		return nil, fmt.Errorf("source: open %s: %w: %w", spec.Content, err, schema.ErrConfig)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("source: stat %s: %w", spec.Content, err)
	}
	if info.Size() == 0 {
		f.Close()
		return nil, fmt.Errorf("source: %s is empty: %w", spec.Content, schema.ErrConfig)
	}
	res.Register(lifecycle.ReleaseFunc(f.Close))
	total, err := spec.TotalBytes()
	if err != nil {
		return nil, err
	}
	return bounded(&repeatingFile{f: f}, total), nil
}
