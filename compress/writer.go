// Package compress wraps a byte sink with an XZ/LZMA2 stream encoder.
// The example pack carries no XZ library; ulikunitz/xz is named here
// as the standard real-world Go encoder for the format, not as
// something grounded in the pack.
package compress

import (
	"bytes"
	"fmt"
	"io"
	"sync"

	"github.com/ulikunitz/xz"
	"github.com/ulikunitz/xz/lzma"
)

// blockUnit is the per-thread chunk size used by the multi-threaded
// encoder; each chunk becomes its own complete, independently
// decodable XZ stream. Concatenated XZ streams form one valid .xz
// file per the format's own specification, which is how multiple
// worker goroutines can compress in parallel without a block-aware
// single-stream writer.
const blockUnit = 4 << 20 // 4 MiB

// Writer compresses everything written to it and streams the result
// to the wrapped io.Writer.
type Writer struct {
	dst     io.Writer
	level   int
	threads int

	// single-stream path
	single *xz.Writer

	// multi-threaded path: buffer until a full block, then dispatch.
	buf     bytes.Buffer
	pending []*blockJob
	mu      sync.Mutex
	sem     chan struct{}
}

type blockJob struct {
	done chan struct{}
	out  bytes.Buffer
	err  error
}

// NewWriter builds a compressor for level (0-9, default 6 applied by
// the caller per config.CompressorConfig.LevelOrDefault) and thread
// count (>=1).
func NewWriter(dst io.Writer, level, threads int) (*Writer, error) {
	if threads <= 1 {
		cfg, err := writerConfig(level)
		if err != nil {
			return nil, fmt.Errorf("compress: %w", err)
		}
		xw, err := cfg.NewWriter(dst)
		if err != nil {
			return nil, fmt.Errorf("compress: new xz writer: %w", err)
		}
		return &Writer{dst: dst, level: level, threads: 1, single: xw}, nil
	}

	return &Writer{
		dst:     dst,
		level:   level,
		threads: threads,
		sem:     make(chan struct{}, threads),
	}, nil
}

func writerConfig(level int) (xz.WriterConfig, error) {
	// xz's own CLI presets scale the LZMA2 dictionary size with
	// level; we mirror that scaling rather than inventing a
	// separate notion of "level".
	dictCaps := []int{
		1 << 20, 1 << 20, 1 << 21, 1 << 22, 1 << 22,
		1 << 23, 1 << 23, 1 << 24, 1 << 25, 1 << 26,
	}
	if level < 0 || level > 9 {
		return xz.WriterConfig{}, fmt.Errorf("level out of range: %d", level)
	}
	cfg := xz.WriterConfig{
		DictCap:    dictCaps[level],
		Properties: &lzma.Properties{LC: 3, LP: 0, PB: 2},
	}
	if err := cfg.Verify(); err != nil {
		return xz.WriterConfig{}, err
	}
	return cfg, nil
}

// Write implements io.Writer.
func (w *Writer) Write(p []byte) (int, error) {
	if w.single != nil {
		return w.single.Write(p)
	}

	total := 0
	for len(p) > 0 {
		space := blockUnit - w.buf.Len()
		if space > len(p) {
			space = len(p)
		}
		n, _ := w.buf.Write(p[:space])
		total += n
		p = p[n:]
		if w.buf.Len() >= blockUnit {
			if err := w.flushBlock(); err != nil {
				return total, err
			}
		}
	}
	return total, nil
}

// flushBlock dispatches the current buffer as one independent XZ
// stream to a bounded worker pool, preserving output order.
func (w *Writer) flushBlock() error {
	if w.buf.Len() == 0 {
		return nil
	}
	payload := make([]byte, w.buf.Len())
	copy(payload, w.buf.Bytes())
	w.buf.Reset()

	job := &blockJob{done: make(chan struct{})}
	w.mu.Lock()
	w.pending = append(w.pending, job)
	w.mu.Unlock()

	w.sem <- struct{}{}
	go func() {
		defer func() { <-w.sem }()
		defer close(job.done)

		cfg, err := writerConfig(w.level)
		if err != nil {
			job.err = err
			return
		}
		xw, err := cfg.NewWriter(&job.out)
		if err != nil {
			job.err = err
			return
		}
		if _, err := xw.Write(payload); err != nil {
			job.err = err
			return
		}
		job.err = xw.Close()
	}()

	return w.drainReady()
}

// drainReady writes any already-finished blocks at the front of the
// pending queue, in order, without blocking on blocks still running.
func (w *Writer) drainReady() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	for len(w.pending) > 0 {
		select {
		case <-w.pending[0].done:
			job := w.pending[0]
			if job.err != nil {
				return fmt.Errorf("compress: worker: %w", job.err)
			}
			if _, err := w.dst.Write(job.out.Bytes()); err != nil {
				return fmt.Errorf("compress: write block: %w", err)
			}
			w.pending = w.pending[1:]
		default:
			return nil
		}
	}
	return nil
}

// Finish flushes the encoder and writes the final index+footer (spec
// §4.C), closing the underlying stream structure but not dst itself.
func (w *Writer) Finish() error {
	if w.single != nil {
		if err := w.single.Close(); err != nil {
			return fmt.Errorf("compress: finish: %w", err)
		}
		return nil
	}

	if err := w.flushBlock(); err != nil {
		return err
	}
	for _, job := range w.pending {
		<-job.done
		if job.err != nil {
			return fmt.Errorf("compress: worker: %w", job.err)
		}
		if _, err := w.dst.Write(job.out.Bytes()); err != nil {
			return fmt.Errorf("compress: write block: %w", err)
		}
	}
	w.pending = nil
	return nil
}
