package sink

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/use-agent/catalog/models"
)

// JSONL appends one JSON object per line.
type JSONL struct {
	mu   sync.Mutex
	file *os.File
	buf  *bufio.Writer
	enc  *json.Encoder
}

// NewJSONL opens path for appending, creating parent directories.
func NewJSONL(path string) (*JSONL, error) {
	if path == "" {
		return nil, fmt.Errorf("sink: jsonl path is required")
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("sink: create directory: %w", err)
		}
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("sink: open %s: %w", path, err)
	}
	buf := bufio.NewWriter(f)
	return &JSONL{file: f, buf: buf, enc: json.NewEncoder(buf)}, nil
}

func (s *JSONL) Name() string { return string(KindJSONL) }

// Write encodes the batch and flushes it, so a crash loses at most the
// batch in flight.
func (s *JSONL) Write(_ context.Context, products []models.NormalizedProduct) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range products {
		if err := s.enc.Encode(&products[i]); err != nil {
			return fmt.Errorf("sink: encode %s: %w", products[i].ProductID, err)
		}
	}
	return s.buf.Flush()
}

func (s *JSONL) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.buf.Flush(); err != nil {
		s.file.Close()
		return err
	}
	return s.file.Close()
}
