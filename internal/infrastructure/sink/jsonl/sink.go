package jsonl

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/kirillkom/certificate-harvester/internal/core/domain"
)

type Sink struct {
	mu   sync.Mutex
	file *os.File
	enc  *json.Encoder
}

// Open appends to path, creating it and its directory when missing.
func Open(path string) (*Sink, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create results dir: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open results file: %w", err)
	}
	return &Sink{file: f, enc: json.NewEncoder(f)}, nil
}

// Append writes one line and syncs it, so a crashed run keeps every
// completed record.
func (s *Sink) Append(_ context.Context, rec domain.ResultRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.enc.Encode(rec); err != nil {
		return fmt.Errorf("write result line: %w", err)
	}
	if err := s.file.Sync(); err != nil {
		return fmt.Errorf("sync results file: %w", err)
	}
	return nil
}

func (s *Sink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.file.Close()
}
