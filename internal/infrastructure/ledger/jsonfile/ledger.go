package jsonfile

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/kirillkom/certificate-harvester/internal/core/domain"
)

// Ledger loads the whole file on open and rewrites it on every Put through
// a temporary file and a rename, so a crash leaves either the old or the new
// document on disk.
type Ledger struct {
	path string

	mu      sync.Mutex
	entries map[string]domain.ProcessingEntry
}

func Open(path string) (*Ledger, error) {
	if path == "" {
		path = "./data/ledger.json"
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create ledger dir: %w", err)
	}

	l := &Ledger{path: path, entries: make(map[string]domain.ProcessingEntry)}
	raw, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return l, nil
	case err != nil:
		return nil, fmt.Errorf("read ledger: %w", err)
	case len(raw) == 0:
		return l, nil
	}
	if err := json.Unmarshal(raw, &l.entries); err != nil {
		return nil, fmt.Errorf("decode ledger %s: %w", path, err)
	}
	return l, nil
}

func (l *Ledger) Get(_ context.Context, key string) (*domain.ProcessingEntry, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	entry, ok := l.entries[key]
	if !ok {
		return nil, nil
	}
	return &entry, nil
}

func (l *Ledger) Put(_ context.Context, key string, entry domain.ProcessingEntry) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	prev, existed := l.entries[key]
	l.entries[key] = entry
	if err := l.flush(); err != nil {
		if existed {
			l.entries[key] = prev
		} else {
			delete(l.entries, key)
		}
		return err
	}
	return nil
}

func (l *Ledger) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}

func (l *Ledger) flush() error {
	data, err := json.MarshalIndent(l.entries, "", "  ")
	if err != nil {
		return fmt.Errorf("encode ledger: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(l.path), filepath.Base(l.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create ledger temp file: %w", err)
	}
	tmpPath := tmp.Name()
	defer func() {
		_ = os.Remove(tmpPath)
	}()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write ledger temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("sync ledger temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close ledger temp file: %w", err)
	}
	if err := os.Rename(tmpPath, l.path); err != nil {
		return fmt.Errorf("replace ledger: %w", err)
	}
	return nil
}
