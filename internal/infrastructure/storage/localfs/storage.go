package localfs

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"mime"
	"os"
	"path/filepath"
	"strings"
	"time"
	"unicode"
)

const metaSuffix = ".meta.json"

type Storage struct {
	basePath string
	now      func() time.Time
}

// Meta is written next to every artifact.
type Meta struct {
	Key         string    `json:"key"`
	ContentType string    `json:"content_type"`
	SizeBytes   int       `json:"size_bytes"`
	SHA256      string    `json:"sha256"`
	StoredAt    time.Time `json:"stored_at"`
}

func New(basePath string) (*Storage, error) {
	if basePath == "" {
		basePath = "./data/artifacts"
	}
	if err := os.MkdirAll(basePath, 0o755); err != nil {
		return nil, fmt.Errorf("create storage dir: %w", err)
	}
	return &Storage{basePath: basePath, now: time.Now}, nil
}

// Put writes data under a file name derived from key and returns the path
// relative to the base directory. Writing the same key again replaces it.
func (s *Storage) Put(_ context.Context, key string, data []byte, contentType string) (string, error) {
	name := fileName(key, contentType)
	if name == "" {
		return "", errors.New("empty artifact key")
	}
	path := filepath.Join(s.basePath, name)
	if err := writeAtomic(path, data); err != nil {
		return "", err
	}

	sum := sha256.Sum256(data)
	meta, err := json.MarshalIndent(Meta{
		Key:         key,
		ContentType: contentType,
		SizeBytes:   len(data),
		SHA256:      hex.EncodeToString(sum[:]),
		StoredAt:    s.now().UTC(),
	}, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encode artifact meta: %w", err)
	}
	if err := writeAtomic(path+metaSuffix, meta); err != nil {
		return "", err
	}
	if err := s.removeSiblings(name); err != nil {
		return "", err
	}
	return name, nil
}

// removeSiblings drops copies of the same key stored under another
// extension, so that lookups by key see only the latest Put.
func (s *Storage) removeSiblings(name string) error {
	stem := strings.TrimSuffix(name, filepath.Ext(name))
	matches, err := filepath.Glob(filepath.Join(s.basePath, stem+".*"))
	if err != nil {
		return fmt.Errorf("lookup artifact siblings: %w", err)
	}
	for _, match := range matches {
		base := filepath.Base(match)
		if base == name || base == name+metaSuffix || strings.HasSuffix(base, ".tmp") {
			continue
		}
		if err := os.Remove(match); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("remove stale artifact: %w", err)
		}
	}
	return nil
}

// Get accepts either the original key or the reference returned by Put. The
// bytes are checked against the checksum recorded at Put time.
func (s *Storage) Get(_ context.Context, key string) ([]byte, error) {
	name, err := s.resolve(key)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(filepath.Join(s.basePath, name))
	if err != nil {
		return nil, fmt.Errorf("read artifact: %w", err)
	}
	meta, err := s.Meta(name)
	if err != nil {
		return nil, err
	}
	sum := sha256.Sum256(data)
	if got := hex.EncodeToString(sum[:]); got != meta.SHA256 {
		return nil, fmt.Errorf("artifact %q: checksum mismatch", name)
	}
	return data, nil
}

func (s *Storage) Meta(ref string) (Meta, error) {
	var meta Meta
	raw, err := os.ReadFile(filepath.Join(s.basePath, filepath.Base(ref)+metaSuffix))
	if err != nil {
		return meta, fmt.Errorf("read artifact meta: %w", err)
	}
	if err := json.Unmarshal(raw, &meta); err != nil {
		return meta, fmt.Errorf("decode artifact meta: %w", err)
	}
	return meta, nil
}

func (s *Storage) resolve(key string) (string, error) {
	if ref := filepath.Base(key); ref != "." && ref == key {
		if _, err := os.Stat(filepath.Join(s.basePath, ref+metaSuffix)); err == nil {
			return ref, nil
		}
	}
	stem := slug(key)
	if stem == "" {
		return "", errors.New("empty artifact key")
	}
	matches, err := filepath.Glob(filepath.Join(s.basePath, stem+".*"+metaSuffix))
	if err != nil {
		return "", fmt.Errorf("lookup artifact: %w", err)
	}
	if len(matches) == 0 {
		return "", fmt.Errorf("artifact %q: %w", key, os.ErrNotExist)
	}
	return strings.TrimSuffix(filepath.Base(matches[0]), metaSuffix), nil
}

func fileName(key, contentType string) string {
	stem := slug(key)
	if stem == "" {
		return ""
	}
	return stem + extensionFor(contentType)
}

func extensionFor(contentType string) string {
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return ".bin"
	}
	switch mediaType {
	case "application/pdf":
		return ".pdf"
	case "application/octet-stream":
		return ".bin"
	}
	if exts, err := mime.ExtensionsByType(mediaType); err == nil && len(exts) > 0 {
		return exts[0]
	}
	return ".bin"
}

// slug keeps letters and digits and joins the runs with dashes.
func slug(key string) string {
	var b strings.Builder
	dash := false
	for _, r := range strings.ToLower(key) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
			dash = false
			continue
		}
		if !dash && b.Len() > 0 {
			b.WriteByte('-')
			dash = true
		}
	}
	return strings.TrimSuffix(b.String(), "-")
}

func writeAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create file: %w", err)
	}
	tmpPath := tmp.Name()
	defer func() {
		_ = os.Remove(tmpPath)
	}()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("rename file: %w", err)
	}
	return nil
}
