package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"credex/internal/credential/models"
	"credex/pkg/secrets"
)

const documentVersion = 1

// document is the on-disk layout. Order of Credentials is the store's iteration order.
type document struct {
	Version     int                  `json:"version"`
	Credentials []*models.Credential `json:"credentials"`
}

// FileStore persists the whole credential collection as one JSON document.
// Writes go to a temp file in the same directory, are fsynced and then renamed
// over the target, so a reader sees either the old or the new collection.
type FileStore struct {
	mu     sync.Mutex
	path   string
	sealer secrets.Sealer
}

// FileOption configures a FileStore.
type FileOption func(*FileStore)

// WithSealer encrypts the document at rest.
func WithSealer(s secrets.Sealer) FileOption {
	return func(f *FileStore) {
		f.sealer = s
	}
}

// NewFile creates a FileStore at path. The parent directory is created on first save.
func NewFile(path string, opts ...FileOption) *FileStore {
	f := &FileStore{path: path}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// LoadAll returns an empty collection when the file does not exist yet.
func (f *FileStore) LoadAll(_ context.Context) ([]*models.Credential, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	raw, err := os.ReadFile(f.path)
	if errors.Is(err, fs.ErrNotExist) {
		return []*models.Credential{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read credential file: %w", err)
	}
	if len(raw) == 0 {
		return []*models.Credential{}, nil
	}
	if f.sealer != nil {
		if raw, err = f.sealer.Open(raw); err != nil {
			return nil, fmt.Errorf("decrypt credential file: %w", err)
		}
	}

	var doc document
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("decode credential file: %w", err)
	}
	if doc.Version > documentVersion {
		return nil, fmt.Errorf("credential file version %d is newer than supported %d", doc.Version, documentVersion)
	}
	return cloneAll(doc.Credentials), nil
}

func (f *FileStore) SaveAll(_ context.Context, records []*models.Credential) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	raw, err := json.MarshalIndent(document{Version: documentVersion, Credentials: cloneAll(records)}, "", "  ")
	if err != nil {
		return fmt.Errorf("encode credential file: %w", err)
	}
	if f.sealer != nil {
		if raw, err = f.sealer.Seal(raw); err != nil {
			return fmt.Errorf("encrypt credential file: %w", err)
		}
	}
	return writeAtomic(f.path, raw)
}

func writeAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("create storage dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	cleanup := func() { _ = os.Remove(tmpName) }

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		cleanup()
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		cleanup()
		return fmt.Errorf("sync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Chmod(tmpName, 0o600); err != nil {
		cleanup()
		return fmt.Errorf("chmod temp file: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		cleanup()
		return fmt.Errorf("replace credential file: %w", err)
	}
	// Persist the rename itself.
	if d, err := os.Open(dir); err == nil {
		_ = d.Sync()
		_ = d.Close()
	}
	return nil
}
