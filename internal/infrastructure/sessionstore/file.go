package sessionstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/erp/mall-admin/internal/domain/session"
)

// FilePersister stores the session document in a JSON file readable only by
// the current user. The file maps the storage key to the session, so several
// keys (e.g. one per environment) can share a file.
type FilePersister struct {
	path string
	key  string
}

var _ session.Persister = (*FilePersister)(nil)

// NewFilePersister creates a persister for path. An empty key uses session.StorageKey.
func NewFilePersister(path, key string) *FilePersister {
	if key == "" {
		key = session.StorageKey
	}
	return &FilePersister{path: path, key: key}
}

// Path returns the backing file
func (p *FilePersister) Path() string {
	return p.path
}

func (p *FilePersister) readAll() (map[string]json.RawMessage, error) {
	data, err := os.ReadFile(p.path)
	if errors.Is(err, os.ErrNotExist) {
		return map[string]json.RawMessage{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read session file: %w", err)
	}
	doc := map[string]json.RawMessage{}
	if len(data) == 0 {
		return doc, nil
	}
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to decode session file %s: %w", p.path, err)
	}
	return doc, nil
}

func (p *FilePersister) writeAll(doc map[string]json.RawMessage) error {
	if err := os.MkdirAll(filepath.Dir(p.path), 0o700); err != nil {
		return fmt.Errorf("failed to create session directory: %w", err)
	}
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode session: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(p.path), ".session-*.json")
	if err != nil {
		return fmt.Errorf("failed to create session file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if err := tmp.Chmod(0o600); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to restrict session file: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write session file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to write session file: %w", err)
	}
	if err := os.Rename(tmp.Name(), p.path); err != nil {
		return fmt.Errorf("failed to replace session file: %w", err)
	}
	return nil
}

// Load implements session.Persister
func (p *FilePersister) Load(_ context.Context) (session.Session, error) {
	doc, err := p.readAll()
	if err != nil {
		return session.Session{}, err
	}
	raw, ok := doc[p.key]
	if !ok {
		return session.Session{}, session.ErrNotFound
	}
	var s session.Session
	if err := json.Unmarshal(raw, &s); err != nil {
		return session.Session{}, fmt.Errorf("failed to decode session %q: %w", p.key, err)
	}
	return s, nil
}

// Save implements session.Persister
func (p *FilePersister) Save(_ context.Context, s session.Session) error {
	doc, err := p.readAll()
	if err != nil {
		// A corrupt file is replaced rather than blocking login forever.
		doc = map[string]json.RawMessage{}
	}
	raw, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("failed to encode session: %w", err)
	}
	doc[p.key] = raw
	return p.writeAll(doc)
}

// Remove implements session.Persister. The file is deleted once it holds no keys.
func (p *FilePersister) Remove(_ context.Context) error {
	doc, err := p.readAll()
	if err != nil {
		return os.Remove(p.path)
	}
	if _, ok := doc[p.key]; !ok {
		return nil
	}
	delete(doc, p.key)
	if len(doc) == 0 {
		if err := os.Remove(p.path); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("failed to remove session file: %w", err)
		}
		return nil
	}
	return p.writeAll(doc)
}
