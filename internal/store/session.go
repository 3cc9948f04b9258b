package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"
)

// SessionPartition keeps the session-scoped copy of the feed in a JSON
// file named after the terminal session. It outlives one run of the
// client but not the session, which makes a restart look like a reload.
type SessionPartition struct {
	mu   sync.Mutex
	path string
}

// DefaultSessionDir returns $XDG_RUNTIME_DIR/subsidy-console, falling back
// to a per-user directory under the OS temp dir.
func DefaultSessionDir() string {
	if dir := os.Getenv("XDG_RUNTIME_DIR"); dir != "" {
		return filepath.Join(dir, "subsidy-console")
	}
	return filepath.Join(os.TempDir(), "subsidy-console-"+strconv.Itoa(os.Getuid()))
}

// DefaultSessionID identifies the session by the parent process, normally
// the shell the client was started from.
func DefaultSessionID() string {
	return strconv.Itoa(os.Getppid())
}

// NewSessionPartition returns a partition stored at dir/<sessionID>.json.
// Empty arguments select DefaultSessionDir and DefaultSessionID.
func NewSessionPartition(dir, sessionID string) *SessionPartition {
	if dir == "" {
		dir = DefaultSessionDir()
	}
	if sessionID == "" {
		sessionID = DefaultSessionID()
	}
	return &SessionPartition{path: filepath.Join(dir, "session-"+sessionID+".json")}
}

// Path returns the backing file path.
func (p *SessionPartition) Path() string {
	return p.path
}

// load reads the backing file. A missing file is an empty partition.
func (p *SessionPartition) load() (map[string]string, error) {
	data, err := os.ReadFile(p.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return map[string]string{}, nil
		}
		return nil, fmt.Errorf("reading session file %s: %w", p.path, err)
	}

	values := map[string]string{}
	if err := json.Unmarshal(data, &values); err != nil {
		return nil, fmt.Errorf("%w: session file %s: %v", ErrCorrupt, p.path, err)
	}
	return values, nil
}

// save writes values to a temp file and renames it over the backing file.
func (p *SessionPartition) save(values map[string]string) error {
	data, err := json.Marshal(values)
	if err != nil {
		return fmt.Errorf("encoding session file: %w", err)
	}

	dir := filepath.Dir(p.path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("creating session directory %s: %w", dir, err)
	}

	tmp := p.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("writing session file: %w", err)
	}
	if err := os.Rename(tmp, p.path); err != nil {
		return fmt.Errorf("replacing session file: %w", err)
	}
	return nil
}

// loadForWrite is load, except that an unreadable file is treated as
// empty so the next write replaces it.
func (p *SessionPartition) loadForWrite() map[string]string {
	values, err := p.load()
	if err != nil {
		return map[string]string{}
	}
	return values
}

// Get returns the value stored under key.
func (p *SessionPartition) Get(_ context.Context, key string) (string, bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	values, err := p.load()
	if err != nil {
		return "", false, err
	}
	v, ok := values[key]
	return v, ok, nil
}

// Set stores value under key.
func (p *SessionPartition) Set(_ context.Context, key, value string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	values := p.loadForWrite()
	values[key] = value
	return p.save(values)
}

// Delete removes keys.
func (p *SessionPartition) Delete(_ context.Context, keys ...string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	values := p.loadForWrite()
	for _, k := range keys {
		delete(values, k)
	}
	return p.save(values)
}

// Keys lists keys starting with prefix, sorted.
func (p *SessionPartition) Keys(_ context.Context, prefix string) ([]string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	values, err := p.load()
	if err != nil {
		return nil, err
	}

	var keys []string
	for k := range values {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return keys, nil
}
