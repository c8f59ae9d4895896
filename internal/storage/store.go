package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/precountlive/precount/internal/config"
)

// ErrNotFound is returned by Get when no value is stored under the key.
var ErrNotFound = errors.New("key not found")

// Store sets a string value under a key, replacing any previous value.
type Store interface {
	Set(ctx context.Context, key, value string) error
}

// Getter is implemented by stores that can read a value back.
type Getter interface {
	Get(ctx context.Context, key string) (string, error)
}

// New creates the store selected by cfg.Backend. The "none" backend yields a
// nil Store and no error.
func New(cfg config.Store) (Store, error) {
	switch cfg.Backend {
	case config.BackendNone:
		return nil, nil
	case config.BackendREST:
		return NewRESTStore(cfg.URL, cfg.Token, cfg.Timeout)
	case config.BackendGist:
		return NewGistStore(cfg.GistID, cfg.Token, cfg.Timeout)
	case config.BackendFile:
		return NewFileStore(cfg.DataDir)
	case config.BackendSQLite:
		return NewSQLiteStore(cfg.DSN)
	default:
		return nil, fmt.Errorf("unknown store backend: %q", cfg.Backend)
	}
}

// fileName maps a key such as "precount:records" to a safe file name.
func fileName(key string) string {
	safe := strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', ':', '*', '?', '"', '<', '>', '|', ' ':
			return '_'
		}
		return r
	}, key)
	return safe + ".json"
}
