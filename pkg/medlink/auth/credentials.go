package auth

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/OHshajim/MedLink/pkg/medlink/api"
)

// Backends for the durable credential store
const (
	StoreFile   = "file"
	StoreSQLite = "sqlite"
	StoreMemory = "memory"
)

// CredentialKey is the fixed key the credential is persisted under
const CredentialKey = "medlink.session"

// ErrNotFound is returned by a CredentialStore holding no credential
var ErrNotFound = errors.New("no stored credential")

// Identity is who the server says the credential belongs to
type Identity struct {
	UserID string   `json:"user_id"`
	Name   string   `json:"name"`
	Email  string   `json:"email,omitempty"`
	Role   api.Role `json:"role"`
}

// IdentityFromUser converts a login response user
func IdentityFromUser(u api.User) Identity {
	return Identity{UserID: u.ID, Name: u.Name, Email: u.Email, Role: u.Role}
}

// Record is what gets persisted between runs
type Record struct {
	Credential string    `json:"credential"`
	Identity   Identity  `json:"identity"`
	StoredAt   time.Time `json:"stored_at"`
}

func (r *Record) valid() bool {
	return r.Credential != "" && r.Identity.UserID != "" && r.Identity.Role.Valid()
}

// CredentialStore is durable storage for a single session record
type CredentialStore interface {
	Load(ctx context.Context) (*Record, error)
	Save(ctx context.Context, rec *Record) error
	Clear(ctx context.Context) error
	Close() error
}

// DefaultPath returns the default location of the session file for a backend
func DefaultPath(kind string) (string, error) {
	root, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	name := "session.json"
	if kind == StoreSQLite {
		name = "session.db"
	}
	return filepath.Join(root, "medlink", name), nil
}

// NewCredentialStore opens the backend named by kind. An empty path selects
// DefaultPath(kind).
func NewCredentialStore(kind, path string) (CredentialStore, error) {
	if kind == "" {
		kind = StoreFile
	}
	if kind != StoreMemory && path == "" {
		p, err := DefaultPath(kind)
		if err != nil {
			return nil, fmt.Errorf("error resolving session path: %w", err)
		}
		path = p
	}

	switch kind {
	case StoreFile:
		return NewFileStore(path)
	case StoreSQLite:
		return NewSQLiteStore(path)
	case StoreMemory:
		return NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("unsupported session store: %s", kind)
	}
}
