package projects

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/HyperIoT-Labs/HyperIoT-DS/internal/hyperiot"
)

// ErrProjectNotFound is returned by Resolve for a name no populate call has seen.
var ErrProjectNotFound = errors.New("project not found")

// Lister fetches the current project listing from the platform.
type Lister interface {
	ListProjects(ctx context.Context, token string) ([]hyperiot.Project, error)
}

// Store holds the name->id mapping and the display order of project names.
// Entries are only ever added or overwritten, never removed.
type Store interface {
	Upsert(ctx context.Context, projects []hyperiot.Project) error
	Lookup(ctx context.Context, key string) (hyperiot.ProjectID, bool, error)
	Names(ctx context.Context) ([]string, error)
}

// Index resolves human-readable project names to platform ids. It is filled
// as a side effect of listing projects and is never invalidated.
type Index struct {
	lister Lister
	store  Store
}

func NewIndex(lister Lister, store Store) *Index {
	if store == nil {
		store = NewMemoryStore()
	}
	return &Index{lister: lister, store: store}
}

// NormalizeName is the key used for both insertion and lookup.
func NormalizeName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// Populate lists the projects visible to token and records every one of them.
// It always hits the platform, even when the index is already filled.
func (ix *Index) Populate(ctx context.Context, token string) ([]hyperiot.Project, error) {
	list, err := ix.lister.ListProjects(ctx, token)
	if err != nil {
		return nil, fmt.Errorf("populate project index: %w", err)
	}
	if err := ix.store.Upsert(ctx, list); err != nil {
		return nil, fmt.Errorf("store project index: %w", err)
	}
	slog.Debug("project index populated", "projects", len(list))
	return list, nil
}

// Resolve maps a project display name, case-insensitively, to its id.
func (ix *Index) Resolve(ctx context.Context, name string) (hyperiot.ProjectID, error) {
	id, ok, err := ix.store.Lookup(ctx, NormalizeName(name))
	if err != nil {
		return "", fmt.Errorf("lookup project %q: %w", name, err)
	}
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrProjectNotFound, name)
	}
	return id, nil
}

// Names returns project display names in the order they were first seen.
func (ix *Index) Names(ctx context.Context) ([]string, error) {
	return ix.store.Names(ctx)
}
