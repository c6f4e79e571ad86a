package file

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/chrisdamba/menumanager/internal/models"
	"github.com/chrisdamba/menumanager/internal/repositories"
)

// envelope is the on-disk layout. Files written without a revision (the
// plain {"restaurants": [...]} format) read as revision 0.
type envelope struct {
	Revision    int64               `json:"revision,omitempty"`
	Restaurants []models.Restaurant `json:"restaurants"`
}

// DocumentRepository stores the document as one JSON file. Writes go to a
// temporary file that is renamed over the original, so a save is all or
// nothing.
type DocumentRepository struct {
	mu   sync.Mutex
	path string
}

func NewDocumentRepository(path string) *DocumentRepository {
	return &DocumentRepository{path: path}
}

// Init creates the file with an empty document if it does not exist yet.
func (r *DocumentRepository) Init() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, err := os.Stat(r.path); err == nil {
		return nil
	}
	return r.write(envelope{Restaurants: []models.Restaurant{}})
}

func (r *DocumentRepository) Load(_ context.Context) (*models.Snapshot, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	env, err := r.read()
	if err != nil {
		return nil, err
	}
	return &models.Snapshot{
		Document: &models.Document{Restaurants: env.Restaurants},
		Revision: env.Revision,
	}, nil
}

func (r *DocumentRepository) Save(_ context.Context, doc *models.Document, expectedRevision int64) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	current, err := r.read()
	if err != nil {
		return 0, err
	}
	if current.Revision != expectedRevision {
		return 0, repositories.ErrStaleRevision
	}
	next := envelope{Revision: expectedRevision + 1, Restaurants: doc.Restaurants}
	if err := r.write(next); err != nil {
		return 0, err
	}
	return next.Revision, nil
}

func (r *DocumentRepository) read() (envelope, error) {
	raw, err := os.ReadFile(r.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return envelope{}, fmt.Errorf("%w: the menu file %s does not exist", repositories.ErrStoreUnavailable, r.path)
		}
		return envelope{}, fmt.Errorf("%w: %w", repositories.ErrStoreUnavailable, err)
	}
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return envelope{}, fmt.Errorf("%w: decode %s: %w", repositories.ErrStoreUnavailable, r.path, err)
	}
	if env.Restaurants == nil {
		env.Restaurants = []models.Restaurant{}
	}
	return env, nil
}

func (r *DocumentRepository) write(env envelope) error {
	raw, err := json.MarshalIndent(env, "", "  ")
	if err != nil {
		return fmt.Errorf("%w: encode: %w", repositories.ErrStoreUnavailable, err)
	}
	dir := filepath.Dir(r.path)
	tmp, err := os.CreateTemp(dir, filepath.Base(r.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("%w: %w", repositories.ErrStoreUnavailable, err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(raw); err != nil {
		tmp.Close()
		return fmt.Errorf("%w: %w", repositories.ErrStoreUnavailable, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("%w: %w", repositories.ErrStoreUnavailable, err)
	}
	if err := os.Rename(tmp.Name(), r.path); err != nil {
		return fmt.Errorf("%w: %w", repositories.ErrStoreUnavailable, err)
	}
	return nil
}
