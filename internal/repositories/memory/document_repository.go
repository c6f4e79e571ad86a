package memory

import (
	"context"
	"sync"

	"github.com/chrisdamba/menumanager/internal/models"
	"github.com/chrisdamba/menumanager/internal/repositories"
)

// DocumentRepository keeps the document in process memory. Loads and saves
// work on copies so callers never share the stored tree.
type DocumentRepository struct {
	mu       sync.Mutex
	doc      *models.Document
	revision int64
}

func NewDocumentRepository(seed *models.Document) *DocumentRepository {
	if seed == nil {
		seed = models.NewDocument()
	}
	return &DocumentRepository{doc: seed.Clone()}
}

func (r *DocumentRepository) Load(_ context.Context) (*models.Snapshot, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return &models.Snapshot{Document: r.doc.Clone(), Revision: r.revision}, nil
}

func (r *DocumentRepository) Save(_ context.Context, doc *models.Document, expectedRevision int64) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if expectedRevision != r.revision {
		return 0, repositories.ErrStaleRevision
	}
	r.doc = doc.Clone()
	r.revision++
	return r.revision, nil
}
