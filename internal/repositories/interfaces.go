package repositories

import (
	"context"
	"errors"

	"github.com/chrisdamba/menumanager/internal/models"
)

var (
	// ErrStoreUnavailable means the backing medium could not be read or written.
	ErrStoreUnavailable = errors.New("store unavailable")
	// ErrStaleRevision means the document changed since it was loaded.
	ErrStaleRevision = errors.New("stale revision")
)

// DocumentStore loads and saves the whole menu document. Save succeeds only
// when expectedRevision is still the current revision, and returns the new one.
// A store that has never been written holds an empty document at revision 0.
type DocumentStore interface {
	Load(ctx context.Context) (*models.Snapshot, error)
	Save(ctx context.Context, doc *models.Document, expectedRevision int64) (int64, error)
}
