package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/chrisdamba/menumanager/internal/models"
	"github.com/chrisdamba/menumanager/internal/repositories"

	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS menu_documents (
    id         TEXT PRIMARY KEY,
    body       TEXT NOT NULL,
    revision   INTEGER NOT NULL,
    updated_at TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP
)`

// DocumentRepository stores the whole document as one row of a SQLite
// database, guarded by a revision column like the Postgres repository.
type DocumentRepository struct {
	db *sql.DB
	id string
}

// Open opens (or creates) the database at path and makes sure the table exists.
func Open(ctx context.Context, path, documentID string) (*DocumentRepository, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}
	// one writer at a time; sqlite serializes writes anyway
	db.SetMaxOpenConns(1)
	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create schema in %s: %w", path, err)
	}
	return &DocumentRepository{db: db, id: documentID}, nil
}

func (r *DocumentRepository) Close() error {
	return r.db.Close()
}

func (r *DocumentRepository) Load(ctx context.Context) (*models.Snapshot, error) {
	var body string
	var revision int64
	err := r.db.QueryRowContext(ctx,
		`SELECT body, revision FROM menu_documents WHERE id = ?`, r.id,
	).Scan(&body, &revision)
	if errors.Is(err, sql.ErrNoRows) {
		return &models.Snapshot{Document: models.NewDocument()}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %w", repositories.ErrStoreUnavailable, err)
	}

	doc := models.NewDocument()
	if err := json.Unmarshal([]byte(body), doc); err != nil {
		return nil, fmt.Errorf("%w: decode document %s: %w", repositories.ErrStoreUnavailable, r.id, err)
	}
	return &models.Snapshot{Document: doc, Revision: revision}, nil
}

func (r *DocumentRepository) Save(ctx context.Context, doc *models.Document, expectedRevision int64) (int64, error) {
	body, err := json.Marshal(doc)
	if err != nil {
		return 0, fmt.Errorf("%w: encode document: %w", repositories.ErrStoreUnavailable, err)
	}

	var res sql.Result
	if expectedRevision == 0 {
		res, err = r.db.ExecContext(ctx,
			`INSERT INTO menu_documents (id, body, revision) VALUES (?, ?, 1) ON CONFLICT (id) DO NOTHING`,
			r.id, string(body))
	} else {
		res, err = r.db.ExecContext(ctx,
			`UPDATE menu_documents SET body = ?, revision = revision + 1, updated_at = CURRENT_TIMESTAMP
             WHERE id = ? AND revision = ?`,
			string(body), r.id, expectedRevision)
	}
	if err != nil {
		return 0, fmt.Errorf("%w: %w", repositories.ErrStoreUnavailable, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("%w: %w", repositories.ErrStoreUnavailable, err)
	}
	if n == 0 {
		return 0, repositories.ErrStaleRevision
	}
	return expectedRevision + 1, nil
}
