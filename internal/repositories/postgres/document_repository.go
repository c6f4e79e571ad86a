package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/chrisdamba/menumanager/internal/models"
	"github.com/chrisdamba/menumanager/internal/repositories"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const schema = `
    CREATE TABLE IF NOT EXISTS menu_documents (
        id         TEXT PRIMARY KEY,
        body       JSONB NOT NULL,
        revision   BIGINT NOT NULL,
        updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
    )
`

// DocumentRepository stores the whole document as one JSONB row. The
// revision column guards every write.
type DocumentRepository struct {
	pool *pgxpool.Pool
	id   string
}

func NewDocumentRepository(pool *pgxpool.Pool, documentID string) *DocumentRepository {
	return &DocumentRepository{pool: pool, id: documentID}
}

func Connect(ctx context.Context, databaseURL string) (*pgxpool.Pool, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("error connecting to database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("error pinging database: %w", err)
	}
	return pool, nil
}

func (r *DocumentRepository) Migrate(ctx context.Context) error {
	_, err := r.pool.Exec(ctx, schema)
	return err
}

func (r *DocumentRepository) Load(ctx context.Context) (*models.Snapshot, error) {
	var body []byte
	var revision int64
	err := r.pool.QueryRow(ctx,
		`SELECT body, revision FROM menu_documents WHERE id = $1`, r.id,
	).Scan(&body, &revision)
	if errors.Is(err, pgx.ErrNoRows) {
		return &models.Snapshot{Document: models.NewDocument()}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %w", repositories.ErrStoreUnavailable, err)
	}

	doc := models.NewDocument()
	if err := json.Unmarshal(body, doc); err != nil {
		return nil, fmt.Errorf("%w: decode document %s: %w", repositories.ErrStoreUnavailable, r.id, err)
	}
	return &models.Snapshot{Document: doc, Revision: revision}, nil
}

func (r *DocumentRepository) Save(ctx context.Context, doc *models.Document, expectedRevision int64) (int64, error) {
	body, err := json.Marshal(doc)
	if err != nil {
		return 0, fmt.Errorf("%w: encode document: %w", repositories.ErrStoreUnavailable, err)
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("%w: %w", repositories.ErrStoreUnavailable, err)
	}
	defer tx.Rollback(ctx)

	var tag pgconn.CommandTag
	if expectedRevision == 0 {
		tag, err = tx.Exec(ctx, `
            INSERT INTO menu_documents (id, body, revision)
            VALUES ($1, $2, 1)
            ON CONFLICT (id) DO NOTHING
        `, r.id, body)
	} else {
		tag, err = tx.Exec(ctx, `
            UPDATE menu_documents
            SET body = $2, revision = revision + 1, updated_at = now()
            WHERE id = $1 AND revision = $3
        `, r.id, body, expectedRevision)
	}
	if err != nil {
		return 0, fmt.Errorf("%w: %w", repositories.ErrStoreUnavailable, err)
	}
	if tag.RowsAffected() == 0 {
		return 0, repositories.ErrStaleRevision
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("%w: %w", repositories.ErrStoreUnavailable, err)
	}
	return expectedRevision + 1, nil
}
