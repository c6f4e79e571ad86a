package cmd

import (
	"context"
	"fmt"
	"io"

	"github.com/chrisdamba/menumanager/internal/cloudwriter"
	"github.com/chrisdamba/menumanager/internal/models"
	"github.com/chrisdamba/menumanager/internal/repositories"
	"github.com/chrisdamba/menumanager/internal/repositories/file"
	"github.com/chrisdamba/menumanager/internal/repositories/memory"
	"github.com/chrisdamba/menumanager/internal/repositories/postgres"
	s3store "github.com/chrisdamba/menumanager/internal/repositories/s3"
	"github.com/chrisdamba/menumanager/internal/repositories/sqlite"
)

type closerFunc func() error

func (f closerFunc) Close() error { return f() }

// openStore builds the document store selected by store.driver. The returned
// closer releases its connections.
func openStore(ctx context.Context, c models.StoreConfig, seed *models.Document) (repositories.DocumentStore, io.Closer, error) {
	noop := closerFunc(func() error { return nil })

	switch c.Driver {
	case models.StoreDriverMemory:
		return memory.NewDocumentRepository(seed), noop, nil

	case models.StoreDriverFile:
		store := file.NewDocumentRepository(c.FilePath)
		if c.CreateFile {
			if err := store.Init(); err != nil {
				return nil, nil, err
			}
		}
		logger.Info("file store ready", "path", c.FilePath, "create", c.CreateFile)
		return store, noop, nil

	case models.StoreDriverPostgres:
		pool, err := postgres.Connect(ctx, c.DatabaseURL)
		if err != nil {
			return nil, nil, err
		}
		store := postgres.NewDocumentRepository(pool, c.DocumentID)
		if err := store.Migrate(ctx); err != nil {
			pool.Close()
			return nil, nil, fmt.Errorf("error migrating database: %w", err)
		}
		logger.Info("postgres store ready", "document", c.DocumentID)
		return store, closerFunc(func() error { pool.Close(); return nil }), nil

	case models.StoreDriverSQLite:
		store, err := sqlite.Open(ctx, c.SQLitePath, c.DocumentID)
		if err != nil {
			return nil, nil, err
		}
		logger.Info("sqlite store ready", "path", c.SQLitePath, "document", c.DocumentID)
		return store, store, nil

	case models.StoreDriverS3:
		client, err := cloudwriter.NewS3Client(ctx, c.S3.Region)
		if err != nil {
			return nil, nil, err
		}
		logger.Info("s3 store ready", "bucket", c.S3.Bucket, "key", c.S3.Key)
		return s3store.NewDocumentRepository(client, c.S3.Bucket, c.S3.Key), noop, nil
	}
	return nil, nil, fmt.Errorf("unsupported store driver: %s", c.Driver)
}
