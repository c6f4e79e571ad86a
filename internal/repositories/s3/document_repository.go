package s3

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/chrisdamba/menumanager/internal/models"
	"github.com/chrisdamba/menumanager/internal/repositories"
)

const revisionMetadataKey = "revision"

// ObjectAPI is the part of the S3 client the repository needs.
type ObjectAPI interface {
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	HeadObject(ctx context.Context, params *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// DocumentRepository keeps the document as a single JSON object. The revision
// travels in the object's user metadata. The check before a write is not
// atomic across processes; run one writer per object.
type DocumentRepository struct {
	mu     sync.Mutex
	client ObjectAPI
	bucket string
	key    string
}

func NewDocumentRepository(client ObjectAPI, bucket, key string) *DocumentRepository {
	return &DocumentRepository{client: client, bucket: bucket, key: key}
}

func (r *DocumentRepository) Load(ctx context.Context) (*models.Snapshot, error) {
	out, err := r.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(r.bucket),
		Key:    aws.String(r.key),
	})
	if err != nil {
		var noSuchKey *types.NoSuchKey
		if errors.As(err, &noSuchKey) {
			return &models.Snapshot{Document: models.NewDocument()}, nil
		}
		return nil, fmt.Errorf("%w: get s3://%s/%s: %w", repositories.ErrStoreUnavailable, r.bucket, r.key, err)
	}
	defer out.Body.Close()

	raw, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: read s3://%s/%s: %w", repositories.ErrStoreUnavailable, r.bucket, r.key, err)
	}
	doc := models.NewDocument()
	if err := json.Unmarshal(raw, doc); err != nil {
		return nil, fmt.Errorf("%w: decode s3://%s/%s: %w", repositories.ErrStoreUnavailable, r.bucket, r.key, err)
	}
	return &models.Snapshot{Document: doc, Revision: revisionOf(out.Metadata)}, nil
}

func (r *DocumentRepository) Save(ctx context.Context, doc *models.Document, expectedRevision int64) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	current, err := r.currentRevision(ctx)
	if err != nil {
		return 0, err
	}
	if current != expectedRevision {
		return 0, repositories.ErrStaleRevision
	}

	body, err := json.Marshal(doc)
	if err != nil {
		return 0, fmt.Errorf("%w: encode document: %w", repositories.ErrStoreUnavailable, err)
	}
	next := expectedRevision + 1
	_, err = r.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(r.bucket),
		Key:         aws.String(r.key),
		Body:        bytes.NewReader(body),
		ContentType: aws.String("application/json"),
		Metadata:    map[string]string{revisionMetadataKey: strconv.FormatInt(next, 10)},
	})
	if err != nil {
		return 0, fmt.Errorf("%w: put s3://%s/%s: %w", repositories.ErrStoreUnavailable, r.bucket, r.key, err)
	}
	return next, nil
}

func (r *DocumentRepository) currentRevision(ctx context.Context) (int64, error) {
	out, err := r.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(r.bucket),
		Key:    aws.String(r.key),
	})
	if err != nil {
		var notFound *types.NotFound
		if errors.As(err, &notFound) {
			return 0, nil
		}
		return 0, fmt.Errorf("%w: head s3://%s/%s: %w", repositories.ErrStoreUnavailable, r.bucket, r.key, err)
	}
	return revisionOf(out.Metadata), nil
}

func revisionOf(metadata map[string]string) int64 {
	rev, err := strconv.ParseInt(metadata[revisionMetadataKey], 10, 64)
	if err != nil {
		return 0
	}
	return rev
}
