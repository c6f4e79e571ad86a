package tree

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/chrisdamba/menumanager/internal/events"
	"github.com/chrisdamba/menumanager/internal/models"
	"github.com/chrisdamba/menumanager/internal/repositories"
)

// Mutation is one Add, Update or Delete request. With CheckRevision set the
// stored revision must equal ExpectedRevision for the mutation to apply.
type Mutation struct {
	Op               Op
	Path             Path
	Value            any
	CheckRevision    bool
	ExpectedRevision int64
}

type Result struct {
	Revision int64
	// Index is the position of the appended element for OpAdd.
	Index int
}

// Engine applies path-addressed mutations to the document held by a store.
// Every call reads the whole document, mutates a working copy and writes the
// whole document back.
type Engine struct {
	store     repositories.DocumentStore
	publisher events.Publisher
	logger    *slog.Logger
	newID     func() string
	now       func() time.Time
}

type Option func(*Engine)

func WithPublisher(p events.Publisher) Option {
	return func(e *Engine) { e.publisher = p }
}

func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

func WithIDGenerator(fn func() string) Option {
	return func(e *Engine) { e.newID = fn }
}

func WithClock(fn func() time.Time) Option {
	return func(e *Engine) { e.now = fn }
}

func NewEngine(store repositories.DocumentStore, opts ...Option) *Engine {
	e := &Engine{
		store:     store,
		publisher: events.NopPublisher{},
		logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
		newID:     generateID,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Fetch returns the current document and its revision.
func (e *Engine) Fetch(ctx context.Context) (*models.Snapshot, error) {
	snap, err := e.store.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrPersistenceFailed, err)
	}
	snap.Document = snap.Document.Clone()
	return snap, nil
}

func (e *Engine) Update(ctx context.Context, path Path, value any) error {
	_, err := e.Apply(ctx, Mutation{Op: OpUpdate, Path: path, Value: value})
	return err
}

// Add appends value to the array at path and returns its index.
func (e *Engine) Add(ctx context.Context, path Path, value any) (int, error) {
	res, err := e.Apply(ctx, Mutation{Op: OpAdd, Path: path, Value: value})
	return res.Index, err
}

func (e *Engine) Delete(ctx context.Context, path Path) error {
	_, err := e.Apply(ctx, Mutation{Op: OpDelete, Path: path})
	return err
}

func (e *Engine) Apply(ctx context.Context, m Mutation) (Result, error) {
	start := e.now()
	res, err := e.apply(ctx, m)
	observeMutation(m.Op, err, e.now().Sub(start))

	logger := e.logger.With("op", string(m.Op), "path", m.Path.String())
	if err != nil {
		logger.Warn("mutation failed", "kind", KindName(Kind(err)), "error", err)
		return Result{}, err
	}
	logger.Info("mutation applied", "revision", res.Revision)
	return res, nil
}

func (e *Engine) apply(ctx context.Context, m Mutation) (Result, error) {
	snap, err := e.store.Load(ctx)
	if err != nil {
		return Result{}, fail(m.Op, m.Path, ErrPersistenceFailed, err)
	}
	if m.CheckRevision && m.ExpectedRevision != snap.Revision {
		return Result{}, fail(m.Op, m.Path, ErrRevisionConflict,
			fmt.Errorf("expected revision %d, document is at %d", m.ExpectedRevision, snap.Revision))
	}

	// Clone also turns absent containers into empty arrays
	root, err := toTree(snap.Document.Clone())
	if err != nil {
		return Result{}, fail(m.Op, m.Path, ErrPersistenceFailed, err)
	}
	assignIDs(LevelDocument, root, e.newID, false)

	index, err := e.mutate(root, m)
	if err != nil {
		kind := Kind(err)
		if kind == nil {
			kind = ErrValidationFailed
		}
		return Result{}, fail(m.Op, m.Path, kind, err)
	}

	doc, err := decodeDocument(root)
	if err != nil {
		return Result{}, fail(m.Op, m.Path, ErrValidationFailed, err)
	}

	rev, err := e.store.Save(ctx, doc, snap.Revision)
	if err != nil {
		kind := ErrPersistenceFailed
		if errors.Is(err, repositories.ErrStaleRevision) {
			kind = ErrRevisionConflict
		}
		return Result{}, fail(m.Op, m.Path, kind, err)
	}

	e.publish(ctx, m, rev)
	return Result{Revision: rev, Index: index}, nil
}

// mutate applies m to the working tree in place. Errors carry a taxonomy
// sentinel.
func (e *Engine) mutate(root any, m Mutation) (int, error) {
	loc, err := Resolve(root, m.Path)
	if err != nil {
		return 0, err
	}
	t, ok := classify(m.Path)
	if !ok {
		return 0, fmt.Errorf("%w: %s does not address a menu entity", ErrInvalidTarget, m.Path)
	}

	// values cross into the tree in their JSON shape, which also copies them
	value, err := toTree(m.Value)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrValidationFailed, err)
	}

	switch m.Op {
	case OpUpdate:
		return 0, e.update(loc, t, value)
	case OpAdd:
		return e.add(loc, t, value)
	case OpDelete:
		return 0, e.remove(loc)
	}
	return 0, fmt.Errorf("%w: unknown operation %q", ErrInvalidTarget, m.Op)
}

func (e *Engine) update(loc *Location, t target, value any) error {
	existing, ok := loc.Value()
	if !ok {
		return fmt.Errorf("%w: nothing at %s", ErrPathNotFound, loc.Key)
	}

	var next any
	var err error
	switch t.kind {
	case targetContainer:
		return fmt.Errorf("%w: %s is edited with add and delete", ErrInvalidTarget, t.field)
	case targetElement:
		next, err = mergeElement(t.level, existing, value)
	case targetField:
		next, err = checkScalar(t.level, t.field, value)
	}
	if err != nil {
		return err
	}
	return loc.Set(next)
}

func (e *Engine) add(loc *Location, t target, value any) (int, error) {
	existing, ok := loc.Value()
	if !ok {
		return 0, fmt.Errorf("%w: nothing at %s", ErrPathNotFound, loc.Key)
	}
	arr, isArray := existing.([]any)
	if !isArray || t.kind != targetContainer {
		return 0, fmt.Errorf("%w: %s is not an array", ErrInvalidTarget, loc.Key)
	}

	assignIDs(t.level, value, e.newID, true)
	elem, err := checkElement(t.level, value)
	if err != nil {
		return 0, err
	}
	if err := loc.Set(append(arr, elem)); err != nil {
		return 0, err
	}
	return len(arr), nil
}

func (e *Engine) remove(loc *Location) error {
	if !loc.IsArray() {
		return fmt.Errorf("%w: only array elements can be deleted, %s is a field", ErrInvalidTarget, loc.Key)
	}
	if _, ok := loc.Remove(); !ok {
		return fmt.Errorf("%w: index %d out of range", ErrPathNotFound, loc.Key.Index())
	}
	return nil
}

func (e *Engine) publish(ctx context.Context, m Mutation, rev int64) {
	path, err := json.Marshal(m.Path)
	if err != nil {
		e.logger.Warn("change event not published", "error", err)
		return
	}
	event := events.NewChangeEvent(e.newID(), string(m.Op), path, rev, e.now())
	if err := e.publisher.Publish(ctx, event); err != nil {
		// the document is already saved; a lost event is not a failed mutation
		e.logger.Warn("change event not published", "revision", rev, "error", err)
	}
}
