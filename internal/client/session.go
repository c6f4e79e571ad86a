package client

import (
	"context"
	"fmt"
	"sync"

	"github.com/chrisdamba/menumanager/internal/dirty"
	"github.com/chrisdamba/menumanager/internal/models"
	"github.com/chrisdamba/menumanager/internal/tree"
)

// Session is an editing session over the remote document. It keeps the last
// fetched snapshot and the dirty state of fields edited against it. Every
// successful mutation is followed by a fresh fetch and a tracker reset, since
// paths and field ids are positional.
type Session struct {
	client  *Client
	tracker *dirty.Tracker

	mu       sync.RWMutex
	snapshot *models.Snapshot
	loaded   bool
}

func NewSession(c *Client) *Session {
	return &Session{
		client:   c,
		tracker:  dirty.NewTracker(),
		snapshot: &models.Snapshot{Document: models.NewDocument()},
	}
}

// Refresh fetches the document and discards all dirty state.
func (s *Session) Refresh(ctx context.Context) error {
	snap, err := s.client.Fetch(ctx)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.snapshot = snap
	s.loaded = true
	s.mu.Unlock()
	s.tracker.Reset()
	return nil
}

// Document returns a copy of the last fetched document.
func (s *Session) Document() *models.Document {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshot.Document.Clone()
}

func (s *Session) Revision() int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshot.Revision
}

func (s *Session) Tracker() *dirty.Tracker {
	return s.tracker
}

// Edit records a local edit of the field at path and reports whether the
// field now differs from the value it was fetched with.
func (s *Session) Edit(path tree.Path, live any) (bool, error) {
	id, ok := dirty.FieldIDFor(path)
	if !ok {
		return false, fmt.Errorf("%s is not an editable field", path)
	}
	s.mu.RLock()
	original, err := tree.ValueAt(s.snapshot.Document, path)
	s.mu.RUnlock()
	if err != nil {
		return false, err
	}
	return s.tracker.Change(id, original, live), nil
}

// mutate applies m against the revision last fetched. Before the first
// Refresh nothing is checked.
func (s *Session) mutate(ctx context.Context, action string, m tree.Mutation) error {
	s.mu.RLock()
	m.CheckRevision, m.ExpectedRevision = s.loaded, s.snapshot.Revision
	s.mu.RUnlock()
	if err := s.client.apply(ctx, m, action); err != nil {
		return err
	}
	return s.Refresh(ctx)
}

func restaurantPath(r int) tree.Path {
	return tree.P(models.FieldRestaurants, r)
}

func menuPath(r, m int) tree.Path {
	return restaurantPath(r).Child(tree.Key(models.FieldMenus), tree.Index(m))
}

func categoryPath(r, m, c int) tree.Path {
	return menuPath(r, m).Child(tree.Key(models.FieldCategories), tree.Index(c))
}

func itemPath(r, m, c, i int) tree.Path {
	return categoryPath(r, m, c).Child(tree.Key(models.FieldItems), tree.Index(i))
}

func dietaryPath(r, m, c, i, d int) tree.Path {
	return itemPath(r, m, c, i).Child(tree.Key(models.FieldDietary), tree.Index(d))
}

func nameOf(p tree.Path) tree.Path {
	return p.Child(tree.Key(models.FieldName))
}

func (s *Session) UpdateRestaurant(ctx context.Context, r int, name string) error {
	return s.mutate(ctx, "update restaurant", tree.Mutation{Op: tree.OpUpdate, Path: nameOf(restaurantPath(r)), Value: name})
}

func (s *Session) UpdateMenu(ctx context.Context, r, m int, name string) error {
	return s.mutate(ctx, "update menu", tree.Mutation{Op: tree.OpUpdate, Path: nameOf(menuPath(r, m)), Value: name})
}

func (s *Session) UpdateCategory(ctx context.Context, r, m, c int, name string) error {
	return s.mutate(ctx, "update category", tree.Mutation{Op: tree.OpUpdate, Path: nameOf(categoryPath(r, m, c)), Value: name})
}

// UpdateItem replaces the item's name, price and reward flag together.
func (s *Session) UpdateItem(ctx context.Context, r, m, c, i int, fields models.ItemFields) error {
	return s.mutate(ctx, "update item", tree.Mutation{Op: tree.OpUpdate, Path: itemPath(r, m, c, i), Value: fields})
}

func (s *Session) UpdateDietary(ctx context.Context, r, m, c, i, d int, tag string) error {
	return s.mutate(ctx, "update dietary requirement", tree.Mutation{Op: tree.OpUpdate, Path: dietaryPath(r, m, c, i, d), Value: tag})
}

// AddRestaurant appends a restaurant built from the default skeleton with
// overrides applied on top.
func (s *Session) AddRestaurant(ctx context.Context, overrides map[string]any) error {
	return s.add(ctx, "add restaurant", tree.P(models.FieldRestaurants), tree.LevelRestaurant, overrides)
}

func (s *Session) AddMenu(ctx context.Context, r int, overrides map[string]any) error {
	path := restaurantPath(r).Child(tree.Key(models.FieldMenus))
	return s.add(ctx, "add menu", path, tree.LevelMenu, overrides)
}

func (s *Session) AddCategory(ctx context.Context, r, m int, overrides map[string]any) error {
	path := menuPath(r, m).Child(tree.Key(models.FieldCategories))
	return s.add(ctx, "add category", path, tree.LevelCategory, overrides)
}

func (s *Session) AddItem(ctx context.Context, r, m, c int, overrides map[string]any) error {
	path := categoryPath(r, m, c).Child(tree.Key(models.FieldItems))
	return s.add(ctx, "add item", path, tree.LevelItem, overrides)
}

func (s *Session) AddDietary(ctx context.Context, r, m, c, i int, tag string) error {
	path := itemPath(r, m, c, i).Child(tree.Key(models.FieldDietary))
	return s.mutate(ctx, "add dietary requirement", tree.Mutation{Op: tree.OpAdd, Path: path, Value: tag})
}

func (s *Session) add(ctx context.Context, action string, path tree.Path, level tree.Level, overrides map[string]any) error {
	value := tree.WithDefaults(level, overrides)
	return s.mutate(ctx, action, tree.Mutation{Op: tree.OpAdd, Path: path, Value: value})
}

func (s *Session) DeleteRestaurant(ctx context.Context, r int) error {
	return s.mutate(ctx, "delete restaurant", tree.Mutation{Op: tree.OpDelete, Path: restaurantPath(r)})
}

func (s *Session) DeleteMenu(ctx context.Context, r, m int) error {
	return s.mutate(ctx, "delete menu", tree.Mutation{Op: tree.OpDelete, Path: menuPath(r, m)})
}

func (s *Session) DeleteCategory(ctx context.Context, r, m, c int) error {
	return s.mutate(ctx, "delete category", tree.Mutation{Op: tree.OpDelete, Path: categoryPath(r, m, c)})
}

func (s *Session) DeleteItem(ctx context.Context, r, m, c, i int) error {
	return s.mutate(ctx, "delete item", tree.Mutation{Op: tree.OpDelete, Path: itemPath(r, m, c, i)})
}

func (s *Session) DeleteDietary(ctx context.Context, r, m, c, i, d int) error {
	return s.mutate(ctx, "delete dietary requirement", tree.Mutation{Op: tree.OpDelete, Path: dietaryPath(r, m, c, i, d)})
}
