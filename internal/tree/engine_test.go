package tree

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/chrisdamba/menumanager/internal/events"
	"github.com/chrisdamba/menumanager/internal/models"
	"github.com/chrisdamba/menumanager/internal/repositories"
	"github.com/chrisdamba/menumanager/internal/repositories/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fixture(items ...string) *models.Document {
	doc := &models.Document{Restaurants: []models.Restaurant{{
		Name: "A",
		Menus: []models.Menu{{
			Name: "Lunch",
			Categories: []models.Category{{
				Name:  "Mains",
				Items: []models.Item{},
			}},
		}},
	}}}
	for _, name := range items {
		c := &doc.Restaurants[0].Menus[0].Categories[0]
		c.Items = append(c.Items, models.Item{
			ID:      "id-" + name,
			Name:    name,
			Price:   9.5,
			Dietary: []string{"vegetarian"},
		})
	}
	return doc
}

func sequentialIDs() func() string {
	var mu sync.Mutex
	n := 0
	return func() string {
		mu.Lock()
		defer mu.Unlock()
		n++
		return fmt.Sprintf("gen-%d", n)
	}
}

func newTestEngine(t *testing.T, doc *models.Document, opts ...Option) (*Engine, *memory.DocumentRepository) {
	t.Helper()
	store := memory.NewDocumentRepository(doc)
	opts = append([]Option{WithIDGenerator(sequentialIDs())}, opts...)
	return NewEngine(store, opts...), store
}

func fetch(t *testing.T, e *Engine) *models.Snapshot {
	t.Helper()
	snap, err := e.Fetch(context.Background())
	require.NoError(t, err)
	return snap
}

func valueAt(t *testing.T, e *Engine, p Path) any {
	t.Helper()
	v, err := ValueAt(fetch(t, e).Document, p)
	require.NoError(t, err)
	return v
}

func itemsPath() Path {
	return P("restaurants", 0, "menus", 0, "categories", 0, "items")
}

func itemNames(t *testing.T, e *Engine) []string {
	t.Helper()
	var names []string
	for _, it := range fetch(t, e).Document.Restaurants[0].Menus[0].Categories[0].Items {
		names = append(names, it.Name)
	}
	return names
}

func TestUpdateRoundTrip(t *testing.T) {
	item := itemsPath().Child(Index(0))
	tests := []struct {
		name  string
		path  Path
		value any
		want  any
	}{
		{"restaurant name", P("restaurants", 0, "name"), "B", "B"},
		{"menu name", P("restaurants", 0, "menus", 0, "name"), "Dinner", "Dinner"},
		{"category name", P("restaurants", 0, "menus", 0, "categories", 0, "name"), "Sides", "Sides"},
		{"item name", item.Child(Key("name")), "Calzone", "Calzone"},
		{"item price", item.Child(Key("price")), 12.25, 12.25},
		{"item free", item.Child(Key("price")), 0, 0.0},
		{"item reward", item.Child(Key("rewardEligible")), true, true},
		{"dietary entry", item.Child(Key("dietary"), Index(0)), "vegan", "vegan"},
		{"empty name", P("restaurants", 0, "name"), "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e, _ := newTestEngine(t, fixture("Pizza"))
			require.NoError(t, e.Update(context.Background(), tt.path, tt.value))
			assert.Equal(t, tt.want, valueAt(t, e, tt.path))
		})
	}
}

func TestUpdateItemReplacesFieldsTogether(t *testing.T) {
	e, _ := newTestEngine(t, fixture("Pizza"))
	path := itemsPath().Child(Index(0))

	err := e.Update(context.Background(), path, models.ItemFields{Name: "Calzone", Price: 11, RewardEligible: true})
	require.NoError(t, err)

	it := fetch(t, e).Document.Restaurants[0].Menus[0].Categories[0].Items[0]
	assert.Equal(t, "id-Pizza", it.ID)
	assert.Equal(t, "Calzone", it.Name)
	assert.Equal(t, models.Price(11), it.Price)
	assert.True(t, it.RewardEligible)
	assert.Equal(t, []string{"vegetarian"}, it.Dietary)
}

func TestUpdateItemRejectsPartialPayload(t *testing.T) {
	e, _ := newTestEngine(t, fixture("Pizza"))
	path := itemsPath().Child(Index(0))

	err := e.Update(context.Background(), path, map[string]any{"name": "Calzone"})
	assert.ErrorIs(t, err, ErrValidationFailed)

	err = e.Update(context.Background(), path, map[string]any{"name": "Calzone", "price": "11", "rewardEligible": false})
	assert.ErrorIs(t, err, ErrValidationFailed)
}

func TestUpdateRestaurantOnlyReplacesName(t *testing.T) {
	e, _ := newTestEngine(t, fixture("Pizza"))
	err := e.Update(context.Background(), P("restaurants", 0), map[string]any{"name": "B", "menus": []any{}})
	require.NoError(t, err)

	doc := fetch(t, e).Document
	assert.Equal(t, "B", doc.Restaurants[0].Name)
	assert.Len(t, doc.Restaurants[0].Menus, 1)
}

func TestUpdateIsIdempotent(t *testing.T) {
	e, _ := newTestEngine(t, fixture("Pizza", "Pasta"))
	path := itemsPath().Child(Index(1))
	value := map[string]any{"name": "Penne", "price": 7.25, "rewardEligible": true}

	require.NoError(t, e.Update(context.Background(), path, value))
	once := fetch(t, e)
	require.NoError(t, e.Update(context.Background(), path, value))
	twice := fetch(t, e)

	assert.Equal(t, once.Document, twice.Document)
	assert.Equal(t, once.Revision+1, twice.Revision)
}

func TestUpdateRejections(t *testing.T) {
	item := itemsPath().Child(Index(0))
	tests := []struct {
		name  string
		path  Path
		value any
		kind  error
	}{
		{"container field", P("restaurants", 0, "menus"), []any{}, ErrInvalidTarget},
		{"item id", item.Child(Key("id")), "other", ErrInvalidTarget},
		{"unknown field", P("restaurants", 0, "chef"), "x", ErrPathNotFound},
		{"name not a string", P("restaurants", 0, "name"), 5, ErrValidationFailed},
		{"negative price", item.Child(Key("price")), -1, ErrValidationFailed},
		{"sub-cent price", item.Child(Key("price")), 1.234, ErrValidationFailed},
		{"reward not a bool", item.Child(Key("rewardEligible")), "yes", ErrValidationFailed},
		{"dietary not a string", item.Child(Key("dietary"), Index(0)), 3, ErrValidationFailed},
		{"null value", P("restaurants", 0, "name"), nil, ErrValidationFailed},
		{"null price", item.Child(Key("price")), nil, ErrValidationFailed},
		{"item with null fields", item, map[string]any{"name": nil, "price": nil, "rewardEligible": nil}, ErrValidationFailed},
		{"item with null price", item, map[string]any{"name": "x", "price": nil, "rewardEligible": true}, ErrValidationFailed},
		{"restaurant with null name", P("restaurants", 0), map[string]any{"name": nil}, ErrValidationFailed},
		{"missing index", P("restaurants", 4, "name"), "x", ErrPathNotFound},
		{"missing element", P("restaurants", 1), map[string]any{"name": "x"}, ErrPathNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e, _ := newTestEngine(t, fixture("Pizza"))
			before := fetch(t, e)

			err := e.Update(context.Background(), tt.path, tt.value)
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.kind)
			assert.Equal(t, tt.kind, Kind(err))

			after := fetch(t, e)
			assert.Equal(t, before, after)
		})
	}
}

func TestUpdateMissingPathOnEmptyDocument(t *testing.T) {
	e, _ := newTestEngine(t, models.NewDocument())
	err := e.Update(context.Background(), P("restaurants", 0, "menus", 0, "name"), "Lunch")
	assert.ErrorIs(t, err, ErrPathNotFound)

	snap := fetch(t, e)
	assert.Empty(t, snap.Document.Restaurants)
	assert.Zero(t, snap.Revision)
}

func TestAddAppendsDefaultSkeleton(t *testing.T) {
	levels := []struct {
		level Level
		path  Path
	}{
		{LevelRestaurant, P("restaurants")},
		{LevelMenu, P("restaurants", 0, "menus")},
		{LevelCategory, P("restaurants", 0, "menus", 0, "categories")},
		{LevelItem, itemsPath()},
		{LevelDietary, itemsPath().Child(Index(0), Key("dietary"))},
	}
	for _, tt := range levels {
		t.Run(tt.level.String(), func(t *testing.T) {
			e, _ := newTestEngine(t, fixture("Pizza"))
			before, ok := valueAt(t, e, tt.path).([]any)
			require.True(t, ok)

			var value any
			if tt.level == LevelDietary {
				value = "gluten-free"
			} else {
				value = WithDefaults(tt.level, map[string]any{"name": "new"})
			}
			index, err := e.Add(context.Background(), tt.path, value)
			require.NoError(t, err)
			assert.Equal(t, len(before), index)

			after := valueAt(t, e, tt.path).([]any)
			assert.Len(t, after, len(before)+1)

			want, err := toTree(value)
			require.NoError(t, err)
			// the first generated id goes to the skeleton's item
			if tt.level != LevelDietary {
				assignIDs(tt.level, want, sequentialIDs(), true)
			}
			assert.Equal(t, want, after[index])
		})
	}
}

func TestAddRestaurantToEmptyDocument(t *testing.T) {
	e, _ := newTestEngine(t, models.NewDocument())

	_, err := e.Add(context.Background(), P("restaurants"), DefaultValue(LevelRestaurant))
	require.NoError(t, err)

	snap := fetch(t, e)
	require.Len(t, snap.Document.Restaurants, 1)
	r := snap.Document.Restaurants[0]
	require.Len(t, r.Menus, 1)
	require.Len(t, r.Menus[0].Categories, 1)
	require.Len(t, r.Menus[0].Categories[0].Items, 1)
	item := r.Menus[0].Categories[0].Items[0]
	assert.Equal(t, models.Price(0), item.Price)
	assert.Equal(t, "gen-1", item.ID)
	assert.NotNil(t, item.Dietary)

	raw, err := json.Marshal(snap.Document)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"price":0.00`)
	assert.Contains(t, string(raw), `"dietary":[]`)
}

func TestAddReplacesSuppliedItemIDs(t *testing.T) {
	e, _ := newTestEngine(t, fixture("Pizza"))
	value := WithDefaults(LevelItem, map[string]any{"id": "id-Pizza", "name": "Soup"})
	_, err := e.Add(context.Background(), itemsPath(), value)
	require.NoError(t, err)

	assert.Equal(t, "id-Pizza", valueAt(t, e, itemsPath().Child(Index(0), Key("id"))))
	assert.Equal(t, "gen-1", valueAt(t, e, itemsPath().Child(Index(1), Key("id"))))

	doc := fetch(t, e).Document
	p, ok := LocateItem(doc, "id-Pizza")
	require.True(t, ok)
	assert.True(t, itemsPath().Child(Index(0)).Equal(p))
	p, ok = LocateItem(doc, "gen-1")
	require.True(t, ok)
	assert.True(t, itemsPath().Child(Index(1)).Equal(p))
}

func TestAddReplacesNestedItemIDs(t *testing.T) {
	e, _ := newTestEngine(t, fixture("Pizza"))
	value := WithDefaults(LevelCategory, map[string]any{
		"name":  "Sides",
		"items": []any{WithDefaults(LevelItem, map[string]any{"id": "id-Pizza", "name": "Chips"})},
	})
	_, err := e.Add(context.Background(), P("restaurants", 0, "menus", 0, "categories"), value)
	require.NoError(t, err)

	got := valueAt(t, e, P("restaurants", 0, "menus", 0, "categories", 1, "items", 0, "id"))
	assert.Equal(t, "gen-1", got)
}

func TestAddAcceptsEmptyNestedArrays(t *testing.T) {
	e, _ := newTestEngine(t, models.NewDocument())
	_, err := e.Add(context.Background(), P("restaurants"), map[string]any{"name": "Bare", "menus": []any{}})
	require.NoError(t, err)
	assert.Equal(t, []any{}, valueAt(t, e, P("restaurants", 0, "menus")))
}

func TestAddRejections(t *testing.T) {
	item := itemsPath().Child(Index(0))
	tests := []struct {
		name  string
		path  Path
		value any
		kind  error
	}{
		{"to a price", item.Child(Key("price")), 1.0, ErrInvalidTarget},
		{"to a name", P("restaurants", 0, "name"), "x", ErrInvalidTarget},
		{"to an element", item, DefaultValue(LevelItem), ErrInvalidTarget},
		{"to a missing array", P("restaurants", 3, "menus"), DefaultValue(LevelMenu), ErrPathNotFound},
		{"item without dietary", itemsPath(), map[string]any{"name": "x", "price": 1.0, "rewardEligible": false}, ErrValidationFailed},
		{"restaurant without menus", P("restaurants"), map[string]any{"name": "x"}, ErrValidationFailed},
		{"unknown key", itemsPath(), WithDefaults(LevelItem, map[string]any{"colour": "red"}), ErrValidationFailed},
		{"negative price", itemsPath(), WithDefaults(LevelItem, map[string]any{"price": -2.0}), ErrValidationFailed},
		{"menu with bad item", P("restaurants", 0, "menus"), map[string]any{
			"name": "x",
			"categories": []any{map[string]any{
				"name":  "y",
				"items": []any{map[string]any{"name": "z"}},
			}},
		}, ErrValidationFailed},
		{"dietary record", item.Child(Key("dietary")), map[string]any{"tag": "x"}, ErrValidationFailed},
		{"null value", itemsPath(), nil, ErrValidationFailed},
		{"item with null fields", itemsPath(), map[string]any{
			"name": nil, "price": nil, "dietary": []any{}, "rewardEligible": nil,
		}, ErrValidationFailed},
		{"item with null dietary", itemsPath(), map[string]any{
			"name": "x", "price": 1.0, "dietary": nil, "rewardEligible": false,
		}, ErrValidationFailed},
		{"null dietary tag", item.Child(Key("dietary")), nil, ErrValidationFailed},
		{"restaurant with null item fields", P("restaurants"), map[string]any{
			"name": "R",
			"menus": []any{map[string]any{
				"name": "M",
				"categories": []any{map[string]any{
					"name":  "C",
					"items": []any{map[string]any{"name": nil, "price": nil, "dietary": []any{}, "rewardEligible": nil}},
				}},
			}},
		}, ErrValidationFailed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e, _ := newTestEngine(t, fixture("Pizza"))
			before := fetch(t, e)

			_, err := e.Add(context.Background(), tt.path, tt.value)
			assert.ErrorIs(t, err, tt.kind)
			assert.Equal(t, before, fetch(t, e))
		})
	}
}

func TestDeleteScenario(t *testing.T) {
	e, _ := newTestEngine(t, fixture("Pizza", "Pasta"))
	require.NoError(t, e.Delete(context.Background(), itemsPath().Child(Index(0))))
	assert.Equal(t, []string{"Pasta"}, itemNames(t, e))
}

func TestDeleteShiftsLaterIndices(t *testing.T) {
	names := []string{"a", "b", "c", "d", "e"}
	for i := range names {
		t.Run(fmt.Sprintf("delete %d", i), func(t *testing.T) {
			e, _ := newTestEngine(t, fixture(names...))
			require.NoError(t, e.Delete(context.Background(), itemsPath().Child(Index(i))))

			got := itemNames(t, e)
			require.Len(t, got, len(names)-1)
			for j := i + 1; j < len(names); j++ {
				assert.Equal(t, names[j], got[j-1])
			}
			for j := 0; j < i; j++ {
				assert.Equal(t, names[j], got[j])
			}
		})
	}
}

func TestDeleteRejections(t *testing.T) {
	item := itemsPath().Child(Index(0))
	tests := []struct {
		name string
		path Path
		kind error
	}{
		{"record field", item.Child(Key("name")), ErrInvalidTarget},
		{"container field", P("restaurants", 0, "menus"), ErrInvalidTarget},
		{"out of range", itemsPath().Child(Index(7)), ErrPathNotFound},
		{"missing parent", P("restaurants", 2, "menus", 0), ErrPathNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e, _ := newTestEngine(t, fixture("Pizza"))
			before := fetch(t, e)
			err := e.Delete(context.Background(), tt.path)
			assert.ErrorIs(t, err, tt.kind)
			assert.Equal(t, before, fetch(t, e))
		})
	}
}

func TestMutationErrorCarriesContext(t *testing.T) {
	e, _ := newTestEngine(t, fixture())
	path := P("restaurants", 0, "menus", 0, "categories", 0, "items", 0, "price")
	_, err := e.Add(context.Background(), path, 1.0)

	var mErr *MutationError
	require.True(t, errors.As(err, &mErr))
	assert.Equal(t, OpAdd, mErr.Op)
	// items[0] does not exist in an empty category
	assert.Equal(t, ErrPathNotFound, mErr.Kind)
	assert.True(t, path.Equal(mErr.Path))
	assert.Contains(t, err.Error(), "add restaurants[0].menus[0]")
}

func TestExpectedRevision(t *testing.T) {
	e, _ := newTestEngine(t, fixture("Pizza"))
	ctx := context.Background()
	path := P("restaurants", 0, "name")

	res, err := e.Apply(ctx, Mutation{Op: OpUpdate, Path: path, Value: "B"})
	require.NoError(t, err)
	assert.Equal(t, int64(1), res.Revision)

	res, err = e.Apply(ctx, Mutation{Op: OpUpdate, Path: path, Value: "C", CheckRevision: true, ExpectedRevision: 1})
	require.NoError(t, err)
	assert.Equal(t, int64(2), res.Revision)

	_, err = e.Apply(ctx, Mutation{Op: OpUpdate, Path: path, Value: "D", CheckRevision: true, ExpectedRevision: 1})
	assert.ErrorIs(t, err, ErrRevisionConflict)
	assert.Equal(t, "C", valueAt(t, e, path))

	// revision 0 is checked too once asked for
	_, err = e.Apply(ctx, Mutation{Op: OpUpdate, Path: path, Value: "E", CheckRevision: true})
	assert.ErrorIs(t, err, ErrRevisionConflict)
}

// racingStore lets another writer in between Load and Save.
type racingStore struct {
	*memory.DocumentRepository
	once sync.Once
}

func (s *racingStore) Save(ctx context.Context, doc *models.Document, expected int64) (int64, error) {
	s.once.Do(func() {
		_, _ = s.DocumentRepository.Save(ctx, doc, expected)
	})
	return s.DocumentRepository.Save(ctx, doc, expected)
}

func TestConcurrentWriteIsAConflict(t *testing.T) {
	store := &racingStore{DocumentRepository: memory.NewDocumentRepository(fixture("Pizza"))}
	e := NewEngine(store)

	err := e.Update(context.Background(), P("restaurants", 0, "name"), "B")
	assert.ErrorIs(t, err, ErrRevisionConflict)
	assert.ErrorIs(t, err, repositories.ErrStaleRevision)
}

type brokenStore struct {
	loadErr, saveErr error
}

func (s brokenStore) Load(context.Context) (*models.Snapshot, error) {
	if s.loadErr != nil {
		return nil, s.loadErr
	}
	return &models.Snapshot{Document: fixture("Pizza")}, nil
}

func (s brokenStore) Save(context.Context, *models.Document, int64) (int64, error) {
	return 0, s.saveErr
}

func TestPersistenceFailures(t *testing.T) {
	unavailable := fmt.Errorf("%w: disk gone", repositories.ErrStoreUnavailable)

	t.Run("load", func(t *testing.T) {
		e := NewEngine(brokenStore{loadErr: unavailable})
		err := e.Update(context.Background(), P("restaurants", 0, "name"), "B")
		assert.ErrorIs(t, err, ErrPersistenceFailed)
		assert.ErrorIs(t, err, repositories.ErrStoreUnavailable)

		_, err = e.Fetch(context.Background())
		assert.ErrorIs(t, err, ErrPersistenceFailed)
	})

	t.Run("save", func(t *testing.T) {
		e := NewEngine(brokenStore{saveErr: unavailable})
		err := e.Delete(context.Background(), itemsPath().Child(Index(0)))
		assert.ErrorIs(t, err, ErrPersistenceFailed)
		assert.Equal(t, ErrPersistenceFailed, Kind(err))
	})
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []events.ChangeEvent
	err    error
}

func (p *recordingPublisher) Publish(_ context.Context, ev events.ChangeEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
	return p.err
}

func (p *recordingPublisher) Close() error { return nil }

func TestChangeEvents(t *testing.T) {
	pub := &recordingPublisher{}
	e, _ := newTestEngine(t, fixture("Pizza"), WithPublisher(pub))
	ctx := context.Background()

	require.NoError(t, e.Update(ctx, P("restaurants", 0, "name"), "B"))
	_, err := e.Add(ctx, P("restaurants", 0, "name"), "x")
	require.Error(t, err)
	require.NoError(t, e.Delete(ctx, itemsPath().Child(Index(0))))

	require.Len(t, pub.events, 2)
	assert.Equal(t, "update", pub.events[0].Op)
	assert.Equal(t, int64(1), pub.events[0].Revision)
	assert.JSONEq(t, `["restaurants", 0, "name"]`, string(pub.events[0].Path))
	assert.Equal(t, "delete", pub.events[1].Op)
	assert.Equal(t, int64(2), pub.events[1].Revision)
}

func TestPublishFailureDoesNotFailMutation(t *testing.T) {
	pub := &recordingPublisher{err: errors.New("broker down")}
	e, _ := newTestEngine(t, fixture("Pizza"), WithPublisher(pub))

	require.NoError(t, e.Update(context.Background(), P("restaurants", 0, "name"), "B"))
	assert.Equal(t, "B", valueAt(t, e, P("restaurants", 0, "name")))
}

func TestItemsWithoutIDsGetOne(t *testing.T) {
	doc := fixture("Pizza")
	doc.Restaurants[0].Menus[0].Categories[0].Items[0].ID = ""
	e, _ := newTestEngine(t, doc)

	require.NoError(t, e.Update(context.Background(), P("restaurants", 0, "name"), "B"))
	assert.Equal(t, "gen-1", valueAt(t, e, itemsPath().Child(Index(0), Key("id"))))
}

func TestLocateItemFollowsShifts(t *testing.T) {
	e, _ := newTestEngine(t, fixture("a", "b", "c"))
	p, ok := LocateItem(fetch(t, e).Document, "id-c")
	require.True(t, ok)
	assert.True(t, itemsPath().Child(Index(2)).Equal(p))

	require.NoError(t, e.Delete(context.Background(), itemsPath().Child(Index(0))))
	p, ok = LocateItem(fetch(t, e).Document, "id-c")
	require.True(t, ok)
	assert.True(t, itemsPath().Child(Index(1)).Equal(p))

	_, ok = LocateItem(fetch(t, e).Document, "id-a")
	assert.False(t, ok)
}
