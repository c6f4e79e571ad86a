package dirty

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/chrisdamba/menumanager/internal/models"
	"github.com/chrisdamba/menumanager/internal/tree"
)

// FieldID names one editable field by kind and index path, for example
// "item-price-0-1-0-2". It is only meaningful for the document it was derived
// from: any structural change renumbers the ids below it.
type FieldID string

const (
	KindRestaurant = "restaurant"
	KindMenu       = "menu"
	KindCategory   = "category"
	KindItemName   = "item-name"
	KindItemPrice  = "item-price"
	KindItemReward = "item-reward"
	KindDietary    = "item-dietary"
)

// containerPath lists the container fields from the document root down.
var containerPath = []string{
	models.FieldRestaurants,
	models.FieldMenus,
	models.FieldCategories,
	models.FieldItems,
	models.FieldDietary,
}

var itemFieldKinds = map[string]string{
	models.FieldName:           KindItemName,
	models.FieldPrice:          KindItemPrice,
	models.FieldRewardEligible: KindItemReward,
}

// FieldIDFor derives the id of the field addressed by p. Only paths of
// editable leaves (names, item price and reward flag, dietary entries) have
// one.
func FieldIDFor(p tree.Path) (FieldID, bool) {
	var indices []int
	var fields []string
	for i, seg := range p {
		if i%2 == 0 {
			if seg.IsIndex() {
				return "", false
			}
			fields = append(fields, seg.Key())
			continue
		}
		if !seg.IsIndex() {
			fields = append(fields, seg.Key())
			break
		}
		indices = append(indices, seg.Index())
	}
	if len(fields) == 0 || (len(fields) != len(indices)+1 && len(fields) != len(indices)) {
		return "", false
	}
	if len(indices) > len(containerPath) {
		return "", false
	}
	for i, f := range fields[:len(indices)] {
		if f != containerPath[i] {
			return "", false
		}
	}

	var kind string
	switch {
	case len(indices) == 5 && len(fields) == 5:
		kind = KindDietary
	case len(fields) == len(indices)+1 && len(indices) == 4:
		kind = itemFieldKinds[fields[4]]
	case len(fields) == len(indices)+1 && fields[len(indices)] == models.FieldName:
		kind = map[int]string{1: KindRestaurant, 2: KindMenu, 3: KindCategory}[len(indices)]
	}
	if kind == "" {
		return "", false
	}
	return newFieldID(kind, indices), true
}

func newFieldID(kind string, indices []int) FieldID {
	parts := []string{kind}
	for _, i := range indices {
		parts = append(parts, strconv.Itoa(i))
	}
	return FieldID(strings.Join(parts, "-"))
}

// Path is the inverse of FieldIDFor.
func (id FieldID) Path() (tree.Path, error) {
	s := string(id)
	kinds := []string{KindItemName, KindItemPrice, KindItemReward, KindDietary, KindRestaurant, KindMenu, KindCategory}
	for _, kind := range kinds {
		rest, ok := strings.CutPrefix(s, kind+"-")
		if !ok {
			continue
		}
		var indices []int
		for _, part := range strings.Split(rest, "-") {
			n, err := strconv.Atoi(part)
			if err != nil || n < 0 {
				return nil, fmt.Errorf("malformed field id %q", s)
			}
			indices = append(indices, n)
		}
		return pathOf(kind, indices, s)
	}
	return nil, fmt.Errorf("unknown field id %q", s)
}

func pathOf(kind string, indices []int, raw string) (tree.Path, error) {
	depth := map[string]int{
		KindRestaurant: 1, KindMenu: 2, KindCategory: 3,
		KindItemName: 4, KindItemPrice: 4, KindItemReward: 4, KindDietary: 5,
	}[kind]
	if len(indices) != depth {
		return nil, fmt.Errorf("field id %q needs %d indices", raw, depth)
	}
	var parts []any
	for i, n := range indices {
		parts = append(parts, containerPath[i], n)
	}
	switch kind {
	case KindItemPrice:
		parts = append(parts, models.FieldPrice)
	case KindItemReward:
		parts = append(parts, models.FieldRewardEligible)
	case KindDietary:
	default:
		parts = append(parts, models.FieldName)
	}
	return tree.P(parts...), nil
}

func (id FieldID) isPrice() bool {
	return strings.HasPrefix(string(id), KindItemPrice+"-")
}

// Normalize renders a field value in the form used for comparison. Booleans
// become "true"/"false" and numbers carry two decimals.
func Normalize(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case bool:
		return strconv.FormatBool(x)
	case models.Price:
		return x.String()
	case float64:
		return models.Price(x).String()
	case float32:
		return models.Price(x).String()
	case int:
		return models.Price(x).String()
	case int64:
		return models.Price(x).String()
	case json.Number:
		if f, err := x.Float64(); err == nil {
			return models.Price(f).String()
		}
		return x.String()
	}
	return fmt.Sprint(v)
}

func normalizeField(id FieldID, v any) string {
	if s, ok := v.(string); ok && id.isPrice() {
		if f, err := strconv.ParseFloat(strings.TrimSpace(s), 64); err == nil {
			return models.Price(f).String()
		}
	}
	return Normalize(v)
}

// Tracker records, per field, the value the field had when it was first
// changed and whether its live value still differs from it. Dirtiness is a
// display hint; nothing in the mutation path consults it.
type Tracker struct {
	mu       sync.Mutex
	original map[FieldID]string
	dirty    map[FieldID]bool
}

func NewTracker() *Tracker {
	return &Tracker{
		original: make(map[FieldID]string),
		dirty:    make(map[FieldID]bool),
	}
}

// Change records a change event for id. original is the value the field was
// rendered with and is captured only on the field's first change; live is
// its current value. Change reports whether the field is now dirty.
func (t *Tracker) Change(id FieldID, original, live any) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	orig, seen := t.original[id]
	if !seen {
		orig = normalizeField(id, original)
		t.original[id] = orig
	}
	isDirty := normalizeField(id, live) != orig
	if isDirty {
		t.dirty[id] = true
	} else {
		delete(t.dirty, id)
	}
	return isDirty
}

// Original returns the captured original of id, if any.
func (t *Tracker) Original(id FieldID) (string, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	v, ok := t.original[id]
	return v, ok
}

func (t *Tracker) IsDirty(id FieldID) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.dirty[id]
}

// Dirty lists the dirty fields in lexical order.
func (t *Tracker) Dirty() []FieldID {
	t.mu.Lock()
	defer t.mu.Unlock()
	ids := make([]FieldID, 0, len(t.dirty))
	for id := range t.dirty {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// Reset forgets every captured original. It must run after each successful
// mutation, since field ids are positional.
func (t *Tracker) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.original = make(map[FieldID]string)
	t.dirty = make(map[FieldID]bool)
}
