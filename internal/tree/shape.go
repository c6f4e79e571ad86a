package tree

import (
	"encoding/json"
	"fmt"

	"github.com/chrisdamba/menumanager/internal/models"
	"github.com/go-playground/validator/v10"
	"github.com/mitchellh/mapstructure"
)

// Level is one of the entity levels of the document.
type Level int

const (
	LevelDocument Level = iota
	LevelRestaurant
	LevelMenu
	LevelCategory
	LevelItem
	LevelDietary
)

func (l Level) String() string {
	switch l {
	case LevelDocument:
		return "document"
	case LevelRestaurant:
		return "restaurant"
	case LevelMenu:
		return "menu"
	case LevelCategory:
		return "category"
	case LevelItem:
		return "item"
	case LevelDietary:
		return "dietary requirement"
	}
	return "unknown"
}

var containerLevels = map[string]Level{
	models.FieldRestaurants: LevelRestaurant,
	models.FieldMenus:       LevelMenu,
	models.FieldCategories:  LevelCategory,
	models.FieldItems:       LevelItem,
	models.FieldDietary:     LevelDietary,
}

// ElementLevel returns the level of the elements held by a container field.
func ElementLevel(field string) (Level, bool) {
	l, ok := containerLevels[field]
	return l, ok
}

// ContainerField is the inverse of ElementLevel.
func ContainerField(l Level) string {
	for f, cl := range containerLevels {
		if cl == l {
			return f
		}
	}
	return ""
}

type targetKind int

const (
	targetElement targetKind = iota
	targetContainer
	targetField
)

// target describes what a path's terminal segment addresses.
type target struct {
	kind  targetKind
	level Level // element level, or level of the record owning a field
	field string
}

func classify(p Path) (target, bool) {
	last := p.Last()
	if last.IsIndex() {
		if len(p) < 2 || p[len(p)-2].IsIndex() {
			return target{}, false
		}
		l, ok := ElementLevel(p[len(p)-2].Key())
		return target{kind: targetElement, level: l}, ok
	}
	if l, ok := ElementLevel(last.Key()); ok {
		return target{kind: targetContainer, level: l, field: last.Key()}, true
	}
	owner := LevelDocument
	if len(p) >= 3 && p[len(p)-2].IsIndex() {
		l, ok := ElementLevel(p[len(p)-3].Key())
		if !ok {
			return target{}, false
		}
		owner = l
	}
	return target{kind: targetField, level: owner, field: last.Key()}, true
}

// DefaultValue returns the empty skeleton appended by the editor for a level.
// Restaurants, menus and categories come with one nested child so the tree
// can be rendered all the way down to an item.
func DefaultValue(l Level) any {
	item := func() map[string]any {
		return map[string]any{
			models.FieldName:           "",
			models.FieldPrice:          0.0,
			models.FieldDietary:        []any{},
			models.FieldRewardEligible: false,
		}
	}
	category := func() map[string]any {
		return map[string]any{models.FieldName: "", models.FieldItems: []any{item()}}
	}
	menu := func() map[string]any {
		return map[string]any{models.FieldName: "", models.FieldCategories: []any{category()}}
	}
	switch l {
	case LevelRestaurant:
		return map[string]any{models.FieldName: "", models.FieldMenus: []any{menu()}}
	case LevelMenu:
		return menu()
	case LevelCategory:
		return category()
	case LevelItem:
		return item()
	case LevelDietary:
		return ""
	}
	return nil
}

// WithDefaults overlays overrides on top of the level's default skeleton.
// Scalars and whole arrays in overrides replace the default; nested records
// are merged key by key.
func WithDefaults(l Level, overrides map[string]any) any {
	base, ok := DefaultValue(l).(map[string]any)
	if !ok {
		return DefaultValue(l)
	}
	return mergeRecords(base, overrides)
}

func mergeRecords(base, over map[string]any) map[string]any {
	for k, v := range over {
		if bm, ok := base[k].(map[string]any); ok {
			if om, ok := v.(map[string]any); ok {
				base[k] = mergeRecords(bm, om)
				continue
			}
		}
		base[k] = v
	}
	return base
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	_ = v.RegisterValidation("cents", func(fl validator.FieldLevel) bool {
		return models.Price(fl.Field().Float()).HasCents()
	})
	return v
}

// decode copies a JSON-shaped value into out. With strict set, keys unknown to
// out and fields of out missing from the input are both errors.
func decode(input, out any, strict bool) error {
	if err := rejectNulls(input, "value"); err != nil {
		return err
	}
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:      out,
		ErrorUnused: strict,
		ErrorUnset:  true,
		TagName:     "mapstructure",
	})
	if err != nil {
		return err
	}
	return dec.Decode(input)
}

// rejectNulls fails on the first null found in v. mapstructure treats a null
// field as set and leaves the zero value behind, so nulls never reach it.
func rejectNulls(v any, at string) error {
	switch x := v.(type) {
	case nil:
		return fmt.Errorf("%s is null", at)
	case map[string]any:
		for k, child := range x {
			if err := rejectNulls(child, k); err != nil {
				return err
			}
		}
	case []any:
		for i, child := range x {
			if err := rejectNulls(child, fmt.Sprintf("%s[%d]", at, i)); err != nil {
				return err
			}
		}
	}
	return nil
}

// toTree converts a typed value into its JSON shape.
func toTree(v any) (any, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var out any
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// checkElement validates a complete element of level l and returns its
// normalized JSON shape.
func checkElement(l Level, value any) (any, error) {
	var typed any
	switch l {
	case LevelRestaurant:
		typed = &models.Restaurant{}
	case LevelMenu:
		typed = &models.Menu{}
	case LevelCategory:
		typed = &models.Category{}
	case LevelItem:
		typed = &models.Item{}
	case LevelDietary:
		var tag string
		if err := decode(value, &tag, true); err != nil {
			return nil, fmt.Errorf("%w: dietary requirement must be a string: %v", ErrValidationFailed, err)
		}
		return tag, nil
	default:
		return nil, fmt.Errorf("%w: %s elements cannot be added", ErrInvalidTarget, l)
	}
	if err := decode(value, typed, true); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrValidationFailed, l, err)
	}
	if err := validate.Struct(typed); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrValidationFailed, l, err)
	}
	return toTree(typed)
}

// checkScalar validates a bare value written to a named field of a record at
// level owner.
func checkScalar(owner Level, field string, value any) (any, error) {
	switch field {
	case models.FieldName:
		if owner == LevelDocument {
			break
		}
		var name string
		if err := decode(value, &name, true); err != nil {
			return nil, fmt.Errorf("%w: name must be a string", ErrValidationFailed)
		}
		return name, nil
	case models.FieldPrice:
		if owner != LevelItem {
			break
		}
		return checkPrice(value)
	case models.FieldRewardEligible:
		if owner != LevelItem {
			break
		}
		var eligible bool
		if err := decode(value, &eligible, true); err != nil {
			return nil, fmt.Errorf("%w: rewardEligible must be a boolean", ErrValidationFailed)
		}
		return eligible, nil
	case models.FieldID:
		return nil, fmt.Errorf("%w: item ids are immutable", ErrInvalidTarget)
	}
	return nil, fmt.Errorf("%w: %s of a %s cannot be updated", ErrInvalidTarget, field, owner)
}

func checkPrice(value any) (float64, error) {
	var p models.Price
	if err := decode(value, &p, true); err != nil {
		return 0, fmt.Errorf("%w: price must be a number", ErrValidationFailed)
	}
	if p < 0 {
		return 0, fmt.Errorf("%w: price must not be negative", ErrValidationFailed)
	}
	if !p.HasCents() {
		return 0, fmt.Errorf("%w: price %v has more than two decimals", ErrValidationFailed, float64(p))
	}
	return float64(p.Round()), nil
}

// mergeElement applies an element-level update to the existing record. Items
// take name, price and rewardEligible together; the other record levels take
// name only. Extra keys in value are ignored.
func mergeElement(l Level, existing, value any) (any, error) {
	if l == LevelDietary {
		return checkElement(LevelDietary, value)
	}
	rec, ok := existing.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("%w: %s is not a record", ErrInvalidTarget, l)
	}
	out := make(map[string]any, len(rec))
	for k, v := range rec {
		out[k] = v
	}

	if l == LevelItem {
		var fields models.ItemFields
		if err := decode(value, &fields, false); err != nil {
			return nil, fmt.Errorf("%w: item update needs name, price and rewardEligible: %v", ErrValidationFailed, err)
		}
		if err := validate.Struct(&fields); err != nil {
			return nil, fmt.Errorf("%w: item: %v", ErrValidationFailed, err)
		}
		out[models.FieldName] = fields.Name
		out[models.FieldPrice] = float64(fields.Price.Round())
		out[models.FieldRewardEligible] = fields.RewardEligible
		return out, nil
	}

	var fields models.NamedFields
	if err := decode(value, &fields, false); err != nil {
		return nil, fmt.Errorf("%w: %s update needs a name: %v", ErrValidationFailed, l, err)
	}
	out[models.FieldName] = fields.Name
	return out, nil
}

// decodeDocument turns a working tree back into a validated Document.
func decodeDocument(root any) (*models.Document, error) {
	doc := &models.Document{}
	if err := decode(root, doc, true); err != nil {
		return nil, fmt.Errorf("%w: document: %v", ErrValidationFailed, err)
	}
	if err := validate.Struct(doc); err != nil {
		return nil, fmt.Errorf("%w: document: %v", ErrValidationFailed, err)
	}
	return doc, nil
}
