package tree

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/chrisdamba/menumanager/internal/models"
	"github.com/ohler55/ojg/jp"
)

var (
	ErrInvalidQuery = errors.New("invalid search parameters")
	ErrNoResults    = errors.New("no results found")
)

// SearchQuery mirrors the search endpoint's query string. Exactly one mode may
// be used: Area+Name (with Option), RewardEligible, Dietary or ID.
type SearchQuery struct {
	Area           string `form:"area"`
	Option         string `form:"option"`
	Name           string `form:"name"`
	RewardEligible string `form:"reward_eligible"`
	Dietary        string `form:"dietary_requirements"`
	ID             string `form:"id"`
}

const (
	SearchByName     = "name"
	SearchByContains = "contains"
	searchWildcard   = "*"
)

var areaSelectors = map[string]jp.Expr{
	models.FieldRestaurants: jp.MustParseString("$.restaurants[*]"),
	models.FieldMenus:       jp.MustParseString("$.restaurants[*].menus[*]"),
	models.FieldCategories:  jp.MustParseString("$.restaurants[*].menus[*].categories[*]"),
	models.FieldItems:       jp.MustParseString("$.restaurants[*].menus[*].categories[*].items[*]"),
}

// Search returns the records of doc matching q in document order.
func Search(doc *models.Document, q SearchQuery) ([]any, error) {
	root, err := toTree(doc)
	if err != nil {
		return nil, err
	}
	items := areaSelectors[models.FieldItems].Get(root)

	var result []any
	switch {
	case q.Area != "" && q.Name != "" && q.RewardEligible == "":
		sel, ok := areaSelectors[q.Area]
		if !ok {
			return nil, fmt.Errorf("%w (area)", ErrInvalidQuery)
		}
		var match func(any) bool
		switch q.Option {
		case SearchByName:
			needle := strings.ToLower(q.Name)
			match = func(v any) bool {
				if q.Name == searchWildcard {
					return true
				}
				name, _ := field(v, models.FieldName).(string)
				return strings.Contains(strings.ToLower(name), needle)
			}
		case SearchByContains:
			match = func(v any) bool { return containsValue(v, q.Name) }
		default:
			return nil, fmt.Errorf("%w (option)", ErrInvalidQuery)
		}
		result = filter(sel.Get(root), match)

	case q.RewardEligible != "" && q.Area == "" && q.Option == "" && q.Name == "" && q.Dietary == "" && q.ID == "":
		want, err := strconv.ParseBool(q.RewardEligible)
		if err != nil {
			return nil, fmt.Errorf("%w (reward_eligible)", ErrInvalidQuery)
		}
		result = filter(items, func(v any) bool {
			eligible, _ := field(v, models.FieldRewardEligible).(bool)
			return eligible == want
		})

	case q.Dietary != "" && q.Area == "" && q.Option == "" && q.Name == "" && q.RewardEligible == "" && q.ID == "":
		result = filter(items, func(v any) bool {
			tags, _ := field(v, models.FieldDietary).([]any)
			if q.Dietary == searchWildcard {
				return len(tags) > 0
			}
			for _, tag := range tags {
				if tag == q.Dietary {
					return true
				}
			}
			return false
		})

	case q.ID != "" && q.Area == "" && q.Option == "" && q.Name == "" && q.RewardEligible == "" && q.Dietary == "":
		result = filter(items, func(v any) bool {
			return q.ID == searchWildcard || field(v, models.FieldID) == q.ID
		})

	default:
		return nil, ErrInvalidQuery
	}

	if len(result) == 0 {
		return nil, ErrNoResults
	}
	return result, nil
}

func filter(values []any, match func(any) bool) []any {
	var out []any
	for _, v := range values {
		if match(v) {
			out = append(out, v)
		}
	}
	return out
}

func field(v any, name string) any {
	rec, _ := v.(map[string]any)
	return rec[name]
}

// containsValue reports whether any scalar leaf under v equals needle. Numbers
// compare in their two-decimal form and booleans as "true"/"false".
func containsValue(v any, needle string) bool {
	switch x := v.(type) {
	case map[string]any:
		for _, child := range x {
			if containsValue(child, needle) {
				return true
			}
		}
	case []any:
		for _, child := range x {
			if containsValue(child, needle) {
				return true
			}
		}
	case string:
		return x == needle
	case float64:
		return strconv.FormatFloat(x, 'f', 2, 64) == needle
	case bool:
		return strconv.FormatBool(x) == needle
	}
	return false
}
