package tree

import (
	"github.com/chrisdamba/menumanager/internal/models"
	"github.com/lucsky/cuid"
)

func generateID() string {
	return cuid.New()
}

// childField maps a record level to the container field holding its children.
var childField = map[Level]string{
	LevelDocument:   models.FieldRestaurants,
	LevelRestaurant: models.FieldMenus,
	LevelMenu:       models.FieldCategories,
	LevelCategory:   models.FieldItems,
}

// assignIDs gives every item under value that lacks an id a fresh one. With
// overwrite set, every item gets a fresh id, so added items never reuse an id
// already in the document. value is the JSON shape of an element of level l.
// Malformed shapes are left for validation to reject.
func assignIDs(l Level, value any, newID func() string, overwrite bool) {
	rec, ok := value.(map[string]any)
	if !ok {
		return
	}
	if l == LevelItem {
		if id, _ := rec[models.FieldID].(string); id == "" || overwrite {
			rec[models.FieldID] = newID()
		}
		return
	}
	field, ok := childField[l]
	if !ok {
		return
	}
	children, _ := rec[field].([]any)
	for _, child := range children {
		assignIDs(l+1, child, newID, overwrite)
	}
}

// LocateItem translates a stable item id into the item's current path.
func LocateItem(doc *models.Document, id string) (Path, bool) {
	for ri, r := range doc.Restaurants {
		for mi, m := range r.Menus {
			for ci, c := range m.Categories {
				for ii, it := range c.Items {
					if it.ID == id {
						return P(models.FieldRestaurants, ri, models.FieldMenus, mi,
							models.FieldCategories, ci, models.FieldItems, ii), true
					}
				}
			}
		}
	}
	return nil, false
}
