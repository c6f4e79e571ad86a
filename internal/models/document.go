package models

// Document is the whole menu tree. It is always loaded and saved as one unit.
type Document struct {
	Restaurants []Restaurant `json:"restaurants" mapstructure:"restaurants" validate:"required,dive"`
}

// Snapshot pairs a document with the store revision it was read at.
type Snapshot struct {
	Document *Document
	Revision int64
}

func NewDocument() *Document {
	return &Document{Restaurants: []Restaurant{}}
}

// Clone returns a deep copy. Nil containers come back as empty slices.
func (d *Document) Clone() *Document {
	out := &Document{Restaurants: make([]Restaurant, len(d.Restaurants))}
	for ri, r := range d.Restaurants {
		nr := Restaurant{Name: r.Name, Menus: make([]Menu, len(r.Menus))}
		for mi, m := range r.Menus {
			nm := Menu{Name: m.Name, Categories: make([]Category, len(m.Categories))}
			for ci, c := range m.Categories {
				nc := Category{Name: c.Name, Items: make([]Item, len(c.Items))}
				for ii, it := range c.Items {
					it.Dietary = append(make([]string, 0, len(it.Dietary)), it.Dietary...)
					nc.Items[ii] = it
				}
				nm.Categories[ci] = nc
			}
			nr.Menus[mi] = nm
		}
		out.Restaurants[ri] = nr
	}
	return out
}

// Items calls fn for every item in document order.
func (d *Document) Items(fn func(r *Restaurant, m *Menu, c *Category, it *Item)) {
	for ri := range d.Restaurants {
		r := &d.Restaurants[ri]
		for mi := range r.Menus {
			m := &r.Menus[mi]
			for ci := range m.Categories {
				c := &m.Categories[ci]
				for ii := range c.Items {
					fn(r, m, c, &c.Items[ii])
				}
			}
		}
	}
}

func (d *Document) ItemCount() int {
	n := 0
	d.Items(func(*Restaurant, *Menu, *Category, *Item) { n++ })
	return n
}
