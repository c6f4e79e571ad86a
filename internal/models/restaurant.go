package models

type Restaurant struct {
	Name  string `json:"name" mapstructure:"name"`
	Menus []Menu `json:"menus" mapstructure:"menus" validate:"required,dive"`
}

type Menu struct {
	Name       string     `json:"name" mapstructure:"name"`
	Categories []Category `json:"categories" mapstructure:"categories" validate:"required,dive"`
}

type Category struct {
	Name  string `json:"name" mapstructure:"name"`
	Items []Item `json:"items" mapstructure:"items" validate:"required,dive"`
}
