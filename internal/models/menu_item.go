package models

import (
	"math"
	"strconv"
)

// Price is a currency amount with two decimal places. It always encodes with
// exactly two decimals so a zero price reads back as 0.00.
type Price float64

func (p Price) MarshalJSON() ([]byte, error) {
	return []byte(strconv.FormatFloat(float64(p.Round()), 'f', 2, 64)), nil
}

// Round snaps the price to the nearest cent.
func (p Price) Round() Price {
	return Price(math.Round(float64(p)*100) / 100)
}

// HasCents reports whether p is representable with at most two decimals.
func (p Price) HasCents() bool {
	scaled := float64(p) * 100
	return math.Abs(scaled-math.Round(scaled)) < 1e-6
}

func (p Price) String() string {
	return strconv.FormatFloat(float64(p.Round()), 'f', 2, 64)
}

type Item struct {
	ID             string   `json:"id,omitempty" mapstructure:"id"`
	Name           string   `json:"name" mapstructure:"name"`
	Price          Price    `json:"price" mapstructure:"price" validate:"gte=0,cents"`
	Dietary        []string `json:"dietary" mapstructure:"dietary" validate:"required"`
	RewardEligible bool     `json:"rewardEligible" mapstructure:"rewardEligible"`
}

// ItemFields is the part of an Item replaced by an item-level update.
type ItemFields struct {
	Name           string `json:"name" mapstructure:"name"`
	Price          Price  `json:"price" mapstructure:"price" validate:"gte=0,cents"`
	RewardEligible bool   `json:"rewardEligible" mapstructure:"rewardEligible"`
}

// NamedFields is the part of a Restaurant, Menu or Category replaced by an
// element-level update.
type NamedFields struct {
	Name string `json:"name" mapstructure:"name"`
}
