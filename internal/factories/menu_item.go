package factories

import (
	"math/rand"
	"sort"

	"github.com/chrisdamba/menumanager/internal/models"
	"github.com/jaswdr/faker"
	"github.com/lucsky/cuid"
)

var menuItemTypes = []string{"appetizer", "main course", "side dish", "dessert", "drink"}

var dietaryTags = []string{"vegetarian", "vegan", "gluten-free", "dairy-free", "nut-free", "halal", "spicy"}

type MenuItemFactory struct {
	fake faker.Faker
	rng  *rand.Rand
}

func (mf *MenuItemFactory) CreateMenuItem(name string) models.Item {
	return models.Item{
		ID:             cuid.New(),
		Name:           name,
		Price:          models.Price(mf.fake.Float64(2, 2, 30)).Round(),
		Dietary:        mf.generateRandomDietary(),
		RewardEligible: mf.fake.Bool(),
	}
}

func (mf *MenuItemFactory) generateRandomDietary() []string {
	count := mf.rng.Intn(3) // 0 to 2 tags
	tags := make([]string, 0, count)
	for _, i := range mf.rng.Perm(len(dietaryTags))[:count] {
		tags = append(tags, dietaryTags[i])
	}
	return tags
}

func (mf *MenuItemFactory) generateRandomMenuItem(itemType string, cuisines []string) string {
	items := map[string][]string{
		"Pizza":         {"Margherita", "Pepperoni", "Hawaiian", "Veggie Supreme"},
		"Curry":         {"Chicken Tikka Masala", "Vegetable Curry", "Beef Madras", "Paneer Butter Masala"},
		"Burgers":       {"Classic Cheeseburger", "Veggie Burger", "BBQ Bacon Burger", "Mushroom Swiss Burger"},
		"Grill":         {"Grilled Chicken", "BBQ Ribs", "Grilled Salmon", "Mixed Grill Platter"},
		"Italian":       {"Margherita Pizza", "Spaghetti Carbonara", "Lasagna", "Bruschetta"},
		"Indian":        {"Chicken Tikka Masala", "Vegetable Curry", "Biryani", "Samosa"},
		"American":      {"Cheeseburger", "Hot Dog", "BBQ Ribs", "Buffalo Wings"},
		"Japanese":      {"Sushi Roll", "Ramen", "Tempura", "Gyoza"},
		"Mexican":       {"Tacos", "Burrito", "Quesadilla", "Nachos"},
		"Chinese":       {"Kung Pao Chicken", "Fried Rice", "Dumplings", "Mapo Tofu"},
		"Thai":          {"Pad Thai", "Green Curry", "Tom Yum Soup", "Satay Skewers"},
		"Greek":         {"Gyros", "Moussaka", "Souvlaki", "Spanakopita"},
		"French":        {"Coq au Vin", "Beef Bourguignon", "Ratatouille", "French Onion Soup"},
		"Mediterranean": {"Falafel", "Hummus", "Tabbouleh", "Grilled Halloumi"},
	}
	byType := map[string][]string{
		"side dish": {"Fries", "Garlic Bread", "Side Salad", "Onion Rings", "Steamed Rice", "Naan Bread"},
		"dessert":   {"Tiramisu", "Apple Pie", "Baklava", "Crème Brûlée", "Mango Sticky Rice", "Chocolate Brownie"},
		"drink":     {"Chocolate Shake", "Vanilla Shake", "Strawberry Shake", "Lemonade", "Iced Tea", "Sparkling Water"},
		"appetizer": {"Soup of the Day", "Caesar Salad", "Greek Salad", "Miso Soup", "Spring Rolls", "Guacamole"},
	}
	if names, ok := byType[itemType]; ok {
		return names[mf.rng.Intn(len(names))]
	}
	cuisine := cuisines[mf.rng.Intn(len(cuisines))]
	if names, ok := items[cuisine]; ok {
		return names[mf.rng.Intn(len(names))]
	}
	return "Special of the Day"
}

func sortCategories(categories []models.Category) {
	sort.Slice(categories, func(i, j int) bool { return categories[i].Name < categories[j].Name })
}
