package factories

import (
	"math/rand"

	"github.com/chrisdamba/menumanager/internal/models"
	"github.com/jaswdr/faker"
)

var menuNames = []string{"Lunch", "Dinner", "All Day", "Weekend Brunch", "Early Bird"}

// categoryNames maps an item type to the category it is listed under.
var categoryNames = map[string]string{
	"appetizer":   "Starters",
	"main course": "Mains",
	"side dish":   "Sides",
	"dessert":     "Desserts",
	"drink":       "Drinks",
}

type RestaurantFactory struct {
	fake  faker.Faker
	rng   *rand.Rand
	items *MenuItemFactory
	// dishes, when set, replace the built-in dish table
	dishes map[string][]string
}

func NewRestaurantFactory(seed int64, dishes []models.MenuDish) *RestaurantFactory {
	rng := rand.New(rand.NewSource(seed))
	fake := faker.NewWithSeed(rand.NewSource(seed))
	rf := &RestaurantFactory{
		fake:  fake,
		rng:   rng,
		items: &MenuItemFactory{fake: fake, rng: rng},
	}
	if len(dishes) > 0 {
		rf.dishes = make(map[string][]string)
		for _, d := range dishes {
			rf.dishes[d.Category] = append(rf.dishes[d.Category], d.Name)
		}
	}
	return rf
}

func (rf *RestaurantFactory) CreateRestaurant() models.Restaurant {
	cuisines := rf.generateRandomCuisines()
	menuCount := rf.rng.Intn(2) + 1 // 1 or 2 menus
	menus := make([]models.Menu, 0, menuCount)
	for _, i := range rf.rng.Perm(len(menuNames))[:menuCount] {
		menus = append(menus, rf.createMenu(menuNames[i], cuisines))
	}
	return models.Restaurant{
		Name:  rf.fake.Company().Name(),
		Menus: menus,
	}
}

func (rf *RestaurantFactory) createMenu(name string, cuisines []string) models.Menu {
	menu := models.Menu{Name: name, Categories: []models.Category{}}
	if rf.dishes != nil {
		for category, names := range rf.dishes {
			c := models.Category{Name: category, Items: []models.Item{}}
			for _, dish := range names {
				if rf.rng.Float64() < 0.7 {
					c.Items = append(c.Items, rf.items.CreateMenuItem(dish))
				}
			}
			menu.Categories = append(menu.Categories, c)
		}
		sortCategories(menu.Categories)
		return menu
	}

	for _, itemType := range menuItemTypes {
		c := models.Category{Name: categoryNames[itemType], Items: []models.Item{}}
		itemCount := rf.rng.Intn(4) + 1 // 1 to 4 items
		for i := 0; i < itemCount; i++ {
			c.Items = append(c.Items, rf.items.CreateMenuItem(rf.items.generateRandomMenuItem(itemType, cuisines)))
		}
		menu.Categories = append(menu.Categories, c)
	}
	return menu
}

func (rf *RestaurantFactory) generateRandomCuisines() []string {
	allCuisines := []string{"Italian", "Cafe", "Indian", "American", "European", "Japanese", "Mexican", "Native American", "Carribean", "Contemporary", "Continental", "Chinese", "Thai", "Vietnamese", "Greek", "French", "Mediterranean", "Moroccan", "Fast Food", "Street Food", "Homemade"}
	cuisineCount := rf.rng.Intn(4) + 1 // 1 to 4 cuisines
	cuisines := make([]string, cuisineCount)
	for i := 0; i < cuisineCount; i++ {
		cuisines[i] = allCuisines[rf.rng.Intn(len(allCuisines))]
	}
	return cuisines
}

// CreateDocument builds a document of n restaurants. progress, if not nil,
// is called once per restaurant.
func (rf *RestaurantFactory) CreateDocument(n int, progress func()) *models.Document {
	doc := models.NewDocument()
	for i := 0; i < n; i++ {
		doc.Restaurants = append(doc.Restaurants, rf.CreateRestaurant())
		if progress != nil {
			progress()
		}
	}
	return doc
}
