package models

// Field names used in document paths.
const (
	FieldRestaurants    = "restaurants"
	FieldMenus          = "menus"
	FieldCategories     = "categories"
	FieldItems          = "items"
	FieldDietary        = "dietary"
	FieldName           = "name"
	FieldPrice          = "price"
	FieldRewardEligible = "rewardEligible"
	FieldID             = "id"
)

const (
	StoreDriverMemory   = "memory"
	StoreDriverFile     = "file"
	StoreDriverPostgres = "postgres"
	StoreDriverSQLite   = "sqlite"
	StoreDriverS3       = "s3"
)

const DefaultMenuFile = "menus.json"
