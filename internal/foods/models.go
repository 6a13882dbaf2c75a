package foods

// Source column names of the food composition table.
const (
	ColumnName         = "식품명"
	ColumnCode         = "식품코드"
	ColumnCategory     = "식품대분류명"
	ColumnEnergy       = "에너지(kcal)"
	ColumnProtein      = "단백질(g)"
	ColumnFat          = "지방(g)"
	ColumnCarbohydrate = "탄수화물(g)"
	ColumnSugar        = "당류(g)"
	ColumnSodium       = "나트륨(mg)"
	ColumnFiber        = "식이섬유(g)"
)

// RequiredColumns must all be present in the header of a dataset source.
var RequiredColumns = []string{
	ColumnCategory,
	ColumnEnergy,
	ColumnProtein,
	ColumnFat,
	ColumnCarbohydrate,
	ColumnSugar,
	ColumnSodium,
	ColumnFiber,
}

// FoodItem is one row of the dataset. Nil nutrient pointers are missing values.
type FoodItem struct {
	Name          string   `json:"name,omitempty"`
	Code          string   `json:"code,omitempty"`
	Category      *string  `json:"category"`
	EnergyKcal    *float64 `json:"energy_kcal"`
	ProteinG      *float64 `json:"protein_g"`
	FatG          *float64 `json:"fat_g"`
	CarbohydrateG *float64 `json:"carbohydrate_g"`
	SugarG        *float64 `json:"sugar_g"`
	SodiumMg      *float64 `json:"sodium_mg"`
	FiberG        *float64 `json:"fiber_g"`
	Columns       []Column `json:"columns,omitempty"`
}

// Column is a raw cell of the source row, kept in header order.
type Column struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// CategoryName returns the category or an empty string when it is missing.
func (f FoodItem) CategoryName() string {
	if f.Category == nil {
		return ""
	}
	return *f.Category
}

// DisplayName is the name used in prompts and reports.
func (f FoodItem) DisplayName() string {
	if f.Name != "" {
		return f.Name
	}
	if f.Code != "" {
		return f.Code
	}
	return f.CategoryName()
}
