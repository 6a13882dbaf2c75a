package foods

import "strings"

// Category matching modes, mirrored by CATEGORY_MATCH.
const (
	MatchSubstring = "substring"
	MatchPrefix    = "prefix"
)

// Dataset is the food table loaded at startup. It is never mutated after
// Load returns, so it can be shared by concurrent requests without locking.
type Dataset struct {
	source string
	header []string
	items  []FoodItem
}

// NewDataset wraps already parsed items.
func NewDataset(source string, items []FoodItem) *Dataset {
	return &Dataset{source: source, items: append([]FoodItem(nil), items...)}
}

func (d *Dataset) Source() string {
	return d.source
}

func (d *Dataset) Len() int {
	return len(d.items)
}

// Header returns the source column names in file order.
func (d *Dataset) Header() []string {
	return append([]string(nil), d.header...)
}

// Items returns a copy of the item slice.
func (d *Dataset) Items() []FoodItem {
	return append([]FoodItem(nil), d.items...)
}

// ExcludingCategories returns every item whose category contains none of the
// fragments (case-sensitive substring match). Items without a category are kept.
func (d *Dataset) ExcludingCategories(fragments []string) []FoodItem {
	return d.Excluding(SubstringMatcher(fragments))
}

// Excluding returns every item whose category is not matched by m.
func (d *Dataset) Excluding(m CategoryMatcher) []FoodItem {
	out := make([]FoodItem, 0, len(d.items))
	for _, item := range d.items {
		if item.Category != nil && m.Matches(*item.Category) {
			continue
		}
		out = append(out, item)
	}
	return out
}

// CategoryMatcher decides whether a category name belongs to an excluded group.
type CategoryMatcher interface {
	Matches(category string) bool
}

// SubstringMatcher matches categories containing any fragment.
type SubstringMatcher []string

func (m SubstringMatcher) Matches(category string) bool {
	for _, f := range m {
		if f != "" && strings.Contains(category, f) {
			return true
		}
	}
	return false
}

// PrefixMatcher matches categories starting with any prefix.
type PrefixMatcher []string

func (m PrefixMatcher) Matches(category string) bool {
	for _, p := range m {
		if p != "" && strings.HasPrefix(category, p) {
			return true
		}
	}
	return false
}

// NewMatcher returns the matcher for mode, defaulting to substring matching.
func NewMatcher(mode string, fragments []string) CategoryMatcher {
	if mode == MatchPrefix {
		return PrefixMatcher(fragments)
	}
	return SubstringMatcher(fragments)
}
