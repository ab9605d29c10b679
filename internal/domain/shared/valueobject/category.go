package valueobject

import (
	"errors"
	"fmt"
	"strings"
)

// Category is the merchandise section an item or debt belongs to
type Category string

const (
	CategoryMen      Category = "Men"
	CategoryWomen    Category = "Women"
	CategoryChildren Category = "Children"
	CategoryUnisex   Category = "Unisex"
	CategoryGeneral  Category = "General"
)

// ErrUnknownCategory is returned by ParseCategory for labels outside the known set
var ErrUnknownCategory = errors.New("unknown category")

// Categories returns every known category in display order
func Categories() []Category {
	return []Category{CategoryMen, CategoryWomen, CategoryChildren, CategoryUnisex, CategoryGeneral}
}

// IsValid checks if the category is one of the known values
func (c Category) IsValid() bool {
	switch c {
	case CategoryMen, CategoryWomen, CategoryChildren, CategoryUnisex, CategoryGeneral:
		return true
	}
	return false
}

// String returns the string representation
func (c Category) String() string {
	return string(c)
}

// ParseCategory resolves a category label. Besides the canonical names it accepts the
// older shop labels ("Men's Wear", "Ladies", "Children's Wear", "Unisex Items").
func ParseCategory(label string) (Category, error) {
	s := strings.TrimSpace(label)
	if s == "" {
		return "", fmt.Errorf("%w: empty", ErrUnknownCategory)
	}
	for _, c := range Categories() {
		if strings.EqualFold(s, string(c)) {
			return c, nil
		}
	}

	lower := strings.ToLower(s)
	switch {
	case strings.Contains(lower, "women"), strings.Contains(lower, "ladies"):
		return CategoryWomen, nil
	case strings.Contains(lower, "children"), strings.Contains(lower, "kids"):
		return CategoryChildren, nil
	case strings.Contains(lower, "unisex"):
		return CategoryUnisex, nil
	case strings.Contains(lower, "men"):
		return CategoryMen, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownCategory, s)
}
