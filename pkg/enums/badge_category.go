package enums

import "fmt"

// BadgeCategory maps to the badge_category_enum enum in Postgres.
type BadgeCategory string

const (
	BadgeCategoryMilestone BadgeCategory = "milestone"
	BadgeCategoryActivity  BadgeCategory = "activity"
	BadgeCategoryCommunity BadgeCategory = "community"
	BadgeCategorySpecial   BadgeCategory = "special"
)

var validBadgeCategories = []BadgeCategory{
	BadgeCategoryMilestone,
	BadgeCategoryActivity,
	BadgeCategoryCommunity,
	BadgeCategorySpecial,
}

// IsValid reports whether the value matches the canonical badge category enum.
func (c BadgeCategory) IsValid() bool {
	for _, candidate := range validBadgeCategories {
		if candidate == c {
			return true
		}
	}
	return false
}

// ParseBadgeCategory converts raw input into BadgeCategory.
func ParseBadgeCategory(value string) (BadgeCategory, error) {
	for _, candidate := range validBadgeCategories {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid badge category %q", value)
}
