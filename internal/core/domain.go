package core

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

const (
	Breakfast MealType = "breakfast"
	Lunch     MealType = "lunch"
	Dinner    MealType = "dinner"
	Snacks    MealType = "snacks"
)

// MealTypes lists the meal buckets of a day in display order.
var MealTypes = []MealType{Breakfast, Lunch, Dinner, Snacks}

type (
	MealType string

	// MealSlot is one recipe scheduled into a meal bucket.
	MealSlot struct {
		RecipeID   string `json:"recipeId"`
		RecipeName string `json:"recipeName"`
		Image      string `json:"image,omitempty"`
		Servings   int    `json:"servings,omitempty"`
	}

	// DayMeals holds the four meal buckets of one calendar day.
	DayMeals struct {
		Date      time.Time  `json:"date"`
		Breakfast []MealSlot `json:"breakfast"`
		Lunch     []MealSlot `json:"lunch"`
		Dinner    []MealSlot `json:"dinner"`
		Snacks    []MealSlot `json:"snacks"`
	}

	MealPlan struct {
		ID            string     `json:"id"`
		UserID        string     `json:"userId"`
		WeekStartDate time.Time  `json:"weekStartDate"`
		Days          []DayMeals `json:"days"`
		UpdatedAt     time.Time  `json:"updatedAt"`
	}
)

var (
	ErrNotFound        = errors.New("not found")
	ErrItemNotFound    = errors.New("grocery item not found")
	ErrInvalidMealType = errors.New("invalid meal type")
	ErrEmptyPlanID     = errors.New("empty meal plan id")
	ErrEmptyUserID     = errors.New("empty user id")
)

// ParseMealType accepts a meal type name case-insensitively.
func ParseMealType(s string) (MealType, error) {
	mt := MealType(strings.ToLower(strings.TrimSpace(s)))
	if !mt.Valid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidMealType, s)
	}
	return mt, nil
}

func (m MealType) Valid() bool {
	switch m {
	case Breakfast, Lunch, Dinner, Snacks:
		return true
	}
	return false
}

// Slots returns a pointer to the bucket for the meal type, or nil when the
// meal type is unknown.
func (d *DayMeals) Slots(m MealType) *[]MealSlot {
	switch m {
	case Breakfast:
		return &d.Breakfast
	case Lunch:
		return &d.Lunch
	case Dinner:
		return &d.Dinner
	case Snacks:
		return &d.Snacks
	}
	return nil
}

// Count returns the number of scheduled meals across all buckets.
func (d DayMeals) Count() int {
	return len(d.Breakfast) + len(d.Lunch) + len(d.Dinner) + len(d.Snacks)
}

// Merge appends the other day's buckets after the receiver's.
func (d *DayMeals) Merge(other DayMeals) {
	d.Breakfast = append(d.Breakfast, other.Breakfast...)
	d.Lunch = append(d.Lunch, other.Lunch...)
	d.Dinner = append(d.Dinner, other.Dinner...)
	d.Snacks = append(d.Snacks, other.Snacks...)
}

// Clone returns a deep copy so callers can merge without aliasing plan data.
func (d DayMeals) Clone() DayMeals {
	return DayMeals{
		Date:      d.Date,
		Breakfast: append([]MealSlot(nil), d.Breakfast...),
		Lunch:     append([]MealSlot(nil), d.Lunch...),
		Dinner:    append([]MealSlot(nil), d.Dinner...),
		Snacks:    append([]MealSlot(nil), d.Snacks...),
	}
}

func (p MealPlan) Validate() error {
	if strings.TrimSpace(p.ID) == "" {
		return ErrEmptyPlanID
	}
	if strings.TrimSpace(p.UserID) == "" {
		return ErrEmptyUserID
	}
	return nil
}

// RecipeIDs returns the distinct recipe ids of the plan in first-seen order.
func (p MealPlan) RecipeIDs() []string {
	seen := make(map[string]struct{})
	var ids []string
	for _, day := range p.Days {
		for _, mt := range MealTypes {
			for _, slot := range *day.Slots(mt) {
				id := strings.TrimSpace(slot.RecipeID)
				if id == "" {
					continue
				}
				if _, ok := seen[id]; ok {
					continue
				}
				seen[id] = struct{}{}
				ids = append(ids, id)
			}
		}
	}
	return ids
}

// RecipeNames maps recipe ids, trimmed like RecipeIDs, to the name the plan
// scheduled them under.
func (p MealPlan) RecipeNames() map[string]string {
	names := make(map[string]string)
	for _, day := range p.Days {
		for _, mt := range MealTypes {
			for _, slot := range *day.Slots(mt) {
				id := strings.TrimSpace(slot.RecipeID)
				if _, ok := names[id]; !ok && id != "" && slot.RecipeName != "" {
					names[id] = slot.RecipeName
				}
			}
		}
	}
	return names
}
