package calendar

import (
	"time"

	"smartplates/internal/core"
)

// GridCells is the fixed size of a month grid: six weeks of seven days.
const GridCells = 42

type Cell struct {
	Date           time.Time     `json:"date"`
	Key            string        `json:"key"`
	Day            int           `json:"day"`
	IsCurrentMonth bool          `json:"isCurrentMonth"`
	IsToday        bool          `json:"isToday"`
	IsSelected     bool          `json:"isSelected"`
	HasEvents      bool          `json:"hasEvents"`
	MealCount      int           `json:"mealCount"`
	Meals          core.DayMeals `json:"meals"`
}

type Grid struct {
	Year     int        `json:"year"`
	Month    time.Month `json:"month"`
	Title    string     `json:"title"`
	Selected string     `json:"selected,omitempty"`
	Cells    []Cell     `json:"cells"`
}

type RenderOptions struct {
	// Today marks the matching cell; zero leaves every cell unmarked.
	Today time.Time
	// Selected is a date key to flag, empty for none.
	Selected string
	// Location of the grid dates; UTC when nil.
	Location *time.Location
}

// RenderMonth builds the 42-cell grid for year/month starting at the Sunday
// on or before the first of the month and folds every plan day into the
// cell with the same date key. Later plans are merged into earlier ones by
// concatenating each meal bucket. Padding days outside the month still
// receive their meals.
func RenderMonth(year int, month time.Month, plans []core.MealPlan, opts RenderOptions) Grid {
	loc := opts.Location
	if loc == nil {
		loc = time.UTC
	}
	first := time.Date(year, month, 1, 0, 0, 0, 0, loc)
	// normalize overflowing months such as 13
	year, month = first.Year(), first.Month()
	start := WeekStart(first)

	todayKey := ""
	if !opts.Today.IsZero() {
		todayKey = DateKey(opts.Today)
	}

	g := Grid{
		Year:     year,
		Month:    month,
		Title:    first.Format("January 2006"),
		Selected: opts.Selected,
		Cells:    make([]Cell, GridCells),
	}
	index := make(map[string]int, GridCells)
	for i := 0; i < GridCells; i++ {
		d := start.AddDate(0, 0, i)
		key := DateKey(d)
		g.Cells[i] = Cell{
			Date:           d,
			Key:            key,
			Day:            d.Day(),
			IsCurrentMonth: d.Month() == month,
			IsToday:        key == todayKey,
			IsSelected:     opts.Selected != "" && key == opts.Selected,
			Meals:          core.DayMeals{Date: d},
		}
		index[key] = i
	}

	for _, plan := range plans {
		for _, day := range plan.Days {
			i, ok := index[DateKey(day.Date)]
			if !ok {
				continue
			}
			g.Cells[i].Meals.Merge(day.Clone())
		}
	}

	for i := range g.Cells {
		g.Cells[i].MealCount = g.Cells[i].Meals.Count()
		g.Cells[i].HasEvents = g.Cells[i].MealCount > 0
	}
	return g
}

// Weeks splits the grid into rows of seven cells.
func (g Grid) Weeks() [][]Cell {
	weeks := make([][]Cell, 0, len(g.Cells)/7)
	for i := 0; i+7 <= len(g.Cells); i += 7 {
		weeks = append(weeks, g.Cells[i:i+7])
	}
	return weeks
}

// Cell returns the cell for a date key.
func (g Grid) Cell(key string) (Cell, bool) {
	for _, c := range g.Cells {
		if c.Key == key {
			return c, true
		}
	}
	return Cell{}, false
}

// Mark returns a copy of g with the today and selected flags recomputed.
// Cached grids are stored unmarked and marked per request.
func (g Grid) Mark(today time.Time, selected string) Grid {
	todayKey := ""
	if !today.IsZero() {
		todayKey = DateKey(today)
	}
	out := g
	out.Selected = selected
	out.Cells = make([]Cell, len(g.Cells))
	for i, c := range g.Cells {
		c.IsToday = c.Key == todayKey
		c.IsSelected = selected != "" && c.Key == selected
		out.Cells[i] = c
	}
	return out
}
