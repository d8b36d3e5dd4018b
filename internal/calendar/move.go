package calendar

import (
	"fmt"
	"sort"
	"time"

	"smartplates/internal/core"
)

// SlotRef addresses a meal in the merged month view: the Index counts
// across every plan that has the date, in plan order.
type SlotRef struct {
	Date     string
	MealType core.MealType
	Index    int
}

type Destination struct {
	Date     string
	MealType core.MealType
}

type MoveRequest struct {
	Source      SlotRef
	Destination Destination
	// Copy leaves the source slot in place.
	Copy bool
	// UserID and NewPlanID are used when no plan covers the destination.
	UserID    string
	NewPlanID string
	Now       time.Time
}

type MoveResult struct {
	Moved bool
	Slot  core.MealSlot
	// Changed holds updated copies of every plan the move touched, including
	// a newly created one.
	Changed []core.MealPlan
}

// MoveMeal moves or copies one meal between calendar days by editing the
// underlying plans; the input slice is not modified. A source that no longer
// exists (stale index, uncovered date) is a no-op. The destination goes to
// the first plan with that day, then the first plan whose week covers the
// date, otherwise to a new weekly plan.
func MoveMeal(plans []core.MealPlan, req MoveRequest) (MoveResult, error) {
	if !req.Source.MealType.Valid() || !req.Destination.MealType.Valid() {
		return MoveResult{}, core.ErrInvalidMealType
	}
	dstDate, err := ParseDateKey(req.Destination.Date)
	if err != nil {
		return MoveResult{}, err
	}
	if req.Source.Index < 0 {
		return MoveResult{}, nil
	}

	work := make([]core.MealPlan, len(plans))
	for i, p := range plans {
		work[i] = clonePlan(p)
	}
	touched := make(map[int]bool)

	pi, di, si, ok := locate(work, req.Source)
	if !ok {
		return MoveResult{}, nil
	}
	bucket := work[pi].Days[di].Slots(req.Source.MealType)
	slot := (*bucket)[si]
	if !req.Copy {
		*bucket = append((*bucket)[:si:si], (*bucket)[si+1:]...)
		touched[pi] = true
	}

	var created *core.MealPlan
	if tpi, tdi, found := findDay(work, req.Destination.Date); found {
		dst := work[tpi].Days[tdi].Slots(req.Destination.MealType)
		*dst = append(*dst, slot)
		touched[tpi] = true
	} else if tpi, found := findWeek(work, dstDate); found {
		day := core.DayMeals{Date: dstDate}
		*day.Slots(req.Destination.MealType) = []core.MealSlot{slot}
		work[tpi].Days = insertDay(work[tpi].Days, day)
		touched[tpi] = true
	} else {
		if req.NewPlanID == "" || req.UserID == "" {
			return MoveResult{}, fmt.Errorf("move meal to %s: no plan covers the date", req.Destination.Date)
		}
		day := core.DayMeals{Date: dstDate}
		*day.Slots(req.Destination.MealType) = []core.MealSlot{slot}
		created = &core.MealPlan{
			ID:            req.NewPlanID,
			UserID:        req.UserID,
			WeekStartDate: WeekStart(dstDate),
			Days:          []core.DayMeals{day},
		}
	}

	res := MoveResult{Moved: true, Slot: slot}
	for i := range work {
		if touched[i] {
			work[i].UpdatedAt = req.Now
			res.Changed = append(res.Changed, work[i])
		}
	}
	if created != nil {
		created.UpdatedAt = req.Now
		res.Changed = append(res.Changed, *created)
	}
	return res, nil
}

func locate(plans []core.MealPlan, ref SlotRef) (planIdx, dayIdx, slotIdx int, ok bool) {
	idx := ref.Index
	for pi := range plans {
		for di := range plans[pi].Days {
			day := &plans[pi].Days[di]
			if DateKey(day.Date) != ref.Date {
				continue
			}
			n := len(*day.Slots(ref.MealType))
			if idx < n {
				return pi, di, idx, true
			}
			idx -= n
		}
	}
	return 0, 0, 0, false
}

func findDay(plans []core.MealPlan, key string) (planIdx, dayIdx int, ok bool) {
	for pi := range plans {
		for di := range plans[pi].Days {
			if DateKey(plans[pi].Days[di].Date) == key {
				return pi, di, true
			}
		}
	}
	return 0, 0, false
}

func findWeek(plans []core.MealPlan, date time.Time) (int, bool) {
	key := DateKey(date)
	for pi, p := range plans {
		if p.WeekStartDate.IsZero() {
			continue
		}
		start := Midnight(p.WeekStartDate)
		for i := 0; i < 7; i++ {
			if DateKey(start.AddDate(0, 0, i)) == key {
				return pi, true
			}
		}
	}
	return 0, false
}

func insertDay(days []core.DayMeals, day core.DayMeals) []core.DayMeals {
	days = append(days, day)
	sort.SliceStable(days, func(i, j int) bool {
		return DateKey(days[i].Date) < DateKey(days[j].Date)
	})
	return days
}

func clonePlan(p core.MealPlan) core.MealPlan {
	days := make([]core.DayMeals, len(p.Days))
	for i, d := range p.Days {
		days[i] = d.Clone()
	}
	p.Days = days
	return p
}
