package grocery

import (
	"fmt"

	"smartplates/internal/core"
)

// Toggle sets the purchased flag of the named item. It reports whether the
// list changed; setting the current value again is a no-op.
func Toggle(list *core.GroceryList, itemName string, purchased bool) (bool, error) {
	idx := list.Item(itemName)
	if idx < 0 {
		return false, fmt.Errorf("toggle %q: %w", itemName, core.ErrItemNotFound)
	}
	if list.Items[idx].IsPurchased == purchased {
		return false, nil
	}
	list.Items[idx].IsPurchased = purchased
	list.Recount()
	return true, nil
}

// CarryForward copies purchased flags from a previous list of the same plan
// onto a regenerated one, matched by normalized name, and keeps the previous
// list identity.
func CarryForward(prev core.GroceryList, next *core.GroceryList) {
	purchased := make(map[string]bool, len(prev.Items))
	for _, item := range prev.Items {
		if item.IsPurchased {
			purchased[item.Name] = true
		}
	}
	for i := range next.Items {
		if purchased[next.Items[i].Name] {
			next.Items[i].IsPurchased = true
		}
	}
	if prev.ID != "" {
		next.ID = prev.ID
	}
	if next.Name == "" {
		next.Name = prev.Name
	}
	next.Recount()
}
