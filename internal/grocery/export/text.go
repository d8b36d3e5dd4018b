package export

import (
	"bufio"
	"fmt"
	"io"

	"smartplates/internal/core"
)

// WriteText writes a plain-text checklist.
func WriteText(w io.Writer, list core.GroceryList) error {
	bw := bufio.NewWriter(w)
	fmt.Fprintln(bw, list.Name)
	if !list.GeneratedAt.IsZero() {
		fmt.Fprintf(bw, "Generated %s\n", list.GeneratedAt.Format("2006-01-02 15:04"))
	}
	fmt.Fprintln(bw, summary(list))

	for _, sec := range Sections(list) {
		fmt.Fprintln(bw)
		if sec.Heading != "" {
			fmt.Fprintf(bw, "== %s ==\n", sec.Heading)
		}
		for _, r := range sec.Rows {
			mark := "[ ]"
			if r.Purchased {
				mark = "[x]"
			}
			line := mark + " " + r.Name
			if r.Amount != "" {
				line += " - " + r.Amount
			}
			if r.Cost != "" {
				line += " (~" + r.Cost + ")"
			}
			if r.Recipes != "" {
				line += " [" + r.Recipes + "]"
			}
			fmt.Fprintln(bw, line)
		}
	}
	if err := bw.Flush(); err != nil {
		return fmt.Errorf("write text export: %w", err)
	}
	return nil
}
