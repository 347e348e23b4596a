// Package label derives the display name of a resolved fastener.
package label

import "github.com/chazu/fasten/pkg/catalog"

// Format returns "{diameter}x{length}-{itemText}" for categories with a
// length and "{diameter}-{itemText}" otherwise.
func Format(cat catalog.Category, diameter, length, itemText string) string {
	switch cat {
	case catalog.Screw, catalog.Rod:
		if length != "" {
			return diameter + "x" + length + "-" + itemText
		}
	}
	return diameter + "-" + itemText
}
