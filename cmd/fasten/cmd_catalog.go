package main

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/chazu/fasten/pkg/catalog"
	"github.com/spf13/cobra"
)

var catalogCmd = &cobra.Command{
	Use:   "catalog [type]",
	Short: "List fastener types, or the sizes of one type",
	Long: `Without arguments, lists every catalog type. With a type, lists its
diameters with nominal size, pitch and catalog lengths.

Example:
  fasten catalog
  fasten catalog ISO4762`,
	Args: cobra.MaximumNArgs(1),
	RunE: runCatalog,
}

func runCatalog(cmd *cobra.Command, args []string) error {
	reg, err := cfg.Registry()
	if err != nil {
		return err
	}
	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)

	if len(args) == 0 {
		fmt.Fprintln(w, "TYPE\tCATEGORY\tGROUP\tDESCRIPTION")
		for _, ft := range reg.Types() {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", ft.ID, ft.Category, ft.Group, ft.Description)
		}
		return w.Flush()
	}

	ft, err := reg.Lookup(args[0])
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	if ft.ID != args[0] {
		fmt.Fprintf(out, "%s is deprecated, showing %s\n", args[0], ft.ID)
	}
	fmt.Fprintf(out, "%s: %s (%s)\n", ft.ID, ft.Description, ft.Category)
	if fixed, ok := ft.FixedDiameter(); ok {
		fmt.Fprintf(out, "fixed diameter: %s\n", fixed)
	} else {
		fmt.Fprintf(out, "default diameter: %s\n", ft.DefaultDiameter())
	}

	fmt.Fprintln(w, "DIAMETER\tNOMINAL\tPITCH\tLENGTHS")
	for _, d := range ft.Diameters() {
		if d == catalog.Auto {
			continue
		}
		size, _ := reg.Size(d)
		fmt.Fprintf(w, "%s\t%g\t%g\t%s\n", d, size.Nominal, size.Pitch, strings.Join(ft.Lengths(d), " "))
	}
	return w.Flush()
}
