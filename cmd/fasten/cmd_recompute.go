package main

import (
	"github.com/chazu/fasten/pkg/document"
	"github.com/spf13/cobra"
)

var recomputeOut string

var recomputeCmd = &cobra.Command{
	Use:   "recompute <doc.json>",
	Short: "Restore and recompute a saved document",
	Long: `Loads a document saved by 'eval --save' (or an older schema version),
runs the restoring pass and one recompute cycle, and prints the labels.
Fasteners saved without match_outer take the configured default.

Example:
  fasten recompute bracket.json -o bracket.json`,
	Args: cobra.ExactArgs(1),
	RunE: runRecompute,
}

func init() {
	recomputeCmd.Flags().StringVarP(&recomputeOut, "output", "o", "", "write the recomputed document here")
}

func runRecompute(cmd *cobra.Command, args []string) error {
	doc, err := document.LoadFile(args[0], document.LoadOptions{MatchOuterDefault: cfg.MatchOuter})
	if err != nil {
		return err
	}
	app, err := NewApp(cfg, logger)
	if err != nil {
		return err
	}

	recErr := app.Recompute(cmd.Context(), doc)
	if err := printFasteners(cmd.OutOrStdout(), summarize(doc)); err != nil {
		return err
	}
	if recErr != nil {
		return recErr
	}

	if recomputeOut != "" {
		return doc.SaveFile(recomputeOut)
	}
	return nil
}
