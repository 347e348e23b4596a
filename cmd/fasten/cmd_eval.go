package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

var (
	evalMeshPath string
	evalSavePath string
	evalParallel bool
)

var evalCmd = &cobra.Command{
	Use:   "eval <script>",
	Short: "Evaluate a fastener script and recompute its fasteners",
	Long: `Evaluates a script, recomputes every fastener it declares and prints
the resulting labels. --mesh writes triangle meshes as JSON, --save writes
the document for later recompute runs.

Example:
  fasten eval examples/bracket.fasten --mesh bracket.json --parallel`,
	Args: cobra.ExactArgs(1),
	RunE: runEval,
}

func init() {
	evalCmd.Flags().StringVar(&evalMeshPath, "mesh", "", "write meshes to this JSON file")
	evalCmd.Flags().StringVarP(&evalSavePath, "save", "o", "", "write the document to this JSON file")
	evalCmd.Flags().BoolVar(&evalParallel, "parallel", false, "recompute and mesh with the configured workers")
}

func runEval(cmd *cobra.Command, args []string) error {
	source, err := os.ReadFile(args[0])
	if err != nil {
		return err
	}

	c := *cfg
	if !evalParallel {
		c.Workers = 1
	}
	app, err := NewApp(&c, logger)
	if err != nil {
		return err
	}

	result := app.Evaluate(cmd.Context(), string(source), evalMeshPath != "")

	out := cmd.OutOrStdout()
	if err := printFasteners(out, result.Fasteners); err != nil {
		return err
	}
	for _, w := range result.Warnings {
		fmt.Fprintf(cmd.ErrOrStderr(), "warning: %s: %s\n", w.Object, w.Message)
	}
	fmt.Fprintf(out, "shapes: %d built, %d cache hits\n", result.Stats.Builds, result.Stats.Hits)

	if len(result.Errors) > 0 {
		for _, e := range result.Errors {
			fmt.Fprintf(cmd.ErrOrStderr(), "error: %s\n", e.Error())
		}
		return fmt.Errorf("%s: %d errors", args[0], len(result.Errors))
	}

	if evalMeshPath != "" {
		if err := writeJSON(evalMeshPath, result.Meshes); err != nil {
			return err
		}
	}
	if evalSavePath != "" && result.Document != nil {
		if err := result.Document.SaveFile(evalSavePath); err != nil {
			return err
		}
	}
	return nil
}

func printFasteners(out io.Writer, fs []FastenerData) error {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tTYPE\tLABEL\tPLACED")
	for _, f := range fs {
		fmt.Fprintf(w, "%s\t%s\t%s\t%t\n", f.Name, f.Type, f.Label, f.Placed)
	}
	return w.Flush()
}

func writeJSON(path string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encoding %s: %w", path, err)
	}
	return os.WriteFile(path, data, 0644)
}
