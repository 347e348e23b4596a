package main

import (
	"encoding/json"
	"errors"

	"github.com/chazu/fasten/pkg/attach"
	"github.com/chazu/fasten/pkg/catalog"
	"github.com/chazu/fasten/pkg/label"
	"github.com/chazu/fasten/pkg/measure"
	"github.com/chazu/fasten/pkg/resolve"
	v3 "github.com/deadsy/sdfx/vec/v3"
	"github.com/spf13/cobra"
)

var (
	resolveReq   resolve.Request
	resolveHole  float64
	resolveOuter float64
)

var resolveCmd = &cobra.Command{
	Use:   "resolve",
	Short: "Resolve fastener parameters without building geometry",
	Long: `Runs one resolution cycle for a single fastener and prints the concrete
parameters, the label and the option lists as JSON. --hole and --outer
describe the attached feature by diameter; omit both for an unattached
fastener.

Example:
  fasten resolve --type ISO4017 --hole 8.4 --length 22
  fasten resolve --type ISO7089 --hole 6.4 --outer 12 --match-outer`,
	Args: cobra.NoArgs,
	RunE: runResolve,
}

func init() {
	f := resolveCmd.Flags()
	f.StringVar(&resolveReq.Type, "type", "", "catalog type (required)")
	f.StringVar(&resolveReq.Diameter, "diameter", catalog.Auto, "diameter or Auto")
	f.StringVar(&resolveReq.Length, "length", "", "requested length")
	f.BoolVar(&resolveReq.Thread, "thread", false, "model a real thread")
	f.BoolVar(&resolveReq.MatchOuter, "match-outer", false, "size from the outer circle")
	f.Float64Var(&resolveHole, "hole", 0, "inner diameter of the attached feature")
	f.Float64Var(&resolveOuter, "outer", 0, "outer diameter of the attached feature")
	_ = resolveCmd.MarkFlagRequired("type")
}

type resolveOutput struct {
	Params    resolve.Resolved `json:"params"`
	Request   resolve.Request  `json:"request"`
	Label     string           `json:"label"`
	Diameters []string         `json:"diameters"`
	Lengths   []string         `json:"lengths,omitempty"`
}

func runResolve(cmd *cobra.Command, args []string) error {
	if resolveHole < 0 || resolveOuter < 0 {
		return errors.New("feature diameters must not be negative")
	}
	reg, err := cfg.Registry()
	if err != nil {
		return err
	}
	ft, err := reg.Lookup(resolveReq.Type)
	if err != nil {
		return err
	}

	var feature *attach.Feature
	if resolveHole > 0 || resolveOuter > 0 {
		feature = &attach.Feature{
			Kind:        attach.ElementEdge,
			Normal:      v3.Vec{Z: 1},
			InnerRadius: resolveHole / 2,
			OuterRadius: resolveOuter / 2,
		}
		if resolveOuter > 0 {
			feature.Kind = attach.ElementFace
		}
	}

	// The flags are treated like persisted properties: an explicit diameter
	// is kept, Auto is measured.
	thread := catalog.Simple
	if resolveReq.Thread && ft.Has(catalog.HasThread) {
		thread = catalog.Real
	}
	prev := &resolve.Resolved{
		Category:   ft.Category,
		Type:       ft.ID,
		Diameter:   resolveReq.Diameter,
		Length:     resolveReq.Length,
		Thread:     thread,
		MatchOuter: resolveReq.MatchOuter,
	}

	res, err := resolve.New(reg, measure.New(reg), logger).Resolve(prev, resolveReq, feature)
	if err != nil {
		return err
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(resolveOutput{
		Params:    res.Params,
		Request:   res.Request,
		Label:     label.Format(res.Params.Category, res.Params.Diameter, res.Params.Length, ft.ItemText()),
		Diameters: res.Diameters,
		Lengths:   res.Lengths,
	})
}
