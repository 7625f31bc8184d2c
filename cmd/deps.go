package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/crate2gn/crate2gn/internal/deps"
	"github.com/crate2gn/crate2gn/internal/metadata"
)

type depsParams struct {
	metadataParams
	root string
	json bool
}

func newDepsCommand(global *globalParams) *cobra.Command {
	params := &depsParams{}

	cmd := &cobra.Command{
		Use:   "deps",
		Short: "Print the packages reachable from the root package",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := global.loadConfig()
			if err != nil {
				return err
			}
			g, err := params.load(cmd.Context())
			if err != nil {
				return err
			}
			pkgs, err := deps.New(g).WithConfig(cfg).WithLogger(global.logger()).Resolve(params.root)
			if err != nil {
				return err
			}
			if params.json {
				return printDepsJSON(cmd.OutOrStdout(), pkgs)
			}
			return printDeps(cmd.OutOrStdout(), pkgs)
		},
	}

	params.addFlags(cmd)
	cmd.Flags().StringVar(&params.root, "root", "", "name of the package to resolve from")
	cmd.Flags().BoolVar(&params.json, "json", false, "print JSON instead of a table")
	_ = cmd.MarkFlagRequired("root")

	return cmd
}

func conditionText(kind metadata.DependencyKind, pkg *deps.Package) string {
	info, ok := pkg.DependencyKinds[kind]
	if !ok {
		return "-"
	}
	return info.Condition.String()
}

func printDeps(w io.Writer, pkgs []*deps.Package) error {
	table := tablewriter.NewWriter(w)
	table.Header("Name", "Version", "Group", "Local", "Top-level", "Normal", "Build")
	for _, p := range pkgs {
		if err := table.Append(
			p.Name,
			p.Version,
			string(p.Group),
			strconv.FormatBool(p.IsLocal),
			strconv.FormatBool(p.IsToplevelDep),
			conditionText(metadata.Normal, p),
			conditionText(metadata.Build, p),
		); err != nil {
			return err
		}
	}
	return table.Render()
}

type depsEntry struct {
	Name     string            `json:"name"`
	Version  string            `json:"version"`
	Group    string            `json:"group"`
	Local    bool              `json:"local"`
	Toplevel bool              `json:"toplevel"`
	Kinds    map[string]string `json:"kinds"`
}

func printDepsJSON(w io.Writer, pkgs []*deps.Package) error {
	entries := make([]depsEntry, len(pkgs))
	for i, p := range pkgs {
		kinds := make(map[string]string, len(p.DependencyKinds))
		for kind := range p.DependencyKinds {
			kinds[kind.String()] = conditionText(kind, p)
		}
		entries[i] = depsEntry{
			Name:     p.Name,
			Version:  p.Version,
			Group:    string(p.Group),
			Local:    p.IsLocal,
			Toplevel: p.IsToplevelDep,
			Kinds:    kinds,
		}
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(entries); err != nil {
		return fmt.Errorf("encode packages: %w", err)
	}
	return nil
}
