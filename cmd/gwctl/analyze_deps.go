package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/progalaxyelabs/stonescriptdb-gateway/internal/artifact"
	"github.com/progalaxyelabs/stonescriptdb-gateway/internal/depgraph"
)

func newAnalyzeDepsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "analyze-deps <tables-dir>",
		Short: "Print the FK-dependency creation order for a tables directory, or report a cycle",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			return analyzeDeps(args[0])
		},
	}
}

func analyzeDeps(dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("reading %s: %w", dir, err)
	}

	nodes := make([]depgraph.Node, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		ext := strings.ToLower(filepath.Ext(e.Name()))
		if ext != ".pssql" && ext != ".pgsql" && ext != ".sql" {
			continue
		}

		path := filepath.Join(dir, e.Name())
		content, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("reading %s: %w", path, err)
		}

		defs, err := artifact.ParseTableFile(path, string(content))
		if err != nil {
			return fmt.Errorf("parsing %s: %w", path, err)
		}
		for _, def := range defs {
			nodes = append(nodes, depgraph.Node{Name: def.Name, DependsOn: def.DependsOn})
		}
	}

	if len(nodes) == 0 {
		pterm.Warning.Println("no table definitions found")
		return nil
	}

	graph := depgraph.Build(nodes)
	order, err := graph.CreationOrder()
	if err != nil {
		return err
	}

	pterm.DefaultSection.Println("creation order")
	for i, name := range order {
		pterm.Printf("%3d. %s\n", i+1, name)
	}
	return nil
}
