package main

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/go-extras/cobraflags"
	_ "github.com/lib/pq"
	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
)

const (
	listDatabasesURLFlag    = "database-url"
	listDatabasesPrefixFlag = "prefix"
)

var listDatabasesFlags = map[string]cobraflags.Flag{
	listDatabasesURLFlag: &cobraflags.StringFlag{
		Name:  listDatabasesURLFlag,
		Value: "",
		Usage: "admin connection string (required)",
	},
	listDatabasesPrefixFlag: &cobraflags.StringFlag{
		Name:  listDatabasesPrefixFlag,
		Value: "",
		Usage: "only list databases whose name starts with this prefix",
	},
}

func newListDatabasesCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list-databases",
		Short: "List cluster databases, optionally filtered by name prefix",
		RunE: func(_ *cobra.Command, _ []string) error {
			return listDatabases(
				listDatabasesFlags[listDatabasesURLFlag].GetString(),
				listDatabasesFlags[listDatabasesPrefixFlag].GetString(),
			)
		},
	}
	cobraflags.RegisterMap(cmd, listDatabasesFlags)
	cmd.MarkFlagRequired(listDatabasesURLFlag)
	return cmd
}

func listDatabases(databaseURL, prefix string) error {
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return fmt.Errorf("opening connection: %w", err)
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	rows, err := db.QueryContext(ctx, `
		SELECT datname FROM pg_database
		WHERE datistemplate = false
		ORDER BY datname`)
	if err != nil {
		return fmt.Errorf("listing databases: %w", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return err
		}
		if prefix != "" && !strings.HasPrefix(name, prefix) {
			continue
		}
		names = append(names, name)
	}
	if err := rows.Err(); err != nil {
		return err
	}

	pterm.DefaultSection.Println("databases")
	for _, name := range names {
		pterm.Println(name)
	}
	pterm.Info.Printfln("%d database(s)", len(names))
	return nil
}
