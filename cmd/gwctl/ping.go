package main

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/go-extras/cobraflags"
	_ "github.com/lib/pq"
	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
)

const pingDatabaseURLFlag = "database-url"

var pingFlags = map[string]cobraflags.Flag{
	pingDatabaseURLFlag: &cobraflags.StringFlag{
		Name:  pingDatabaseURLFlag,
		Value: "",
		Usage: "admin connection string (required)",
	},
}

// newPingCommand uses database/sql over lib/pq rather than the server's
// pgx pools, so connectivity can be diagnosed independently of whatever
// is wrong with the pgx pool subsystem.
func newPingCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ping",
		Short: "Check connectivity to the cluster via a plain database/sql connection",
		RunE: func(_ *cobra.Command, _ []string) error {
			return ping(pingFlags[pingDatabaseURLFlag].GetString())
		},
	}
	cobraflags.RegisterMap(cmd, pingFlags)
	cmd.MarkFlagRequired(pingDatabaseURLFlag)
	return cmd
}

func ping(databaseURL string) error {
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return fmt.Errorf("opening connection: %w", err)
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	start := time.Now()
	if err := db.PingContext(ctx); err != nil {
		return fmt.Errorf("ping failed: %w", err)
	}

	pterm.Success.Printfln("connected (%s)", time.Since(start))
	return nil
}
