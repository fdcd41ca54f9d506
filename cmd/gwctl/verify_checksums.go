package main

import (
	"context"
	"fmt"
	"time"

	"github.com/go-extras/cobraflags"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/progalaxyelabs/stonescriptdb-gateway/internal/migrate"
)

const (
	verifyDatabaseURLFlag   = "database-url"
	verifyDatabaseFlag      = "database"
	verifyMigrationsDirFlag = "migrations-dir"
)

var verifyChecksumsFlags = map[string]cobraflags.Flag{
	verifyDatabaseURLFlag: &cobraflags.StringFlag{
		Name:  verifyDatabaseURLFlag,
		Value: "",
		Usage: "connection string of the tenant database (required)",
	},
	verifyDatabaseFlag: &cobraflags.StringFlag{
		Name:  verifyDatabaseFlag,
		Value: "",
		Usage: "database name, for reporting (required)",
	},
	verifyMigrationsDirFlag: &cobraflags.StringFlag{
		Name:  verifyMigrationsDirFlag,
		Value: "",
		Usage: "directory of migration files on disk (required)",
	},
}

func newVerifyChecksumsCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "verify-checksums",
		Short: "Check recorded migration checksums against the on-disk files for drift",
		RunE: func(_ *cobra.Command, _ []string) error {
			return verifyChecksums(
				verifyChecksumsFlags[verifyDatabaseURLFlag].GetString(),
				verifyChecksumsFlags[verifyDatabaseFlag].GetString(),
				verifyChecksumsFlags[verifyMigrationsDirFlag].GetString(),
			)
		},
	}
	cobraflags.RegisterMap(cmd, verifyChecksumsFlags)
	cmd.MarkFlagRequired(verifyDatabaseURLFlag)
	cmd.MarkFlagRequired(verifyDatabaseFlag)
	cmd.MarkFlagRequired(verifyMigrationsDirFlag)
	return cmd
}

func verifyChecksums(databaseURL, database, migrationsDir string) error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return fmt.Errorf("connecting to %s: %w", database, err)
	}
	defer pool.Close()

	runner := migrate.NewRunner(nil)
	if err := runner.EnsureTable(ctx, pool, database); err != nil {
		return err
	}

	files, err := migrate.FindFiles(migrationsDir)
	if err != nil {
		return err
	}

	rows := [][]string{{"migration", "status"}}
	drifted := 0
	for _, f := range files {
		ok, err := runner.VerifyChecksum(ctx, pool, database, f.Name, f.Checksum)
		if err != nil {
			return err
		}
		status := "ok"
		if !ok {
			status = "DRIFT or not applied"
			drifted++
		}
		rows = append(rows, []string{f.Name, status})
	}

	table, err := pterm.DefaultTable.WithHasHeader().WithData(rows).Srender()
	if err != nil {
		return err
	}
	pterm.Println(table)

	if drifted > 0 {
		return fmt.Errorf("%d migration(s) drifted or were never applied", drifted)
	}
	pterm.Success.Println("all migrations match their recorded checksum")
	return nil
}
