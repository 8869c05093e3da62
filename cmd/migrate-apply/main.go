package main

import (
	"errors"
	"path/filepath"
	"strconv"

	"git.mci.dev/mse/sre/phoenix/golang/callpath/internal/database"
	"git.mci.dev/mse/sre/phoenix/golang/callpath/internal/logging"
	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var migrationsDir string

func main() {
	rootCmd := &cobra.Command{
		Use:   "migrate-apply",
		Short: "Apply the callpath Postgres migrations",
	}

	rootCmd.PersistentFlags().StringVar(&migrationsDir, "dir", "migrations", "directory holding the migration files")

	rootCmd.AddCommand(
		&cobra.Command{
			Use:   "up",
			Short: "Apply every pending migration",
			Args:  cobra.NoArgs,
			RunE: withMigrator(func(migrator *migrate.Migrate, _ []string) error {
				return migrator.Up()
			}),
		},
		&cobra.Command{
			Use:   "down",
			Short: "Revert the latest migration",
			Args:  cobra.NoArgs,
			RunE: withMigrator(func(migrator *migrate.Migrate, _ []string) error {
				return migrator.Steps(-1)
			}),
		},
		&cobra.Command{
			Use:   "version",
			Short: "Print the applied version",
			Args:  cobra.NoArgs,
			RunE: withMigrator(func(*migrate.Migrate, []string) error {
				return nil
			}),
		},
		&cobra.Command{
			Use:   "force [version]",
			Short: "Set the version without running migrations, clearing the dirty flag",
			Args:  cobra.ExactArgs(1),
			RunE: withMigrator(func(migrator *migrate.Migrate, args []string) error {
				version, err := strconv.Atoi(args[0])
				if err != nil {
					return err
				}

				return migrator.Force(version)
			}),
		},
	)

	err := rootCmd.Execute()
	if err != nil {
		logging.Logger.Fatal("migration failed", zap.String("error", err.Error()))
	}
}

// withMigrator opens the migrator, runs step and reports the resulting version.
func withMigrator(step func(*migrate.Migrate, []string) error) func(*cobra.Command, []string) error {
	return func(_ *cobra.Command, args []string) error {
		absDir, err := filepath.Abs(migrationsDir)
		if err != nil {
			return err
		}

		migrator, err := migrate.New("file://"+filepath.ToSlash(absDir), database.GetURL())
		if err != nil {
			return err
		}

		defer func() {
			srcErr, dbErr := migrator.Close()
			if srcErr != nil || dbErr != nil {
				logging.Logger.Warn("failed to close migrator",
					zap.NamedError("source_error", srcErr),
					zap.NamedError("database_error", dbErr),
				)
			}
		}()

		err = step(migrator, args)
		if err != nil && !errors.Is(err, migrate.ErrNoChange) {
			return err
		}

		version, dirty, err := migrator.Version()
		if err != nil && !errors.Is(err, migrate.ErrNilVersion) {
			return err
		}

		logging.Logger.Info("migration complete", zap.Uint("version", version), zap.Bool("dirty", dirty))

		return nil
	}
}
