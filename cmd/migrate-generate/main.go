package main

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"

	"ariga.io/atlas-provider-gorm/gormschema"
	"git.mci.dev/mse/sre/phoenix/golang/callpath/internal/agentstatus"
	"git.mci.dev/mse/sre/phoenix/golang/callpath/internal/cdr"
	"git.mci.dev/mse/sre/phoenix/golang/callpath/internal/deadletter"
	"git.mci.dev/mse/sre/phoenix/golang/callpath/internal/journey"
	"git.mci.dev/mse/sre/phoenix/golang/callpath/internal/logging"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	devURL    string
	dir       string
	printOnly bool
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "migrate-generate [name]",
		Short: "Diff the gorm models against the migrations directory with atlas",
		Args:  cobra.ExactArgs(1),
		RunE:  generate,
	}

	rootCmd.Flags().StringVar(&devURL, "dev-url", "docker://postgres/16-alpine/dev?search_path=public", "atlas dev database")
	rootCmd.Flags().StringVar(&dir, "dir", "migrations", "golang-migrate migrations directory")
	rootCmd.Flags().BoolVar(&printOnly, "print", false, "print the desired schema instead of diffing")

	err := rootCmd.Execute()
	if err != nil {
		logging.Logger.Fatal("migration generation failed", zap.String("error", err.Error()))
	}
}

func loadSchema() (string, error) {
	return gormschema.New("postgres").Load(
		&cdr.CallEvent{},
		&journey.Event{},
		&agentstatus.AgentStatus{},
		&agentstatus.ProfileAvailability{},
		&deadletter.CDRDeadLetter{},
	)
}

func generate(cmd *cobra.Command, args []string) error {
	schema, err := loadSchema()
	if err != nil {
		return fmt.Errorf("failed to load gorm schema: %w", err)
	}

	if printOnly {
		_, err = fmt.Fprintln(cmd.OutOrStdout(), schema)
		return err
	}

	schemaFile, err := os.CreateTemp("", "callpath-schema-*.sql")
	if err != nil {
		return err
	}

	defer func() {
		_ = os.Remove(schemaFile.Name())
	}()

	_, err = schemaFile.WriteString(schema)
	if err != nil {
		return err
	}

	err = schemaFile.Close()
	if err != nil {
		return err
	}

	absDir, err := filepath.Abs(dir)
	if err != nil {
		return err
	}

	out, err := exec.CommandContext(cmd.Context(),
		"atlas", "migrate", "diff", filepath.Base(args[0]),
		"--to", "file://"+schemaFile.Name(),
		"--dev-url", devURL,
		"--dir", "file://"+filepath.ToSlash(absDir)+"?format=golang-migrate",
	).CombinedOutput()
	if err != nil {
		return fmt.Errorf("atlas diff failed: %w\n%s", err, out)
	}

	logging.Logger.Info("migration generated", zap.ByteString("atlas_output", out))

	return nil
}
