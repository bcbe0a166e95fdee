// Package cli implements civicctl, the operator command line for the civic
// forum database.
package cli

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/civicforum/constitution-platform/internal/config"
	sqliteRepo "github.com/civicforum/constitution-platform/internal/repository/sqlite"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Database string
	Format   string // "json" | "text"
	Verbose  bool
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the civicctl root command.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "civicctl",
		Short: "Operate the civic forum database",
		Long: `civicctl works directly on the civic forum SQLite database.

It seeds demo data for local development and prints the trending
ranking the API would serve right now.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !isValidFormat(opts.Format) {
				return fmt.Errorf("invalid format %q: must be one of %v", opts.Format, ValidFormats)
			}
			return nil
		},
	}

	cmd.PersistentFlags().StringVar(&opts.Database, "db", defaultDBPath(), "path to the SQLite database")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")
	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")

	cmd.AddCommand(NewSeedCommand(opts))
	cmd.AddCommand(NewTrendingCommand(opts))

	return cmd
}

// defaultDBPath honours DB_PATH (and .env) like the server does.
func defaultDBPath() string {
	cfg, err := config.Load()
	if err != nil {
		return config.DefaultDBPath
	}
	return cfg.DBPath
}

func isValidFormat(format string) bool {
	for _, f := range ValidFormats {
		if f == format {
			return true
		}
	}
	return false
}

func (o *RootOptions) logger(w io.Writer) *slog.Logger {
	level := slog.LevelWarn
	if o.Verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

func (o *RootOptions) openDB() (*sqliteRepo.DB, error) {
	if dir := filepath.Dir(o.Database); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating database directory: %w", err)
		}
	}
	db, err := sqliteRepo.New(o.Database)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", o.Database, err)
	}
	return db, nil
}
