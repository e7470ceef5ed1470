package commands

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/spf13/cobra"

	"retail-backoffice/internal/db"
	"retail-backoffice/internal/logger"
)

func newMigrateCommand() *cobra.Command {
	var dir string

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply SQL migrations in order",
		RunE: func(cmd *cobra.Command, args []string) error {
			log := logger.WithComponent("migrate")
			ctx := cmd.Context()

			pool, err := db.NewPool(ctx, os.Getenv("DATABASE_URL"))
			if err != nil {
				return err
			}
			defer pool.Close()

			files, err := filepath.Glob(filepath.Join(dir, "*.sql"))
			if err != nil {
				return fmt.Errorf("failed to list migrations in %s: %w", dir, err)
			}
			if len(files) == 0 {
				return fmt.Errorf("no migrations found in %s", dir)
			}
			sort.Strings(files)

			for _, file := range files {
				sql, err := os.ReadFile(file)
				if err != nil {
					return fmt.Errorf("failed to read %s: %w", file, err)
				}
				if _, err := pool.Exec(ctx, string(sql)); err != nil {
					return fmt.Errorf("migration %s failed: %w", filepath.Base(file), err)
				}
				log.Info().Str("file", filepath.Base(file)).Msg("applied")
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&dir, "dir", "migrations", "directory containing *.sql migrations")
	return cmd
}
