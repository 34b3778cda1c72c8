package cli

import (
	"bufio"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"device-sync/internal/config"
	"device-sync/internal/engine"
	"device-sync/internal/handlers"
	httpapi "device-sync/internal/http"
)

// NewServeCommand starts the HTTP service.
func NewServeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the device-sync HTTP service",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.Load()
			log := newLogger(cfg)

			db, err := openDatabase(cfg)
			if err != nil {
				return err
			}
			defer db.Close()

			if err := runMigrations(db, cfg.MigrationsDir); err != nil {
				return err
			}

			orc := engine.New(db, log)
			h := handlers.NewSyncHandler(orc)
			r := httpapi.NewRouter(cfg, log, h)

			addr := ":" + cfg.Port
			log.Info("device-sync listening", map[string]any{"addr": addr})
			return r.Run(addr)
		},
	}
}

// runMigrations applies migrations/*.sql in name order. A missing directory
// is fine: InitSchema already created the engine tables.
func runMigrations(db *sql.DB, dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	files := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if strings.HasSuffix(strings.ToLower(e.Name()), ".sql") {
			files = append(files, e.Name())
		}
	}
	sort.Strings(files)
	for _, f := range files {
		path := filepath.Join(dir, f)
		if err := applySQLFile(db, path); err != nil {
			return fmt.Errorf("apply migration %s: %w", f, err)
		}
	}
	return nil
}

func applySQLFile(db *sql.DB, path string) error {
	file, err := os.Open(path)
	if err != nil {
		return err
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 1024), 1024*1024)
	var sb strings.Builder
	for scanner.Scan() {
		sb.WriteString(scanner.Text())
		sb.WriteString("\n")
	}
	if err := scanner.Err(); err != nil {
		return err
	}
	_, err = db.Exec(sb.String())
	return err
}
