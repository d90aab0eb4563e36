package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"text/tabwriter"

	"github.com/rbeswick/thingsweep/internal/config"
	"github.com/rbeswick/thingsweep/internal/crawl"
	"github.com/rbeswick/thingsweep/internal/idspace"
	"github.com/rbeswick/thingsweep/internal/logging"
	"github.com/rbeswick/thingsweep/internal/normalize"
	"github.com/rbeswick/thingsweep/internal/store"
	"github.com/rbeswick/thingsweep/pkg/server"
	"github.com/rbeswick/thingsweep/pkg/thingiverse"
)

func loadConfig() (*config.Config, error) {
	path := cfgFile
	if path == "" {
		if _, err := os.Stat("config.yaml"); err == nil {
			path = "config.yaml"
		}
	}
	return config.Load(path)
}

func runSweep() error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	log, err := logging.New(cfg.Log.File, cfg.Log.Development)
	if err != nil {
		return fmt.Errorf("build logger: %w", err)
	}
	defer log.Sync()

	token, err := cfg.API.LoadToken()
	if err != nil {
		return fmt.Errorf("load token: %w", err)
	}

	db, err := store.Open(cfg.Database.Dir, cfg.Database.File)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer db.Close()

	ids, err := idspace.Load(cfg.Sweep.IDsFile)
	if err != nil {
		return fmt.Errorf("load traversal sequence: %w", err)
	}

	client := thingiverse.NewClient(thingiverse.Options{
		BaseURL:  cfg.API.BaseURL,
		Token:    token,
		Pacing:   cfg.API.ParsePacingInterval(),
		Timeout:  cfg.API.ParseRequestTimeout(),
		Attempts: cfg.API.RetryAttempts,
	}, log)

	driver := crawl.New(db, client, normalize.New(log), ids, cfg.Sweep.ProgressInterval, log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := driver.Run(ctx); err != nil {
		if ctx.Err() != nil {
			log.Info("sweep stopped by signal")
			return nil
		}
		return fmt.Errorf("run sweep: %w", err)
	}
	return nil
}

func runInitDB() error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	db, err := store.Open(cfg.Database.Dir, cfg.Database.File)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer db.Close()

	fmt.Printf("database ready at %s\n", cfg.Database.Path())
	return nil
}

func runGenIDs(max int64) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if max <= 0 {
		max = cfg.Sweep.UniverseMax
	}

	if _, err := os.Stat(cfg.Sweep.IDsFile); err == nil {
		return fmt.Errorf("ids file %s already exists; the sequence must stay stable across sweeps", cfg.Sweep.IDsFile)
	}

	ids := idspace.Generate(max)
	if err := idspace.Save(cfg.Sweep.IDsFile, ids); err != nil {
		return fmt.Errorf("save traversal sequence: %w", err)
	}

	fmt.Printf("wrote %d ids to %s\n", len(ids), cfg.Sweep.IDsFile)
	return nil
}

func runQuery(stmt string) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	db, err := store.Open(cfg.Database.Dir, cfg.Database.File)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer db.Close()

	result, err := db.Query(context.Background(), stmt)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, strings.Join(result.Columns, "\t"))
	for _, row := range result.Rows {
		cells := make([]string, len(row))
		for i, v := range row {
			if v == nil {
				cells[i] = "NULL"
				continue
			}
			if b, ok := v.([]byte); ok {
				cells[i] = string(b)
				continue
			}
			cells[i] = fmt.Sprint(v)
		}
		fmt.Fprintln(w, strings.Join(cells, "\t"))
	}
	return w.Flush()
}

func runServe(port int) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if port == 0 {
		port = cfg.Server.Port
	}

	db, err := store.Open(cfg.Database.Dir, cfg.Database.File)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer db.Close()

	srv := server.New(db, port)
	fmt.Fprintf(os.Stderr, "thingsweep server listening on :%d\n", port)
	return srv.ListenAndServe()
}
