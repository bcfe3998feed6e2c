package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"tgvault/internal/config"
	"tgvault/internal/ingest"
	"tgvault/internal/store/sqlite"
	"tgvault/internal/telegram"
)

func main() {
	// Load config
	cfgDir := config.Dir()
	cfgPath := filepath.Join(cfgDir, "config.yaml")

	cfg, err := config.Load(cfgPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config from %s: %v\n", cfgPath, err)
		fmt.Fprintf(os.Stderr, "\nCreate the config file with:\n")
		fmt.Fprintf(os.Stderr, "  mkdir -p %s\n", cfgDir)
		fmt.Fprintf(os.Stderr, "  cat > %s << 'EOF'\n", cfgPath)
		fmt.Fprintf(os.Stderr, "telegram:\n  api_id: YOUR_API_ID\n  api_hash: \"YOUR_API_HASH\"\nEOF\n")
		fmt.Fprintf(os.Stderr, "\nGet API credentials from https://my.telegram.org\n")
		os.Exit(1)
	}

	// Setup logging to file, keep stdout for the live message feed
	logPath := filepath.Join(cfgDir, "tgvault.log")
	logCfg := zap.NewDevelopmentConfig()
	logCfg.OutputPaths = []string{logPath}
	logCfg.ErrorOutputPaths = []string{logPath}
	if err := logCfg.Level.UnmarshalText([]byte(cfg.LogLevel)); err != nil {
		fmt.Fprintf(os.Stderr, "Invalid log level %q: %v\n", cfg.LogLevel, err)
		os.Exit(1)
	}
	logger, err := logCfg.Build()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	// Open message store
	db, err := sqlite.Open(cfg.Database.Path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to open database %s: %v\n", cfg.Database.Path, err)
		os.Exit(1)
	}
	defer db.Close()

	if err := db.Init(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize database: %v\n", err)
		os.Exit(1)
	}

	// Ensure session directory exists
	os.MkdirAll(cfgDir, 0700)
	sessionPath := filepath.Join(cfgDir, "session.json")

	authFlow := telegram.NewTermAuth(cfg.Telegram.Phone, os.Stdin, os.Stdout)
	client := telegram.NewClient(cfg.Telegram.APIID, cfg.Telegram.APIHash, sessionPath, authFlow, logger)

	live := ingest.NewLive(client.Resolver(), db, os.Stdout, logger)
	client.SetHandler(live)

	pipeline := ingest.NewPipeline(client, client.Resolver(), db, logger)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return client.Run(ctx, func(ctx context.Context) error {
			dialogList := pipeline.ListDialogs(ctx, cfg.Collect.DialogLimit)
			ingest.PrintDialogs(os.Stdout, dialogList)

			if len(dialogList) > 0 {
				target := dialogList[0]
				fmt.Printf("\nFetching last %d messages from %q...\n", cfg.Collect.HistoryLimit, target.Title)

				batch := pipeline.FetchMessages(ctx, target.ID, cfg.Collect.HistoryLimit)
				saved, duplicates := pipeline.PersistBatch(ctx, batch, target.Title)
				fmt.Printf("Saved %d new messages (%d already stored).\n", saved, duplicates)

				total, err := db.Count(ctx)
				if err != nil {
					logger.Error("failed to count messages", zap.Error(err))
				} else {
					inChat, _ := db.CountByChat(ctx, target.ID)
					fmt.Printf("Database now holds %d messages (%d in this chat).\n", total, inChat)
				}
			}

			fmt.Println("\nListening for new messages, press Ctrl+C to stop.")
			return nil
		})
	})

	if err := g.Wait(); err != nil && ctx.Err() == nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
