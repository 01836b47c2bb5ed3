package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/stickerbook/manager/stickerbook"
	"github.com/stickerbook/manager/stickerbook/database"
	"github.com/stickerbook/manager/stickerbook/logger"
	"github.com/stickerbook/manager/stickerbook/services"
)

var (
	version = "dev"
	commit  = "unknown"
)

func main() {
	customHandler := logger.NewHandler()
	slog.SetDefault(slog.New(customHandler))

	slog.Info("Starting Stickerbook Manager",
		slog.String("version", version),
		slog.String("commit", commit))

	path := flag.String("config", "config.toml", "path to config")
	importFile := flag.String("import", "", "import a sticker file and exit")
	albumID := flag.String("album", "", "target album id for -import")
	yes := flag.Bool("yes", false, "skip the large-import confirmation")
	flag.Parse()

	cfg, err := stickerbook.LoadConfig(*path)
	if err != nil {
		slog.Error("Failed to load configuration", slog.Any("error", err))
		os.Exit(-1)
	}
	slog.Info("Configuration loaded successfully")

	slog.Info("Initializing database connection...")
	dbStartTime := time.Now()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	db, err := database.New(ctx, cfg.DB)
	if err != nil {
		slog.Error("Database connection failed",
			slog.String("error", err.Error()),
			slog.Duration("attempted_for", time.Since(dbStartTime)))
		os.Exit(-1)
	}

	slog.Info("Database connected successfully",
		slog.String("database", cfg.DB.Database),
		slog.Duration("took", time.Since(dbStartTime)))

	slog.Info("Initializing database schema...")
	if err := db.InitializeSchema(ctx); err != nil {
		slog.Error("Failed to initialize database schema",
			slog.String("error", err.Error()),
			slog.Duration("attempted_for", time.Since(dbStartTime)))
		os.Exit(-1)
	}
	slog.Info("Database schema initialized successfully")

	app := stickerbook.New(*cfg, version, commit)
	app.DB = db
	defer app.Close()

	if err := app.Setup(ctx); err != nil {
		slog.Error("Failed to set up application", slog.Any("error", err))
		os.Exit(-1)
	}

	if *importFile != "" {
		if err := runImport(ctx, app, *importFile, *albumID, *yes); err != nil {
			slog.Error("Import failed", slog.Any("error", err))
			os.Exit(1)
		}
		return
	}

	slog.Info("Stickerbook Manager is running",
		slog.String("type", "sys"),
		slog.String("store_dir", cfg.Store.Dir))

	s := make(chan os.Signal, 1)
	signal.Notify(s, syscall.SIGINT, syscall.SIGTERM, os.Interrupt)
	<-s
	slog.Info("Shutting down...", slog.String("type", "sys"))
}

// runImport drives one pipeline run from the command line, with console
// progress and a confirmation prompt for oversized files.
func runImport(ctx context.Context, app *stickerbook.App, file, albumID string, skipConfirm bool) error {
	raw, err := os.ReadFile(file)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", file, err)
	}

	start := time.Now()
	result, err := app.ImportService.ImportFile(ctx, albumID, filepath.Base(file), raw, services.ImportOptions{
		Confirm: func(total int) bool {
			if skipConfirm {
				return true
			}
			fmt.Printf("Importing %d rows may exceed server limits. Continue? [y/N] ", total)
			reader := bufio.NewReader(os.Stdin)
			answer, _ := reader.ReadString('\n')
			return strings.HasPrefix(strings.ToLower(strings.TrimSpace(answer)), "y")
		},
		Progress: func(percent int) {
			fmt.Printf("\rImporting... %3d%%", percent)
			if percent == 100 {
				fmt.Println()
			}
		},
	})
	logger.LogOperation("import", time.Since(start), err)
	if err != nil {
		return err
	}

	slog.Info("Import complete",
		slog.String("type", "cmd"),
		slog.Int("imported", result.Imported),
		slog.Int("attempted", result.Attempted),
		slog.Int("failed_batches", result.FailedBatches),
		slog.Bool("rate_limited", result.RateLimited))
	return nil
}
