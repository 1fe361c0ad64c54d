package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"reelforge/internal/avatar"
	"reelforge/internal/config"
	"reelforge/internal/fault"
	"reelforge/internal/ledger"
	"reelforge/internal/media"
	"reelforge/internal/pipeline"
	"reelforge/internal/profile"
	"reelforge/internal/publish"
	"reelforge/internal/retry"
	"reelforge/internal/store"
	"reelforge/internal/tts"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

// Exit codes reported by the driver.
const (
	exitOK           = 0
	exitError        = 1
	exitInvalidInput = 2
	exitAuthFailed   = 3
	exitQuota        = 4
	exitTimeout      = 5
)

func main() {
	os.Exit(run())
}

func run() int {
	scriptPath := flag.String("script", "", "path to the script file")
	voicePath := flag.String("voice", "", "path to the voice profile")
	avatarPath := flag.String("avatar", "", "path to the avatar profile")
	outputPath := flag.String("output", "reel.mp4", "path of the final reel")
	cacheDir := flag.String("cache-dir", "", "asset cache directory (overrides CACHE_DIR)")
	dryRun := flag.Bool("dry-run", false, "segment and normalize only, no synthesis")
	flag.Parse()

	// Local dev convenience; deployments set real environment variables.
	_ = godotenv.Load()

	logger, err := zap.NewProduction()
	if err != nil {
		log.Printf("Failed to initialize logger: %v", err)
		return exitError
	}
	defer logger.Sync()

	cfg, err := config.Load()
	if err != nil {
		logger.Error("Failed to load configuration", zap.Error(err))
		return exitError
	}
	if *cacheDir != "" {
		cfg.Cache.Dir = *cacheDir
	}

	if *scriptPath == "" || *voicePath == "" || *avatarPath == "" {
		fmt.Fprintln(os.Stderr, "usage: reelforge --script PATH --voice PROFILE --avatar PROFILE [--output PATH] [--cache-dir PATH] [--dry-run]")
		return exitInvalidInput
	}
	if !*dryRun {
		if err := config.ValidateProviders(cfg); err != nil {
			logger.Error("Provider credentials missing", zap.Error(err))
			return exitAuthFailed
		}
	}

	scriptText, err := os.ReadFile(*scriptPath)
	if err != nil {
		logger.Error("Failed to read script", zap.String("path", *scriptPath), zap.Error(err))
		return exitInvalidInput
	}
	voice, err := profile.LoadVoice(*voicePath)
	if err != nil {
		logger.Error("Failed to load voice profile", zap.String("path", *voicePath), zap.Error(err))
		return exitInvalidInput
	}
	avatarProfile, err := profile.LoadAvatar(*avatarPath)
	if err != nil {
		logger.Error("Failed to load avatar profile", zap.String("path", *avatarPath), zap.Error(err))
		return exitInvalidInput
	}

	st, err := store.New(cfg.Cache.Dir, logger, store.WithByteBudget(cfg.Cache.ByteBudget))
	if err != nil {
		logger.Error("Failed to initialize asset store", zap.Error(err))
		return exitError
	}

	ledgerPath := cfg.Ledger.Path
	if ledgerPath == "" {
		ledgerPath = filepath.Join(cfg.Cache.Dir, "runs.db")
	}
	runLedger, err := ledger.Open(ledgerPath, logger)
	if err != nil {
		logger.Error("Failed to open run ledger", zap.Error(err))
		return exitError
	}
	defer runLedger.Close()

	policy := retry.Default()
	ttsClient := tts.NewClient(cfg.TTS, policy, logger)
	avatarClient := avatar.NewClient(cfg.Avatar, policy, logger)
	toolchain := media.NewToolchain(cfg.Media, logger)

	p := pipeline.New(cfg, st, ttsClient, avatarClient, toolchain, runLedger, logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	result, err := p.Run(ctx, pipeline.Request{
		Source:     *scriptPath,
		Script:     string(scriptText),
		Voice:      voice,
		Avatar:     avatarProfile,
		OutputPath: *outputPath,
		DryRun:     *dryRun,
	})
	if result != nil {
		printResult(result)
	}
	if err != nil {
		logger.Error("Pipeline failed", zap.Error(err))
		return exitCode(err)
	}

	if !*dryRun && publish.Enabled(cfg.Publish) {
		publisher, err := publish.New(cfg.Publish, logger)
		if err != nil {
			logger.Error("Failed to initialize publisher", zap.Error(err))
			return exitError
		}
		shareURL, err := publisher.PublishReel(ctx, result.RunID, result.OutputPath)
		if err != nil {
			logger.Error("Failed to publish reel", zap.Error(err))
			return exitError
		}
		fmt.Println(shareURL)
	}
	return exitOK
}

func printResult(result *pipeline.Result) {
	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	_ = encoder.Encode(result)
}

func exitCode(err error) int {
	switch fault.KindOf(err) {
	case fault.InvalidInput, fault.TooLong, fault.BadRequest, fault.MissingInput:
		return exitInvalidInput
	case fault.AuthFailed:
		return exitAuthFailed
	case fault.QuotaExceeded:
		return exitQuota
	case fault.Timeout:
		return exitTimeout
	default:
		return exitError
	}
}
