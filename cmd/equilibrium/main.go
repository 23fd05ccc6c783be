package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"

	"equilibrium/internal/articles"
	"equilibrium/internal/config"
	"equilibrium/internal/logging"
	"equilibrium/internal/recommender"
	"equilibrium/internal/service"
	"equilibrium/internal/snapshot"
	"equilibrium/internal/summarizer"
	"equilibrium/internal/text"
	"equilibrium/internal/tui"
	"equilibrium/internal/vectorspace"
)

func main() {
	_ = godotenv.Load()
	boot := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()

	var (
		cfgPath string
		refit   bool
	)
	flag.StringVar(&cfgPath, "config", "", "Path to YAML config file (optional; uses ~/.config/equilibrium/config.yaml if not provided)")
	flag.BoolVar(&refit, "refit", false, "Refit the recommendation model, save the snapshot and exit")
	flag.Parse()

	var cfg *config.AppConfig
	var err error
	if cfgPath == "" {
		cfg, cfgPath, err = config.LoadDefault()
	} else {
		cfg, err = config.Load(cfgPath)
	}
	if err != nil {
		boot.Fatal().Err(err).Msg("failed to load config")
	}
	if err := cfg.ApplyEnv(); err != nil {
		boot.Fatal().Err(err).Msg("bad environment override")
	}
	if err := cfg.Validate(); err != nil {
		boot.Fatal().Err(err).Str("config", cfgPath).Msg("invalid config")
	}

	logger, closer, err := logging.New(cfg.Logging)
	if err != nil {
		boot.Fatal().Err(err).Msg("failed to set up logging")
	}
	defer closer.Close()
	logger.Info().Str("config", cfgPath).Msg("starting")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := articles.Open(cfg.Articles.MetadataPath, cfg.Articles.ContentDir, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load articles")
	}
	reader, err := articles.OpenReader(cfg.Articles.ReaderPath)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load reader state")
	}

	builder := vectorspace.NewBuilder(vectorspace.Config{
		MaxFeatures: cfg.Model.MaxFeatures,
		MinDF:       cfg.Model.MinDF,
		MaxDF:       cfg.Model.MaxDF,
		NGramMax:    cfg.Model.NGramMax,
		Stem:        cfg.Model.Stem,
		Stopwords:   text.EnglishStopwords(cfg.Model.Stopwords...),
	})
	model := recommender.New(builder, snapshot.NewStore(cfg.Snapshot.Dir), logger)
	platform := service.NewPlatform(store, reader, model, summarizer.NewFrequencySummarizer(), logger)

	if refit {
		if err := platform.Refit(ctx); err != nil {
			logger.Fatal().Err(err).Msg("refit failed")
		}
		info, _ := platform.ModelInfo()
		fmt.Printf("fitted %d articles, %d terms, generation %s\n", info.Documents, info.Terms, info.Generation)
		return
	}

	if err := platform.Start(ctx); err != nil {
		logger.Error().Err(err).Msg("recommendations unavailable")
	}

	m := tui.New(ctx, platform, tui.Options{
		Recommendations: cfg.UI.Recommendations,
		SearchResults:   cfg.UI.SearchResults,
		TeaserWidth:     cfg.UI.TeaserWidth,
	})
	if _, err := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx)).Run(); err != nil && !errors.Is(err, tea.ErrProgramKilled) {
		logger.Fatal().Err(err).Msg("ui stopped")
	}
	logger.Info().Msg("bye")
}
