package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/vansh-rautela/sage-health-assistant/internal/analyzer"
	"github.com/vansh-rautela/sage-health-assistant/internal/config"
	"github.com/vansh-rautela/sage-health-assistant/internal/llm"
	"github.com/vansh-rautela/sage-health-assistant/internal/logging"
	"github.com/vansh-rautela/sage-health-assistant/internal/pdftext"
	"github.com/vansh-rautela/sage-health-assistant/internal/server"
	"github.com/vansh-rautela/sage-health-assistant/internal/supabase"
)

func newServeCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(opts, true)
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return serve(ctx, cfg)
		},
	}
	cmd.Flags().String("port", "", "listen port (overrides server.port)")
	_ = opts.v.BindPFlag("server.port", cmd.Flags().Lookup("port"))
	return cmd
}

func newTiersCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "tiers",
		Short: "Print the model tiers in the order they are tried",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(opts, false)
			if err != nil {
				return err
			}
			tiers, err := llm.LoadTiers(cfg.LLM.TiersFile)
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "RANK\tMODEL\tMAX TOKENS\tTEMPERATURE")
			for _, t := range tiers {
				fmt.Fprintf(w, "%s\t%s\t%d\t%.2f\n", t.Rank, t.ID(), t.MaxTokens, t.Temperature)
			}
			return w.Flush()
		},
	}
}

// loadConfig reads the configuration and sets up logging. Required settings
// are only enforced when validate is set.
func loadConfig(opts *rootOptions, validate bool) (*config.Config, error) {
	loader := config.NewLoaderWithViper(opts.v).
		WithConfigFile(opts.cfgFile).
		WithEnvFile(opts.envFile)

	var cfg *config.Config
	var err error
	if validate {
		cfg, err = loader.Load()
	} else {
		cfg, err = loader.Read()
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	if _, err := logging.Setup(cfg.Log); err != nil {
		return nil, err
	}
	return cfg, nil
}

func serve(ctx context.Context, cfg *config.Config) error {
	tiers, err := llm.LoadTiers(cfg.LLM.TiersFile)
	if err != nil {
		return fmt.Errorf("failed to load model tiers: %w", err)
	}

	provider, err := llm.NewOpenAI(&cfg.LLM)
	if err != nil {
		return fmt.Errorf("failed to create LLM provider: %w", err)
	}
	clients := llm.Clients{cfg.LLM.Provider: provider}
	for _, t := range tiers {
		if _, err := clients.Get(t.Provider); err != nil {
			slog.Warn("Tier will be skipped", "tier", t.ID(), "error", err)
		}
	}

	cascade := analyzer.NewCascade(tiers, clients,
		analyzer.WithMaxAttempts(cfg.LLM.MaxAttempts),
		analyzer.WithRateLimitPause(cfg.LLM.RateLimitPause),
		analyzer.WithAttemptTimeout(cfg.LLM.AttemptTimeout),
	)
	limiter := analyzer.NewRateLimiter(cfg.RateLimit.Limit, cfg.RateLimit.Window, time.Now())

	store := supabase.NewStore(&cfg.Supabase)
	deps := server.Deps{
		Analyzer:  analyzer.New(limiter, cascade),
		Store:     store,
		Auth:      supabase.NewAuth(&cfg.Supabase, store),
		Extractor: pdftext.NewExtractor(cfg.PDF.MaxPages, cfg.PDF.MinChars),
	}

	var opts []server.Option
	if cfg.Supabase.JWTSecret != "" {
		opts = append(opts, server.WithTokenVerifier(supabase.NewTokenVerifier(cfg.Supabase.JWTSecret)))
	} else {
		slog.Warn("supabase.jwt_secret is not set, session and analysis routes are unauthenticated")
	}

	slog.Info("starting server",
		"host", cfg.Server.Host,
		"port", cfg.Server.Port,
		"tiers", len(tiers),
		"max_attempts", cascade.MaxAttempts(),
		"daily_limit", cfg.RateLimit.Limit,
	)
	return server.New(cfg.Server, deps, opts...).Run(ctx)
}
