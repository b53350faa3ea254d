package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	_ "time/tzdata" // FEED_TIMEZONE must load on hosts without zoneinfo

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"readinglist/internal/config"
	"readinglist/internal/monitoring"
	"readinglist/internal/proxy"
	"readinglist/internal/titlefetch"
	"readinglist/pkg/logger"
)

var Version = "dev"

// app carries what every subcommand needs once flags are parsed.
type app struct {
	envFile string
	cfg     *config.Config
	logger  *zap.Logger
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd(&app{}).ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd(a *app) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "readinglist",
		Short:         "Personal reading list with an RSS feed",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadFile(a.envFile)
			if err != nil {
				return fmt.Errorf("could not load config: %w", err)
			}
			l, err := logger.New(cfg.LogLevel)
			if err != nil {
				return err
			}
			a.cfg, a.logger = cfg, l
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if a.logger != nil {
				_ = a.logger.Sync()
			}
		},
	}
	rootCmd.PersistentFlags().StringVar(&a.envFile, "env-file", ".env", "optional env-style config file")

	rootCmd.AddCommand(serveCmd(a))
	rootCmd.AddCommand(titleCmd(a))
	rootCmd.AddCommand(importCmd(a))
	return rootCmd
}

// newResolver wires proxies, limits and observability into the title resolver.
func newResolver(cfg *config.Config, l *zap.Logger, m *monitoring.Metrics) (*titlefetch.Resolver, error) {
	pm, err := proxy.NewManager(cfg.ProxyURLs)
	if err != nil {
		return nil, err
	}
	fetcher := titlefetch.NewFetcher(titlefetch.FetcherOptions{
		Timeout:      cfg.TitleFetchTimeout,
		UserAgent:    cfg.TitleUserAgent,
		MaxBodyBytes: cfg.TitleMaxBodyBytes,
		Proxy:        pm.ProxyFunc(),
	})

	opts := []titlefetch.Option{titlefetch.WithLogger(l)}
	if m != nil {
		opts = append(opts, titlefetch.WithObserver(m))
	}
	return titlefetch.NewResolver(fetcher, opts...), nil
}
