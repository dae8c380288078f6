package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/go-pkgz/lgr"
	"github.com/jessevdk/go-flags"
	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"github.com/dirtypig/pig/pkg/bot"
	"github.com/dirtypig/pig/pkg/collection"
	"github.com/dirtypig/pig/pkg/config"
	"github.com/dirtypig/pig/pkg/content"
	"github.com/dirtypig/pig/pkg/delivery"
	"github.com/dirtypig/pig/pkg/dvach"
	"github.com/dirtypig/pig/pkg/feed"
	"github.com/dirtypig/pig/pkg/repository"
	"github.com/dirtypig/pig/pkg/scheduler"
	"github.com/dirtypig/pig/pkg/telegram"
	"github.com/dirtypig/pig/server"
)

// Opts with all CLI options
type Opts struct {
	Config string `short:"c" long:"config" env:"CONFIG" default:"pig.yml" description:"configuration file"`

	NoBot       bool `long:"no-bot" env:"NO_BOT" description:"don't start the chat bot"`
	NoCollector bool `long:"no-collector" env:"NO_COLLECTOR" description:"don't scrape threads"`
	NoServer    bool `long:"no-server" env:"NO_SERVER" description:"don't start the status API"`
	Once        bool `long:"once" description:"scrape and build the collection once, then exit"`

	// Common options
	Debug   bool `long:"dbg" env:"DEBUG" description:"debug mode"`
	Version bool `short:"V" long:"version" description:"show version info"`
	NoColor bool `long:"no-color" env:"NO_COLOR" description:"disable color output"`
}

var revision = "unknown"

func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Printf("[WARN] can't load .env: %v", err)
	}

	var opts Opts
	parser := flags.NewParser(&opts, flags.Default)
	if _, err := parser.Parse(); err != nil {
		if flagsErr, ok := err.(*flags.Error); ok && flagsErr.Type == flags.ErrHelp {
			os.Exit(0)
		}
		os.Exit(1)
	}

	if opts.Version {
		fmt.Printf("Version: %s\nGolang: %s\n", revision, runtime.Version())
		os.Exit(0)
	}

	setupLog(opts.Debug, opts.NoColor)
	lgr.Printf("[INFO] starting pig version %s", revision)

	ctx, cancel := context.WithCancel(context.Background())

	// handle termination signals
	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
		<-sigChan
		lgr.Print("[INFO] termination signal received")
		cancel()
	}()

	err := run(ctx, opts)
	cancel()

	if err != nil {
		lgr.Printf("[ERROR] %v", err)
		os.Exit(1)
	}

	lgr.Print("[INFO] shutdown complete")
}

func run(ctx context.Context, opts Opts) error {
	cfg, err := config.Load(opts.Config)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if cfg.Telegram.Token != "" {
		setupLog(opts.Debug, opts.NoColor, cfg.Telegram.Token)
	}
	if !opts.NoBot && !opts.Once {
		if err := config.VerifyBot(cfg); err != nil {
			return fmt.Errorf("invalid bot config: %w", err)
		}
	}

	if err := os.MkdirAll(cfg.Collector.ContentDir, 0o750); err != nil {
		return fmt.Errorf("failed to create content dir: %w", err)
	}

	repos, err := repository.NewRepositories(ctx, repository.Config{
		DSN:             cfg.Database.DSN,
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		ConnMaxLifetime: time.Duration(cfg.Database.ConnMaxLifetime) * time.Second,
	})
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer func() {
		if err := repos.Close(); err != nil {
			lgr.Printf("[WARN] failed to close database: %v", err)
		}
	}()

	pipeline := makePipeline(cfg, repos.Record)
	if opts.Once {
		return pipeline.RunOnce(ctx)
	}

	g, gctx := errgroup.WithContext(ctx)

	if !opts.NoCollector {
		pipeline.Start(gctx)
		g.Go(func() error {
			<-gctx.Done()
			pipeline.Stop()
			return nil
		})
	}

	if !opts.NoServer {
		rss := feed.NewGenerator(cfg.Server.SiteURL, cfg.Board.Name, cfg.Board.BaseURL, content.NewNormalizer(cfg.Board.BaseURL))
		srv := server.New(cfg, repos.Record, rss, revision, opts.Debug)
		g.Go(func() error { return srv.Run(gctx) })
	}

	if !opts.NoBot {
		tg := cfg.GetTelegramConfig()
		api := telegram.NewClient(telegram.ClientConfig{APIURL: tg.APIURL, Token: tg.Token, PollTimeout: tg.PollTimeout})
		selector := delivery.NewSelector(repos.Record, cfg.Board.Name, cfg.Board.BaseURL)
		b := bot.New(api, selector, bot.NewGuard(tg.Whitelist), bot.Config{MaxWorkers: tg.MaxWorkers})
		g.Go(func() error {
			if err := b.Run(gctx); err != nil && !errors.Is(err, context.Canceled) {
				return fmt.Errorf("bot failed: %w", err)
			}
			return nil
		})
	}

	return g.Wait()
}

// makePipeline wires board client, scraper and collection builder
func makePipeline(cfg *config.Config, store collection.Store) *scheduler.Pipeline {
	fetch := cfg.GetFetchConfig()
	client := dvach.NewClient(dvach.ClientConfig{
		BaseURL:   cfg.Board.BaseURL,
		UserAgent: fetch.UserAgent,
		Timeout:   fetch.Timeout,
		RateLimit: fetch.RateLimit,
	})
	scraper := dvach.NewScraper(client, dvach.ScraperConfig{
		Board:      cfg.Board.Name,
		SortBy:     cfg.Board.SortBy,
		SaveTop:    cfg.Board.SaveTop,
		ContentDir: cfg.Collector.ContentDir,
	})
	builder := collection.NewBuilder(store, content.NewNormalizer(cfg.Board.BaseURL), cfg.Collector.ContentDir)
	return scheduler.NewPipeline(scraper, builder, cfg.Collector.IdleInterval)
}

func setupLog(dbg, noColor bool, secs ...string) {
	logOpts := []lgr.Option{lgr.Msec, lgr.LevelBraces}
	if dbg {
		logOpts = []lgr.Option{lgr.Debug, lgr.CallerFile, lgr.CallerFunc, lgr.Msec, lgr.LevelBraces, lgr.StackTraceOnError}
	}

	if noColor {
		color.NoColor = true
	} else {
		colorizer := lgr.Mapper{
			ErrorFunc:  func(s string) string { return color.New(color.FgHiRed).Sprint(s) },
			WarnFunc:   func(s string) string { return color.New(color.FgRed).Sprint(s) },
			InfoFunc:   func(s string) string { return color.New(color.FgYellow).Sprint(s) },
			DebugFunc:  func(s string) string { return color.New(color.FgWhite).Sprint(s) },
			CallerFunc: func(s string) string { return color.New(color.FgBlue).Sprint(s) },
			TimeFunc:   func(s string) string { return color.New(color.FgCyan).Sprint(s) },
		}
		logOpts = append(logOpts, lgr.Map(colorizer))
	}
	if len(secs) > 0 {
		logOpts = append(logOpts, lgr.Secret(secs...))
	}
	lgr.SetupStdLogger(logOpts...)
	lgr.Setup(logOpts...)
}
