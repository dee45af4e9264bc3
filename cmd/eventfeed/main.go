package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"
	_ "time/tzdata"

	"github.com/robfig/cron/v3"

	"eventfeed/internal/config"
	"eventfeed/internal/feed"
	appLog "eventfeed/internal/log"
	"eventfeed/internal/recurrence"
	"eventfeed/internal/store"
	"eventfeed/internal/web"
)

// flagConfig holds CLI flag values.
type flagConfig struct {
	configPath string
	listen     string
	seed       string
	once       bool
}

func main() {
	appLog.Info("eventfeed starting", "version", "0.1.0")

	flags := parseFlags()

	conf, err := config.Load(flags.configPath)
	if err != nil {
		appLog.Error("failed to load config", err, "config_path", flags.configPath)
		os.Exit(1)
	}

	// CLI --listen overrides config file listen if provided.
	if flags.listen != "" {
		conf.Listen = flags.listen
	}
	appLog.SetLevel(appLog.ParseLevel(conf.LogLevel))

	loc, err := conf.Location()
	if err != nil {
		appLog.Error("invalid timezone", err, "timezone", conf.Timezone)
		os.Exit(1)
	}

	appLog.Info("effective config",
		"listen", conf.Listen,
		"timezone", conf.Timezone,
		"database", conf.Database,
		"refresh", conf.RefreshCron,
		"cache_ttl_seconds", conf.CacheTTLSeconds,
		"base_url", conf.BaseURL,
		"once", flags.once,
	)

	// Root context with cancellation on SIGINT/SIGTERM.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		appLog.Info("signal received, shutting down", "signal", sig.String())
		cancel()
	}()

	db, err := store.Open(conf.Database)
	if err != nil {
		appLog.Error("failed to open database", err, "database", conf.Database)
		os.Exit(1)
	}
	defer db.Close()

	if flags.seed != "" {
		if err := db.ImportFile(ctx, flags.seed); err != nil {
			appLog.Error("failed to import seed", err, "seed", flags.seed)
			os.Exit(1)
		}
	}

	builder := feed.NewBuilder(db, recurrence.NewEngine(loc), feed.Options{
		BaseURL:  conf.BaseURL,
		Currency: conf.PriceCurrency,
	})

	if flags.once {
		if err := dumpFeed(ctx, builder); err != nil {
			appLog.Error("feed build failed", err)
			os.Exit(1)
		}
		return
	}

	if err := serve(ctx, conf, builder, loc); err != nil {
		appLog.Error("server failed", err)
		os.Exit(1)
	}
	appLog.Info("eventfeed exiting")
}

// dumpFeed builds the full feed once and writes it to stdout as JSON.
func dumpFeed(ctx context.Context, builder *feed.Builder) error {
	items, err := builder.Build(ctx, time.Now(), 0)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(items)
}

// serve runs the HTTP server and the cache warm-up schedule until ctx is
// cancelled.
func serve(ctx context.Context, conf *config.Config, builder *feed.Builder, loc *time.Location) error {
	srv := web.NewServer(conf, builder)

	c := cron.New(cron.WithLocation(loc))
	if _, err := c.AddFunc(conf.RefreshCron, func() { srv.Refresh(ctx) }); err != nil {
		return err
	}
	c.Start()
	defer func() {
		<-c.Stop().Done()
	}()

	// Warm the cache before the first request.
	go srv.Refresh(ctx)

	httpSrv := &http.Server{
		Addr:              conf.Listen,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		appLog.Info("starting HTTP server", "listen", "http://"+conf.Listen)
		errCh <- httpSrv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return httpSrv.Shutdown(shutdownCtx)
}

func parseFlags() flagConfig {
	var cfg flagConfig

	flag.StringVar(&cfg.configPath, "config", "/etc/eventfeed/config.yaml", "Path to config file")
	flag.StringVar(&cfg.listen, "listen", "", "HTTP listen address (overrides config if set)")
	flag.StringVar(&cfg.seed, "seed", "", "YAML seed file to import before serving")
	flag.BoolVar(&cfg.once, "once", false, "Build the feed once, print it as JSON and exit")

	flag.Parse()

	return cfg
}
