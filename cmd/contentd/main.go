package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"mentorstream/internal/adapter/cache"
	"mentorstream/internal/adapter/gateway"
	"mentorstream/internal/adapter/queue"
	"mentorstream/internal/adapter/source"
	"mentorstream/internal/diagram"
	"mentorstream/internal/domain"
	"mentorstream/internal/infra/config"
	"mentorstream/internal/infra/logger"
	"mentorstream/internal/infra/tracer"
	"mentorstream/internal/sanitize"
	"mentorstream/internal/usecase"
	"mentorstream/internal/usecase/eventbus"
)

func main() {
	cfgPath := flag.String("config", "config.yaml", "path to config file")
	flag.Parse()

	if err := run(*cfgPath); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

func run(cfgPath string) error {
	// 1. Config
	cfg, err := config.Load(cfgPath, os.Getenv("MENTORSTREAM_PASSPHRASE"))
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}

	// 2. Logger & Tracer
	log, logCloser, err := logger.New(cfg.Logger)
	if err != nil {
		return fmt.Errorf("logger: %w", err)
	}
	defer logCloser()

	ctx := context.Background()
	tracerShutdown, err := tracer.Setup(ctx, cfg.Tracer)
	if err != nil {
		return fmt.Errorf("tracer: %w", err)
	}
	defer tracerShutdown(ctx)

	// 3. Event bus
	bus := eventbus.New(log)
	defer bus.Close()

	// 4. Result cache + janitor
	store, cacheCloser, err := buildCache(cfg.Cache, log)
	if err != nil {
		return fmt.Errorf("cache: %w", err)
	}
	if cacheCloser != nil {
		defer cacheCloser()
	}

	var janitor *cache.Janitor
	if sweeper, ok := store.(cache.Sweeper); ok && cfg.Cache.SweepTab != "" {
		janitor, err = cache.NewJanitor(cfg.Cache.SweepTab, sweeper, log)
		if err != nil {
			return fmt.Errorf("janitor: %w", err)
		}
		janitor.Start()
		defer janitor.Stop()
	}

	// 5. Sanitizer & diagram recovery
	sanitizer := sanitize.NewSanitizer(buildPolicy(cfg.Sanitizer), diagram.Recoverable)
	recoverer := diagram.NewRecoverer(buildDiagramConfig(cfg.Sanitizer))

	// 6. Source client
	src := source.NewClient(source.Options{
		BaseURL:               cfg.Source.BaseURL,
		APIKey:                cfg.Source.APIKey,
		ResponseHeaderTimeout: cfg.Source.RequestTimeout,
		RequestsPerMin:        cfg.Source.RequestsPerMin,
		BurstSize:             cfg.Source.BurstSize,
		BreakerMaxFailures:    cfg.Source.Breaker.MaxFailures,
		BreakerTimeout:        cfg.Source.Breaker.Timeout,
		BreakerInterval:       cfg.Source.Breaker.Interval,
	}, log)

	// 7. Cost estimation
	var cost *usecase.CostEstimator
	if cfg.Cost.Enabled {
		cost = usecase.NewCostEstimator(cfg.Cost.Encoding, cfg.Cost.USDPer1K, log)
	}

	// 8. Pipeline
	pipeline := usecase.NewPipeline(src, store, sanitizer, recoverer, usecase.NewRegistry(), bus, cost, log)

	// 9. Graceful shutdown
	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// 10. Queue intake
	if cfg.Queue.Enabled {
		consumer := queue.NewConsumer(pipeline, cfg.Queue.URL, cfg.Queue.Subject, cfg.Queue.Group, log)
		if err := consumer.Start(ctx); err != nil {
			return fmt.Errorf("queue: %w", err)
		}
		defer consumer.Stop()
	}

	// 11. Gateway
	if cfg.Gateway.Enabled {
		auth := gateway.NewStaticTokenAuth(cfg.Gateway.Token)
		srv := gateway.NewServer(bus, auth, cfg.Gateway.Addr, log)
		gateway.NewContentHandler(pipeline, store, auth, log).Register(srv)
		go func() {
			if err := srv.Start(ctx); err != nil {
				log.Error("gateway server error", "error", err)
				cancel()
			}
		}()
	}

	if !cfg.Gateway.Enabled && !cfg.Queue.Enabled {
		return fmt.Errorf("config: neither gateway nor queue intake is enabled")
	}

	log.Info("contentd started")
	<-ctx.Done()

	log.Info("contentd shutting down")
	return nil
}

func buildCache(cfg config.CacheConfig, log *slog.Logger) (domain.ResultCache, func() error, error) {
	switch cfg.Backend {
	case "", "memory":
		return cache.NewMemory(cfg.TTL), nil, nil
	case "sqlite":
		db, err := cache.NewSQLite(cfg.Path, cfg.TTL, log)
		if err != nil {
			return nil, nil, err
		}
		return db, db.Close, nil
	default:
		return nil, nil, fmt.Errorf("unknown cache backend %q", cfg.Backend)
	}
}

// buildPolicy starts from the built-in policy and overrides only the fields
// the config file sets.
func buildPolicy(cfg config.SanitizerConfig) sanitize.Policy {
	p := sanitize.DefaultPolicy()
	if len(cfg.AllowedTags) > 0 {
		p.AllowedTags = make(map[string]bool, len(cfg.AllowedTags))
		for _, t := range cfg.AllowedTags {
			p.AllowedTags[t] = true
		}
	}
	if len(cfg.AllowedAttrs) > 0 {
		p.AllowedAttrs = make(map[string]map[string]bool, len(cfg.AllowedAttrs))
		for tag, attrs := range cfg.AllowedAttrs {
			set := make(map[string]bool, len(attrs))
			for _, a := range attrs {
				set[a] = true
			}
			p.AllowedAttrs[tag] = set
		}
	}
	if len(cfg.ClassMap) > 0 {
		p.ClassMap = cfg.ClassMap
	}
	p.InjectClasses = cfg.InjectClasses
	p.Wrap = cfg.Wrap
	if cfg.WrapperClass != "" {
		p.WrapperClass = cfg.WrapperClass
	}
	return p
}

func buildDiagramConfig(cfg config.SanitizerConfig) diagram.Config {
	d := diagram.DefaultConfig()
	if cfg.DiagramContainer != "" {
		d.ContainerClass = cfg.DiagramContainer
	}
	if cfg.DiagramSource != "" {
		d.SourceClass = cfg.DiagramSource
	}
	d.HideSource = cfg.HideDiagramSource
	d.WrapperClass = cfg.WrapperClass
	d.Wrap = cfg.Wrap
	return d
}
