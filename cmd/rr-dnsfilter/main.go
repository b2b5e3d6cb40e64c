package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"strings"
	"time"

	"github.com/haukened/rr-dnsfilter/internal/dns/common/clock"
	"github.com/haukened/rr-dnsfilter/internal/dns/common/log"
	"github.com/haukened/rr-dnsfilter/internal/dns/config"
	"github.com/haukened/rr-dnsfilter/internal/dns/gateways/tap"
	"github.com/haukened/rr-dnsfilter/internal/dns/gateways/transport"
	"github.com/haukened/rr-dnsfilter/internal/dns/gateways/upstream"
	"github.com/haukened/rr-dnsfilter/internal/dns/gateways/wire"
	"github.com/haukened/rr-dnsfilter/internal/dns/repos/blacklist"
	"github.com/haukened/rr-dnsfilter/internal/dns/repos/blacklist/bloom"
	"github.com/haukened/rr-dnsfilter/internal/dns/repos/blacklist/bolt"
	"github.com/haukened/rr-dnsfilter/internal/dns/repos/blacklist/lru"
	"github.com/haukened/rr-dnsfilter/internal/dns/repos/blacklist/parsers"
	"github.com/haukened/rr-dnsfilter/internal/dns/services/policy"
)

const (
	// Version information
	version = "0.1.0-dev"
	appName = "rr-dnsfilter"

	// Default timeouts
	defaultUpstreamTimeout = 5 * time.Second
	defaultShutdownTimeout = 10 * time.Second
)

// Application holds all the components of the filtering proxy.
type Application struct {
	config *config.AppConfig
	proxy  *transport.Proxy
	filter *blacklist.Filter
	tap    tap.Tap
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// buildApplication constructs all components and wires them together.
func buildApplication(ctx context.Context, cfg *config.AppConfig) (*Application, error) {
	logger := log.GetLogger()
	codec := wire.NewUDPCodec(log.Named(logger, "wire"), 0)

	resolverEP, err := upstream.ResolveEndpoint(ctx, upstream.Options{
		Host:    cfg.Resolver,
		Port:    uint16(cfg.ResolverPort),
		Timeout: defaultUpstreamTimeout,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to resolve upstream %s: %w", cfg.Resolver, err)
	}
	logger.Info(map[string]any{
		"resolver": cfg.Resolver,
		"endpoint": resolverEP.String(),
	}, "Upstream resolver configured")

	filter, err := buildBlacklist(cfg.Blacklist, log.Named(logger, "blacklist"))
	if err != nil {
		return nil, fmt.Errorf("failed to build blacklist: %w", err)
	}

	engine := policy.NewEngine(policy.Options{
		Codec:     codec,
		Blacklist: filter,
		Logger:    log.Named(logger, "policy"),
	})

	sink, err := buildTap(cfg, log.Named(logger, "tap"))
	if err != nil {
		return nil, fmt.Errorf("failed to open dnstap output: %w", err)
	}

	proxy, err := transport.NewProxy(transport.Options{
		ListenAddr: fmt.Sprintf(":%d", cfg.Port),
		Upstream:   resolverEP,
		BufferSize: cfg.BufferSize,
		Codec:      codec,
		Policy:     engine,
		Tap:        sink,
		Clock:      clock.RealClock{},
		Logger:     log.Named(logger, "transport"),
	})
	if err != nil {
		_ = sink.Close()
		return nil, fmt.Errorf("failed to create proxy: %w", err)
	}

	return &Application{
		config: cfg,
		proxy:  proxy,
		filter: filter,
		tap:    sink,
	}, nil
}

// loadBlacklistLines gathers raw lines from the compiled snapshot, if any,
// followed by the text file, if any. A missing file is an error.
func loadBlacklistLines(cfg config.BlacklistConfig, logger log.Logger) ([]string, error) {
	var lines []string

	if cfg.DB != "" {
		store, err := bolt.New(cfg.DB)
		if err != nil {
			return nil, fmt.Errorf("failed to open blacklist snapshot: %w", err)
		}
		defer store.Close()

		snap, err := store.Lines()
		if err != nil {
			return nil, fmt.Errorf("failed to read blacklist snapshot: %w", err)
		}
		st := store.Stats()
		logger.Info(map[string]any{
			"db":      cfg.DB,
			"entries": st.Entries,
			"version": st.Version,
			"source":  st.Source,
			"updated": time.Unix(st.UpdatedUnix, 0).UTC().Format(time.RFC3339),
		}, "Blacklist snapshot loaded")
		lines = append(lines, snap...)
	}

	if cfg.File != "" {
		fileLines, err := parsers.FileSource{Path: cfg.File, Logger: logger}.Lines()
		if err != nil {
			return nil, err
		}
		lines = append(lines, fileLines...)
	}
	return lines, nil
}

// buildBlacklist loads the configured sources into a Filter fronted by the
// decision cache and the Bloom prefilter.
func buildBlacklist(cfg config.BlacklistConfig, logger log.Logger) (*blacklist.Filter, error) {
	lines, err := loadBlacklistLines(cfg, logger)
	if err != nil {
		return nil, err
	}

	cache, err := lru.New(cfg.CacheSize)
	if err != nil {
		return nil, fmt.Errorf("failed to create decision cache: %w", err)
	}

	filter := blacklist.Build(lines, blacklist.Options{
		Cache:      cache,
		Bloom:      bloom.NewFactory(),
		FPRate:     cfg.FPRate,
		MaxEntries: cfg.MaxEntries,
		Logger:     logger,
	})
	if filter.Len() == 0 {
		logger.Warn(map[string]any{"file": cfg.File, "db": cfg.DB}, "Blacklist is empty; no names will be refused")
	}
	logger.Info(map[string]any{
		"entries":    filter.Len(),
		"cache_size": cfg.CacheSize,
		"fp_rate":    cfg.FPRate,
	}, "Blacklist loaded")
	return filter, nil
}

// buildTap opens the configured dnstap destination, or returns a no-op tap.
func buildTap(cfg *config.AppConfig, logger log.Logger) (tap.Tap, error) {
	opts := tap.Options{Identity: appName, Version: version, Logger: logger}
	switch {
	case cfg.Tap.File != "":
		logger.Info(map[string]any{"file": cfg.Tap.File}, "dnstap file output enabled")
		return tap.NewFileSink(cfg.Tap.File, opts)
	case cfg.Tap.Socket != "":
		logger.Info(map[string]any{"socket": cfg.Tap.Socket}, "dnstap socket output enabled")
		return tap.NewSocketSink(cfg.Tap.Socket, opts)
	default:
		return tap.Noop{}, nil
	}
}

// Addr returns the bound client-facing address once the proxy is running.
func (app *Application) Addr() net.Addr {
	return app.proxy.Addr()
}

// Run starts the proxy and blocks until ctx is cancelled, then shuts down.
func (app *Application) Run(ctx context.Context) error {
	if err := app.proxy.Start(ctx); err != nil {
		_ = app.tap.Close()
		return fmt.Errorf("failed to start proxy: %w", err)
	}

	log.Info(map[string]any{
		"address":   app.proxy.Addr().String(),
		"transport": "UDP",
		"entries":   app.filter.Len(),
	}, "DNS filter started")

	<-ctx.Done()

	log.Info(nil, "Shutdown initiated")
	return app.shutdown()
}

// shutdown stops the proxy before closing the tap, so no frame is emitted
// into a closed sink.
func (app *Application) shutdown() error {
	done := make(chan error, 1)
	go func() {
		var errs []error
		if err := app.proxy.Stop(); err != nil {
			log.Warn(map[string]any{"error": err.Error()}, "Error during proxy shutdown")
			errs = append(errs, err)
		}
		if err := app.tap.Close(); err != nil {
			log.Warn(map[string]any{"error": err.Error()}, "Error closing dnstap output")
			errs = append(errs, err)
		}
		done <- errors.Join(errs...)
	}()

	select {
	case err := <-done:
		st := app.filter.Stats()
		log.Info(map[string]any{
			"lookups":        st.Lookups,
			"blocked":        st.Blocked,
			"bloom_negative": st.BloomNegative,
			"scans":          st.Scans,
			"cache_hits":     st.CacheHits,
			"cache_misses":   st.CacheMisses,
		}, "Blacklist statistics")
		if err == nil {
			log.Info(nil, "Graceful shutdown completed")
		}
		return err
	case <-time.After(defaultShutdownTimeout):
		log.Warn(map[string]any{"timeout": defaultShutdownTimeout.String()}, "Shutdown timeout exceeded")
		return errors.New("shutdown timeout")
	}
}

// normalizeName strips a trailing root dot so command-line names match the
// form the codec produces.
func normalizeName(name string) string {
	return strings.TrimSuffix(strings.TrimSpace(name), ".")
}
