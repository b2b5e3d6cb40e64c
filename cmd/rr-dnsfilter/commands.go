package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/haukened/rr-dnsfilter/internal/dns/common/log"
	"github.com/haukened/rr-dnsfilter/internal/dns/config"
	"github.com/haukened/rr-dnsfilter/internal/dns/repos/blacklist/bloom"
	"github.com/haukened/rr-dnsfilter/internal/dns/repos/blacklist/bolt"
	"github.com/haukened/rr-dnsfilter/internal/dns/repos/blacklist/parsers"
)

// flagKeys maps command-line flags to their config paths. Only flags the
// operator actually set are applied, so unset flags never mask env or file values.
var flagKeys = map[string]string{
	"server":     "resolver",
	"port":       "port",
	"verbose":    "verbose",
	"filter":     "blacklist.file",
	"filter-db":  "blacklist.db",
	"tap-file":   "tap.file",
	"tap-socket": "tap.socket",
}

// flagOverrides returns explicitly set flags keyed by config path. Values are
// passed as strings; the config loader converts them.
func flagOverrides(cmd *cobra.Command) map[string]any {
	fs := cmd.Flags()
	out := map[string]any{}
	for name, key := range flagKeys {
		f := fs.Lookup(name)
		if f == nil || !f.Changed {
			continue
		}
		out[key] = f.Value.String()
	}
	return out
}

func newRootCmd() *cobra.Command {
	var configFile string

	root := &cobra.Command{
		Use:   appName,
		Short: "Transparent DNS forwarder that refuses blacklisted names",
		Long: `rr-dnsfilter forwards A/IN queries from LAN clients to one upstream resolver
and relays the answers unchanged. Queries whose name contains a blacklist entry
are answered REFUSED; malformed queries get FORMERR and other types NOTIMP.

Settings come from defaults, an optional YAML file (--config), DNS_* environment
variables and flags, in increasing order of precedence.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd, configFile)
		},
	}

	root.PersistentFlags().StringVar(&configFile, "config", "", "YAML config file")
	root.PersistentFlags().StringP("filter", "f", "", "newline-delimited blacklist file")
	root.PersistentFlags().String("filter-db", "", "compiled blacklist snapshot (see 'blacklist import')")

	root.Flags().StringP("server", "s", "", "upstream resolver, IPv4 address or hostname")
	root.Flags().IntP("port", "p", 53, "UDP port to listen on")
	root.Flags().BoolP("verbose", "v", false, "log every datagram")
	root.Flags().String("tap-file", "", "write a dnstap trace to this file")
	root.Flags().String("tap-socket", "", "stream a dnstap trace to this unix socket")
	root.MarkFlagsMutuallyExclusive("tap-file", "tap-socket")

	root.AddCommand(newVersionCmd(), newBlacklistCmd())
	return root
}

func runServe(cmd *cobra.Command, configFile string) error {
	cfg, err := config.Load(config.LoadOptions{File: configFile, Overrides: flagOverrides(cmd)})
	if err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}

	if err := log.Configure(log.Options{Env: cfg.Env, Level: cfg.LogLevel, Verbose: cfg.Verbose}); err != nil {
		return fmt.Errorf("logging configuration error: %w", err)
	}
	defer log.Sync()

	log.Info(map[string]any{
		"version":       version,
		"env":           cfg.Env,
		"log_level":     cfg.LogLevel,
		"verbose":       cfg.Verbose,
		"port":          cfg.Port,
		"resolver":      cfg.Resolver,
		"resolver_port": cfg.ResolverPort,
		"buffer_size":   cfg.BufferSize,
	}, "Starting rr-dnsfilter")

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)
	defer signal.Stop(sigChan)

	go func() {
		select {
		case sig := <-sigChan:
			log.Info(map[string]any{"signal": sig.String()}, "Shutdown signal received")
			cancel()
		case <-ctx.Done():
		}
	}()

	app, err := buildApplication(ctx, cfg)
	if err != nil {
		return err
	}
	if err := app.Run(ctx); err != nil {
		return err
	}
	log.Info(nil, "rr-dnsfilter stopped gracefully")
	return nil
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", appName, version)
		},
	}
}

func newBlacklistCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "blacklist",
		Short: "Manage and test blacklists",
	}
	cmd.AddCommand(newImportCmd(), newCheckCmd())
	return cmd
}

func newImportCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "import",
		Short: "Compile a text blacklist (--filter) into a snapshot (--filter-db)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			file, _ := cmd.Flags().GetString("filter")
			db, _ := cmd.Flags().GetString("filter-db")
			if file == "" || db == "" {
				return errors.New("both --filter and --filter-db are required")
			}

			lines, err := parsers.FileSource{Path: file, Logger: log.GetLogger()}.Lines()
			if err != nil {
				return err
			}
			store, err := bolt.New(db)
			if err != nil {
				return fmt.Errorf("failed to open blacklist snapshot: %w", err)
			}
			defer store.Close()

			n, err := store.Import(lines, file, time.Now().Unix())
			if err != nil {
				return fmt.Errorf("failed to import blacklist: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "imported %d entries from %s into %s (version %d)\n",
				n, file, db, store.Stats().Version)
			return nil
		},
	}
}

func newCheckCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "check <name>",
		Short: "Report whether queries for a name would be refused",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			file, _ := cmd.Flags().GetString("filter")
			db, _ := cmd.Flags().GetString("filter-db")
			if file == "" && db == "" {
				return errors.New("one of --filter or --filter-db is required")
			}

			filter, err := buildBlacklist(config.BlacklistConfig{
				File:   file,
				DB:     db,
				FPRate: bloom.DefaultFPRate,
			}, log.NewNoopLogger())
			if err != nil {
				return err
			}

			name := normalizeName(args[0])
			d := filter.Decide(name)
			if d.IsBlocked() {
				fmt.Fprintf(cmd.OutOrStdout(), "%s: refused (matches %q)\n", name, d.Entry)
				return nil
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s: allowed\n", name)
			return nil
		},
	}
}
