// Package main provides the graphkernel CLI entry point.
package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"
	"github.com/spf13/cobra"

	"github.com/orneryd/graphkernel/pkg/config"
	"github.com/orneryd/graphkernel/pkg/fixture"
	"github.com/orneryd/graphkernel/pkg/index"
	"github.com/orneryd/graphkernel/pkg/kernel"
	"github.com/orneryd/graphkernel/pkg/logging"
	"github.com/orneryd/graphkernel/pkg/metrics"
	"github.com/orneryd/graphkernel/pkg/storage"
)

var (
	version   = "0.1.0"
	commit    = "dev"
	buildTime = "unknown" // Set via ldflags: -X main.buildTime=$(date +%Y%m%d-%H%M%S)
)

func main() {
	if err := newRootCmd(os.Stdout, os.Stderr).Execute(); err != nil {
		os.Exit(1)
	}
}

// app is the state shared by commands that touch the store.
type app struct {
	out io.Writer
	log *slog.Logger

	cfg      *config.Config
	store    *storage.BadgerStore
	catalog  *index.Catalog
	metrics  *metrics.Metrics
	registry *prometheus.Registry
}

func newRootCmd(out, errOut io.Writer) *cobra.Command {
	a := &app{out: out}

	rootCmd := &cobra.Command{
		Use:   "graphkernel",
		Short: "graphkernel - inspect a property graph through its read path",
		Long: `graphkernel opens a BadgerDB-backed property graph and answers reads
the way a query engine would: snapshot-filtered scans, index seeks, unique
lookups and degree queries.

Tokens (labels, relationship types, property keys) are given as numeric ids.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Annotations["store"] != "true" {
				return nil
			}
			return a.open(cmd, errOut)
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Annotations["store"] != "true" {
				return nil
			}
			return a.close(cmd, errOut)
		},
	}
	rootCmd.SetOut(out)
	rootCmd.SetErr(errOut)

	flags := rootCmd.PersistentFlags()
	flags.String("config", "", "Config file (default: first of ~/.graphkernel/config.yaml, ./graphkernel.yaml, ./config.yaml)")
	flags.String("data-dir", "", "Data directory (overrides config)")
	flags.Bool("in-memory", false, "Use an in-memory store (pair with --fixture)")
	flags.String("fixture", "", "Load a YAML fixture before running the command")
	flags.String("log-level", "", "Log level: debug, info, warn, error (overrides config)")
	flags.Int("dense-threshold", 0, "Degree hint at which degree queries read group summaries (overrides config)")
	flags.Bool("metrics-dump", false, "Print collected metrics to stderr on exit")

	rootCmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "graphkernel v%s (%s) built %s\n", version, commit, buildTime)
		},
	})

	rootCmd.AddCommand(
		storeCmd(newLoadCmd(a)),
		storeCmd(newScanCmd(a)),
		storeCmd(newSeekCmd(a)),
		storeCmd(newUniqueCmd(a)),
		storeCmd(newDegreeCmd(a)),
		storeCmd(newTypesCmd(a)),
		storeCmd(newStatsCmd(a)),
		storeCmd(newBackupCmd(a)),
		storeCmd(newRestoreCmd(a)),
		newIndexCmd(a),
	)
	return rootCmd
}

// storeCmd marks cmd as needing an open store.
func storeCmd(cmd *cobra.Command) *cobra.Command {
	if cmd.Annotations == nil {
		cmd.Annotations = map[string]string{}
	}
	cmd.Annotations["store"] = "true"
	return cmd
}

func (a *app) open(cmd *cobra.Command, errOut io.Writer) error {
	flags := cmd.Flags()

	configPath, _ := flags.GetString("config")
	if configPath == "" {
		configPath = config.FindConfigFile()
	}
	cfg, err := config.LoadFromFile(configPath)
	if err != nil {
		return err
	}
	if v, _ := flags.GetString("data-dir"); v != "" {
		cfg.Storage.DataDir = v
	}
	if v, _ := flags.GetBool("in-memory"); v {
		cfg.Storage.InMemory = true
	}
	if v, _ := flags.GetString("log-level"); v != "" {
		cfg.Logging.Level = v
	}
	if v, _ := flags.GetInt("dense-threshold"); v != 0 {
		cfg.Kernel.DenseNodeThreshold = v
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	a.cfg = cfg
	a.log = logging.New(cfg.Logging, errOut)
	a.log.Debug("configuration loaded", "path", configPath, "config", cfg.String())

	if cfg.Metrics.Enabled {
		a.registry = prometheus.NewRegistry()
		a.metrics = metrics.New(cfg.Metrics.Namespace, a.registry)
	}

	a.store, err = storage.NewBadgerStoreWithOptions(storage.BadgerOptions{
		DataDir:      cfg.Storage.DataDir,
		InMemory:     cfg.Storage.InMemory,
		SyncWrites:   cfg.Storage.SyncWrites,
		LowMemory:    cfg.Storage.LowMemory,
		PrefetchSize: cfg.Storage.ScanPrefetch,
		Logger:       a.log,
	})
	if err != nil {
		return err
	}
	a.catalog = index.NewCatalog(a.store, a.log)

	if path, _ := flags.GetString("fixture"); path != "" {
		if _, err := fixture.LoadFile(a.store, path, a.log); err != nil {
			a.store.Close()
			return err
		}
	}
	return nil
}

func (a *app) close(cmd *cobra.Command, errOut io.Writer) error {
	if dump, _ := cmd.Flags().GetBool("metrics-dump"); dump && a.registry != nil {
		families, err := a.registry.Gather()
		if err != nil {
			return err
		}
		enc := expfmt.NewEncoder(errOut, expfmt.NewFormat(expfmt.TypeTextPlain))
		for _, mf := range families {
			if err := enc.Encode(mf); err != nil {
				return err
			}
		}
	}
	if a.store == nil {
		return nil
	}
	return a.store.Close()
}

// reader opens a statement at the latest commit.
func (a *app) reader() *kernel.Reader {
	stmt := kernel.NewStatement(a.store.Snapshot())
	return kernel.NewReader(a.store, a.catalog, stmt, kernel.Options{
		DenseNodeThreshold: a.cfg.Kernel.DenseNodeThreshold,
		Logger:             a.log,
		Metrics:            a.metrics,
	})
}
