// Command taskkit is the command-line front end of the task engine.
// Every subcommand maps 1:1 to a service operation and prints a
// uniform JSON result shell. Exit codes: 0 on success, 1 for a
// business-rule rejection, 2 for storage or internal failure.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/vinayprograms/taskkit/config"
	"github.com/vinayprograms/taskkit/errors"
	"github.com/vinayprograms/taskkit/logging"
	"github.com/vinayprograms/taskkit/store"
	"github.com/vinayprograms/taskkit/tracker"
)

var Version = "dev"

var (
	flagConfig    string
	flagStorePath string
	flagBackend   string
	flagLogLevel  string
)

func main() {
	rootCmd := &cobra.Command{
		Use:           "taskkit",
		Short:         "Local file-backed task tracker",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().StringVar(&flagConfig, "config", "", "config file (default: standard locations)")
	rootCmd.PersistentFlags().StringVar(&flagStorePath, "store", "", "store path override")
	rootCmd.PersistentFlags().StringVar(&flagBackend, "backend", "", "store backend override (file, memory, sqlite)")
	rootCmd.PersistentFlags().StringVar(&flagLogLevel, "log-level", "", "log level override (debug, info, warn, error)")

	rootCmd.AddCommand(
		addCmd(), listCmd(), startCmd(), doneCmd(), reopenCmd(),
		updateCmd(), reorderCmd(), archiveCmd(), deleteCmd(),
		metricsCmd(), integrityCmd(), exportCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		printResult(result{OK: false, Error: err.Error(), Code: errors.Code(err).String()})
		os.Exit(exitCode(err))
	}
}

// result is the uniform shell every command prints.
type result struct {
	OK    bool   `json:"ok"`
	Data  any    `json:"data,omitempty"`
	Error string `json:"error,omitempty"`
	Code  string `json:"code,omitempty"`
}

func printResult(r result) {
	out, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return
	}
	fmt.Println(string(out))
}

func succeed(data any) error {
	printResult(result{OK: true, Data: data})
	return nil
}

func exitCode(err error) int {
	if errors.Category(err) == errors.CategoryBusiness {
		return 1
	}
	return 2
}

// loadConfig resolves configuration, then applies flag overrides.
func loadConfig() (*config.Config, error) {
	var cfg *config.Config
	var err error
	if flagConfig != "" {
		cfg, err = config.LoadFile(flagConfig)
	} else {
		cfg, _, err = config.Load()
	}
	if err != nil {
		return nil, err
	}
	if flagBackend != "" {
		cfg.Store.Backend = config.Backend(flagBackend)
	}
	if flagStorePath != "" {
		cfg.Store.Path = flagStorePath
	}
	if flagLogLevel != "" {
		cfg.LogLevel = flagLogLevel
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func buildStore(cfg *config.Config, log *logging.Logger) (store.Store, error) {
	switch cfg.Store.Backend {
	case config.BackendMemory:
		return store.NewMemoryStore(), nil
	case config.BackendSQLite:
		return store.NewSQLiteStore(cfg.Store.Path)
	default:
		return store.NewFileStore(store.FileConfig{
			Path:             cfg.Store.Path,
			DebounceInterval: cfg.DebounceInterval(),
			RetryAttempts:    cfg.Store.RetryAttempts,
			RetryDelay:       cfg.RetryDelay(),
			Logger:           log,
		})
	}
}

// withTracker assembles the service, runs the operation, and tears
// down cleanly so pending writes reach disk before the process exits.
func withTracker(fn func(*tracker.Tracker) error) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	log := logging.New()
	log.SetLevel(logging.ParseLevel(cfg.LogLevel))
	log.SetOutput(os.Stderr)

	st, err := buildStore(cfg, log)
	if err != nil {
		return err
	}

	tr, err := openTracker(cfg, st, log)
	if err != nil {
		return err
	}
	defer tr.Close(context.Background())

	return fn(tr)
}

// openTracker assembles the service over an already-built store. On
// failure the store is closed so its writer does not outlive the error.
func openTracker(cfg *config.Config, st store.Store, log *logging.Logger) (*tracker.Tracker, error) {
	tr, err := tracker.New(tracker.Config{
		Store:           st,
		ReopenWindow:    cfg.ReopenWindow(),
		Logger:          log,
		SearchIndexPath: cfg.Search.IndexPath,
		HistorySize:     cfg.Repair.HistorySize,
	})
	if err != nil {
		st.Close(context.Background())
		return nil, err
	}
	return tr, nil
}
