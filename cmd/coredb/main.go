// Command coredb is a deliberately thin administrative front end over
// pkg/coredb: open a database directory and run one operation against
// it. It exists to exercise the store end to end, not to be a rich CLI
// with a broader resource-management surface area.
package main

import (
	"fmt"
	"os"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/corelang/store/pkg/corelog"
)

var (
	flagPath       string
	flagMaxSizeMB  int
	flagCacheBytes int
	flagLogLevel   string
	flagLogJSON    bool
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "coredb",
	Short: "Administrative CLI for the content-addressed store",
	Long: `coredb opens a database directory and runs a single operation
against it: stow a resource, load one back, put or get a key, run one
GC pass, compact a persisted LSM index, or print backend stats.`,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagPath, "path", "", "database directory (required)")
	rootCmd.PersistentFlags().IntVar(&flagMaxSizeMB, "max-size-mb", 0, "upper bound on backend file size, 0 for unbounded")
	rootCmd.PersistentFlags().IntVar(&flagCacheBytes, "cache-bytes", 0, "passed through to the store's options; nothing reads it (the LSM-tree has no node cache)")
	rootCmd.PersistentFlags().StringVar(&flagLogLevel, "log-level", "info", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().BoolVar(&flagLogJSON, "log-json", true, "emit logs as JSON")
	_ = rootCmd.MarkPersistentFlagRequired("path")

	cobra.OnInitialize(initLogging)

	rootCmd.AddCommand(stowCmd, loadCmd, putCmd, getCmd, gcCmd, compactCmd, statsCmd)
}

func initLogging() {
	corelog.Init(corelog.Config{
		Level:      corelog.Level(flagLogLevel),
		JSONOutput: flagLogJSON,
	})
}

// requestLogger tags every administrative command's log lines with a
// fresh request id, for correlating a single invocation's log lines.
func requestLogger(component string) zerolog.Logger {
	return corelog.WithComponent(component).With().Str("request_id", uuid.New().String()).Logger()
}
