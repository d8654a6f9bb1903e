package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var gcCmd = &cobra.Command{
	Use:   "gc",
	Short: "Run one incremental mark-sweep pass",
	RunE:  runGC,
}

func runGC(cmd *cobra.Command, args []string) error {
	logger := requestLogger("gc")

	db, err := openDB()
	if err != nil {
		return err
	}
	defer db.Close()

	if err := db.GCOnce(); err != nil {
		return fmt.Errorf("coredb gc: %w", err)
	}
	logger.Info().Msg("gc pass complete")
	return nil
}
