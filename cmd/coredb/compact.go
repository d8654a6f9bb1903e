package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

var compactKeyFlag string

var compactCmd = &cobra.Command{
	Use:   "compact",
	Short: "Compact the LSM-tree persisted under --key",
	RunE:  runCompact,
}

func init() {
	compactCmd.Flags().StringVar(&compactKeyFlag, "key", "", "key the LSM-tree root is persisted under (required)")
	_ = compactCmd.MarkFlagRequired("key")
}

func runCompact(cmd *cobra.Command, args []string) error {
	logger := requestLogger("compact")

	db, err := openDB()
	if err != nil {
		return err
	}
	defer db.Close()

	tx := db.NewTransaction()
	defer tx.Drop()

	tree, err := db.LoadTree(tx, []byte(compactKeyFlag))
	if err != nil {
		return fmt.Errorf("coredb compact: %w", err)
	}
	if err := db.SaveTree(tx, []byte(compactKeyFlag), tree); err != nil {
		return fmt.Errorf("coredb compact: %w", err)
	}

	done, err := tx.Commit()
	if err != nil {
		return fmt.Errorf("coredb compact: %w", err)
	}
	select {
	case ok := <-done:
		if !ok {
			return fmt.Errorf("coredb compact: commit did not become durable")
		}
	case <-time.After(10 * time.Second):
		return fmt.Errorf("coredb compact: timed out waiting for commit")
	}
	logger.Info().Str("key", compactKeyFlag).Msg("lsm-tree compacted")
	return nil
}
