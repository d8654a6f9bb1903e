package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Print backend size and free-page count",
	RunE:  runStats,
}

func runStats(cmd *cobra.Command, args []string) error {
	db, err := openDB()
	if err != nil {
		return err
	}
	defer db.Close()

	s, err := db.Stats()
	if err != nil {
		return fmt.Errorf("coredb stats: %w", err)
	}
	fmt.Printf("size_bytes=%d free_pages=%d\n", s.SizeBytes, s.FreePages)
	return nil
}
