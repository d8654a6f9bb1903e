package main

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"
)

var stowCmd = &cobra.Command{
	Use:   "stow [file]",
	Short: "Stow a resource and print its hash",
	Long: `Reads bytes from the given file (or stdin, if omitted), stows
them as a resource, commits the otherwise empty transaction so the
resource is flushed to disk, then drops the transaction, releasing the
stow's ephemeral root. It prints the hash but does not keep the
resource alive: nothing roots it, so the next GC pass reclaims it.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runStow,
}

func runStow(cmd *cobra.Command, args []string) error {
	logger := requestLogger("stow")

	var data []byte
	var err error
	if len(args) == 1 {
		data, err = os.ReadFile(args[0])
	} else {
		data, err = io.ReadAll(os.Stdin)
	}
	if err != nil {
		return fmt.Errorf("coredb stow: failed to read input: %w", err)
	}

	db, err := openDB()
	if err != nil {
		return err
	}
	defer db.Close()

	tx := db.NewTransaction()
	h := tx.StowResource(data)
	done, err := tx.Commit()
	if err != nil {
		return err
	}
	select {
	case <-done:
	case <-time.After(10 * time.Second):
		return fmt.Errorf("coredb stow: timed out waiting for commit")
	}
	tx.Drop()

	logger.Info().Str("hash", h.String()).Int("bytes", len(data)).Msg("stowed resource")
	fmt.Println(h.String())
	return nil
}
