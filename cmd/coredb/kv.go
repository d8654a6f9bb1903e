package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
)

var putCmd = &cobra.Command{
	Use:   "put [key] [value]",
	Short: "Blind-write a key",
	Args:  cobra.ExactArgs(2),
	RunE:  runPut,
}

func runPut(cmd *cobra.Command, args []string) error {
	logger := requestLogger("put")

	db, err := openDB()
	if err != nil {
		return err
	}
	defer db.Close()

	done, err := db.KV().WriteKey([]byte(args[0]), []byte(args[1]))
	if err != nil {
		return fmt.Errorf("coredb put: %w", err)
	}
	select {
	case ok := <-done:
		if !ok {
			return fmt.Errorf("coredb put: write did not become durable")
		}
	case <-time.After(10 * time.Second):
		return fmt.Errorf("coredb put: timed out waiting for commit")
	}
	logger.Info().Str("key", args[0]).Msg("key written")
	return nil
}

var getCmd = &cobra.Command{
	Use:   "get [key]",
	Short: "Read a key's current value",
	Args:  cobra.ExactArgs(1),
	RunE:  runGet,
}

func runGet(cmd *cobra.Command, args []string) error {
	db, err := openDB()
	if err != nil {
		return err
	}
	defer db.Close()

	v, err := db.KV().ReadKey([]byte(args[0]))
	if err != nil {
		return fmt.Errorf("coredb get: %w", err)
	}
	_, err = os.Stdout.Write(v)
	return err
}
