package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/corelang/store/pkg/chash"
)

var loadCmd = &cobra.Command{
	Use:   "load [hash]",
	Short: "Load a resource by hash and print its bytes to stdout",
	Args:  cobra.ExactArgs(1),
	RunE:  runLoad,
}

func runLoad(cmd *cobra.Command, args []string) error {
	h, err := chash.Parse(args[0])
	if err != nil {
		return fmt.Errorf("coredb load: %w", err)
	}

	db, err := openDB()
	if err != nil {
		return err
	}
	defer db.Close()

	data, err := db.Resources().Load(h)
	if err != nil {
		return fmt.Errorf("coredb load: %w", err)
	}
	_, err = os.Stdout.Write(data)
	return err
}
