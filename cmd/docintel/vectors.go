package main

import (
	"context"
	"flag"
	"fmt"
)

// runVectors dispatches `docintel vectors <subcommand>`. Currently only
// `reset` is implemented, grounded on the original embedding store's
// drop-and-recreate-collection reset utility.
func runVectors(args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("usage: docintel vectors reset [--config-dir DIR] --collection NAME")
	}

	switch args[0] {
	case "reset":
		return runVectorsReset(args[1:])
	default:
		return fmt.Errorf("unknown vectors subcommand %q", args[0])
	}
}

func runVectorsReset(args []string) error {
	fs := flag.NewFlagSet("vectors reset", flag.ExitOnError)
	configDir := configDirFlag(fs)
	collection := fs.String("collection", "", "vector collection to reset")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *collection == "" {
		return fmt.Errorf("--collection is required")
	}

	ctx := context.Background()
	c, err := newCore(ctx, *configDir)
	if err != nil {
		return err
	}
	defer c.Close()

	removed, err := c.vectors.ResetCollection(ctx, *collection)
	if err != nil {
		return fmt.Errorf("failed to reset collection %q: %w", *collection, err)
	}
	fmt.Printf("removed %d vectors from collection %q\n", removed, *collection)
	return nil
}
