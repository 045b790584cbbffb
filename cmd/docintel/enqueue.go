package main

import (
	"context"
	"flag"
	"fmt"
)

func runEnqueue(args []string) error {
	fs := flag.NewFlagSet("enqueue", flag.ExitOnError)
	configDir := configDirFlag(fs)
	pool := fs.String("pool", "", "target pool name")
	payload := fs.String("payload", "{}", "job payload as a JSON object")
	priority := fs.Int("priority", 0, "job priority, higher claims first")
	jobID := fs.String("job-id", "", "job id to assign (generated if empty)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *pool == "" {
		return fmt.Errorf("--pool is required")
	}

	ctx := context.Background()
	c, err := newCore(ctx, *configDir)
	if err != nil {
		return err
	}
	defer c.Close()

	if !c.cfg.PoolRegistry.Has(*pool) {
		return fmt.Errorf("unknown pool %q", *pool)
	}

	if err := c.br.Enqueue(ctx, *pool, *jobID, []byte(*payload), *priority); err != nil {
		return fmt.Errorf("enqueue failed: %w", err)
	}
	fmt.Printf("enqueued job on pool %q\n", *pool)
	return nil
}
