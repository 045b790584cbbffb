package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"text/tabwriter"
)

func runPools(args []string) error {
	fs := flag.NewFlagSet("pools", flag.ExitOnError)
	configDir := configDirFlag(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}

	ctx := context.Background()
	c, err := newCore(ctx, *configDir)
	if err != nil {
		return err
	}
	defer c.Close()

	w := tabwriter.NewWriter(os.Stdout, 0, 2, 2, ' ', 0)
	defer w.Flush()

	// WORKERS_REGISTERED reads this process's in-memory Registry, which is
	// always empty here since `pools` runs standalone rather than inside
	// a `worker` process; it's printed for symmetry with GET /api/pools,
	// which does reflect live registrations.
	fmt.Fprintln(w, "POOL\tRESOURCE_TIER\tMAX_CONCURRENCY\tQUEUE_DEPTH\tWORKERS_REGISTERED")
	for name, pool := range c.cfg.PoolRegistry.GetAll() {
		depth, err := c.br.QueueDepth(ctx, name)
		if err != nil {
			depth = -1
		}
		fmt.Fprintf(w, "%s\t%s\t%d\t%d\t%d\n",
			name, pool.ResourceTier, pool.MaxConcurrency, depth, c.registry.PoolWorkerCount(name))
	}
	return nil
}
