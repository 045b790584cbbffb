package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/arkhamforge/docintel/pkg/worker"
)

func runWorker(args []string) error {
	fs := flag.NewFlagSet("worker", flag.ExitOnError)
	configDir := configDirFlag(fs)
	pool := fs.String("pool", "", "pool name to drain (see `docintel pools`)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *pool == "" {
		return fmt.Errorf("--pool is required")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	c, err := newCore(ctx, *configDir)
	if err != nil {
		return err
	}
	defer c.Close()

	poolCfg, err := c.cfg.GetPool(*pool)
	if err != nil {
		return fmt.Errorf("unknown pool %q: %w", *pool, err)
	}

	handler, err := buildHandler(c, *pool)
	if err != nil {
		return err
	}

	workerPool := worker.NewPool(poolModelFrom(poolCfg), c.br, handler, c.bus, c.registry, worker.Config{
		PollInterval:       c.cfg.Queue.PollInterval,
		PollIntervalJitter: c.cfg.Queue.PollIntervalJitter,
		HeartbeatInterval:  c.cfg.Queue.HeartbeatInterval,
	})

	log.Printf("starting worker pool %q (%d workers)", *pool, poolCfg.MaxConcurrency)
	workerPool.Start(ctx)

	<-ctx.Done()
	log.Printf("shutdown signal received, draining pool %q", *pool)
	workerPool.Stop()
	return nil
}
