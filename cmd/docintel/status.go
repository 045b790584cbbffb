package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
)

func runStatus(args []string) error {
	fs := flag.NewFlagSet("status", flag.ExitOnError)
	configDir := configDirFlag(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return fmt.Errorf("usage: docintel status [--config-dir DIR] JOB_ID")
	}
	jobID := fs.Arg(0)

	ctx := context.Background()
	c, err := newCore(ctx, *configDir)
	if err != nil {
		return err
	}
	defer c.Close()

	job, err := c.jobs.Get(ctx, jobID)
	if err != nil {
		return fmt.Errorf("failed to look up job %s: %w", jobID, err)
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(job)
}
