// Command docintel runs the document intelligence pipeline: the HTTP API
// server, per-pool worker processes, and a handful of operator utilities,
// all against the same Postgres-backed content store and job queue.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	cmd := os.Args[1]
	args := os.Args[2:]

	var err error
	switch cmd {
	case "serve":
		err = runServe(args)
	case "worker":
		err = runWorker(args)
	case "enqueue":
		err = runEnqueue(args)
	case "ingest":
		err = runIngest(args)
	case "status":
		err = runStatus(args)
	case "pools":
		err = runPools(args)
	case "vectors":
		err = runVectors(args)
	case "-h", "--help", "help":
		usage()
		return
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n", cmd)
		usage()
		os.Exit(2)
	}

	if err != nil {
		log.Fatalf("docintel %s: %v", cmd, err)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, `docintel — document intelligence pipeline

Usage:
  docintel serve   [--config-dir DIR]
  docintel worker  [--config-dir DIR] --pool NAME
  docintel ingest  [--config-dir DIR] --file PATH
  docintel enqueue [--config-dir DIR] --pool NAME --payload JSON
  docintel status  [--config-dir DIR] JOB_ID
  docintel pools   [--config-dir DIR]
  docintel vectors reset [--config-dir DIR] --collection NAME`)
}

// configDirFlag registers the --config-dir flag shared by every subcommand.
func configDirFlag(fs *flag.FlagSet) *string {
	return fs.String("config-dir", getEnv("CONFIG_DIR", "./deploy/config"), "path to configuration directory")
}
