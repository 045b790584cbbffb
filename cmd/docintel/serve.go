package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/crypto/bcrypt"

	"github.com/arkhamforge/docintel/pkg/events"
	"github.com/arkhamforge/docintel/pkg/extension"
	"github.com/arkhamforge/docintel/pkg/jobstore"
	"github.com/arkhamforge/docintel/pkg/notify"
	"github.com/arkhamforge/docintel/pkg/worker"

	"github.com/arkhamforge/docintel/pkg/api"
)

func runServe(args []string) error {
	fs := flag.NewFlagSet("serve", flag.ExitOnError)
	configDir := configDirFlag(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}

	gin.SetMode(getEnv("GIN_MODE", "release"))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	c, err := newCore(ctx, *configDir)
	if err != nil {
		return err
	}
	defer c.Close()

	if err := registerExtensions(ctx, c); err != nil {
		return err
	}

	orphanScanner := worker.NewOrphanScanner(c.br, c.jobs, c.registry, c.bus, c.cfg.Queue.OrphanThreshold, c.cfg.Queue.OrphanDetectionInterval)
	orphanScanner.Start(ctx)
	defer orphanScanner.Stop()

	go c.dispatcher.Run(ctx)
	go c.completion.Run(ctx)

	retentionWindow := 7 * 24 * time.Hour
	retention := jobstore.NewRetentionService(c.jobs, retentionWindow, 1*time.Hour)
	retention.Start(ctx)
	defer retention.Stop()

	server := api.NewServer(c.db, c.cfg.PoolRegistry, c.registry, c.dispatcher, c.documents, c.chunks, c.entities, c.vectors, c.jobs, c.eventLog, c.extHost)
	server.SetTailServer(events.NewTailServer(c.bus))

	if hash := authHash(); hash != nil {
		server.SetAuthHash(hash)
	}

	httpPort := getEnv("HTTP_PORT", "8080")
	log.Printf("starting docintel on :%s", httpPort)

	errCh := make(chan error, 1)
	go func() {
		if err := server.Start(":" + httpPort); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		log.Println("shutdown signal received")
	case err := <-errCh:
		return err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), c.cfg.Queue.GracefulShutdownTimeout)
	defer cancel()

	if err := c.extHost.Shutdown(shutdownCtx); err != nil {
		log.Printf("extension shutdown error: %v", err)
	}
	return server.Shutdown(shutdownCtx)
}

// registerExtensions resolves every declared extension's manifest (fetching
// and merging manifest_ref entries pinned to a GitHub ref, if any), then
// registers the built-in extensions whose resolved config is enabled. The
// reference notifier extension is always attempted; Service.NewService
// returns nil when Slack isn't configured, and notify.Extension tolerates
// a nil Service.
func registerExtensions(ctx context.Context, c *core) error {
	manifests := extension.NewGitHubManifestSource(os.Getenv("GITHUB_TOKEN"), 5*time.Minute)
	resolved, err := extension.DiscoverManifests(ctx, manifests, c.cfg.ExtensionRegistry.GetAll())
	if err != nil {
		log.Printf("extension manifest discovery reported errors: %v", err)
	}

	notifyService := notify.NewService(notify.ServiceConfig{
		Token:        os.Getenv("SLACK_TOKEN"),
		Channel:      os.Getenv("SLACK_CHANNEL"),
		DashboardURL: os.Getenv("DASHBOARD_URL"),
	})

	notifierCfg, declared := resolved["notifier"]
	if !declared || !notifierCfg.Enabled {
		return nil
	}
	if err := c.extHost.Register(ctx, notify.NewExtension(notifyService)); err != nil {
		if !isBenignRegisterError(err) {
			return err
		}
		log.Printf("notifier extension not registered: %v", err)
	}
	return nil
}

func isBenignRegisterError(err error) bool {
	return errors.Is(err, extension.ErrDisabled) || errors.Is(err, extension.ErrNotDeclared)
}

// authHash builds the bcrypt digest backing operator auth from
// AUTH_ENABLED/AUTH_PASSWORD, or returns nil to leave auth disabled
// (the default).
func authHash() []byte {
	enabled, _ := strconv.ParseBool(getEnv("AUTH_ENABLED", "false"))
	if !enabled {
		return nil
	}
	password := os.Getenv("AUTH_PASSWORD")
	if password == "" {
		log.Println("AUTH_ENABLED is true but AUTH_PASSWORD is unset, leaving operator auth disabled")
		return nil
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		log.Printf("failed to hash AUTH_PASSWORD, leaving operator auth disabled: %v", err)
		return nil
	}
	return hash
}
