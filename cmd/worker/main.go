// Command worker is a standalone run-worker process: no HTTP surface, just
// internal/runner.Work draining the same NATS queue group cmd/server's
// in-process worker joins. Point several of these at one QUEUE_GROUP to
// scale run throughput horizontally without touching the gateway.
package main

import (
	"context"
	"database/sql"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/lib/pq"

	"github.com/wardops/simcore/internal/runner"
	"github.com/wardops/simcore/internal/store"
	"github.com/wardops/simcore/pkg/messaging"
)

type Config struct {
	DSN        string
	NATSUrl    string
	RunTimeout time.Duration
	QueueGroup string
}

func loadConfig() *Config {
	return &Config{
		DSN:        getEnv("DATABASE_URL", "postgres://localhost:5432/simcore?sslmode=disable"),
		NATSUrl:    getEnv("NATS_URL", "nats://localhost:4222"),
		RunTimeout: getEnvDuration("RUN_TIMEOUT", 300*time.Second),
		QueueGroup: getEnv("QUEUE_GROUP", "runner-workers"),
	}
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(val)
	if err != nil {
		return defaultVal
	}
	return d
}

func main() {
	cfg := loadConfig()

	db, err := sql.Open("postgres", cfg.DSN)
	if err != nil {
		log.Fatalf("connect to postgres: %v", err)
	}
	defer db.Close()

	msgClient, err := messaging.NewClient(messaging.Config{
		URL:            cfg.NATSUrl,
		Name:           "simcore-worker",
		ReconnectWait:  time.Second,
		MaxReconnects:  60,
		ConnectTimeout: 10 * time.Second,
	})
	if err != nil {
		log.Fatalf("connect to NATS: %v", err)
	}
	defer msgClient.Close()

	st := store.NewStore(db)
	run := runner.New(st, msgClient,
		runner.WithRunTimeout(cfg.RunTimeout),
		runner.WithQueueGroup(cfg.QueueGroup),
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := run.Work(ctx); err != nil {
		log.Fatalf("start run worker: %v", err)
	}

	log.Printf("worker joined queue group %q", cfg.QueueGroup)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("shutting down worker...")
	cancel()

	waitCtx, waitCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer waitCancel()
	run.Wait(waitCtx)

	log.Println("worker stopped")
}
