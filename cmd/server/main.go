// Command server is the single deployable: it serves the read API, the
// scenario/run surface, both WebSocket streams, and the run worker pool
// out of one process. Splitting the worker out into its own binary is a
// deployment choice, not a code change; internal/runner.Work joins a NATS
// queue group either way, so running it here or in a standalone process
// behaves identically.
package main

import (
	"context"
	"database/sql"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/go-redis/redis/v8"
	_ "github.com/lib/pq"

	"github.com/wardops/simcore/internal/auth"
	"github.com/wardops/simcore/internal/gateway"
	"github.com/wardops/simcore/internal/kpi"
	"github.com/wardops/simcore/internal/runner"
	"github.com/wardops/simcore/internal/store"
	"github.com/wardops/simcore/pkg/messaging"
)

type Config struct {
	Port     string
	DSN      string
	NATSUrl  string
	RedisURL string

	ReadTimeout  time.Duration
	WriteTimeout time.Duration

	RateLimitMax    int
	RateLimitWindow time.Duration
	CORSOrigins     string

	OperatorUsername string
	OperatorPassword string
	JWTSecret        string

	RunTimeout time.Duration
	QueueGroup string
}

func loadConfig() *Config {
	return &Config{
		Port:     getEnv("PORT", "8000"),
		DSN:      getEnv("DATABASE_URL", "postgres://localhost:5432/simcore?sslmode=disable"),
		NATSUrl:  getEnv("NATS_URL", "nats://localhost:4222"),
		RedisURL: getEnv("REDIS_URL", ""),

		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,

		RateLimitMax:    getEnvInt("RATE_LIMIT_MAX", 120),
		RateLimitWindow: time.Minute,
		CORSOrigins:     getEnv("CORS_ORIGINS", ""),

		OperatorUsername: getEnv("OPERATOR_USERNAME", "operator"),
		OperatorPassword: getEnv("OPERATOR_PASSWORD", "changeme"),
		JWTSecret:        getEnv("JWT_SECRET", "dev-secret-change-in-production"),

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

func getEnvInt(key string, defaultVal int) int {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	parsed, err := strconv.Atoi(val)
	if err != nil {
		return defaultVal
	}
	return parsed
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
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)

	var redisClient *redis.Client
	if cfg.RedisURL != "" {
		redisClient = redis.NewClient(&redis.Options{Addr: cfg.RedisURL})
	}

	msgClient, err := messaging.NewClient(messaging.Config{
		URL:            cfg.NATSUrl,
		Name:           "simcore-server",
		ReconnectWait:  time.Second,
		MaxReconnects:  60,
		ConnectTimeout: 10 * time.Second,
	})
	if err != nil {
		log.Fatalf("connect to NATS: %v", err)
	}
	defer msgClient.Close()

	st := store.NewStore(db)
	kpiReader := kpi.NewReader(st, redisClient)
	authSvc := auth.NewService(cfg.JWTSecret, cfg.OperatorUsername, cfg.OperatorPassword)

	run := runner.New(st, msgClient,
		runner.WithRunTimeout(cfg.RunTimeout),
		runner.WithQueueGroup(cfg.QueueGroup),
	)

	workCtx, cancelWork := context.WithCancel(context.Background())
	defer cancelWork()
	if err := run.Work(workCtx); err != nil {
		log.Fatalf("start run worker: %v", err)
	}

	gw := gateway.New(gateway.Config{
		Port:            cfg.Port,
		ReadTimeout:     cfg.ReadTimeout,
		WriteTimeout:    cfg.WriteTimeout,
		RateLimitMax:    cfg.RateLimitMax,
		RateLimitWindow: cfg.RateLimitWindow,
		CORSOrigins:     parseCORSList(cfg.CORSOrigins),
	}, gateway.Deps{
		Store:     st,
		Runner:    run,
		KPI:       kpiReader,
		Auth:      authSvc,
		MsgClient: msgClient,
	})

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      gw.Router(),
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}

	go func() {
		log.Printf("server starting on port %s", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server failed: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("server shutdown error: %v", err)
	}

	cancelWork()
	run.Wait(shutdownCtx)

	log.Println("server stopped")
}

func parseCORSList(raw string) []string {
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
