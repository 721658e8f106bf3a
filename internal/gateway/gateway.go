// Package gateway is the HTTP/WebSocket surface over the simulation
// system: unit/patient/event reads, scenario CRUD, run dispatch, and the
// two live streams (replay, run progress). Route table follows §6 of the
// design: read-only GETs stay open, mutating routes require an operator
// bearer token.
package gateway

import (
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/wardops/simcore/internal/auth"
	"github.com/wardops/simcore/internal/kpi"
	"github.com/wardops/simcore/internal/runner"
	"github.com/wardops/simcore/internal/simerrors"
	"github.com/wardops/simcore/internal/store"
	"github.com/wardops/simcore/pkg/circuit"
	"github.com/wardops/simcore/pkg/messaging"
)

// Gateway is the API gateway: one gin.Engine serving every route this
// deployable exposes.
type Gateway struct {
	router   *gin.Engine
	store    *store.Store
	runner   *runner.Runner
	kpi      *kpi.Reader
	auth     *auth.Service
	msgClient *messaging.Client
	breakers *circuit.BreakerGroup

	wsMu      sync.RWMutex
	wsClients map[uuid.UUID]*WSClient

	rateLimiter *RateLimiter
	corsOrigins []string
}

// RateLimiter is a sliding-window per-key limiter: it keeps each key's
// request timestamps and counts those still inside the window.
type RateLimiter struct {
	mu       sync.Mutex
	requests map[string][]time.Time
	limit    int
	window   time.Duration
}

// Config holds gateway configuration, populated by cmd/server's
// loadConfig from the environment.
type Config struct {
	Port            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	RateLimitWindow time.Duration
	RateLimitMax    int
	CORSOrigins     []string
}

// Deps bundles the components the gateway dispatches into. Each is
// already constructed by cmd/server; the gateway only wires routes to
// them.
type Deps struct {
	Store     *store.Store
	Runner    *runner.Runner
	KPI       *kpi.Reader
	Auth      *auth.Service
	MsgClient *messaging.Client
}

// New builds a Gateway and registers every route.
func New(cfg Config, deps Deps) *Gateway {
	if cfg.RateLimitMax == 0 {
		cfg.RateLimitMax = 120
	}
	if cfg.RateLimitWindow == 0 {
		cfg.RateLimitWindow = time.Minute
	}

	g := &Gateway{
		router:    gin.Default(),
		store:     deps.Store,
		runner:    deps.Runner,
		kpi:       deps.KPI,
		auth:      deps.Auth,
		msgClient: deps.MsgClient,
		breakers: circuit.NewBreakerGroup(circuit.Config{
			MaxFailures: 5,
			Timeout:     30 * time.Second,
			HalfOpenMax: 3,
		}),
		wsClients: make(map[uuid.UUID]*WSClient),
		rateLimiter: &RateLimiter{
			requests: make(map[string][]time.Time),
			limit:    cfg.RateLimitMax,
			window:   cfg.RateLimitWindow,
		},
		corsOrigins: cfg.CORSOrigins,
	}

	g.setupRoutes()
	return g
}

func (g *Gateway) setupRoutes() {
	g.router.Use(g.corsMiddleware())
	g.router.Use(g.rateLimitMiddleware())
	g.router.Use(g.tracingMiddleware())

	g.router.GET("/health", g.healthCheck)

	api := g.router.Group("/api")
	{
		api.GET("/units", g.listUnits)
		api.GET("/units/:id", g.getUnit)
		api.GET("/units/:id/beds", g.unitBeds)

		api.GET("/patients", g.listPatients)
		api.GET("/patients/:id", g.getPatient)
		api.GET("/patients/:id/trace", g.patientTrace)

		api.GET("/events", g.listEvents)
		api.GET("/nurses", g.listNurses)
		api.GET("/metrics/kpi", g.kpiSnapshot)

		api.GET("/scenarios", g.listScenarios)
		api.POST("/scenarios", g.authMiddleware(), g.createScenario)
		api.GET("/scenarios/:id", g.getScenario)
		api.PUT("/scenarios/:id", g.authMiddleware(), g.updateScenario)
		api.DELETE("/scenarios/:id", g.authMiddleware(), g.deleteScenario)
		api.GET("/scenarios/:id/runs", g.listScenarioRuns)
		api.GET("/scenarios/:id/results", g.latestScenarioResult)

		api.POST("/simulation/run", g.authMiddleware(), g.createRun)
		api.GET("/simulation/:job_id/status", g.runStatus)
		api.DELETE("/simulation/:job_id", g.authMiddleware(), g.cancelRun)
		api.POST("/simulation/compare", g.authMiddleware(), g.compareScenario)
		api.GET("/simulation/ws/:job_id", g.handleRunProgressWS)

		api.POST("/demo/load", g.authMiddleware(), g.loadDemo)
		api.GET("/demo/status", g.demoStatus)
		api.DELETE("/demo/clear", g.authMiddleware(), g.clearDemo)

		api.GET("/ws/replay", g.handleReplayWS)
	}
}

// Start runs the gateway's HTTP server. It blocks until the server stops;
// callers that need a graceful shutdown hook should build their own
// *http.Server around Router() instead.
func (g *Gateway) Start(addr string) error {
	return g.router.Run(addr)
}

// Router exposes the underlying handler so cmd/server can serve it behind
// an *http.Server it controls directly, making a real Shutdown(ctx) call
// possible instead of only being able to stop accepting connections.
func (g *Gateway) Router() http.Handler {
	return g.router
}

// Middleware

func (g *Gateway) authMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		token := c.GetHeader("Authorization")
		if token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"detail": "missing authorization"})
			return
		}

		claims, err := g.auth.VerifyToken(token)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"detail": "invalid token"})
			return
		}

		c.Set("operator", claims.Username)
		c.Next()
	}
}

func (g *Gateway) corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		origin := c.GetHeader("Origin")
		if origin != "" && g.originAllowed(origin) {
			c.Header("Access-Control-Allow-Origin", origin)
			c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
			c.Header("Access-Control-Allow-Headers", "Authorization, Content-Type")
		}
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}

func (g *Gateway) originAllowed(origin string) bool {
	if len(g.corsOrigins) == 0 {
		return true
	}
	for _, o := range g.corsOrigins {
		if o == "*" || o == origin {
			return true
		}
	}
	return false
}

func (g *Gateway) rateLimitMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		ip := c.ClientIP()
		if !g.rateLimiter.Allow(ip) {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"detail": "rate limit exceeded"})
			return
		}
		c.Next()
	}
}

func (g *Gateway) tracingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		correlationID := c.GetHeader("X-Correlation-ID")
		if correlationID == "" {
			correlationID = uuid.New().String()
		}
		c.Set("correlation_id", correlationID)
		c.Header("X-Correlation-ID", correlationID)
		c.Next()
	}
}

// Allow reports whether key may make another request within the window.
func (rl *RateLimiter) Allow(key string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()
	cutoff := now.Add(-rl.window)

	valid := make([]time.Time, 0, len(rl.requests[key]))
	for _, t := range rl.requests[key] {
		if t.After(cutoff) {
			valid = append(valid, t)
		}
	}

	if len(valid) >= rl.limit {
		rl.requests[key] = valid
		return false
	}

	rl.requests[key] = append(valid, now)
	return true
}

func (g *Gateway) healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "healthy"})
}

// respondError maps a simerrors.Kind to its HTTP status; anything that
// isn't a *simerrors.Error falls back to 500 without leaking internals.
func respondError(c *gin.Context, err error) {
	if kind, ok := simerrors.KindOf(err); ok {
		c.JSON(kind.StatusCode(), gin.H{"detail": err.Error()})
		return
	}
	c.JSON(http.StatusInternalServerError, gin.H{"detail": "internal error"})
}

func parseUUIDParam(c *gin.Context, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "invalid id"})
		return uuid.UUID{}, false
	}
	return id, true
}

func parseIntParam(c *gin.Context, name string) (int, bool) {
	v, err := strconv.Atoi(c.Param(name))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "invalid id"})
		return 0, false
	}
	return v, true
}

func queryIntDefault(c *gin.Context, key string, def int) int {
	raw := c.Query(key)
	if raw == "" {
		return def
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return def
	}
	return v
}

func queryTime(c *gin.Context, key string) (*time.Time, error) {
	raw := c.Query(key)
	if raw == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func parseCORSOrigins(raw string) []string {
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
