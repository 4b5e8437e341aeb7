package router

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/jwalitptl/neuroscan-api/internal/chat"
	"github.com/jwalitptl/neuroscan-api/internal/handler/admin"
	authh "github.com/jwalitptl/neuroscan-api/internal/handler/auth"
	chath "github.com/jwalitptl/neuroscan-api/internal/handler/chat"
	"github.com/jwalitptl/neuroscan-api/internal/handler/doctor"
	"github.com/jwalitptl/neuroscan-api/internal/handler/files"
	"github.com/jwalitptl/neuroscan-api/internal/handler/health"
	patienth "github.com/jwalitptl/neuroscan-api/internal/handler/patient"
	prometheush "github.com/jwalitptl/neuroscan-api/internal/handler/prometheus"
	"github.com/jwalitptl/neuroscan-api/internal/handler/public"
	"github.com/jwalitptl/neuroscan-api/internal/inference"
	"github.com/jwalitptl/neuroscan-api/internal/middleware"
	"github.com/jwalitptl/neuroscan-api/internal/repository"
	"github.com/jwalitptl/neuroscan-api/internal/service/account"
	adminsvc "github.com/jwalitptl/neuroscan-api/internal/service/admin"
	authsvc "github.com/jwalitptl/neuroscan-api/internal/service/auth"
	"github.com/jwalitptl/neuroscan-api/internal/service/notification"
	"github.com/jwalitptl/neuroscan-api/internal/service/patient"
	"github.com/jwalitptl/neuroscan-api/internal/service/record"
	"github.com/jwalitptl/neuroscan-api/internal/service/scan"
	"github.com/jwalitptl/neuroscan-api/internal/storage"
	"github.com/jwalitptl/neuroscan-api/pkg/auth"
	"github.com/jwalitptl/neuroscan-api/pkg/logger"
	"github.com/jwalitptl/neuroscan-api/pkg/metrics"
	"github.com/jwalitptl/neuroscan-api/pkg/security"
)

type Config struct {
	Mode             string
	AllowedOrigins   []string
	RateLimitEnabled bool
	RateLimit        middleware.RateLimiterConfig
	RequestTimeout   time.Duration
	MaxBodyBytes     int64
	ShareBaseURL     string
	ScanThreshold    float64
	Chat             chat.Config
	// ServeFiles exposes /files for the local storage backend.
	ServeFiles bool
}

// Deps are the long-lived collaborators the API is built from.
type Deps struct {
	Store     *repository.Store
	Storage   storage.Storage
	Inference inference.Client
	Tokens    *auth.TokenService
	Hasher    security.PasswordHasher
	Codes     security.CodeGenerator
	Metrics   *metrics.Metrics
	Gatherer  prometheus.Gatherer
	Logger    *logger.Logger
	// Hub and Relay default to a fresh hub with local delivery.
	Hub   *chat.Hub
	Relay chat.Relay
}

type Router struct {
	engine *gin.Engine
	config Config
	deps   Deps
	auth   *middleware.AuthMiddleware

	Admin *adminsvc.Service
	Chat  *chat.Service
}

func NewRouter(deps Deps, config Config) *Router {
	if config.Mode != "" {
		gin.SetMode(config.Mode)
	}
	if deps.Metrics == nil {
		deps.Metrics = metrics.NewNop()
	}
	if deps.Logger == nil {
		deps.Logger = logger.FromGlobal()
	}
	if deps.Hub == nil {
		deps.Hub = chat.NewHub(deps.Metrics)
	}

	engine := gin.New()
	engine.Use(
		middleware.Recovery(),
		middleware.RequestID(),
		middleware.Logger(),
		middleware.ErrorHandler(),
		middleware.Metrics(deps.Metrics),
		middleware.SecurityHeaders(middleware.DefaultSecurityConfig()),
		middleware.CORS(config.AllowedOrigins),
	)
	if config.RateLimitEnabled {
		engine.Use(middleware.NewRateLimiter(config.RateLimit).RateLimit())
	}

	sizeCfg := middleware.DefaultSizeLimitConfig()
	if config.MaxBodyBytes > 0 {
		sizeCfg.MaxBodySize = config.MaxBodyBytes
	}
	timeoutCfg := middleware.DefaultTimeoutConfig()
	if config.RequestTimeout > 0 {
		timeoutCfg.Duration = config.RequestTimeout
	}
	engine.Use(middleware.SizeLimit(sizeCfg), middleware.Timeout(timeoutCfg))

	engine.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"status": "error", "message": "route not found"})
	})

	return &Router{
		engine: engine,
		config: config,
		deps:   deps,
		auth:   middleware.NewAuthMiddleware(deps.Tokens, deps.Store.Accounts, deps.Metrics),
	}
}

// Setup builds the services and registers every route.
func (r *Router) Setup() {
	d := r.deps
	notifier := notification.NewService(d.Store.Outbox, d.Logger)

	records := record.NewService(d.Store.Accounts, d.Store.Records, d.Storage, notifier, d.Logger)
	scans := scan.NewService(d.Store.Records, d.Inference, notifier, r.config.ScanThreshold, d.Logger)
	profiles := account.NewService(d.Store.Accounts, d.Storage, d.Logger)
	patients := patient.NewService(d.Store.Accounts, d.Store.Records, d.Tokens, r.config.ShareBaseURL)
	accounts := authsvc.NewService(d.Store.Accounts, d.Store.Pending, d.Tokens, d.Hasher, d.Codes, notifier, d.Logger)
	r.Admin = adminsvc.NewService(d.Store.Accounts, notifier, d.Hasher, d.Logger)
	r.Chat = chat.NewService(d.Hub, d.Store.Chat, d.Relay, r.config.Chat, d.Logger, d.Metrics)

	root := r.engine
	health.NewHandler(d.Store.Health).RegisterRoutes(root)
	if d.Gatherer != nil {
		prometheush.New(d.Gatherer).RegisterRoutes(root)
	}
	if r.config.ServeFiles {
		files.NewHandler(d.Storage, records.Guard(), r.auth).RegisterRoutes(root)
	}

	api := root.Group("/api")
	authh.NewHandler(accounts).RegisterRoutes(api)
	admin.NewHandler(r.Admin).RegisterRoutes(api, r.auth)
	doctor.NewHandler(records, scans, profiles).RegisterRoutes(api, r.auth)
	patienth.NewHandler(patients, profiles).RegisterRoutes(api, r.auth)
	public.NewHandler(patients).RegisterRoutes(api)
	chath.NewHandler(r.Chat, d.Tokens, r.config.AllowedOrigins).RegisterRoutes(api, root, r.auth)
}

func (r *Router) Engine() *gin.Engine {
	return r.engine
}

func (r *Router) Handler() http.Handler {
	return r.engine
}
