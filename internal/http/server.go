package http

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"time"

	"famfin/internal/cache"
	"famfin/internal/core"
	"famfin/internal/log"
	"famfin/internal/middleware/ratelimit"
	"famfin/internal/middleware/security"
	"famfin/internal/middleware/trace"
	"famfin/internal/planner"
	"famfin/internal/services"

	"github.com/shopspring/decimal"
)

const (
	headerUserID    = "X-User-ID"
	headerUserName  = "X-User-Name"
	headerUserEmail = "X-User-Email"

	defaultHandlerTimeout = 15 * time.Second
	cacheCleanupInterval  = 10 * time.Minute
	notificationsLimit    = 50
)

// Store is the persistence the handlers use directly. Transaction writes and
// advisor reads go through their services.
type Store interface {
	ListCategories(ctx context.Context, userID int64, typ core.TransactionType) ([]core.Category, error)
	GetCategory(ctx context.Context, id int64) (core.Category, error)
	CreateCategory(ctx context.Context, c core.Category) (core.Category, error)
	UpdateCategory(ctx context.Context, c core.Category) error
	DeleteCategory(ctx context.Context, userID, id int64) error

	GetMonthlyPlan(ctx context.Context, userID int64, familyID *int64, month string) (core.MonthlyPlan, error)
	CreateMonthlyPlan(ctx context.Context, p core.MonthlyPlan) (core.MonthlyPlan, error)
	UpsertMonthlyPlan(ctx context.Context, p core.MonthlyPlan) (core.MonthlyPlan, error)
	DeleteMonthlyPlan(ctx context.Context, userID int64, month string) error

	GetUser(ctx context.Context, id int64) (core.User, error)
	CreateFamily(ctx context.Context, name string, createdBy int64) (core.Family, error)
	GetFamily(ctx context.Context, id int64) (core.Family, error)
	ListMembers(ctx context.Context, familyID int64) ([]core.FamilyMember, error)
	GetMember(ctx context.Context, id int64) (core.FamilyMember, error)
	AddMember(ctx context.Context, m core.FamilyMember) (core.FamilyMember, error)
	UpdateMember(ctx context.Context, m core.FamilyMember) error
	DeleteMember(ctx context.Context, familyID, id int64) error

	ListGoals(ctx context.Context, userID int64) ([]core.SavingsGoal, error)
	GetGoal(ctx context.Context, id int64) (core.SavingsGoal, error)
	CreateGoal(ctx context.Context, g core.SavingsGoal) (core.SavingsGoal, error)
	UpdateGoal(ctx context.Context, g core.SavingsGoal) error
	DeleteGoal(ctx context.Context, userID, id int64) error

	ListNotifications(ctx context.Context, userID int64, limit int) ([]core.Notification, error)
	MarkNotificationRead(ctx context.Context, userID, id int64) error

	Totals(ctx context.Context, userID int64, familyID *int64, month string) (core.Totals, error)
	Ping(ctx context.Context) error
}

// UserResolver turns the caller headers into a stored user.
type UserResolver interface {
	Resolve(ctx context.Context, id int64, name, email string) (core.User, error)
}

// TransactionManager validates, stores and announces transactions.
type TransactionManager interface {
	Create(ctx context.Context, user core.User, t core.Transaction) (core.Transaction, error)
	Get(ctx context.Context, user core.User, id int64) (core.Transaction, error)
	Update(ctx context.Context, user core.User, t core.Transaction) (core.Transaction, error)
	Delete(ctx context.Context, user core.User, id int64) error
	List(ctx context.Context, user core.User, month string) ([]core.Transaction, error)
	ListFamily(ctx context.Context, user core.User, month string) ([]core.Transaction, error)
}

// Advisor runs the budget planner over stored data.
type Advisor interface {
	Analyze(txs []core.Transaction) planner.SpendingPatterns
	BudgetRecommendations(ctx context.Context, user core.User, income decimal.Decimal) (planner.Allocation, error)
	SavingsPlan(ctx context.Context, user core.User, goal decimal.Decimal, target time.Time) (services.SavingsResult, error)
	OptimizeFamily(ctx context.Context, user core.User, members []planner.Member, budget decimal.Decimal) (planner.FamilyAllocation, error)
	Report(ctx context.Context, user core.User, from, to core.Date) (services.Report, error)
	Predict(ctx context.Context, user core.User, monthsAhead int) (map[string]planner.Trend, error)
	Chat(ctx context.Context, user core.User, question string) (string, error)
}

// Deps are the collaborators the server needs.
type Deps struct {
	Store        Store
	Users        UserResolver
	Transactions TransactionManager
	Advisor      Advisor
	Logger       *log.Logger
}

// Options tune the server. Zero values fall back to defaults.
type Options struct {
	RateLimitPerMinute int
	CacheEnabled       bool
	CacheTTL           time.Duration
	CacheSize          int
	HandlerTimeout     time.Duration
	// Ready is an extra readiness probe, e.g. the AMQP connection.
	Ready func(ctx context.Context) error
}

type Server struct {
	http.Server

	store   Store
	users   UserResolver
	txs     TransactionManager
	advisor Advisor
	logger  *log.Logger
	ready   func(ctx context.Context) error
	timeout time.Duration
	now     func() time.Time

	// totals caches dashboard figures keyed "dashboard:<user>:<month>" and
	// "family:<family>:<month>". nil when caching is disabled.
	totals       *cache.LRUCache[core.Totals]
	cacheManager *cache.Manager

	limiter  *ratelimit.Limiter
	detector *security.Detector
	tracer   *trace.Middleware

	shutdownOnce sync.Once
}

// NewServer configures routes and middleware, returning a ready-to-run server.
func NewServer(addr string, deps Deps, opts Options) *Server {
	logger := deps.Logger.WithComponent(log.ComponentHTTP)
	if opts.HandlerTimeout <= 0 {
		opts.HandlerTimeout = defaultHandlerTimeout
	}

	s := &Server{
		store:        deps.Store,
		users:        deps.Users,
		txs:          deps.Transactions,
		advisor:      deps.Advisor,
		logger:       logger,
		ready:        opts.Ready,
		timeout:      opts.HandlerTimeout,
		now:          time.Now,
		cacheManager: cache.NewManager(deps.Logger),
		limiter: ratelimit.NewLimiter(ratelimit.Config{
			RequestsPerMinute: opts.RateLimitPerMinute,
		}),
		detector: security.NewDetector(deps.Logger),
	}
	s.tracer = trace.NewMiddleware(deps.Logger, s.detector.ExtractClientIP)

	if opts.CacheEnabled {
		s.totals = cache.NewLRUCache[core.Totals](opts.CacheSize, opts.CacheTTL)
		s.cacheManager.Register(s.totals)
	}
	s.cacheManager.StartCleanup(cacheCleanupInterval)

	mux := http.NewServeMux()
	s.routes(mux)

	var handler http.Handler = mux
	handler = s.limiter.Middleware(s.rateLimitKey, s.onRateLimited)(handler)
	handler = log.Middleware(deps.Logger, trace.RequestIDFromRequest)(handler)
	handler = s.tracer.Middleware(handler)
	handler = s.detector.Middleware(handler)
	handler = security.NewHeadersMiddleware(security.DefaultHeadersConfig()).Middleware(handler)

	s.Server = http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	return s
}

func (s *Server) routes(mux *http.ServeMux) {
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)
	mux.HandleFunc("GET /metrics", s.handleMetrics)

	mux.HandleFunc("GET /api/transactions", s.authed("list_transactions", s.handleListTransactions))
	mux.HandleFunc("POST /api/transactions", s.authed("create_transaction", s.handleCreateTransaction))
	mux.HandleFunc("PUT /api/transactions/{id}", s.authed("update_transaction", s.handleUpdateTransaction))
	mux.HandleFunc("DELETE /api/transactions/{id}", s.authed("delete_transaction", s.handleDeleteTransaction))
	mux.HandleFunc("GET /api/dashboard", s.authed("dashboard", s.handleDashboard))
	mux.HandleFunc("GET /api/family-dashboard", s.authed("family_dashboard", s.handleFamilyDashboard))

	mux.HandleFunc("GET /api/categories", s.authed("list_categories", s.handleListCategories))
	mux.HandleFunc("POST /api/categories", s.authed("create_category", s.handleCreateCategory))
	mux.HandleFunc("PUT /api/categories/{id}", s.authed("update_category", s.handleUpdateCategory))
	mux.HandleFunc("DELETE /api/categories/{id}", s.authed("delete_category", s.handleDeleteCategory))

	mux.HandleFunc("GET /api/monthly-plans/{month}", s.authed("get_monthly_plan", s.handleGetPlan))
	mux.HandleFunc("POST /api/monthly-plans/{month}", s.authed("create_monthly_plan", s.handleCreatePlan))
	mux.HandleFunc("PUT /api/monthly-plans/{month}", s.authed("save_monthly_plan", s.handleSavePlan))
	mux.HandleFunc("DELETE /api/monthly-plans/{month}", s.authed("delete_monthly_plan", s.handleDeletePlan))

	mux.HandleFunc("POST /api/families", s.authed("create_family", s.handleCreateFamily))
	mux.HandleFunc("GET /api/families/me", s.authed("get_family", s.handleGetFamily))
	mux.HandleFunc("POST /api/families/me/members", s.authed("add_member", s.handleAddMember))
	mux.HandleFunc("PUT /api/families/me/members/{id}", s.authed("update_member", s.handleUpdateMember))
	mux.HandleFunc("DELETE /api/families/me/members/{id}", s.authed("delete_member", s.handleDeleteMember))

	mux.HandleFunc("GET /api/goals", s.authed("list_goals", s.handleListGoals))
	mux.HandleFunc("POST /api/goals", s.authed("create_goal", s.handleCreateGoal))
	mux.HandleFunc("PUT /api/goals/{id}", s.authed("update_goal", s.handleUpdateGoal))
	mux.HandleFunc("DELETE /api/goals/{id}", s.authed("delete_goal", s.handleDeleteGoal))

	mux.HandleFunc("GET /api/notifications", s.authed("list_notifications", s.handleListNotifications))
	mux.HandleFunc("PUT /api/notifications/{id}/read", s.authed("read_notification", s.handleReadNotification))

	mux.HandleFunc("POST /api/advisor/analyze", s.authed("advisor_analyze", s.handleAnalyze))
	mux.HandleFunc("POST /api/advisor/budget/recommendations", s.authed("advisor_budget", s.handleBudgetRecommendations))
	mux.HandleFunc("POST /api/advisor/savings-plan", s.authed("advisor_savings", s.handleSavingsPlan))
	mux.HandleFunc("POST /api/advisor/family/optimize-budget", s.authed("advisor_family", s.handleOptimizeFamily))
	mux.HandleFunc("POST /api/advisor/generate-report", s.authed("advisor_report", s.handleReport))
	mux.HandleFunc("POST /api/advisor/predict", s.authed("advisor_predict", s.handlePredict))
	mux.HandleFunc("POST /api/advisor/chat", s.authed("advisor_chat", s.handleChat))

	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		NotFoundError("route not found").Write(w)
	})
}

// authedHandler is a handler that runs for a resolved user.
type authedHandler func(w http.ResponseWriter, r *http.Request, user core.User) error

// authed resolves the caller from X-User-ID, bounds the request with the
// handler timeout and reports returned errors as JSON.
func (s *Server) authed(op string, h authedHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), s.timeout)
		defer cancel()
		r = r.WithContext(ctx)

		id, ok := parseUserID(r)
		if !ok {
			writeError(w, r, op, errUnauthorized)
			return
		}
		user, err := s.users.Resolve(ctx, id,
			sanitizeInput(r.Header.Get(headerUserName)), sanitizeInput(r.Header.Get(headerUserEmail)))
		if err != nil {
			writeError(w, r, op, err)
			return
		}

		logger := log.FromContext(ctx).With(log.NewFields().WithUser(user.ID, user.FamilyID).ToSlice()...)
		r = r.WithContext(log.NewContext(ctx, logger))
		if err := h(w, r, user); err != nil {
			writeError(w, r, op, err)
		}
	}
}

// rateLimitKey limits identified callers per user and anonymous ones per IP.
func (s *Server) rateLimitKey(r *http.Request) string {
	if id, ok := parseUserID(r); ok {
		return "user:" + strconv.FormatInt(id, 10)
	}
	return "ip:" + s.detector.ExtractClientIP(r)
}

func (s *Server) onRateLimited(w http.ResponseWriter, r *http.Request) {
	log.FromContext(r.Context()).WarnContext(r.Context(), "Rate limit exceeded",
		log.FieldClientIP, s.detector.ExtractClientIP(r),
		log.FieldMethod, r.Method,
		log.FieldPath, r.URL.Path)
	TooManyRequestsError("rate limit exceeded, please try again later").Write(w)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	checks := map[string]string{"database": "ok"}
	healthy := true
	if err := s.store.Ping(ctx); err != nil {
		checks["database"] = err.Error()
		healthy = false
	}
	if s.ready != nil {
		checks["broker"] = "ok"
		if err := s.ready(ctx); err != nil {
			checks["broker"] = err.Error()
			healthy = false
		}
	}

	status, code := "ready", http.StatusOK
	if !healthy {
		status, code = "not ready", http.StatusServiceUnavailable
		s.logger.WarnContext(ctx, "Readiness check failed", "checks", checks)
	}
	writeJSON(w, code, map[string]any{"status": status, "checks": checks})
}

// handleMetrics exposes counters in the Prometheus text format.
func (s *Server) handleMetrics(w http.ResponseWriter, _ *http.Request) {
	tm := s.tracer.GetMetrics()
	lm := s.limiter.GetMetrics()
	dm := s.detector.GetMetrics()

	w.Header().Set("Content-Type", "text/plain; version=0.0.4; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	write := func(name, kind, help string, value int64) {
		fmt.Fprintf(w, "# HELP %s %s\n# TYPE %s %s\n%s %d\n", name, help, name, kind, name, value)
	}
	write("famfin_http_requests_total", "counter", "Completed HTTP requests.", tm.TotalRequests)
	write("famfin_http_client_errors_total", "counter", "Responses with a 4xx status.", tm.ClientErrors)
	write("famfin_http_server_errors_total", "counter", "Responses with a 5xx status.", tm.ServerErrors)
	write("famfin_http_request_duration_avg_microseconds", "gauge", "Average request duration.", tm.AverageDurationUS)
	write("famfin_ratelimit_rejected_total", "counter", "Requests rejected by the rate limiter.", lm.Rejected)
	write("famfin_ratelimit_clients", "gauge", "Callers tracked by the rate limiter.", lm.ClientCount)
	write("famfin_security_suspicious_total", "counter", "Requests flagged as suspicious.", dm.SuspiciousRequests)
	write("famfin_security_blocked_total", "counter", "Requests blocked by the detector.", dm.BlockedRequests)
	if s.totals != nil {
		cs := s.totals.Stats()
		write("famfin_cache_hits_total", "counter", "Dashboard cache hits.", cs.Hits)
		write("famfin_cache_misses_total", "counter", "Dashboard cache misses.", cs.Misses)
		write("famfin_cache_entries", "gauge", "Dashboard cache entries.", int64(cs.Size))
	}
}

// Shutdown stops background goroutines and drains the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	var err error
	s.shutdownOnce.Do(func() {
		s.cacheManager.Stop()
		s.limiter.Stop()
		err = s.Server.Shutdown(ctx)
	})
	return err
}
