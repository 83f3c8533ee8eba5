package httpserver

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/marketpulse/listing-insights/internal/badges"
	"github.com/marketpulse/listing-insights/internal/config"
	"github.com/marketpulse/listing-insights/internal/database"
	"github.com/marketpulse/listing-insights/internal/geo"
	"github.com/marketpulse/listing-insights/internal/metrics"
	"github.com/marketpulse/listing-insights/internal/models"
	"github.com/marketpulse/listing-insights/internal/notify"
	"github.com/marketpulse/listing-insights/internal/points"
	"github.com/marketpulse/listing-insights/internal/session"
	"github.com/marketpulse/listing-insights/internal/stats"
	"github.com/marketpulse/listing-insights/internal/storage"
	"go.uber.org/zap"
)

// Dependencies holds all external dependencies for the server.
type Dependencies struct {
	DB      *database.PostgresDB
	Redis   *database.RedisDB
	Config  *config.Config
	Logger  *zap.Logger
	Metrics *metrics.Metrics
}

// Server wraps HTTP handlers around the insight services. Handlers stay
// thin: decode, delegate, encode.
type Server struct {
	stats   *stats.Service
	compare *stats.CompareService
	badges  *badges.Engine
	points  *points.Service
	logger  *zap.Logger
	config  *config.Config
	metrics *metrics.Metrics
}

// NewServer constructs a new http.Handler with all routes registered.
// Missing Postgres or Redis degrade to in-memory implementations rather
// than refusing to boot.
func NewServer(deps *Dependencies) http.Handler {
	var (
		statRepo     storage.StatRepo
		listingRepo  storage.ListingRepo
		cohortRepo   storage.CohortRepo
		badgeRepo    storage.BadgeRepo
		progressRepo storage.ProgressRepo
		attrs        badges.AttributeSource
	)

	if deps.DB != nil {
		statRepo = storage.NewPostgresStatRepo(deps.DB.Pool)
		pgListings := storage.NewPostgresListingRepo(deps.DB.Pool)
		listingRepo = pgListings
		cohortRepo = pgListings
		badgeRepo = storage.NewPostgresBadgeRepo(deps.DB.Pool)
		progressRepo = storage.NewPostgresProgressRepo(deps.DB.Pool)
		attrs = badges.NewPostgresAttributeSource(deps.DB.Pool)
	} else {
		statRepo = storage.NewMemoryStatRepo()
		memListings := storage.NewMemoryListingRepo()
		listingRepo = memListings
		cohortRepo = memListings
		badgeRepo = storage.NewMemoryBadgeRepo()
		progressRepo = storage.NewMemoryProgressRepo()
		attrs = badges.NewMemoryAttributeSource()
	}

	var sessionStore session.Store
	if deps.Redis != nil {
		sessionStore = session.NewRedisStore(deps.Redis.Client)
	} else {
		sessionStore = session.NewMemoryStore()
	}
	tracker := session.NewTracker(sessionStore, deps.Config.Session.Window, deps.Logger)

	var geoProvider geo.Provider
	if deps.Config.Geo.Enabled {
		p, err := geo.NewMaxMindProvider(deps.Config.Geo.DatabasePath)
		if err != nil {
			deps.Logger.Warn("failed to open geo database, breakdowns use explicit hints only", zap.Error(err))
		} else {
			geoProvider = p
		}
	}

	notifier := notify.NewLogNotifier(deps.Logger)

	ledger, err := points.NewLedger(models.DefaultLevelTable())
	if err != nil {
		// The default table is static and valid; reaching this is a bug.
		panic(err)
	}
	pointsSvc := points.NewService(progressRepo, ledger, notifier, deps.Metrics, deps.Logger)

	evaluator := badges.NewEvaluator(attrs, false, deps.Logger)
	badgeEngine := badges.NewEngine(badgeRepo, evaluator, pointsSvc, notifier, deps.Metrics, deps.Logger)

	bounceSeconds := int(deps.Config.Session.BounceThreshold / time.Second)
	statsSvc := stats.NewService(statRepo, listingRepo, tracker, geoProvider, bounceSeconds, deps.Metrics, deps.Logger)
	compareSvc := stats.NewCompareService(statRepo, listingRepo, cohortRepo)

	s := &Server{
		stats:   statsSvc,
		compare: compareSvc,
		badges:  badgeEngine,
		points:  pointsSvc,
		logger:  deps.Logger,
		config:  deps.Config,
		metrics: deps.Metrics,
	}

	mux := http.NewServeMux()

	// Health check
	mux.HandleFunc("/health", s.handleHealth)

	// Prometheus metrics
	if deps.Config.Metrics.Enabled {
		mux.Handle(deps.Config.Metrics.Path, metrics.Handler())
	}

	// Ingest
	mux.HandleFunc("/track/view", s.handleTrackView)
	mux.HandleFunc("/track/engagement", s.handleTrackEngagement)
	mux.HandleFunc("/track/time", s.handleTrackTime)

	// Listing reads
	mux.HandleFunc("/listings/", s.handleListing)

	// Rewards
	mux.HandleFunc("/users/", s.handleUser)
	mux.HandleFunc("/leaderboard", s.handleLeaderboard)

	// Business events feeding badge evaluation
	mux.HandleFunc("/events/sale", s.handleSale)
	mux.HandleFunc("/events/purchase", s.handlePurchase)
	mux.HandleFunc("/events/review", s.handleReview)

	return mux
}

// ---- Health Check ----

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

// ---- Ingest ----

// trackRequest is the wire shape shared by the /track endpoints.
type trackRequest struct {
	ListingID   string  `json:"listing_id"`
	Kind        string  `json:"kind,omitempty"`
	Seconds     int     `json:"seconds,omitempty"`
	Percent     int     `json:"percent,omitempty"`
	Amount      float64 `json:"amount,omitempty"`
	Channel     string  `json:"channel,omitempty"`
	VisitorID   string  `json:"visitor_id,omitempty"`
	UserID      string  `json:"user_id,omitempty"`
	Referrer    string  `json:"referrer,omitempty"`
	Source      string  `json:"source,omitempty"`
	IsApp       bool    `json:"is_app,omitempty"`
	AppPlatform string  `json:"app_platform,omitempty"`
	Country     string  `json:"country,omitempty"`
	City        string  `json:"city,omitempty"`
}

func (s *Server) decodeTrack(w http.ResponseWriter, r *http.Request) (*trackRequest, models.RawContext, bool) {
	if r.Method != http.MethodPost {
		s.errorResponse(w, "method not allowed", http.StatusMethodNotAllowed)
		return nil, models.RawContext{}, false
	}

	var req trackRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.errorResponse(w, "invalid json", http.StatusBadRequest)
		return nil, models.RawContext{}, false
	}
	if req.ListingID == "" {
		s.errorResponse(w, "listing_id required", http.StatusBadRequest)
		return nil, models.RawContext{}, false
	}

	rc := models.RawContext{
		VisitorID:   req.VisitorID,
		UserID:      req.UserID,
		IP:          clientIP(r),
		UserAgent:   r.Header.Get("User-Agent"),
		Referrer:    req.Referrer,
		Source:      req.Source,
		IsApp:       req.IsApp,
		AppPlatform: req.AppPlatform,
		Country:     req.Country,
		City:        req.City,
	}
	return &req, rc, true
}

func (s *Server) handleTrackView(w http.ResponseWriter, r *http.Request) {
	req, rc, ok := s.decodeTrack(w, r)
	if !ok {
		return
	}

	if err := s.stats.RecordView(r.Context(), req.ListingID, rc, time.Now().UTC()); err != nil {
		s.logger.Error("failed to record view", zap.Error(err))
		s.errorResponse(w, "internal error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/plain")
	w.Write([]byte("OK"))
}

func (s *Server) handleTrackEngagement(w http.ResponseWriter, r *http.Request) {
	req, rc, ok := s.decodeTrack(w, r)
	if !ok {
		return
	}

	ev := models.InteractionEvent{
		ListingID: req.ListingID,
		Kind:      models.EventKind(req.Kind),
		Timestamp: time.Now().UTC(),
		Context:   rc,
		Seconds:   req.Seconds,
		Percent:   req.Percent,
		Amount:    req.Amount,
		Channel:   req.Channel,
	}
	if err := s.stats.RecordEngagement(r.Context(), ev); err != nil {
		s.logger.Error("failed to record engagement", zap.Error(err))
		s.errorResponse(w, "internal error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/plain")
	w.Write([]byte("OK"))
}

func (s *Server) handleTrackTime(w http.ResponseWriter, r *http.Request) {
	req, rc, ok := s.decodeTrack(w, r)
	if !ok {
		return
	}
	if req.Seconds < 0 {
		s.errorResponse(w, "seconds must not be negative", http.StatusBadRequest)
		return
	}

	if err := s.stats.RecordTimeOnPage(r.Context(), req.ListingID, rc, req.Seconds, time.Now().UTC()); err != nil {
		s.logger.Error("failed to record time on page", zap.Error(err))
		s.errorResponse(w, "internal error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/plain")
	w.Write([]byte("OK"))
}

// ---- Listing reads ----

// handleListing serves /listings/{id}/stats and /listings/{id}/comparison.
func (s *Server) handleListing(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.errorResponse(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	rest := strings.TrimPrefix(r.URL.Path, "/listings/")
	parts := strings.SplitN(rest, "/", 2)
	if len(parts) != 2 || parts[0] == "" {
		http.NotFound(w, r)
		return
	}
	listingID := parts[0]

	switch parts[1] {
	case "stats":
		s.handleListingStats(w, r, listingID)
	case "comparison":
		s.handleListingComparison(w, r, listingID)
	default:
		http.NotFound(w, r)
	}
}

func (s *Server) handleListingStats(w http.ResponseWriter, r *http.Request, listingID string) {
	now := time.Now().UTC()
	from := now.AddDate(0, 0, -29)
	to := now

	q := r.URL.Query()
	if v := q.Get("from"); v != "" {
		t, err := time.Parse("2006-01-02", v)
		if err != nil {
			s.errorResponse(w, "invalid from date", http.StatusBadRequest)
			return
		}
		from = t
	}
	if v := q.Get("to"); v != "" {
		t, err := time.Parse("2006-01-02", v)
		if err != nil {
			s.errorResponse(w, "invalid to date", http.StatusBadRequest)
			return
		}
		to = t
	}

	sum, err := s.stats.Summary(r.Context(), listingID, from, to)
	if err != nil {
		s.logger.Error("failed to build summary", zap.Error(err))
		s.errorResponse(w, "internal error", http.StatusInternalServerError)
		return
	}
	s.jsonResponse(w, sum)
}

func (s *Server) handleListingComparison(w http.ResponseWriter, r *http.Request, listingID string) {
	windowDays := 30
	if v := r.URL.Query().Get("window_days"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			s.errorResponse(w, "invalid window_days", http.StatusBadRequest)
			return
		}
		windowDays = n
	}

	cmp, err := s.compare.CategoryComparison(r.Context(), listingID, windowDays, time.Now().UTC())
	if err != nil {
		s.logger.Error("failed to build comparison", zap.Error(err))
		s.errorResponse(w, "internal error", http.StatusInternalServerError)
		return
	}
	s.jsonResponse(w, cmp)
}

// ---- Rewards ----

// handleUser serves /users/{id}/progress, /users/{id}/history and
// POST /users/{id}/badges/check.
func (s *Server) handleUser(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/users/")
	parts := strings.SplitN(rest, "/", 2)
	if len(parts) != 2 || parts[0] == "" {
		http.NotFound(w, r)
		return
	}
	userID := parts[0]

	switch parts[1] {
	case "progress":
		if r.Method != http.MethodGet {
			s.errorResponse(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		p, err := s.points.Progress(r.Context(), userID)
		if err != nil {
			s.logger.Error("failed to load progress", zap.Error(err))
			s.errorResponse(w, "internal error", http.StatusInternalServerError)
			return
		}
		s.jsonResponse(w, p)

	case "history":
		if r.Method != http.MethodGet {
			s.errorResponse(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		limit := 50
		if v := r.URL.Query().Get("limit"); v != "" {
			if n, err := strconv.Atoi(v); err == nil && n > 0 {
				limit = n
			}
		}
		entries, err := s.points.History(r.Context(), userID, limit)
		if err != nil {
			s.logger.Error("failed to load points history", zap.Error(err))
			s.errorResponse(w, "internal error", http.StatusInternalServerError)
			return
		}
		s.jsonResponse(w, entries)

	case "badges/check":
		if r.Method != http.MethodPost {
			s.errorResponse(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		awarded, err := s.badges.CheckAndAwardAll(r.Context(), userID)
		if err != nil {
			s.logger.Error("failed to evaluate badges", zap.Error(err))
			s.errorResponse(w, "internal error", http.StatusInternalServerError)
			return
		}
		s.jsonResponse(w, map[string]int{"awarded": awarded})

	default:
		http.NotFound(w, r)
	}
}

func (s *Server) handleLeaderboard(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.errorResponse(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	limit := 10
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= 100 {
			limit = n
		}
	}

	board, err := s.points.Leaderboard(r.Context(), limit)
	if err != nil {
		s.logger.Error("failed to load leaderboard", zap.Error(err))
		s.errorResponse(w, "internal error", http.StatusInternalServerError)
		return
	}
	s.jsonResponse(w, board)
}

// ---- Business events ----

func (s *Server) handleSale(w http.ResponseWriter, r *http.Request) {
	userID, ok := s.decodeUserEvent(w, r)
	if !ok {
		return
	}
	s.badges.OnItemSold(r.Context(), userID)
	w.Header().Set("Content-Type", "text/plain")
	w.Write([]byte("OK"))
}

func (s *Server) handlePurchase(w http.ResponseWriter, r *http.Request) {
	userID, ok := s.decodeUserEvent(w, r)
	if !ok {
		return
	}
	s.badges.OnItemBought(r.Context(), userID)
	w.Header().Set("Content-Type", "text/plain")
	w.Write([]byte("OK"))
}

func (s *Server) handleReview(w http.ResponseWriter, r *http.Request) {
	userID, ok := s.decodeUserEvent(w, r)
	if !ok {
		return
	}
	s.badges.OnReviewGiven(r.Context(), userID)
	w.Header().Set("Content-Type", "text/plain")
	w.Write([]byte("OK"))
}

func (s *Server) decodeUserEvent(w http.ResponseWriter, r *http.Request) (string, bool) {
	if r.Method != http.MethodPost {
		s.errorResponse(w, "method not allowed", http.StatusMethodNotAllowed)
		return "", false
	}

	var req struct {
		UserID string `json:"user_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.errorResponse(w, "invalid json", http.StatusBadRequest)
		return "", false
	}
	if req.UserID == "" {
		s.errorResponse(w, "user_id required", http.StatusBadRequest)
		return "", false
	}
	return req.UserID, true
}

// ---- Helper Methods ----

func clientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		parts := strings.Split(xff, ",")
		return strings.TrimSpace(parts[0])
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return xri
	}
	ip := r.RemoteAddr
	if idx := strings.LastIndex(ip, ":"); idx != -1 {
		ip = ip[:idx]
	}
	return ip
}

func (s *Server) jsonResponse(w http.ResponseWriter, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(data)
}

func (s *Server) errorResponse(w http.ResponseWriter, message string, code int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": message})
}
