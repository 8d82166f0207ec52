package api

import (
	"context"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/shirou/gopsutil/v3/mem"
	"github.com/shirou/gopsutil/v3/process"

	"github.com/bowerhall/moviegraph/internal/logger"
	"github.com/bowerhall/moviegraph/internal/session"
)

// BusyReply is returned when a session is still answering its previous
// question.
const BusyReply = "I'm still working on your previous question. Please wait a moment and ask again."

const maxBodyBytes = 64 << 10

type Pinger interface {
	Ping(ctx context.Context) error
}

// UsageReporter is satisfied by the budget tracker.
type UsageReporter interface {
	Usage() (used, limit int)
}

// Archive is satisfied by the transcript storage client.
type Archive interface {
	Healthy(ctx context.Context) bool
}

type Deps struct {
	Registry *session.Registry
	Profiles []string
	Store    Pinger
	Budget   UsageReporter
	Archive  Archive
}

type Server struct {
	registry *session.Registry
	profiles []string
	store    Pinger
	budget   UsageReporter
	archive  Archive
}

func NewServer(deps Deps) *Server {
	return &Server{
		registry: deps.Registry,
		profiles: deps.Profiles,
		store:    deps.Store,
		budget:   deps.Budget,
		archive:  deps.Archive,
	}
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(requestLogger)
	r.Use(chiMiddleware.Recoverer)

	r.Post("/chat", s.Chat)
	r.Delete("/sessions/{id}", s.EndSession)
	r.Get("/health", s.Health)
	r.Handle("/metrics", promhttp.Handler())

	return r
}

type chatRequest struct {
	Question  string `json:"question"`
	Model     string `json:"model"`
	SessionID string `json:"session_id"`
}

type chatResponse struct {
	Answer    string `json:"answer"`
	SessionID string `json:"session_id"`
	Model     string `json:"model"`
}

func (s *Server) Chat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := decodeJSON(w, r, &req); err != nil {
		Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	question := strings.TrimSpace(req.Question)
	if question == "" {
		Error(w, http.StatusBadRequest, "question is required")
		return
	}

	model := req.Model
	if model == "" && len(s.profiles) > 0 {
		model = s.profiles[0]
	}
	if !s.knownProfile(model) {
		Error(w, http.StatusBadRequest, "unknown model "+model+"; available: "+strings.Join(s.profiles, ", "))
		return
	}

	sessionID := req.SessionID
	if sessionID == "" {
		sessionID = uuid.NewString()
	}

	sess, err := s.registry.Get(model, sessionID)
	if err != nil {
		logger.Error("failed to open session", "session", sessionID, "profile", model, "error", err)
		Error(w, http.StatusInternalServerError, "could not start a session")
		return
	}

	resp := chatResponse{SessionID: sessionID, Model: model}

	if !sess.TryAcquire() {
		resp.Answer = BusyReply
		JSON(w, http.StatusOK, resp)
		return
	}
	defer sess.Release()

	resp.Answer = sess.Engine.Handle(r.Context(), question)
	JSON(w, http.StatusOK, resp)
}

func (s *Server) EndSession(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		Error(w, http.StatusBadRequest, "session id is required")
		return
	}

	n := s.registry.End(id)
	if n == 0 {
		Error(w, http.StatusNotFound, "session not found")
		return
	}

	JSON(w, http.StatusOK, map[string]interface{}{"session_id": id, "ended": n})
}

// Health returns the health status of the API and its dependencies.
func (s *Server) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	checks := map[string]string{"api": "ok"}
	status := map[string]interface{}{
		"status":   "healthy",
		"checks":   checks,
		"sessions": s.registry.Len(),
		"profiles": s.profiles,
	}
	statusCode := http.StatusOK

	if s.store != nil {
		if err := s.store.Ping(ctx); err != nil {
			logger.Error("health check failed", "error", err)
			status["status"] = "degraded"
			checks["graph"] = "unreachable"
			statusCode = http.StatusServiceUnavailable
		} else {
			checks["graph"] = "ok"
		}
	}

	if s.archive != nil {
		if s.archive.Healthy(ctx) {
			checks["archive"] = "ok"
		} else {
			logger.Warn("archive health check failed")
			status["status"] = "degraded"
			checks["archive"] = "unreachable"
			statusCode = http.StatusServiceUnavailable
		}
	}

	if s.budget != nil {
		used, limit := s.budget.Usage()
		status["budget"] = map[string]int{"used": used, "limit": limit}
	}

	status["system"] = systemStats(ctx)

	JSON(w, statusCode, status)
}

func systemStats(ctx context.Context) map[string]interface{} {
	stats := map[string]interface{}{}

	if vm, err := mem.VirtualMemoryWithContext(ctx); err == nil {
		stats["mem_total"] = vm.Total
		stats["mem_used_percent"] = vm.UsedPercent
	}

	proc, err := process.NewProcessWithContext(ctx, int32(os.Getpid()))
	if err != nil {
		return stats
	}
	if info, err := proc.MemoryInfoWithContext(ctx); err == nil {
		stats["process_rss"] = info.RSS
	}
	if pct, err := proc.CPUPercentWithContext(ctx); err == nil {
		stats["process_cpu_percent"] = pct
	}

	return stats
}

func (s *Server) knownProfile(name string) bool {
	for _, p := range s.profiles {
		if p == name {
			return true
		}
	}
	return false
}
