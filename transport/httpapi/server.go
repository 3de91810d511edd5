package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/poiesic/askq/core"
	"github.com/poiesic/askq/dispatch"
)

// maxBodyBytes caps request bodies independently of the question limit.
const maxBodyBytes = 1 << 20

// Server serves the question and answer endpoints.
type Server struct {
	service           Service
	maxQuestionLength int
	logger            *slog.Logger
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		if logger == nil {
			logger = slog.Default()
		}
		s.logger = logger
	}
}

// WithMaxQuestionLength sets the maximum question length in runes.
// Zero or negative disables the limit.
func WithMaxQuestionLength(n int) Option {
	return func(s *Server) {
		s.maxQuestionLength = n
	}
}

// NewServer creates a server in front of service.
func NewServer(service Service, opts ...Option) *Server {
	s := &Server{
		service:           service,
		maxQuestionLength: core.MaxQuestionLength,
		logger:            slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Handler returns the routed HTTP handler.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST "+QuestionsPath, withJSON(s.submit))
	mux.HandleFunc("GET "+AnswersPath, withJSON(s.poll))
	mux.HandleFunc("GET "+HealthPath, withJSON(s.health))
	return s.logRequest(mux)
}

func (s *Server) submit(w http.ResponseWriter, r *http.Request) (any, int, error) {
	var req QuestionRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(&req); err != nil {
		return nil, http.StatusBadRequest, fmt.Errorf("invalid request body: %w", err)
	}
	if err := core.ValidateQuestionText(req.Text, s.maxQuestionLength); err != nil {
		return nil, http.StatusBadRequest, err
	}

	id, err := s.service.Submit(req.Text, req.ConversationID, req.ParentID)
	if err != nil {
		return nil, statusFor(err), err
	}
	s.logger.Info("question submitted", "question", id, "conversation", req.ConversationID, "parent", req.ParentID)
	return QuestionResponse{QuestionID: id}, http.StatusOK, nil
}

func (s *Server) poll(w http.ResponseWriter, r *http.Request) (any, int, error) {
	id, err := core.ParseQuestionID(r.URL.Query().Get("question_id"))
	if err != nil {
		return nil, http.StatusBadRequest, err
	}

	answer, err := s.service.Poll(r.Context(), id)
	if err != nil {
		return nil, statusFor(err), err
	}
	if answer.Finished {
		s.logger.Info("answer delivered", "question", id, "conversation", answer.ConversationID, "failed", answer.Failed())
	}
	return answer, http.StatusOK, nil
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) (any, int, error) {
	stats, err := s.service.Stats(r.Context())
	if err != nil {
		return nil, statusFor(err), err
	}
	return stats, http.StatusOK, nil
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, dispatch.ErrLockTimeout), errors.Is(err, dispatch.ErrStopped):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func withJSON(handler func(http.ResponseWriter, *http.Request) (any, int, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		payload, status, err := handler(w, r)
		if err != nil {
			writeJSON(w, status, envelope[any]{Error: err.Error()})
			return
		}
		writeJSON(w, status, envelope[any]{Data: payload})
	}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func (s *Server) logRequest(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		s.logger.Debug("request", "method", r.Method, "path", r.URL.Path, "duration", time.Since(start))
	})
}
