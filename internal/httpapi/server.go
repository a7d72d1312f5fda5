package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/blocknews/blocknews/internal/aggregator"
	"github.com/blocknews/blocknews/internal/auth"
	"github.com/blocknews/blocknews/internal/logging"
)

type Server struct {
	articlesAPI    *ArticlesAPI
	xAPI           *XAPI
	newsAPI        *NewsAPI
	agg            *aggregator.Aggregator
	authMiddleware *auth.Middleware
	logger         *logging.Logger
	server         *http.Server
}

func New(articlesAPI *ArticlesAPI, xAPI *XAPI, newsAPI *NewsAPI, agg *aggregator.Aggregator, authMiddleware *auth.Middleware, logger *logging.Logger) *Server {
	return &Server{
		articlesAPI:    articlesAPI,
		xAPI:           xAPI,
		newsAPI:        newsAPI,
		agg:            agg,
		authMiddleware: authMiddleware,
		logger:         logger,
	}
}

func (s *Server) Start(addr string) error {
	s.server = &http.Server{
		Addr:         addr,
		Handler:      s.Handler(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	s.logger.Info("HTTP API server starting", logging.WithField("addr", addr))
	return s.server.ListenAndServe()
}

// Handler builds the route table. Split from Start so tests can drive
// the full middleware stack through httptest.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	s.articlesAPI.RegisterRoutes(mux, s.middleware)
	s.xAPI.RegisterRoutes(mux, s.middleware)
	s.newsAPI.RegisterRoutes(mux, s.middleware)

	// Admin refresh, gated behind a service token
	mux.HandleFunc("/api/refresh", s.middleware(s.authMiddleware.RequireServiceToken(s.handleRefresh)))

	mux.HandleFunc("/health", s.handleHealth)

	return mux
}

func (s *Server) Shutdown(ctx context.Context) error {
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}

func (s *Server) middleware(next http.HandlerFunc) http.HandlerFunc {
	return s.corsMiddleware(s.requestIDMiddleware(next))
}

func (s *Server) corsMiddleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next(w, r)
	}
}

// requestIDMiddleware tags each response with a request id, minting one
// when the caller did not send X-Request-ID.
func (s *Server) requestIDMiddleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get("X-Request-ID")
		if requestID == "" {
			requestID = uuid.NewString()
		}
		w.Header().Set("X-Request-ID", requestID)

		next(w, r)
	}
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Minute)
	defer cancel()

	items, err := s.agg.Refresh(ctx)
	if err != nil {
		s.logger.Error("Failed to refresh news", logging.WithField("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"status":  "error",
			"message": err.Error(),
		})
		return
	}

	s.logger.Info("News refreshed by request",
		logging.WithField("subject", auth.GetSubject(r.Context())),
		logging.WithField("items", len(items)))

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status": "success",
		"items":  len(items),
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status": "healthy",
	})
}
