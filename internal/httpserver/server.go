// internal/httpserver/server.go
//
// HTTP surface of the hosting peer.
// Responsibilities:
//   - Router + middleware (request IDs, real IP, panic recovery).
//   - Public endpoints: "/", "/health".
//   - Results endpoint: GET /results (recent matches + tally from the ledger).
//   - Peer endpoint: GET /ws, upgraded to the match websocket; guarded by a
//     join token when a JOIN_SECRET is configured.
//
// Notes:
//   - JSON routes get a handler timeout; /ws does not, it is long-lived.
//   - Only one peer is ever accepted; the Acceptor refuses the rest.

package httpserver

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog/log"

	"github.com/robalobadob/codebreak/internal/store"
	"github.com/robalobadob/codebreak/internal/transport"
)

// Server bundles router, peer acceptor and results ledger.
type Server struct {
	r          *chi.Mux
	peers      http.Handler
	results    store.Store
	joinSecret string
}

// New constructs a Server, installs middleware, and registers routes.
// peers handles the websocket upgrade (usually a *transport.Acceptor).
func New(peers http.Handler, results store.Store, joinSecret string) *Server {
	s := &Server{r: chi.NewRouter(), peers: peers, results: results, joinSecret: joinSecret}

	// --- middleware ---
	s.r.Use(chimw.RequestID) // add X-Request-ID
	s.r.Use(chimw.RealIP)    // set RemoteAddr from X-Forwarded-For etc.
	s.r.Use(chimw.Recoverer) // recover from panics

	// --- JSON endpoints ---
	s.r.Group(func(r chi.Router) {
		r.Use(chimw.Timeout(10 * time.Second))
		r.Use(jsonContentType)

		r.Get("/", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte(`{"service":"codebreak","endpoints":["/health","/results","GET /ws"]}`))
		})
		r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte(`{"ok":true}`))
		})
		r.Get("/results", s.handleResults)

		r.NotFound(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, `{"error":"not_found","path":"`+r.URL.Path+`"}`, http.StatusNotFound)
		})
	})

	// --- peer endpoint ---
	s.r.With(s.requireJoinToken()).Get(transport.WSPath, s.peers.ServeHTTP)

	return s
}

// Router exposes the internal router (useful for tests).
func (s *Server) Router() chi.Router { return s.r }

// Serve listens on addr until ctx is cancelled, then shuts down gracefully.
func (s *Server) Serve(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// ----------------------------- middleware ----------------------------------

// jsonContentType sets a default JSON Content-Type header on all responses.
func jsonContentType(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		next.ServeHTTP(w, r)
	})
}

// requireJoinToken rejects peers without a valid join token. With no secret
// configured every peer is let through.
func (s *Server) requireJoinToken() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if s.joinSecret == "" {
				next.ServeHTTP(w, r)
				return
			}
			if err := transport.VerifyJoinToken(s.joinSecret, transport.BearerToken(r)); err != nil {
				log.Warn().Err(err).Str("remote", r.RemoteAddr).Msg("peer rejected")
				w.Header().Set("Content-Type", "application/json; charset=utf-8")
				http.Error(w, `{"error":"Unauthorized"}`, http.StatusUnauthorized)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// ------------------------------ RESULTS ------------------------------------

type resultsRes struct {
	Tally  store.Tally    `json:"tally"`
	Recent []store.Result `json:"recent"`
}

// handleResults returns the ledger tally and the most recent matches.
// Optional ?limit=N (1–100, default 20).
func (s *Server) handleResults(w http.ResponseWriter, r *http.Request) {
	limit := 20
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > 100 {
			http.Error(w, `{"error":"bad_limit"}`, http.StatusBadRequest)
			return
		}
		limit = n
	}

	tally, err := s.results.Tally(r.Context())
	if err != nil {
		log.Error().Err(err).Msg("results tally")
		http.Error(w, `{"error":"db_error"}`, http.StatusInternalServerError)
		return
	}
	recent, err := s.results.Recent(r.Context(), limit)
	if err != nil {
		log.Error().Err(err).Msg("results recent")
		http.Error(w, `{"error":"db_error"}`, http.StatusInternalServerError)
		return
	}
	if recent == nil {
		recent = []store.Result{}
	}
	_ = json.NewEncoder(w).Encode(resultsRes{Tally: tally, Recent: recent})
}
