package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"github.com/jose-valero/verification-bot/internal/infra/metrics"
)

// GuildCounter reports how many guilds have stored configuration.
// Implemented by storage.Document.
type GuildCounter interface {
	Len() int
}

// Server is the ops surface next to the bot: liveness and metrics.
type Server struct {
	guilds GuildCounter
	router *mux.Router
	srv    *http.Server
	log    *logrus.Entry
}

func New(addr string, guilds GuildCounter, log *logrus.Entry) *Server {
	s := &Server{guilds: guilds, router: mux.NewRouter(), log: log}
	s.routes()
	s.srv = &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s
}

func (s *Server) routes() {
	s.router.HandleFunc("/healthz", s.handleHealth).Methods(http.MethodGet)
	s.router.Handle("/metrics", metrics.Handler()).Methods(http.MethodGet)
}

func (s *Server) Handler() http.Handler { return s.router }

type healthResponse struct {
	Status string `json:"status"`
	Guilds int    `json:"guilds"`
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(healthResponse{Status: "ok", Guilds: s.guilds.Len()}); err != nil {
		s.log.WithError(err).Warn("write health response")
	}
}

// Start serves in the background until Shutdown.
func (s *Server) Start() {
	s.log.WithField("addr", s.srv.Addr).Info("http listening")
	go func() {
		if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log.WithError(err).Error("http server stopped")
		}
	}()
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}
