package api

import (
	"FunnelRouter/internal/config"
	"FunnelRouter/internal/http-server/handlers/errors"
	"FunnelRouter/internal/http-server/handlers/pubsub"
	"FunnelRouter/internal/http-server/handlers/session"
	"FunnelRouter/internal/http-server/handlers/webhook"
	"FunnelRouter/internal/http-server/middleware/authenticate"
	"FunnelRouter/internal/http-server/middleware/timeout"
	"FunnelRouter/internal/lib/sl"
	"FunnelRouter/internal/ws"
	"context"
	"fmt"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"
	"log/slog"
	"net"
	"net/http"
	"time"
)

const webhookTimeout = 10 * time.Second

type Server struct {
	conf       *config.Config
	httpServer *http.Server
	log        *slog.Logger
}

type Handler interface {
	webhook.Core
	pubsub.Core
	session.Core
}

func New(conf *config.Config, log *slog.Logger, handler Handler, hub *ws.Hub) *Server {

	server := Server{
		conf: conf,
		log:  log.With(sl.Module("api.server")),
	}

	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.Recoverer)
	router.Use(render.SetContentType(render.ContentTypeJSON))

	router.NotFound(errors.NotFound(log))
	router.MethodNotAllowed(errors.NotAllowed(log))

	router.Group(func(r chi.Router) {
		r.Use(timeout.Timeout(webhookTimeout))
		r.Use(authenticate.New(log, nil))
		r.Get("/webhook/{platform}", webhook.Verify(log, handler))
		r.Post("/webhook/{platform}", webhook.Receive(log, handler))
	})

	if conf.PushEnabled() {
		router.Group(func(r chi.Router) {
			r.Use(timeout.Timeout(conf.Queue.Lease))
			r.Use(authenticate.New(log, pushAuth(conf)))
			r.Post("/pubsub", pubsub.Push(log, handler))
		})
	}

	// operator routes expose user identifiers, so they need a key
	if conf.Listen.ApiKey != "" {
		apiKey := authenticate.StaticToken(conf.Listen.ApiKey)
		router.Group(func(r chi.Router) {
			r.Use(timeout.Timeout(webhookTimeout))
			r.Use(authenticate.New(log, apiKey))
			r.Post("/sessions/reset", session.ResetConversation(log, handler))
		})
		if hub != nil {
			router.Get("/ws/events", func(w http.ResponseWriter, r *http.Request) {
				ws.ServeWs(hub, apiKey, log, w, r)
			})
		}
	}

	httpLog := slog.NewLogLogger(log.Handler(), slog.LevelError)
	server.httpServer = &http.Server{
		Handler:           router,
		ErrorLog:          httpLog,
		ReadHeaderTimeout: 10 * time.Second,
	}

	return &server
}

// pushAuth prefers the subscription's OIDC identity over a shared bearer token.
func pushAuth(conf *config.Config) authenticate.Authenticate {
	if conf.Queue.PushAudience != "" {
		return authenticate.NewPushIdentity(conf.Queue.PushAudience, conf.Queue.PushAccount)
	}
	return authenticate.StaticToken(conf.Queue.PushToken)
}

func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// Start blocks serving requests until Shutdown is called.
func (s *Server) Start() error {
	serverAddress := fmt.Sprintf("%s:%s", s.conf.Listen.BindIP, s.conf.Listen.Port)
	listener, err := net.Listen("tcp", serverAddress)
	if err != nil {
		return err
	}

	s.log.Info("starting api server", slog.String("address", serverAddress))

	err = s.httpServer.Serve(listener)
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}
