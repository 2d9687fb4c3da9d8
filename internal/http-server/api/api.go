package api

import (
	"FrappeBot/internal/config"
	"FrappeBot/internal/http-server/handlers/chats"
	"FrappeBot/internal/http-server/handlers/conversation"
	"FrappeBot/internal/http-server/handlers/errors"
	"FrappeBot/internal/http-server/handlers/health"
	"FrappeBot/internal/http-server/handlers/orders"
	"FrappeBot/internal/http-server/handlers/whatsapp"
	"FrappeBot/internal/http-server/middleware/authenticate"
	"FrappeBot/internal/http-server/middleware/timeout"
	"FrappeBot/internal/lib/sl"
	"FrappeBot/internal/ws"
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"
)

type Server struct {
	conf       *config.Config
	httpServer *http.Server
	log        *slog.Logger
}

type Handler interface {
	authenticate.Authenticate
	ws.Authenticator
	orders.Core
	conversation.Core
	chats.Core
}

func New(conf *config.Config, log *slog.Logger, handler Handler, hub *ws.Hub, webhook whatsapp.Webhook) *Server {
	server := &Server{
		conf: conf,
		log:  log.With(sl.Module("api.server")),
	}

	httpLog := slog.NewLogLogger(log.Handler(), slog.LevelError)
	server.httpServer = &http.Server{
		Handler:           NewRouter(log, handler, hub, webhook),
		ErrorLog:          httpLog,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return server
}

// NewRouter wires every route. The webhook, health check and websocket
// (token in the query string) skip bearer authentication.
func NewRouter(log *slog.Logger, handler Handler, hub *ws.Hub, webhook whatsapp.Webhook) http.Handler {
	started := time.Now()

	router := chi.NewRouter()
	router.Use(timeout.Timeout(5))
	router.Use(middleware.RequestID)
	router.Use(middleware.Recoverer)
	router.Use(render.SetContentType(render.ContentTypeJSON))
	router.Use(authenticate.New(log, handler, "/webhook/", "/health", "/api/v1/ws"))

	router.NotFound(errors.NotFound(log))
	router.MethodNotAllowed(errors.NotAllowed(log))

	router.Get("/health", health.Check(started))

	router.Route("/webhook/whatsapp", func(r chi.Router) {
		r.Get("/", whatsapp.WebhookVerify(log, webhook))
		r.Post("/", whatsapp.WebhookHandler(log, webhook))
	})

	router.Route("/api/v1", func(v1 chi.Router) {
		v1.Route("/orders", func(r chi.Router) {
			r.Get("/", orders.List(log, handler))
			r.Post("/{id}/status", orders.UpdateStatus(log, handler))
		})
		v1.Route("/conversation", func(r chi.Router) {
			r.Get("/", conversation.Get(log, handler))
			r.Post("/reset", conversation.Reset(log, handler))
		})
		v1.Route("/chats", func(r chi.Router) {
			r.Get("/{user_id}/messages", chats.GetMessages(log, handler))
		})
		if hub != nil {
			v1.Get("/ws", func(w http.ResponseWriter, r *http.Request) {
				ws.ServeWs(hub, handler, log, w, r)
			})
		}
	})

	return router
}

// Start listens on the configured address and serves until Shutdown.
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
	s.log.Info("stopping api server")
	return s.httpServer.Shutdown(ctx)
}
