package api

import (
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"

	"keycards/internal/config"
	"keycards/internal/http-server/handlers/activate"
	"keycards/internal/http-server/handlers/batch"
	"keycards/internal/http-server/handlers/errors"
	"keycards/internal/http-server/handlers/keycards"
	"keycards/internal/http-server/middleware/authenticate"
	"keycards/internal/http-server/middleware/timeout"
	"keycards/lib/sl"
)

type Server struct {
	conf       *config.Config
	httpServer *http.Server
	log        *slog.Logger
}

type Handler interface {
	authenticate.Authenticate
	activate.Core
	batch.Core
	keycards.Core
}

func New(conf *config.Config, log *slog.Logger, handler Handler) error {

	server := Server{
		conf: conf,
		log:  log.With(sl.Module("api.server")),
	}

	router := chi.NewRouter()
	router.Use(timeout.Timeout(30))
	router.Use(middleware.RequestID)
	router.Use(middleware.Recoverer)
	router.Use(render.SetContentType(render.ContentTypeJSON))

	router.NotFound(errors.NotFound(log))
	router.MethodNotAllowed(errors.NotAllowed(log))

	router.Route("/v1", func(rootApi chi.Router) {
		rootApi.Route("/key-cards", func(kc chi.Router) {
			kc.Post("/activate", activate.Activate(log, handler))
			kc.Group(func(admin chi.Router) {
				admin.Use(authenticate.New(log, handler))
				admin.Get("/status/{status}", keycards.ByStatus(log, handler))
				admin.Get("/info", keycards.Info(log, handler))
			})
		})
		rootApi.Route("/batch", func(b chi.Router) {
			b.Use(authenticate.New(log, handler))
			b.Post("/", batch.Create(log, handler))
			b.Get("/", batch.List(log, handler))
			b.Get("/{id}", batch.Cards(log, handler))
		})
	})

	httpLog := slog.NewLogLogger(log.Handler(), slog.LevelError)
	server.httpServer = &http.Server{
		Handler:      router,
		ErrorLog:     httpLog,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 35 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	serverAddress := fmt.Sprintf("%s:%s", conf.Listen.BindIp, conf.Listen.Port)
	listener, err := net.Listen("tcp", serverAddress)
	if err != nil {
		return err
	}

	server.log.Info("starting api server", slog.String("address", serverAddress))

	return server.httpServer.Serve(listener)
}
