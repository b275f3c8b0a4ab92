package server

import (
	"context"
	"fmt"
	"github.com/Geniuskaa/buenafe_registration/internal/config"
	"github.com/Geniuskaa/buenafe_registration/pkg/auth"
	"github.com/Geniuskaa/buenafe_registration/pkg/database"
	"github.com/Geniuskaa/buenafe_registration/pkg/mail"
	"github.com/Geniuskaa/buenafe_registration/pkg/parser"
	"github.com/Geniuskaa/buenafe_registration/pkg/registration"
	"github.com/Geniuskaa/buenafe_registration/pkg/storage"
	"github.com/fsnotify/fsnotify"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"net/http"
	"time"
)

const (
	READ_HEADER_TIMEOUT = 10 * time.Second
	SHUTDOWN_TIMEOUT    = 15 * time.Second
)

type Server struct {
	ctx          context.Context
	logger       *zap.Logger
	mux          *chi.Mux
	db           database.Store
	serv         *http.Server
	cfg          *config.Entity
	registration *registration.Service
	auth         auth.Provider
	storage      *storage.Disk
	mail         *mail.Service
	metrics      *metrics
}

func NewServer(ctx context.Context, logger *zap.Logger, mux *chi.Mux, db database.Store, conf *config.Entity) *Server {
	return &Server{ctx: ctx, logger: logger, mux: mux, db: db, cfg: conf}
}

func (s *Server) ServeHTTP(writer http.ResponseWriter, request *http.Request) {
	s.mux.ServeHTTP(writer, request)
}

// Init wires the services on top of the store and mounts every route.
func (s *Server) Init(atom zap.AtomicLevel, reg *prometheus.Registry) error {
	disk, err := storage.NewDisk(s.cfg.Upload.Dir, s.logger)
	if err != nil {
		return fmt.Errorf("Init failed: %w", err)
	}

	s.storage = disk
	s.auth = auth.NewSharedSecret(s.cfg.Admin.Password)
	s.registration = registration.NewService(registration.NewRepository(s.db), s.logger)
	s.mail = mail.NewService(s.cfg, s.logger, s.registration, parser.ParseXlsx)
	s.metrics = newMetrics(reg)

	s.mux.Use(middleware.RequestID, s.requestLogger, s.recoverer)

	s.mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))
	s.mux.Handle(storage.PUBLIC_PREFIX+"/*",
		http.StripPrefix(storage.PUBLIC_PREFIX+"/", http.FileServer(s.storage.Files())))

	s.mux.Route("/api", func(r chi.Router) {
		r.Use(s.metrics.RequestsMetricsMiddleware)

		r.Post("/inscripcion", s.inscription)
		r.Post("/admin/login", s.login)

		r.Group(func(r chi.Router) {
			r.Use(s.requireAdmin)

			r.Get("/admin/players", s.listPlayers)
			r.Post("/admin/players/bulk", s.bulkPlayers)
			r.Post("/admin/players/import", s.importPlayers)
			r.Get("/admin/players/export", s.exportPlayers)
			r.Delete("/admin/players/{id}", s.deletePlayer)
			r.Get("/admin/stats", s.stats)
			r.Post("/admin/mail/check", s.checkMail)
		})
	})

	s.watchConfig(atom)

	return nil
}

// watchConfig applies LOG_LEVEL and MAIL_COUNT_OF_MAILS from the config file without a restart.
func (s *Server) watchConfig(atom zap.AtomicLevel) {
	if viper.ConfigFileUsed() == "" {
		return
	}

	viper.OnConfigChange(func(e fsnotify.Event) {
		s.logger.Info("Config file changed", zap.String("file", e.Name))

		if err := atom.UnmarshalText([]byte(viper.GetString(config.LOG_LEVEL))); err != nil {
			s.logger.Warn("Ignoring invalid log level", zap.Error(err))
		}
		s.mail.ChangeCountOfMailsPerReq(viper.GetUint32(config.MAIL_COUNT_OF_MAILS))
	})
	viper.WatchConfig()
}

func (s *Server) Start(addr string) error {
	s.serv = &http.Server{
		Addr:              addr,
		Handler:           s,
		ReadHeaderTimeout: READ_HEADER_TIMEOUT,
	}

	s.logger.Info("Service successfully started", zap.String("addr", addr),
		zap.String("backend", s.db.Backend()))
	return s.serv.ListenAndServe()
}

func (s *Server) Shutdown() error {
	if s.serv == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(s.ctx), SHUTDOWN_TIMEOUT)
	defer cancel()

	return s.serv.Shutdown(ctx)
}
