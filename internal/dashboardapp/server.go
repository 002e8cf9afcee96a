// Package dashboardapp serves the server-rendered sales dashboard.
package dashboardapp

import (
	"context"
	"crypto/sha256"
	"embed"
	"errors"
	"fmt"
	"html/template"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/csrf"
	"go.uber.org/zap"

	"github.com/phillip-england/lotdesk/internal/backend"
	"github.com/phillip-england/lotdesk/internal/config"
	"github.com/phillip-england/lotdesk/internal/middleware"
	"github.com/phillip-england/lotdesk/internal/session"
)

const (
	sessionCookieName = "lotdesk_session"
	shutdownTimeout   = 5 * time.Second
	maxUploadBytes    = 20 << 20
)

//go:embed templates/*.html assets/app.css
var templatesFS embed.FS

type Options struct {
	Config   config.Config
	API      *backend.Client
	Sessions *session.Store
	Logger   *zap.Logger
	// Now overrides the clock, for tests.
	Now func() time.Time
}

type Server struct {
	cfg      config.Config
	api      *backend.Client
	sessions *session.Store
	logger   *zap.Logger
	now      func() time.Time
	pages    map[string]*template.Template
	css      []byte
}

func New(opts Options) (*Server, error) {
	if opts.API == nil {
		return nil, errors.New("dashboard: backend client is required")
	}
	if opts.Sessions == nil {
		return nil, errors.New("dashboard: session store is required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	pages, err := parseTemplates()
	if err != nil {
		return nil, err
	}
	css, err := templatesFS.ReadFile("assets/app.css")
	if err != nil {
		return nil, err
	}
	return &Server{
		cfg:      opts.Config,
		api:      opts.API,
		sessions: opts.Sessions,
		logger:   logger.Named("dashboard"),
		now:      now,
		pages:    pages,
		css:      css,
	}, nil
}

var csp = strings.Join([]string{
	"default-src 'self'",
	"style-src 'self' 'unsafe-inline'",
	"img-src 'self' data:",
	"script-src 'self' 'unsafe-inline'",
	"connect-src 'self'",
	"form-action 'self'",
	"frame-ancestors 'none'",
}, "; ")

func (s *Server) csrfKey() []byte {
	sum := sha256.Sum256([]byte("lotdesk-csrf:" + s.cfg.Dashboard.SessionSecret))
	return sum[:]
}

// Handler builds the full route tree behind the middleware stack.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.RequestID,
		middleware.AccessLog(s.logger),
		middleware.Recover(s.logger),
		middleware.SecurityHeaders(middleware.SecurityHeadersConfig{ContentSecurityPolicy: csp}),
		csrf.Protect(s.csrfKey(),
			csrf.Secure(s.cfg.Dashboard.SecureCookies),
			csrf.Path("/"),
			csrf.CookieName("lotdesk_csrf"),
			csrf.SameSite(csrf.SameSiteLaxMode),
			csrf.ErrorHandler(http.HandlerFunc(s.csrfFailed)),
		),
	)

	r.Get("/healthz", s.healthz)
	r.Get("/assets/app.css", s.appCSSFile)
	r.Get("/login", s.loginPage)
	r.Post("/login", s.login)

	r.Group(func(r chi.Router) {
		r.Use(s.requireSession)
		r.Post("/logout", s.logout)
		r.Post("/refrescar", s.refresh)
		r.Get("/", func(w http.ResponseWriter, r *http.Request) {
			http.Redirect(w, r, "/dashboard", http.StatusFound)
		})
		r.With(s.requireModule(session.ModuleDashboard)).Get("/dashboard", s.dashboardPage)

		r.Route("/prospectos", func(r chi.Router) {
			r.Use(s.requireModule(session.ModuleProspects))
			r.Get("/", s.prospectsPage)
			r.Get("/export.{format}", s.exportRoute(exportProspects))
			r.Post("/", s.createProspect)
			r.Post("/importar", s.importProspects)
			r.Post("/{id}", s.updateProspect)
			r.Post("/{id}/agente", s.changeProspectAgent)
			r.Post("/{id}/seguimiento", s.setFollowUp)
			r.Post("/{id}/contrato", s.registerContract)
			r.Post("/{id}/prorroga", s.requestExtension)
		})
		r.Route("/clientes", func(r chi.Router) {
			r.Use(s.requireModule(session.ModuleClients))
			r.Get("/", s.clientsPage)
			r.Get("/export.{format}", s.exportRoute(exportClients))
			r.Get("/{id}", s.clientPage)
			r.Post("/muralla", s.wallContract)
		})
		r.Route("/agentes", func(r chi.Router) {
			r.Use(s.requireModule(session.ModuleAgents))
			r.Get("/", s.agentsPage)
			r.Get("/export.{format}", s.exportRoute(exportAgents))
		})
		r.Route("/contratos", func(r chi.Router) {
			r.Use(s.requireModule(session.ModuleContracts))
			r.Get("/", s.contractsPage)
			r.Get("/export.{format}", s.exportRoute(exportContracts))
		})
		r.Route("/equipos", func(r chi.Router) {
			r.Use(s.requireModule(session.ModuleTeams))
			r.Get("/", s.teamsPage)
			r.Get("/export.{format}", s.exportRoute(exportTeams))
			r.Post("/", s.createTeam)
			r.Post("/{id}/eliminar", s.deleteTeam)
		})
		r.Route("/prorrogas", func(r chi.Router) {
			r.Use(s.requireModule(session.ModuleExtensions))
			r.Get("/", s.extensionsPage)
			r.Get("/export.{format}", s.exportRoute(exportExtensions))
			r.Post("/revisar", s.reviewExtensions)
			r.Post("/{id}/revisar", s.reviewExtension)
		})
		r.Route("/reservas", func(r chi.Router) {
			r.Use(s.requireModule(session.ModuleReserves))
			r.Get("/", s.reservationsPage)
			r.Get("/export.{format}", s.exportRoute(exportReservations))
			r.Get("/{id}", s.reservationPage)
			r.Post("/{id}/lote", s.editLot)
			r.Post("/{id}/ampliar", s.extendReservation)
			r.Post("/{id}/firmar", s.signReservation)
			r.Post("/{id}/declinar", s.declineReservation)
		})
		r.Route("/ranking", func(r chi.Router) {
			r.Use(s.requireModule(session.ModuleRanking))
			r.Get("/", s.rankingPage)
			r.Get("/export.{format}", s.exportRoute(exportRanking))
		})
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		s.renderStatus(w, r, http.StatusNotFound, "La página no existe")
	})
	return r
}

// Run serves until ctx is cancelled, then drains in-flight requests.
func (s *Server) Run(ctx context.Context) error {
	httpServer := &http.Server{
		Addr:              s.cfg.Dashboard.Addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: s.cfg.Dashboard.ReadTimeout,
		WriteTimeout:      s.cfg.Dashboard.WriteTimeout,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("dashboard listening", zap.String("addr", s.cfg.Dashboard.Addr), zap.String("backend", s.api.BaseURL()))
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			s.logger.Warn("dashboard shutdown", zap.Error(err))
		}
		<-errCh
		return nil
	case err := <-errCh:
		if err == nil || errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("dashboard: %w", err)
	}
}

func (s *Server) healthz(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write([]byte(`{"status":"ok"}`))
}

func (s *Server) appCSSFile(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/css; charset=utf-8")
	w.Header().Set("Cache-Control", "public, max-age=3600")
	_, _ = w.Write(s.css)
}

func (s *Server) csrfFailed(w http.ResponseWriter, r *http.Request) {
	s.logger.Warn("csrf rejected",
		zap.String("request_id", middleware.RequestIDFromContext(r.Context())),
		zap.String("path", r.URL.Path),
		zap.Error(csrf.FailureReason(r)),
	)
	s.renderStatus(w, r, http.StatusForbidden, "La sesión del formulario expiró. Recargue la página e intente de nuevo.")
}
