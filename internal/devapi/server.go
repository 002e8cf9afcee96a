// Package devapi is a local stand-in for the sales REST backend. It stores
// records in SQLite and speaks the same JSON the dashboard consumes.
package devapi

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/phillip-england/lotdesk/internal/config"
	"github.com/phillip-england/lotdesk/internal/middleware"
	"github.com/phillip-england/lotdesk/internal/security"
)

const (
	shutdownTimeout = 5 * time.Second
	maxBodyBytes    = 8 << 20
	dateLayout      = "2006-01-02"
)

type contextKey string

const userContextKey contextKey = "user"

type Options struct {
	Config config.DevAPIConfig
	Store  *Store
	Logger *zap.Logger
	// Now overrides the clock, for tests.
	Now func() time.Time
}

type Server struct {
	cfg    config.DevAPIConfig
	store  *Store
	logger *zap.Logger
	now    func() time.Time

	mu       sync.Mutex
	verified map[string][32]byte
}

func New(opts Options) (*Server, error) {
	if opts.Store == nil {
		return nil, errors.New("devapi: store is required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &Server{
		cfg:      opts.Config,
		store:    opts.Store,
		logger:   logger,
		now:      now,
		verified: map[string][32]byte{},
	}, nil
}

// Bootstrap ensures the configured users exist and seeds demo records into
// an empty database.
func (s *Server) Bootstrap(ctx context.Context) error {
	if s.cfg.AdminEmail == "" || s.cfg.AdminPassword == "" {
		return errors.New("devapi admin email and password are required")
	}
	if s.cfg.AgentEmail == "" || s.cfg.AgentPassword == "" {
		return errors.New("devapi agent email and password are required")
	}
	if err := seed(ctx, s.store, s.cfg, s.now()); err != nil {
		return fmt.Errorf("seed devapi: %w", err)
	}
	return nil
}

func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.RequestID,
		middleware.AccessLog(s.logger),
		middleware.Recover(s.logger),
	)

	r.Get("/healthz", s.health)
	r.Post("/login", s.login)

	r.Group(func(r chi.Router) {
		r.Use(s.authenticate)

		r.Get("/dashboard", s.dashboard)
		r.Get("/usuarios/estadisticas-agentes", s.agentStats)
		r.Get("/proyectos", s.listProjects)
		r.Get("/clientes", s.clients)
		r.Get("/clientes-fijos", s.fixedClients)
		r.Get("/equipos", s.listTeams)
		r.Get("/todoProspectos", s.allProspects)
		r.Get("/prospectos", s.visibleProspects)
		r.Get("/reservas-completas", s.listReservations)
		r.Get("/contratos", s.listContracts)
		r.Get("/contratos/ranking2", s.ranking)
		r.Get("/prorrogas", s.listExtensions)

		r.Post("/prospectos", s.createProspect)
		r.Put("/prospectos/{id}", s.updateProspect)
		r.Patch("/prospectos/{id}/seguimiento", s.setFollowUp)
		r.Post("/prospectos/{id}/crear-contrato", s.createContract)
		r.Post("/prorrogas", s.requestExtension)

		r.Put("/reservas/{id}/firmar", s.signReservation)
		r.Put("/reservas/{id}/ampliar", s.extendReservation)
		r.Put("/reservas/{id}/editar-lote", s.editLot)
		r.Put("/reservas/{id}/accion", s.reservationAction)

		r.Group(func(r chi.Router) {
			r.Use(requireAdmin)
			r.Patch("/prospectos/{id}/cambiar-agente", s.changeAgent)
			r.Post("/contratos/muralla", s.wallContract)
			r.Put("/prorrogas/{id}", s.reviewExtension)
			r.Post("/equipos", s.createTeam)
			r.Delete("/equipos/{id}", s.deleteTeam)
		})
	})

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusNotFound, "Ruta no encontrada")
	})
	return r
}

func (s *Server) Run(ctx context.Context) error {
	httpServer := &http.Server{
		Addr:              s.cfg.Addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("devapi listening", zap.String("addr", s.cfg.Addr), zap.String("db", s.cfg.DBPath))
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			s.logger.Warn("devapi shutdown", zap.Error(err))
		}
		<-errCh
		return nil
	case err := <-errCh:
		if err == nil || errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("devapi: %w", err)
	}
}

func (s *Server) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type userResponse struct {
	ID       int64  `json:"id"`
	Nombre   string `json:"nombre"`
	Apellido string `json:"apellido"`
	Email    string `json:"email"`
	Rol      string `json:"rol"`
	Telefono string `json:"telefono,omitempty"`
	EquipoID int64  `json:"equipoId,omitempty"`
}

func toUserResponse(u userRecord) userResponse {
	return userResponse{
		ID:       u.ID,
		Nombre:   u.Nombre,
		Apellido: u.Apellido,
		Email:    u.Email,
		Rol:      u.Rol,
		Telefono: u.Telefono,
		EquipoID: u.EquipoID,
	}
}

func (s *Server) login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Solicitud inválida")
		return
	}
	if strings.TrimSpace(req.Email) == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, "Email y contraseña son requeridos")
		return
	}
	user, ok, err := s.check(r.Context(), req.Email, req.Password)
	if err != nil {
		s.logger.Error("login lookup failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "Error al iniciar sesión")
		return
	}
	if !ok {
		writeError(w, http.StatusUnauthorized, "Credenciales incorrectas")
		return
	}
	writeJSON(w, http.StatusOK, toUserResponse(user))
}

// check verifies email and password. Successful pairs are remembered by
// digest so replayed credentials skip the slow hash.
func (s *Server) check(ctx context.Context, email, password string) (userRecord, bool, error) {
	user, err := s.store.userByEmail(ctx, email)
	if errors.Is(err, errNotFound) {
		return userRecord{}, false, nil
	}
	if err != nil {
		return userRecord{}, false, err
	}
	sum := sha256.Sum256([]byte(user.Hash + "\x00" + password))
	s.mu.Lock()
	known, hit := s.verified[user.Email]
	s.mu.Unlock()
	if hit && known == sum {
		return user, true, nil
	}
	if !security.VerifyPassword(password, user.Hash) {
		return userRecord{}, false, nil
	}
	s.mu.Lock()
	s.verified[user.Email] = sum
	s.mu.Unlock()
	return user, true, nil
}

// authenticate reads the email and password headers every call carries.
func (s *Server) authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		email := strings.TrimSpace(r.Header.Get("email"))
		password := r.Header.Get("password")
		if email == "" || password == "" {
			writeError(w, http.StatusUnauthorized, "No autorizado")
			return
		}
		user, ok, err := s.check(r.Context(), email, password)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "Error de autenticación")
			return
		}
		if !ok {
			writeError(w, http.StatusUnauthorized, "No autorizado")
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), userContextKey, user)))
	})
}

func requireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !currentUser(r).isAdmin() {
			writeError(w, http.StatusForbidden, "Solo administradores pueden realizar esta acción")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func currentUser(r *http.Request) userRecord {
	u, _ := r.Context().Value(userContextKey).(userRecord)
	return u
}

func (s *Server) today() string { return s.now().UTC().Format(dateLayout) }

func decodeJSON(r *http.Request, out any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	return dec.Decode(out)
}

type result struct {
	Message      string  `json:"message"`
	ID           string  `json:"id,omitempty"`
	MontoReserva float64 `json:"montoReserva,omitempty"`
	TiempoEspera string  `json:"tiempoEspera,omitempty"`
}

// serverError logs err and answers with a generic 500, or a 404 when the
// record is missing.
func (s *Server) serverError(w http.ResponseWriter, r *http.Request, err error, missing string) {
	if errors.Is(err, errNotFound) {
		writeError(w, http.StatusNotFound, missing)
		return
	}
	s.logger.Error("devapi request failed",
		zap.String("request_id", middleware.RequestIDFromContext(r.Context())),
		zap.String("path", r.URL.Path),
		zap.Error(err),
	)
	writeError(w, http.StatusInternalServerError, "Error interno del servidor")
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
