package dashboardapp

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/phillip-england/lotdesk/internal/backend"
	"github.com/phillip-england/lotdesk/internal/catalog"
	"github.com/phillip-england/lotdesk/internal/middleware"
	"github.com/phillip-england/lotdesk/internal/sales"
	"github.com/phillip-england/lotdesk/internal/session"
)

type ctxKey int

const (
	sessionKey ctxKey = iota
	deskKey
)

func sessionFrom(ctx context.Context) (*session.Session, bool) {
	sess, ok := ctx.Value(sessionKey).(*session.Session)
	return sess, ok && sess != nil
}

func deskFrom(r *http.Request) *sales.Desk {
	desk, _ := r.Context().Value(deskKey).(*sales.Desk)
	return desk
}

func (s *Server) currentSession(r *http.Request) (*session.Session, bool) {
	cookie, err := r.Cookie(sessionCookieName)
	if err != nil || strings.TrimSpace(cookie.Value) == "" {
		return nil, false
	}
	sess, err := s.sessions.Get(r.Context(), cookie.Value)
	if err != nil {
		if !errors.Is(err, session.ErrNotFound) {
			s.logger.Warn("session lookup failed", zap.Error(err))
		}
		return nil, false
	}
	return sess, true
}

// requireSession loads the signed-in user and binds a fresh catalog and desk
// to the request.
func (s *Server) requireSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sess, ok := s.currentSession(r)
		if !ok {
			s.clearCookie(w)
			http.Redirect(w, r, "/login", http.StatusFound)
			return
		}
		cat := catalog.New(s.api.As(sess.Credentials), s.cfg.Backend.Concurrency)
		desk := sales.NewDesk(cat, sess.User, s.now())
		ctx := context.WithValue(r.Context(), sessionKey, sess)
		ctx = context.WithValue(ctx, deskKey, desk)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// requireModule sends users without access to m back to the dashboard.
func (s *Server) requireModule(m session.Module) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			sess, ok := sessionFrom(r.Context())
			if !ok {
				http.Redirect(w, r, "/login", http.StatusFound)
				return
			}
			if !sess.User.Can(m) {
				target := "/dashboard"
				if m == session.ModuleDashboard {
					target = "/login"
				}
				redirectError(w, r, target, "No tiene permiso para acceder a "+m.Title())
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func (s *Server) loginPage(w http.ResponseWriter, r *http.Request) {
	if _, ok := s.currentSession(r); ok {
		http.Redirect(w, r, "/dashboard", http.StatusFound)
		return
	}
	data := s.page(r, "", "Iniciar sesión")
	data.Data = r.URL.Query().Get("email")
	s.render(w, r, "login.html", data)
}

func (s *Server) login(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		redirectError(w, r, "/login", "Formulario inválido")
		return
	}
	email := strings.TrimSpace(r.FormValue("email"))
	password := r.FormValue("password")
	if email == "" || password == "" {
		redirectError(w, r, "/login", "Ingrese su correo y contraseña")
		return
	}

	user, err := s.api.Login(r.Context(), email, password)
	if err != nil {
		var apiErr *backend.APIError
		msg := "No se pudo conectar con el servidor"
		if errors.As(err, &apiErr) && apiErr.Status < http.StatusInternalServerError {
			msg = apiErr.Message
		}
		s.logger.Info("login rejected", zap.String("email", email), zap.Error(err))
		redirectError(w, r, "/login", msg)
		return
	}

	sess, err := s.sessions.Create(r.Context(), user, session.Credentials{Email: email, Password: password})
	if err != nil {
		s.logger.Error("session create failed", zap.Error(err))
		redirectError(w, r, "/login", "No se pudo iniciar la sesión")
		return
	}
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    sess.ID,
		Path:     "/",
		HttpOnly: true,
		Secure:   s.cfg.Dashboard.SecureCookies,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   int(s.sessions.TTL().Seconds()),
	})
	s.logger.Info("login",
		zap.String("request_id", middleware.RequestIDFromContext(r.Context())),
		zap.String("email", email),
		zap.String("rol", string(user.Role())),
	)
	http.Redirect(w, r, "/dashboard", http.StatusSeeOther)
}

func (s *Server) logout(w http.ResponseWriter, r *http.Request) {
	s.endSession(w, r)
	redirectMessage(w, r, "/login", "Sesión cerrada")
}

// endSession drops the server side session, the user's cached backend
// responses and the cookie.
func (s *Server) endSession(w http.ResponseWriter, r *http.Request) {
	if cookie, err := r.Cookie(sessionCookieName); err == nil && cookie.Value != "" {
		if sess, err := s.sessions.Get(r.Context(), cookie.Value); err == nil {
			if err := s.api.As(sess.Credentials).ClearCache(r.Context()); err != nil {
				s.logger.Warn("cache clear on logout failed", zap.Error(err))
			}
		}
		if err := s.sessions.Delete(r.Context(), cookie.Value); err != nil {
			s.logger.Warn("session delete failed", zap.Error(err))
		}
	}
	s.clearCookie(w)
}

func (s *Server) clearCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    "",
		Path:     "/",
		HttpOnly: true,
		Secure:   s.cfg.Dashboard.SecureCookies,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   -1,
	})
}

// refresh drops the cached entity sets so the next page load refetches them.
func (s *Server) refresh(w http.ResponseWriter, r *http.Request) {
	desk := deskFrom(r)
	back := returnPath(r, "/dashboard")
	if err := desk.Catalog().Refresh(r.Context()); err != nil {
		s.fail(w, r, err, back, "No se pudieron actualizar los datos")
		return
	}
	redirectMessage(w, r, back, "Datos actualizados")
}
