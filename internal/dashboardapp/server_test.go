package dashboardapp

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"regexp"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/phillip-england/lotdesk/internal/backend"
	"github.com/phillip-england/lotdesk/internal/cache"
	"github.com/phillip-england/lotdesk/internal/config"
	"github.com/phillip-england/lotdesk/internal/security"
	"github.com/phillip-england/lotdesk/internal/session"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m,
		goleak.IgnoreTopFunction("net/http.(*persistConn).readLoop"),
		goleak.IgnoreTopFunction("net/http.(*persistConn).writeLoop"),
	)
}

var testNow = time.Date(2024, 5, 20, 12, 0, 0, 0, time.UTC)

const testSecret = "0123456789abcdef0123456789abcdef-test"

var fixtures = map[string]string{
	backend.PathDashboard: `{
		"estadisticas":{"totalProspectos":4,"totalClientes":3,"totalReservas":5,"totalContratos":2},
		"graficos":{"progresoMensual":{"labels":["Abr","May"],"datasets":[{"label":"Prospectos","data":[1,3]}]},
			"estadosProspectos":{"nuevo":2,"expirado":2},"reservasPorEstado":{"Activa":1,"Firmado":1}},
		"rendimientoAgentes":[{"id":2,"nombre":"Ana","apellido":"Paz","prospectos":3,"clientes":1,"conversion":33}],
		"actividadReciente":[{"tipo":"contrato","titulo":"Contrato firmado","descripcion":"Lote A-5","fecha":"2024-05-10"}]
	}`,
	backend.PathAgentStats: `[
		{"id":1,"nombre":"Lucía","apellido":"Admin","rol":"Admin"},
		{"id":2,"nombre":"Ana","apellido":"Paz","rol":"Agente","equipo":"Norte","cantidadProspectos":3},
		{"id":3,"nombre":"Bruno","apellido":"Soto","rol":"Agente","equipo":"Sur","cantidadProspectos":1}
	]`,
	backend.PathProjects:     `[{"id":10,"nombre":"Los Pinos"},{"id":11,"nombre":"El Bosque"}]`,
	backend.PathTeams:        `[{"id":7,"nombre":"Halcones","miembros":"2,3"}]`,
	backend.PathAllProspects: `[{"id":30,"nombre":"Carla","apellido":"Vaca"},{"id":33,"nombre":"Fabio","apellido":"Luna"}]`,
	backend.PathProspects: `[
		{"id":30,"nombre":"Carla","apellido":"Vaca","celular":"71111111","fecha":"2024-05-15","agenteId":2},
		{"id":31,"nombre":"Diego","apellido":"Rios","celular":"72222222","fecha":"2024-05-01","agenteId":2},
		{"id":32,"nombre":"Elena","apellido":"Mora","celular":"73333333","fecha":"2024-04-22","agenteId":2},
		{"id":33,"nombre":"Fabio","apellido":"Luna","celular":"74444444","fecha":"2024-03-01","agenteId":3}
	]`,
	backend.PathReservations: `[
		{"id":100,"clienteId":30,"asesorId":2,"proyectoId":10,"manzano":"A","nroTerreno":12,"fechaReserva":"2024-05-10","metodoPago":"Efectivo","montoReserva":500,"estado":"Activa"},
		{"id":101,"clienteId":33,"asesorId":3,"proyectoId":11,"manzano":"C","nroTerreno":"3","fechaReserva":"2024-05-12","estado":"Firmado"}
	]`,
}

type call struct {
	Method string
	Path   string
	Body   map[string]any
}

// fakeAPI is the remote sales backend: it checks logins, serves fixtures
// and records mutations.
type fakeAPI struct {
	mu    sync.Mutex
	calls []call
	reply map[string]func(w http.ResponseWriter)
}

var accounts = map[string]struct {
	password string
	user     string
}{
	"admin@lotdesk.local":  {"clave-admin", `{"id":1,"nombre":"Lucía","apellido":"Admin","email":"admin@lotdesk.local","rol":"Admin"}`},
	"agente@lotdesk.local": {"clave-agente", `{"id":2,"nombre":"Ana","apellido":"Paz","email":"agente@lotdesk.local","rol":"Agente"}`},
}

func (f *fakeAPI) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodPost && r.URL.Path == "/login" {
		var creds session.Credentials
		_ = json.NewDecoder(r.Body).Decode(&creds)
		acct, ok := accounts[creds.Email]
		if !ok || acct.password != creds.Password {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = io.WriteString(w, `{"message":"Credenciales incorrectas"}`)
			return
		}
		_, _ = io.WriteString(w, acct.user)
		return
	}

	f.mu.Lock()
	override := f.reply[r.Method+" "+r.URL.Path]
	f.mu.Unlock()
	if r.Method != http.MethodGet {
		c := call{Method: r.Method, Path: r.URL.Path}
		_ = json.NewDecoder(r.Body).Decode(&c.Body)
		f.mu.Lock()
		f.calls = append(f.calls, c)
		f.mu.Unlock()
	}
	body, ok := fixtures[r.URL.Path]
	switch {
	case override != nil:
		override(w)
	case r.Method != http.MethodGet:
		_, _ = io.WriteString(w, `{"message":"ok"}`)
	case ok:
		_, _ = io.WriteString(w, body)
	default:
		http.NotFound(w, r)
	}
}

func (f *fakeAPI) on(route string, reply func(http.ResponseWriter)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reply[route] = reply
}

func (f *fakeAPI) mutations() []call {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]call(nil), f.calls...)
}

type harness struct {
	t      *testing.T
	api    *fakeAPI
	cache  *cache.Memory
	url    string
	client *http.Client
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	fake := &fakeAPI{reply: map[string]func(http.ResponseWriter){}}
	apiSrv := httptest.NewServer(fake)
	t.Cleanup(apiSrv.Close)

	cfg := config.Defaults()
	cfg.Dashboard.SessionSecret = testSecret
	cfg.Backend.BaseURL = apiSrv.URL
	sealer, err := security.NewSealer(testSecret)
	require.NoError(t, err)
	store := cache.NewMemory()

	srv, err := New(Options{
		Config:   cfg,
		API:      backend.New(backend.Options{BaseURL: apiSrv.URL, Cache: store}),
		Sessions: session.NewMemoryStore(sealer, time.Hour),
		Now:      func() time.Time { return testNow },
	})
	require.NoError(t, err)
	web := httptest.NewServer(srv.Handler())
	t.Cleanup(web.Close)

	jar, err := cookiejar.New(nil)
	require.NoError(t, err)
	client := &http.Client{
		Jar: jar,
		CheckRedirect: func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
	t.Cleanup(client.CloseIdleConnections)
	return &harness{t: t, api: fake, cache: store, url: web.URL, client: client}
}

func (h *harness) get(path string) (*http.Response, string) {
	h.t.Helper()
	resp, err := h.client.Get(h.url + path)
	require.NoError(h.t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(h.t, err)
	return resp, string(body)
}

var tokenPattern = regexp.MustCompile(`name="gorilla.csrf.Token" value="([^"]+)"`)

// token loads path and returns the CSRF token embedded in its forms.
func (h *harness) token(path string) string {
	h.t.Helper()
	_, body := h.get(path)
	m := tokenPattern.FindStringSubmatch(body)
	require.Len(h.t, m, 2, "no csrf token on %s", path)
	return m[1]
}

func (h *harness) post(path string, form url.Values) *http.Response {
	h.t.Helper()
	resp, err := h.client.PostForm(h.url+path, form)
	require.NoError(h.t, err)
	_ = resp.Body.Close()
	return resp
}

func (h *harness) login(email, password string) *http.Response {
	h.t.Helper()
	return h.post("/login", url.Values{
		"gorilla.csrf.Token": {h.token("/login")},
		"email":              {email},
		"password":           {password},
	})
}

func flash(t *testing.T, resp *http.Response, key string) string {
	t.Helper()
	loc, err := url.Parse(resp.Header.Get("Location"))
	require.NoError(t, err)
	return loc.Query().Get(key)
}

func TestHealthzAndAssets(t *testing.T) {
	h := newHarness(t)
	resp, body := h.get("/healthz")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"status":"ok"}`, body)

	resp, body = h.get("/assets/app.css")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Content-Type"), "text/css")
	assert.Contains(t, body, ".sidebar")
	assert.NotEmpty(t, resp.Header.Get("Content-Security-Policy"))
	assert.NotEmpty(t, resp.Header.Get("X-Request-Id"))
}

func TestPagesRequireSession(t *testing.T) {
	h := newHarness(t)
	for _, path := range []string{"/", "/dashboard", "/prospectos", "/reservas/100", "/ranking/export.csv"} {
		resp, _ := h.get(path)
		assert.Equal(t, http.StatusFound, resp.StatusCode, path)
		assert.Equal(t, "/login", resp.Header.Get("Location"), path)
	}
}

func TestLoginRejectsBadCredentials(t *testing.T) {
	h := newHarness(t)
	resp := h.login("admin@lotdesk.local", "nope")
	assert.Equal(t, http.StatusSeeOther, resp.StatusCode)
	assert.Equal(t, "Credenciales incorrectas", flash(t, resp, "error"))

	resp = h.post("/login", url.Values{"gorilla.csrf.Token": {h.token("/login")}, "email": {""}})
	assert.Equal(t, "Ingrese su correo y contraseña", flash(t, resp, "error"))
}

func TestPostWithoutTokenIsForbidden(t *testing.T) {
	h := newHarness(t)
	resp := h.post("/login", url.Values{"email": {"admin@lotdesk.local"}, "password": {"clave-admin"}})
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}

func TestAdminDashboard(t *testing.T) {
	h := newHarness(t)
	resp := h.login("admin@lotdesk.local", "clave-admin")
	require.Equal(t, http.StatusSeeOther, resp.StatusCode)
	assert.Equal(t, "/dashboard", resp.Header.Get("Location"))

	resp, body := h.get("/dashboard")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body, "Lucía Admin")
	assert.Contains(t, body, "Contrato firmado")
	assert.Contains(t, body, `href="/agentes"`)
	assert.Contains(t, body, `href="/equipos"`)

	resp, _ = h.get("/login")
	assert.Equal(t, http.StatusFound, resp.StatusCode)
	assert.Equal(t, "/dashboard", resp.Header.Get("Location"))
}

func TestAgentNavigationIsRestricted(t *testing.T) {
	h := newHarness(t)
	h.login("agente@lotdesk.local", "clave-agente")

	_, body := h.get("/dashboard")
	assert.NotContains(t, body, `href="/agentes"`)
	assert.NotContains(t, body, `href="/equipos"`)

	resp, _ := h.get("/agentes")
	assert.Equal(t, http.StatusSeeOther, resp.StatusCode)
	assert.True(t, strings.HasPrefix(resp.Header.Get("Location"), "/dashboard?"))
	assert.NotEmpty(t, flash(t, resp, "error"))
}

func TestAgentProspectsArePaged(t *testing.T) {
	h := newHarness(t)
	h.login("agente@lotdesk.local", "clave-agente")

	resp, body := h.get("/prospectos?perPage=2")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body, "Carla Vaca")
	assert.Contains(t, body, "Diego Rios")
	assert.NotContains(t, body, "Elena Mora")
	assert.NotContains(t, body, "Fabio Luna")
	assert.Contains(t, body, "perPage=2&amp;page=2")

	_, body = h.get("/prospectos?perPage=2&page=2")
	assert.Contains(t, body, "Elena Mora")
	assert.NotContains(t, body, "Carla Vaca")

	_, body = h.get("/prospectos?estado=nuevo")
	assert.Contains(t, body, "Carla Vaca")
	assert.NotContains(t, body, "Diego Rios")
	assert.Contains(t, body, "Filtros:")
}

func TestCreateProspect(t *testing.T) {
	h := newHarness(t)
	h.login("agente@lotdesk.local", "clave-agente")

	resp := h.post("/prospectos", url.Values{
		"gorilla.csrf.Token": {h.token("/prospectos")},
		"nombre":             {"Gina"},
		"apellido":           {"Paredes"},
		"celular":            {"77777777"},
		"return":             {"/prospectos?q=gina"},
	})
	require.Equal(t, http.StatusSeeOther, resp.StatusCode)
	assert.True(t, strings.HasPrefix(resp.Header.Get("Location"), "/prospectos?"))
	assert.Equal(t, "ok", flash(t, resp, "message"))

	calls := h.api.mutations()
	require.Len(t, calls, 1)
	assert.Equal(t, http.MethodPost, calls[0].Method)
	assert.Equal(t, backend.PathProspects, calls[0].Path)
	assert.Equal(t, "Gina", calls[0].Body["nombre"])
}

func TestValidationErrorIsFlashed(t *testing.T) {
	h := newHarness(t)
	h.login("agente@lotdesk.local", "clave-agente")

	resp := h.post("/prospectos", url.Values{
		"gorilla.csrf.Token": {h.token("/prospectos")},
		"return":             {"//evil.example"},
	})
	require.Equal(t, http.StatusSeeOther, resp.StatusCode)
	assert.True(t, strings.HasPrefix(resp.Header.Get("Location"), "/prospectos?"))
	assert.NotEmpty(t, flash(t, resp, "error"))
	assert.Empty(t, h.api.mutations())
}

func TestExpiredBackendSessionLogsOut(t *testing.T) {
	h := newHarness(t)
	h.login("agente@lotdesk.local", "clave-agente")
	h.api.on("GET "+backend.PathProspects, func(w http.ResponseWriter) {
		w.WriteHeader(http.StatusUnauthorized)
	})

	resp, _ := h.get("/prospectos")
	assert.Equal(t, http.StatusSeeOther, resp.StatusCode)
	assert.True(t, strings.HasPrefix(resp.Header.Get("Location"), "/login?"))

	resp, _ = h.get("/dashboard")
	assert.Equal(t, http.StatusFound, resp.StatusCode)
	assert.Equal(t, "/login", resp.Header.Get("Location"))
}

func TestReservationsExport(t *testing.T) {
	h := newHarness(t)
	h.login("admin@lotdesk.local", "clave-admin")

	resp, body := h.get("/reservas/export.csv?proyecto=10")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "text/csv; charset=utf-8", resp.Header.Get("Content-Type"))
	assert.Equal(t, `attachment; filename="reservas_2024-05-20.csv"`, resp.Header.Get("Content-Disposition"))
	assert.Contains(t, body, `"Carla Vaca","Los Pinos","A","12"`)
	assert.NotContains(t, body, "Fabio Luna")

	resp, _ = h.get("/reservas/export.pdf?q=nadie")
	assert.Equal(t, http.StatusSeeOther, resp.StatusCode)
	assert.Equal(t, "No hay datos para exportar", flash(t, resp, "error"))

	resp, _ = h.get("/reservas/export.doc")
	assert.Equal(t, "Formato de exportación no soportado", flash(t, resp, "error"))
}

func TestReservationDetailActions(t *testing.T) {
	h := newHarness(t)
	h.login("admin@lotdesk.local", "clave-admin")

	resp, body := h.get("/reservas/100")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body, `action="/reservas/100/firmar"`)
	assert.NotContains(t, body, `action="/reservas/100/lote"`)

	_, body = h.get("/reservas/101")
	assert.NotContains(t, body, `action="/reservas/101/firmar"`)

	resp, _ = h.get("/reservas/999")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestLogout(t *testing.T) {
	h := newHarness(t)
	h.login("agente@lotdesk.local", "clave-agente")
	resp, _ := h.get("/prospectos")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Positive(t, h.cache.Len())

	resp = h.post("/logout", url.Values{"gorilla.csrf.Token": {h.token("/dashboard")}})
	assert.Equal(t, http.StatusSeeOther, resp.StatusCode)
	assert.Equal(t, "Sesión cerrada", flash(t, resp, "message"))
	assert.Zero(t, h.cache.Len())

	resp, _ = h.get("/dashboard")
	assert.Equal(t, http.StatusFound, resp.StatusCode)
}

func TestUnknownPage(t *testing.T) {
	h := newHarness(t)
	resp, body := h.get("/nada")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Contains(t, body, "La página no existe")
}
