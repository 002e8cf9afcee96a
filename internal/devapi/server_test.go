package devapi

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/phillip-england/lotdesk/internal/backend"
	"github.com/phillip-england/lotdesk/internal/config"
	"github.com/phillip-england/lotdesk/internal/session"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m,
		goleak.IgnoreTopFunction("net/http.(*persistConn).readLoop"),
		goleak.IgnoreTopFunction("net/http.(*persistConn).writeLoop"),
	)
}

var testNow = time.Date(2024, 5, 20, 12, 0, 0, 0, time.UTC)

var (
	adminCreds = session.Credentials{Email: "admin@lotdesk.local", Password: "clave-admin-123"}
	agentCreds = session.Credentials{Email: "agente@lotdesk.local", Password: "clave-agente-123"}
	brunoCreds = session.Credentials{Email: "bruno@lotdesk.local", Password: "clave-agente-123"}
)

// newAPI starts a seeded devapi and returns a backend client pointed at it.
func newAPI(t *testing.T) *backend.Client {
	t.Helper()
	ctx := context.Background()
	store, err := OpenStore(ctx, ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	cfg := config.Defaults().DevAPI
	cfg.AdminPassword = adminCreds.Password
	cfg.AgentPassword = agentCreds.Password
	srv, err := New(Options{Config: cfg, Store: store, Now: func() time.Time { return testNow }})
	require.NoError(t, err)
	require.NoError(t, srv.Bootstrap(ctx))

	web := httptest.NewServer(srv.Handler())
	t.Cleanup(web.Close)
	httpClient := &http.Client{Timeout: 5 * time.Second}
	t.Cleanup(httpClient.CloseIdleConnections)
	return backend.New(backend.Options{BaseURL: web.URL, HTTPClient: httpClient})
}

func apiError(t *testing.T, err error) *backend.APIError {
	t.Helper()
	var apiErr *backend.APIError
	require.ErrorAs(t, err, &apiErr)
	return apiErr
}

func TestBootstrapIsIdempotent(t *testing.T) {
	ctx := context.Background()
	store, err := OpenStore(ctx, ":memory:")
	require.NoError(t, err)
	defer store.Close()

	cfg := config.Defaults().DevAPI
	cfg.AdminPassword = adminCreds.Password
	cfg.AgentPassword = agentCreds.Password
	srv, err := New(Options{Config: cfg, Store: store, Now: func() time.Time { return testNow }})
	require.NoError(t, err)
	require.NoError(t, srv.Bootstrap(ctx))
	require.NoError(t, srv.Bootstrap(ctx))

	n, err := store.count(ctx, kindProjects)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	users, err := store.listUsers(ctx)
	require.NoError(t, err)
	assert.Len(t, users, 3)
}

func TestBootstrapRequiresPasswords(t *testing.T) {
	ctx := context.Background()
	store, err := OpenStore(ctx, ":memory:")
	require.NoError(t, err)
	defer store.Close()

	srv, err := New(Options{Config: config.Defaults().DevAPI, Store: store})
	require.NoError(t, err)
	assert.Error(t, srv.Bootstrap(ctx))
}

func TestLogin(t *testing.T) {
	api := newAPI(t)
	ctx := context.Background()

	user, err := api.Login(ctx, adminCreds.Email, adminCreds.Password)
	require.NoError(t, err)
	assert.Equal(t, "Lucía Admin", user.FullName())
	assert.True(t, user.IsAdmin())

	user, err = api.Login(ctx, "AGENTE@lotdesk.local", agentCreds.Password)
	require.NoError(t, err)
	assert.True(t, user.IsAgent())

	_, err = api.Login(ctx, adminCreds.Email, "incorrecta")
	apiErr := apiError(t, err)
	assert.Equal(t, http.StatusUnauthorized, apiErr.Status)
	assert.Equal(t, "Credenciales incorrectas", apiErr.Message)
}

func TestWrongHeadersExpireTheSession(t *testing.T) {
	api := newAPI(t)
	_, err := api.As(session.Credentials{Email: adminCreds.Email, Password: "otra-clave"}).Projects(context.Background())
	assert.ErrorIs(t, err, backend.ErrSessionExpired)
}

func TestProspectVisibility(t *testing.T) {
	api := newAPI(t)
	ctx := context.Background()

	own, err := api.As(agentCreds).Prospects(ctx)
	require.NoError(t, err)
	assert.Len(t, own, 3)
	for _, p := range own {
		assert.Equal(t, backend.ID("2"), p.AgenteID)
	}

	all, err := api.As(agentCreds).AllProspects(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 5)

	adminView, err := api.As(adminCreds).Prospects(ctx)
	require.NoError(t, err)
	assert.Len(t, adminView, 5)
}

func TestCreateProspect(t *testing.T) {
	api := newAPI(t)
	ctx := context.Background()
	agent := api.As(agentCreds)

	res, err := agent.CreateProspect(ctx, backend.ProspectInput{Nombre: "Hugo", Apellido: "Vera", Celular: "7 666-6666", AgenteID: "3"})
	require.NoError(t, err)
	assert.Equal(t, backend.ID("6"), res.ID)

	own, err := agent.Prospects(ctx)
	require.NoError(t, err)
	require.Len(t, own, 4)
	created := own[3]
	assert.Equal(t, backend.Text("76666666"), created.Celular)
	assert.Equal(t, "2024-05-20", created.Fecha)
	assert.Equal(t, "Tibio", created.Seguimiento)

	_, err = agent.CreateProspect(ctx, backend.ProspectInput{Nombre: "Otra", Celular: "71111111"})
	apiErr := apiError(t, err)
	assert.Equal(t, http.StatusConflict, apiErr.Status)
}

func TestAgentCannotTouchOthersProspects(t *testing.T) {
	api := newAPI(t)
	_, err := api.As(agentCreds).SetProspectFollowUp(context.Background(), "4", "Caliente")
	assert.True(t, backend.IsStatus(err, http.StatusForbidden))

	_, err = api.As(agentCreds).ChangeProspectAgent(context.Background(), "1", "3")
	assert.True(t, backend.IsStatus(err, http.StatusForbidden))

	_, err = api.As(adminCreds).ChangeProspectAgent(context.Background(), "1", "3")
	require.NoError(t, err)
}

func TestSignReservation(t *testing.T) {
	api := newAPI(t)
	ctx := context.Background()
	admin := api.As(adminCreds)

	_, err := admin.SignReservation(ctx, "1", "Bitcoin", 900)
	assert.Contains(t, apiError(t, err).Message, "método de pago")

	res, err := admin.SignReservation(ctx, "1", "Tarjeta", 900)
	require.NoError(t, err)
	assert.Equal(t, backend.Amount(900), res.MontoReserva)

	reservations, err := admin.Reservations(ctx)
	require.NoError(t, err)
	assert.Equal(t, "Firmado", reservations[0].Estado)

	contracts, err := admin.Contracts(ctx)
	require.NoError(t, err)
	require.Len(t, contracts, 4)
	assert.Equal(t, backend.ID("1"), contracts[3].ClienteID)
	assert.Equal(t, backend.ID("1"), contracts[3].EquipoID)

	_, err = admin.SignReservation(ctx, "1", "Tarjeta", 900)
	assert.Contains(t, apiError(t, err).Message, "No se puede realizar acciones")

	_, err = admin.SignReservation(ctx, "99", "Tarjeta", 900)
	assert.Equal(t, http.StatusNotFound, apiError(t, err).Status)
}

func TestExtendReservation(t *testing.T) {
	api := newAPI(t)
	ctx := context.Background()

	_, err := api.As(agentCreds).ExtendReservation(ctx, "2", 5)
	assert.Contains(t, apiError(t, err).Message, "Debe especificar 7 o 20 días")

	_, err = api.As(brunoCreds).ExtendReservation(ctx, "2", 7)
	assert.Contains(t, apiError(t, err).Message, "Solo puedes ampliar tus propias reservas")

	res, err := api.As(agentCreds).ExtendReservation(ctx, "2", 7)
	require.NoError(t, err)
	assert.Equal(t, backend.Text("22"), res.TiempoEspera)
}

func TestReservationActions(t *testing.T) {
	api := newAPI(t)
	ctx := context.Background()

	_, err := api.As(agentCreds).ReservationAction(ctx, "1", "declinado_sin_devolucion", nil)
	assert.Contains(t, apiError(t, err).Message, "Solo administradores")

	_, err = api.As(adminCreds).ReservationAction(ctx, "1", "borrar", nil)
	assert.Contains(t, apiError(t, err).Message, "Acción no válida")

	res, err := api.As(adminCreds).ReservationAction(ctx, "1", "firma_en_x_dias", map[string]any{"dias": 45})
	require.NoError(t, err)
	assert.Equal(t, backend.Text("45"), res.TiempoEspera)

	_, err = api.As(adminCreds).ReservationAction(ctx, "1", "declinado_con_devolucion", nil)
	require.NoError(t, err)
	reservations, err := api.As(adminCreds).Reservations(ctx)
	require.NoError(t, err)
	assert.Equal(t, "Declinado con Devolución", reservations[0].Estado)

	_, err = api.As(adminCreds).ReservationAction(ctx, "3", "declinado_sin_devolucion", nil)
	assert.Contains(t, apiError(t, err).Message, "No se puede realizar acciones")
}

func TestEditLot(t *testing.T) {
	api := newAPI(t)
	ctx := context.Background()

	_, err := api.As(agentCreds).EditReservationLot(ctx, "1", "", "5")
	assert.Contains(t, apiError(t, err).Message, "Debe proporcionar el manzano")

	_, err = api.As(adminCreds).EditReservationLot(ctx, "1", "A", "13")
	assert.Equal(t, http.StatusForbidden, apiError(t, err).Status)

	_, err = api.As(agentCreds).EditReservationLot(ctx, "1", "A", "13")
	require.NoError(t, err)

	_, err = api.As(agentCreds).EditReservationLot(ctx, "2", "c", "3")
	require.NoError(t, err, "the only other lot C-3 in that project is signed")
}

func TestTeams(t *testing.T) {
	api := newAPI(t)
	ctx := context.Background()
	admin := api.As(adminCreds)

	_, err := api.As(agentCreds).CreateTeam(ctx, backend.TeamInput{Nombre: "Cóndores", Miembros: []backend.ID{"3"}})
	assert.True(t, backend.IsStatus(err, http.StatusForbidden))

	_, err = admin.CreateTeam(ctx, backend.TeamInput{Nombre: "Cóndores", Miembros: []backend.ID{"2"}})
	assert.Contains(t, apiError(t, err).Message, "ya pertenece a un equipo")

	res, err := admin.CreateTeam(ctx, backend.TeamInput{Nombre: "Cóndores", Miembros: []backend.ID{"3"}})
	require.NoError(t, err)

	teams, err := admin.Teams(ctx)
	require.NoError(t, err)
	require.Len(t, teams, 2)
	assert.Equal(t, "Bruno", teams[1].Miembros[0].Nombre)

	agents, err := admin.AgentStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, "Cóndores", agents[2].Equipo)
	assert.Equal(t, 2, agents[2].CantidadProspectos)
	assert.Equal(t, 2, agents[2].CantidadContratos)

	_, err = admin.DeleteTeam(ctx, res.ID)
	require.NoError(t, err)
	agents, err = admin.AgentStats(ctx)
	require.NoError(t, err)
	assert.Empty(t, agents[2].Equipo)
}

func TestRanking(t *testing.T) {
	api := newAPI(t)
	ctx := context.Background()

	ranking, err := api.As(agentCreds).Ranking(ctx, backend.RankingQuery{})
	require.NoError(t, err)
	require.Len(t, ranking.PorAsesor, 2)
	assert.Equal(t, "Bruno Soto", ranking.PorAsesor[0].Nombre)
	assert.Equal(t, 1, ranking.PorAsesor[0].Posicion)
	assert.Equal(t, backend.Amount(21500), ranking.PorAsesor[0].MontoTotal)
	require.Len(t, ranking.PorEquipo, 1)
	assert.Equal(t, "Halcones", ranking.PorEquipo[0].Nombre)

	ranking, err = api.As(agentCreds).Ranking(ctx, backend.RankingQuery{FechaInicio: "2024-05-01", Proyecto: "Los Pinos"})
	require.NoError(t, err)
	require.Len(t, ranking.PorAsesor, 1)
	assert.Equal(t, "Ana Paz", ranking.PorAsesor[0].Nombre)
}

func TestWallContractCountsInRankingAmountOnly(t *testing.T) {
	api := newAPI(t)
	ctx := context.Background()
	admin := api.As(adminCreds)

	_, err := admin.WallContract(ctx, "3", "Efectivo", 2000)
	require.NoError(t, err)
	_, err = admin.WallContract(ctx, "3", "Efectivo", 2000)
	assert.True(t, backend.IsStatus(err, http.StatusConflict))

	clients, err := admin.FixedClients(ctx)
	require.NoError(t, err)
	require.NotEmpty(t, clients)
	assert.Equal(t, "Elena", clients[0].Nombre)

	ranking, err := admin.Ranking(ctx, backend.RankingQuery{Proyecto: "1"})
	require.NoError(t, err)
	require.Len(t, ranking.PorAsesor, 1)
	assert.Equal(t, backend.Amount(17000), ranking.PorAsesor[0].MontoTotal)
	assert.Equal(t, 2, ranking.PorAsesor[0].Cantidad)
	assert.Equal(t, 1, ranking.PorAsesor[0].CantidadReal)
}

func TestExtensions(t *testing.T) {
	api := newAPI(t)
	ctx := context.Background()
	agent := api.As(agentCreds)

	_, err := agent.RequestExtension(ctx, backend.ExtensionRequest{ClienteID: "2", Descripcion: "Otra"})
	assert.True(t, backend.IsStatus(err, http.StatusConflict))

	_, err = agent.RequestExtension(ctx, backend.ExtensionRequest{ClienteID: "1", Descripcion: "Viaje"})
	require.NoError(t, err)

	_, err = agent.ReviewExtension(ctx, "1", backend.ExtensionReview{Estado: "aprobado", DiasExtra: 10})
	assert.True(t, backend.IsStatus(err, http.StatusForbidden))

	_, err = api.As(adminCreds).ReviewExtension(ctx, "1", backend.ExtensionReview{Estado: "aprobado", DiasExtra: 10})
	require.NoError(t, err)

	list, err := agent.Extensions(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "aprobado", list[0].Estado)
	assert.Equal(t, "2024-06-11", list[0].FechaLimite)
	assert.Equal(t, "2024-06-01", list[0].FechaLimiteOriginal)
	assert.Equal(t, "2024-06-14", list[1].FechaLimite)

	prospects, err := agent.Prospects(ctx)
	require.NoError(t, err)
	assert.Equal(t, "2024-05-12", prospects[1].Fecha)

	_, err = api.As(adminCreds).ReviewExtension(ctx, "1", backend.ExtensionReview{Estado: "rechazado"})
	assert.Contains(t, apiError(t, err).Message, "ya fue revisada")
}

func TestDashboard(t *testing.T) {
	api := newAPI(t)
	ctx := context.Background()

	dash, err := api.As(adminCreds).Dashboard(ctx)
	require.NoError(t, err)
	assert.Equal(t, 5, dash.Estadisticas.TotalProspectos)
	assert.Equal(t, 3, dash.Estadisticas.TotalContratos)
	assert.Equal(t, 3, dash.Estadisticas.TotalClientes)
	assert.Equal(t, 1, dash.Estadisticas.TotalReservas)
	assert.Len(t, dash.Graficos.ProgresoMensual.Labels, 6)
	assert.Equal(t, 5, dash.Graficos.EstadosProspectos.Total())
	assert.NotEmpty(t, dash.RendimientoAgentes)
	assert.NotEmpty(t, dash.ActividadReciente)
	assert.NotEmpty(t, dash.DatosRaw)

	dash, err = api.As(agentCreds).Dashboard(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, dash.Estadisticas.TotalProspectos)
	assert.Equal(t, 1, dash.Estadisticas.TotalContratos)
}

func TestUnknownRoute(t *testing.T) {
	api := newAPI(t)
	var out any
	err := api.As(adminCreds).Get(context.Background(), "/nada", &out)
	assert.True(t, backend.IsStatus(err, http.StatusNotFound))
}
