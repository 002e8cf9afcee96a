package dashboardapp

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/phillip-england/lotdesk/internal/backend"
	"github.com/phillip-england/lotdesk/internal/catalog"
	"github.com/phillip-england/lotdesk/internal/listing"
	"github.com/phillip-england/lotdesk/internal/sales"
	"github.com/phillip-england/lotdesk/internal/session"
)

func (s *Server) dashboardPage(w http.ResponseWriter, r *http.Request) {
	view, err := deskFrom(r).Dashboard(r.Context())
	if err != nil {
		s.failPage(w, r, err, "No se pudo cargar el dashboard")
		return
	}
	data := s.page(r, session.ModuleDashboard, "Dashboard")
	data.Data = view
	s.render(w, r, "dashboard.html", data)
}

func prospectFilter(r *http.Request) sales.ProspectFilter {
	return sales.ProspectFilter{
		Search:      r.URL.Query().Get("q"),
		Fechas:      dateRange(r),
		Estado:      queryValue(r, "estado"),
		Seguimiento: queryValue(r, "seguimiento"),
		Asesor:      queryValue(r, "asesor"),
	}
}

type prospectsView struct {
	Rows           []sales.ProspectRow
	Agents         []sales.Option
	Projects       []sales.Option
	States         []string
	FollowUps      []string
	PaymentMethods []string
	Admin          bool
}

func (s *Server) prospectsPage(w http.ResponseWriter, r *http.Request) {
	desk := deskFrom(r)
	f := prospectFilter(r)
	rows, err := desk.Prospects(r.Context(), f)
	if err == nil {
		err = desk.Catalog().Load(r.Context(), catalog.Projects)
	}
	if err != nil {
		s.failPage(w, r, err, "No se pudieron cargar los prospectos")
		return
	}
	p, pg := paginate(s, r, rows)
	data := s.page(r, session.ModuleProspects, "Prospectos")
	data.Filters = desk.ProspectFilterSummary(f)
	data.Pager = pg
	data.Data = prospectsView{
		Rows:           p.Items,
		Agents:         desk.AgentOptions(),
		Projects:       desk.ProjectOptions(),
		States:         []string{sales.StateNew, sales.StateRecent, sales.StateOld, sales.StateExpired},
		FollowUps:      sales.FollowUpLevels,
		PaymentMethods: sales.PaymentMethods,
		Admin:          desk.User().IsAdmin(),
	}
	s.render(w, r, "prospects.html", data)
}

func clientFilter(r *http.Request) sales.ClientFilter {
	return sales.ClientFilter{
		Search:     r.URL.Query().Get("q"),
		Proyecto:   queryValue(r, "proyecto"),
		Agente:     queryValue(r, "agente"),
		Equipo:     queryValue(r, "equipo"),
		Amurallado: queryValue(r, "amurallado"),
		Fechas:     dateRange(r),
	}
}

type clientsView struct {
	Rows     []sales.ClientGroup
	Projects []sales.Option
	Agents   []sales.Option
	Teams    []sales.Option
}

func (s *Server) clientsPage(w http.ResponseWriter, r *http.Request) {
	desk := deskFrom(r)
	f := clientFilter(r)
	groups, err := desk.Clients(r.Context(), f)
	if err == nil {
		err = desk.Catalog().Load(r.Context(), catalog.Projects, catalog.Teams, catalog.Users)
	}
	if err != nil {
		s.failPage(w, r, err, "No se pudieron cargar los clientes")
		return
	}
	p, pg := paginate(s, r, groups)
	data := s.page(r, session.ModuleClients, "Clientes")
	data.Filters = desk.ClientFilterSummary(f)
	data.Pager = pg
	data.Data = clientsView{
		Rows:     p.Items,
		Projects: desk.ProjectOptions(),
		Agents:   desk.AgentOptions(),
		Teams:    desk.TeamOptions(),
	}
	s.render(w, r, "clients.html", data)
}

type clientView struct {
	Client         sales.ClientGroup
	Admin          bool
	PaymentMethods []string
}

func (s *Server) clientPage(w http.ResponseWriter, r *http.Request) {
	desk := deskFrom(r)
	group, err := desk.Client(r.Context(), backend.ID(chi.URLParam(r, "id")))
	if err != nil {
		s.failPage(w, r, err, "No se pudo cargar el cliente")
		return
	}
	data := s.page(r, session.ModuleClients, group.FullName())
	data.Exports = nil
	data.Data = clientView{Client: group, Admin: desk.User().IsAdmin(), PaymentMethods: sales.PaymentMethods}
	s.render(w, r, "client.html", data)
}

func agentFilter(r *http.Request) sales.AgentFilter {
	return sales.AgentFilter{Search: r.URL.Query().Get("q"), Equipo: queryValue(r, "equipo")}
}

type agentsView struct {
	Rows  []backend.Agent
	Teams []string
}

func (s *Server) agentsPage(w http.ResponseWriter, r *http.Request) {
	desk := deskFrom(r)
	f := agentFilter(r)
	agents, err := desk.Agents(r.Context(), f)
	if err != nil {
		s.failPage(w, r, err, "No se pudieron cargar los agentes")
		return
	}
	p, pg := paginate(s, r, agents)
	data := s.page(r, session.ModuleAgents, "Agentes")
	data.Filters = desk.AgentFilterSummary(f)
	data.Pager = pg
	data.Data = agentsView{Rows: p.Items, Teams: append(desk.AgentTeams(), catalog.NoTeam)}
	s.render(w, r, "agents.html", data)
}

func contractFilter(r *http.Request) sales.ContractFilter {
	return sales.ContractFilter{
		Search:     r.URL.Query().Get("q"),
		Proyecto:   queryValue(r, "proyecto"),
		Asesor:     queryValue(r, "asesor"),
		Equipo:     queryValue(r, "equipo"),
		MetodoPago: queryValue(r, "metodo"),
		Tipo:       queryValue(r, "tipo"),
		Amurallado: queryValue(r, "amurallado"),
		Fechas:     dateRange(r),
	}
}

type contractsView struct {
	Rows           []sales.ContractRow
	Projects       []sales.Option
	Agents         []sales.Option
	Teams          []sales.Option
	Types          []string
	PaymentMethods []string
}

func (s *Server) contractsPage(w http.ResponseWriter, r *http.Request) {
	desk := deskFrom(r)
	f := contractFilter(r)
	rows, err := desk.Contracts(r.Context(), f)
	if err != nil {
		s.failPage(w, r, err, "No se pudieron cargar los contratos")
		return
	}
	p, pg := paginate(s, r, rows)
	data := s.page(r, session.ModuleContracts, "Contratos")
	data.Filters = desk.ContractFilterSummary(f)
	data.Pager = pg
	data.Data = contractsView{
		Rows:           p.Items,
		Projects:       desk.ProjectOptions(),
		Agents:         desk.AgentOptions(),
		Teams:          desk.TeamOptions(),
		Types:          desk.ContractTypes(),
		PaymentMethods: sales.PaymentMethods,
	}
	s.render(w, r, "contracts.html", data)
}

type teamsView struct {
	Rows   []sales.TeamRow
	Agents []sales.Option
}

func (s *Server) teamsPage(w http.ResponseWriter, r *http.Request) {
	desk := deskFrom(r)
	search := r.URL.Query().Get("q")
	rows, err := desk.Teams(r.Context(), search)
	if err != nil {
		s.failPage(w, r, err, "No se pudieron cargar los equipos")
		return
	}
	p, pg := paginate(s, r, rows)
	data := s.page(r, session.ModuleTeams, "Equipos")
	if strings.TrimSpace(search) != "" {
		data.Filters = []string{`Búsqueda: "` + strings.TrimSpace(search) + `"`}
	}
	data.Pager = pg
	data.Data = teamsView{Rows: p.Items, Agents: desk.AgentOptions()}
	s.render(w, r, "teams.html", data)
}

func extensionFilter(r *http.Request) sales.ExtensionFilter {
	return sales.ExtensionFilter{
		Search: r.URL.Query().Get("q"),
		Estado: queryValue(r, "estado"),
		Asesor: queryValue(r, "asesor"),
		Fechas: dateRange(r),
	}
}

type extensionsView struct {
	Rows      []sales.ExtensionRow
	Agents    []sales.Option
	States    []string
	ExtraDays int
	Admin     bool
}

func (s *Server) extensionsPage(w http.ResponseWriter, r *http.Request) {
	desk := deskFrom(r)
	f := extensionFilter(r)
	rows, err := desk.Extensions(r.Context(), f)
	if err != nil {
		s.failPage(w, r, err, "No se pudieron cargar las prórrogas")
		return
	}
	p, pg := paginate(s, r, rows)
	data := s.page(r, session.ModuleExtensions, "Prórrogas")
	data.Filters = desk.ExtensionFilterSummary(f)
	data.Pager = pg
	data.Data = extensionsView{
		Rows:      p.Items,
		Agents:    desk.AgentOptions(),
		States:    []string{sales.ExtensionPending, sales.ExtensionApproved, sales.ExtensionRejected},
		ExtraDays: sales.DefaultExtraDays,
		Admin:     desk.User().IsAdmin(),
	}
	s.render(w, r, "extensions.html", data)
}

func reservationFilter(r *http.Request) sales.ReservationFilter {
	return sales.ReservationFilter{
		Search:     r.URL.Query().Get("q"),
		Proyecto:   queryValue(r, "proyecto"),
		Agente:     queryValue(r, "agente"),
		Estado:     queryValue(r, "estado"),
		MetodoPago: queryValue(r, "metodo"),
		Fechas:     dateRange(r),
	}
}

// reservationStates pairs every estado filter key with its label.
var reservationStates = []sales.Option{
	{Value: sales.FilterActive, Label: "Activa"},
	{Value: sales.FilterPending, Label: "Pendiente"},
	{Value: sales.FilterWaiting, Label: "En Espera"},
	{Value: sales.FilterSigned, Label: "Firmado"},
	{Value: sales.FilterDeclinedSD, Label: "Declinado S/D"},
	{Value: sales.FilterDeclinedCD, Label: "Declinado C/D"},
	{Value: sales.FilterExpired, Label: "Expirado"},
}

type reservationsView struct {
	Rows           []sales.ReservationRow
	Projects       []sales.Option
	Agents         []sales.Option
	States         []sales.Option
	PaymentMethods []string
	Reversed       bool
}

func (s *Server) reservationsPage(w http.ResponseWriter, r *http.Request) {
	desk := deskFrom(r)
	f := reservationFilter(r)
	rows, err := desk.Reservations(r.Context(), f)
	if err != nil {
		s.failPage(w, r, err, "No se pudieron cargar las reservas")
		return
	}
	reversed := r.URL.Query().Get("orden") == "invertido"
	if reversed {
		rows = listing.Reverse(rows)
	}
	p, pg := paginate(s, r, rows)
	data := s.page(r, session.ModuleReserves, "Reservas")
	data.Filters = desk.ReservationFilterSummary(f)
	data.Pager = pg
	data.Data = reservationsView{
		Rows:           p.Items,
		Projects:       desk.ProjectOptions(),
		Agents:         desk.AgentOptions(),
		States:         reservationStates,
		PaymentMethods: sales.PaymentMethods,
		Reversed:       reversed,
	}
	s.render(w, r, "reservations.html", data)
}

type reservationView struct {
	Row            sales.ReservationRow
	ExtendDays     []int
	PaymentMethods []string
	MaxCustomDays  int
}

func (s *Server) reservationPage(w http.ResponseWriter, r *http.Request) {
	desk := deskFrom(r)
	row, err := desk.Reservation(r.Context(), backend.ID(chi.URLParam(r, "id")))
	if err != nil {
		s.failPage(w, r, err, "No se pudo cargar la reserva")
		return
	}
	data := s.page(r, session.ModuleReserves, "Reserva #"+row.ID.String())
	data.Exports = nil
	data.Data = reservationView{
		Row:            row,
		ExtendDays:     sales.ExtendDays,
		PaymentMethods: sales.PaymentMethods,
		MaxCustomDays:  sales.MaxCustomDays,
	}
	s.render(w, r, "reservation.html", data)
}

func rankingQuery(r *http.Request) backend.RankingQuery {
	q := r.URL.Query()
	return backend.RankingQuery{
		FechaInicio: strings.TrimSpace(q.Get("desde")),
		FechaFin:    strings.TrimSpace(q.Get("hasta")),
		Proyecto:    queryValue(r, "proyecto"),
		TipoRanking: strings.TrimSpace(q.Get("tipo")),
	}
}

type rankingView struct {
	sales.RankingView
	Projects []sales.Option
	ByTeam   bool
}

func (s *Server) rankingPage(w http.ResponseWriter, r *http.Request) {
	desk := deskFrom(r)
	view, err := desk.Ranking(r.Context(), rankingQuery(r))
	if err != nil {
		s.failPage(w, r, err, "No se pudo cargar el ranking")
		return
	}
	data := s.page(r, session.ModuleRanking, "Ranking")
	data.Filters = desk.RankingFilterSummary(view.Query)
	data.Data = rankingView{
		RankingView: view,
		Projects:    desk.ProjectOptions(),
		ByTeam:      view.Query.TipoRanking == sales.RankingByTeam,
	}
	s.render(w, r, "ranking.html", data)
}
