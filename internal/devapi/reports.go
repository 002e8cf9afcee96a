package devapi

import (
	"context"
	"net/http"
	"sort"
	"strings"

	"github.com/phillip-england/lotdesk/internal/backend"
	"github.com/phillip-england/lotdesk/internal/listing"
	"github.com/phillip-england/lotdesk/internal/sales"
)

// snapshot is every record set read in one request.
type snapshot struct {
	users        []userRecord
	projects     []backend.Project
	teams        []backend.Team
	prospects    []backend.Prospect
	reservations []backend.Reservation
	contracts    []backend.Contract
	extensions   []backend.Extension
}

func (s *Server) load(ctx context.Context) (snapshot, error) {
	var snap snapshot
	var err error
	if snap.users, err = s.store.listUsers(ctx); err != nil {
		return snap, err
	}
	if snap.projects, err = listRecords[backend.Project](ctx, s.store, kindProjects); err != nil {
		return snap, err
	}
	if snap.teams, err = listRecords[backend.Team](ctx, s.store, kindTeams); err != nil {
		return snap, err
	}
	if snap.prospects, err = listRecords[backend.Prospect](ctx, s.store, kindProspects); err != nil {
		return snap, err
	}
	if snap.reservations, err = listRecords[backend.Reservation](ctx, s.store, kindReservations); err != nil {
		return snap, err
	}
	if snap.contracts, err = listRecords[backend.Contract](ctx, s.store, kindContracts); err != nil {
		return snap, err
	}
	if snap.extensions, err = listRecords[backend.Extension](ctx, s.store, kindExtensions); err != nil {
		return snap, err
	}
	return snap, nil
}

func (snap snapshot) user(id backend.ID) (userRecord, bool) {
	for _, u := range snap.users {
		if u.backendID() == id {
			return u, true
		}
	}
	return userRecord{}, false
}

func (snap snapshot) teamName(id backend.ID) string {
	for _, t := range snap.teams {
		if t.ID == id {
			return t.Nombre
		}
	}
	return ""
}

func (snap snapshot) userTeam(u userRecord) (backend.ID, string) {
	if u.EquipoID == 0 {
		return "", ""
	}
	id := idOf(u.EquipoID)
	return id, snap.teamName(id)
}

func (snap snapshot) projectName(id backend.ID) string {
	for _, p := range snap.projects {
		if p.ID == id {
			return p.Nombre
		}
	}
	return ""
}

func (snap snapshot) prospect(id backend.ID) (backend.Prospect, bool) {
	for _, p := range snap.prospects {
		if p.ID == id {
			return p, true
		}
	}
	return backend.Prospect{}, false
}

// contractTeam is the team recorded on the contract, else the asesor's
// current team.
func (snap snapshot) contractTeam(c backend.Contract) string {
	if name := snap.teamName(c.EquipoID); name != "" {
		return name
	}
	if u, ok := snap.user(c.AsesorID); ok {
		_, name := snap.userTeam(u)
		return name
	}
	return ""
}

func (snap snapshot) agents() []backend.Agent {
	prospects := map[backend.ID]int{}
	for _, p := range snap.prospects {
		prospects[p.AgenteID]++
	}
	contracts := map[backend.ID]int{}
	for _, c := range snap.contracts {
		contracts[c.AsesorID]++
	}
	out := make([]backend.Agent, 0, len(snap.users))
	for _, u := range snap.users {
		teamID, team := snap.userTeam(u)
		out = append(out, backend.Agent{
			ID:                 u.backendID(),
			Nombre:             u.Nombre,
			Apellido:           u.Apellido,
			Telefono:           backend.Text(u.Telefono),
			Email:              u.Email,
			Rol:                u.Rol,
			Equipo:             team,
			EquipoID:           teamID,
			CantidadProspectos: prospects[u.backendID()],
			CantidadContratos:  contracts[u.backendID()],
		})
	}
	return out
}

// clientRows lists one row per contract, with the person behind it.
func (snap snapshot) clientRows() []backend.ClientRow {
	out := make([]backend.ClientRow, 0, len(snap.contracts))
	for _, c := range snap.contracts {
		p, _ := snap.prospect(c.ClienteID)
		row := backend.ClientRow{
			ClienteID:  c.ClienteID,
			Nombre:     p.Nombre,
			Apellido:   p.Apellido,
			Telefono:   p.Celular,
			Proyecto:   snap.projectName(c.ProyectoID),
			AsesorID:   c.AsesorID,
			Equipo:     snap.contractTeam(c),
			Amurallado: backend.Flag(c.Amurallado),
			FechaFirma: c.FechaFirma,
			FechaPago:  c.FechaFirma,
			ContratoID: c.ID,
			Manzano:    c.Manzano,
			NroTerreno: c.NroTerreno,
		}
		if u, ok := snap.user(c.AsesorID); ok {
			row.Asesor = u.fullName()
		}
		out = append(out, row)
	}
	return out
}

// visibleTo narrows agent-owned records to the caller unless they are an admin.
func visibleTo[T any](u userRecord, items []T, owner func(T) backend.ID) []T {
	if u.isAdmin() {
		return items
	}
	return listing.Filter(items, func(item T) bool { return owner(item) == u.backendID() })
}

func (s *Server) respondList(w http.ResponseWriter, r *http.Request, pick func(snapshot, userRecord) any) {
	snap, err := s.load(r.Context())
	if err != nil {
		s.serverError(w, r, err, "")
		return
	}
	writeJSON(w, http.StatusOK, pick(snap, currentUser(r)))
}

func (s *Server) agentStats(w http.ResponseWriter, r *http.Request) {
	s.respondList(w, r, func(snap snapshot, _ userRecord) any { return snap.agents() })
}

func (s *Server) listProjects(w http.ResponseWriter, r *http.Request) {
	s.respondList(w, r, func(snap snapshot, _ userRecord) any { return snap.projects })
}

func (s *Server) clients(w http.ResponseWriter, r *http.Request) {
	s.respondList(w, r, func(snap snapshot, _ userRecord) any { return snap.clientRows() })
}

// fixedClients lists the clients whose lot is walled.
func (s *Server) fixedClients(w http.ResponseWriter, r *http.Request) {
	s.respondList(w, r, func(snap snapshot, _ userRecord) any {
		return listing.Filter(snap.clientRows(), func(c backend.ClientRow) bool { return bool(c.Amurallado) })
	})
}

// listTeams expands member ids into the members' names and phones.
func (s *Server) listTeams(w http.ResponseWriter, r *http.Request) {
	s.respondList(w, r, func(snap snapshot, _ userRecord) any {
		out := make([]backend.Team, 0, len(snap.teams))
		for _, t := range snap.teams {
			members := make(backend.Members, 0, len(t.Miembros))
			for _, m := range t.Miembros {
				if u, ok := snap.user(m.ID); ok {
					members = append(members, backend.Member{ID: m.ID, Nombre: u.Nombre, Apellido: u.Apellido, Telefono: backend.Text(u.Telefono)})
				}
			}
			t.Miembros = members
			out = append(out, t)
		}
		return out
	})
}

func (s *Server) allProspects(w http.ResponseWriter, r *http.Request) {
	s.respondList(w, r, func(snap snapshot, _ userRecord) any { return snap.prospects })
}

func (s *Server) visibleProspects(w http.ResponseWriter, r *http.Request) {
	s.respondList(w, r, func(snap snapshot, u userRecord) any {
		return visibleTo(u, snap.prospects, func(p backend.Prospect) backend.ID { return p.AgenteID })
	})
}

func (s *Server) listReservations(w http.ResponseWriter, r *http.Request) {
	s.respondList(w, r, func(snap snapshot, _ userRecord) any { return snap.reservations })
}

func (s *Server) listContracts(w http.ResponseWriter, r *http.Request) {
	s.respondList(w, r, func(snap snapshot, _ userRecord) any { return snap.contracts })
}

func (s *Server) listExtensions(w http.ResponseWriter, r *http.Request) {
	s.respondList(w, r, func(snap snapshot, u userRecord) any {
		return visibleTo(u, snap.extensions, backend.Extension.Agent)
	})
}

type dashboardResponse struct {
	backend.Dashboard
	DatosRaw rawLists `json:"datosRaw"`
}

type rawLists struct {
	Prospectos []backend.Prospect    `json:"prospectos"`
	Contratos  []backend.Contract    `json:"contratos"`
	Reservas   []backend.Reservation `json:"reservas"`
}

// dashboard builds the aggregate from the caller's visible records.
func (s *Server) dashboard(w http.ResponseWriter, r *http.Request) {
	s.respondList(w, r, func(snap snapshot, u userRecord) any {
		now := s.now()
		prospects := visibleTo(u, snap.prospects, func(p backend.Prospect) backend.ID { return p.AgenteID })
		contracts := visibleTo(u, snap.contracts, func(c backend.Contract) backend.ID { return c.AsesorID })
		reservations := visibleTo(u, snap.reservations, func(r backend.Reservation) backend.ID { return r.AsesorID })

		active := 0
		for _, res := range reservations {
			switch res.Estado {
			case "Activa", "Pendiente", "":
				active++
			}
		}
		clients := map[backend.ID]bool{}
		for _, c := range contracts {
			clients[c.ClienteID] = true
		}

		out := dashboardResponse{}
		out.Estadisticas = backend.DashboardStats{
			TotalProspectos: len(prospects),
			TotalClientes:   len(clients),
			TotalReservas:   active,
			TotalContratos:  len(contracts),
		}
		out.Graficos = backend.Charts{
			ProgresoMensual:   sales.MonthlyProgress(prospects, contracts, reservations, now),
			EstadosProspectos: sales.ProspectAges(prospects, now),
			ReservasPorEstado: sales.ReservationsByState(reservations),
		}
		out.RendimientoAgentes = sales.AgentPerformance(snap.agents(), snap.prospects, snap.contracts)
		out.ActividadReciente = sales.RecentActivity(reservations, contracts)
		out.DatosRaw = rawLists{Prospectos: prospects, Contratos: contracts, Reservas: reservations}
		return out
	})
}

// ranking sums contract amounts per asesor and per team. Muralla contracts
// add to the amount but not to cantidadReal.
func (s *Server) ranking(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	span := listing.DateRange{From: q.Get("fechaInicio"), To: q.Get("fechaFin")}
	project := strings.TrimSpace(q.Get("proyecto"))

	s.respondList(w, r, func(snap snapshot, _ userRecord) any {
		byAgent := map[string]*backend.RankingItem{}
		byTeam := map[string]*backend.RankingItem{}
		add := func(bucket map[string]*backend.RankingItem, name string, c backend.Contract) {
			if name == "" {
				return
			}
			item, ok := bucket[name]
			if !ok {
				item = &backend.RankingItem{Nombre: name}
				bucket[name] = item
			}
			item.Cantidad++
			item.MontoTotal += c.Monto
			if !strings.EqualFold(c.Tipo, contractWall) {
				item.CantidadReal++
			}
		}
		for _, c := range snap.contracts {
			if span.Active() && !span.Contains(c.FechaFirma) {
				continue
			}
			if listing.Selected(project) && string(c.ProyectoID) != project && !strings.EqualFold(snap.projectName(c.ProyectoID), project) {
				continue
			}
			if u, ok := snap.user(c.AsesorID); ok {
				add(byAgent, u.fullName(), c)
			}
			add(byTeam, snap.contractTeam(c), c)
		}
		return backend.Ranking{PorAsesor: ranked(byAgent), PorEquipo: ranked(byTeam)}
	})
}

func ranked(bucket map[string]*backend.RankingItem) []backend.RankingItem {
	out := make([]backend.RankingItem, 0, len(bucket))
	for _, item := range bucket {
		if item.Cantidad > 0 {
			item.Promedio = item.MontoTotal / backend.Amount(item.Cantidad)
		}
		out = append(out, *item)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].MontoTotal != out[j].MontoTotal {
			return out[i].MontoTotal > out[j].MontoTotal
		}
		return out[i].Nombre < out[j].Nombre
	})
	for i := range out {
		out[i].Posicion = i + 1
	}
	return out
}
