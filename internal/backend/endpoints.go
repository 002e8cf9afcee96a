package backend

import (
	"context"
	"net/url"
	"strings"
)

// Endpoint paths. Cache invalidation matches on these substrings.
const (
	PathDashboard     = "/dashboard"
	PathAgentStats    = "/usuarios/estadisticas-agentes"
	PathProjects      = "/proyectos"
	PathClients       = "/clientes"
	PathTeams         = "/equipos"
	PathAllProspects  = "/todoProspectos"
	PathProspects     = "/prospectos"
	PathReservations  = "/reservas-completas"
	PathContracts     = "/contratos"
	PathExtensions    = "/prorrogas"
	PathFixedClients  = "/clientes-fijos"
	PathRanking       = "/contratos/ranking2"
	PathUsersPrefix   = "/usuarios"
	PathReservePrefix = "/reservas"
)

// Result is the generic mutation response. Reservation actions also echo
// the updated amount and waiting time.
type Result struct {
	Message      string `json:"message"`
	ID           ID     `json:"id,omitempty"`
	MontoReserva Amount `json:"montoReserva,omitempty"`
	TiempoEspera Text   `json:"tiempoEspera,omitempty"`
}

type ProspectInput struct {
	Nombre   string `json:"nombre"`
	Apellido string `json:"apellido"`
	Celular  string `json:"celular"`
	AgenteID ID     `json:"agenteId"`
}

type ContractInput struct {
	Proyecto   ID      `json:"proyecto"`
	Lote       int     `json:"lote"`
	Manzano    string  `json:"manzano"`
	FechaFirma string  `json:"fechaFirma"`
	MetodoPago string  `json:"metodoPago"`
	Monto      float64 `json:"monto"`
}

type ExtensionRequest struct {
	ClienteID   ID     `json:"clienteId"`
	Descripcion string `json:"descripcion"`
	ImagenURL   string `json:"imagenUrl"`
	FechaLimite string `json:"fechaLimite"`
}

type ExtensionReview struct {
	Estado     string `json:"estado"`
	DiasExtra  int    `json:"diasExtra,omitempty"`
	Comentario string `json:"comentario,omitempty"`
}

type TeamInput struct {
	Nombre   string `json:"nombre"`
	Miembros []ID  `json:"miembros"`
}

func escapeID(id ID) string { return url.PathEscape(string(id)) }

func (u *UserClient) Dashboard(ctx context.Context) (Dashboard, error) {
	var out Dashboard
	err := u.Get(ctx, PathDashboard, &out)
	return out, err
}

func (u *UserClient) AgentStats(ctx context.Context) ([]Agent, error) {
	var out []Agent
	err := u.Get(ctx, PathAgentStats, &out)
	return out, err
}

func (u *UserClient) Projects(ctx context.Context) ([]Project, error) {
	var out []Project
	err := u.Get(ctx, PathProjects, &out)
	return out, err
}

func (u *UserClient) Clients(ctx context.Context) ([]ClientRow, error) {
	var out []ClientRow
	err := u.Get(ctx, PathClients, &out)
	return out, err
}

func (u *UserClient) FixedClients(ctx context.Context) ([]ClientRow, error) {
	var out []ClientRow
	err := u.Get(ctx, PathFixedClients, &out)
	return out, err
}

func (u *UserClient) Teams(ctx context.Context) ([]Team, error) {
	var out []Team
	err := u.Get(ctx, PathTeams, &out)
	return out, err
}

// AllProspects lists every prospect regardless of owner. It backs name
// lookups for reservations, contracts and extensions.
func (u *UserClient) AllProspects(ctx context.Context) ([]Prospect, error) {
	var out []Prospect
	err := u.Get(ctx, PathAllProspects, &out)
	return out, err
}

// Prospects lists the prospects visible to the current user.
func (u *UserClient) Prospects(ctx context.Context) ([]Prospect, error) {
	var out []Prospect
	err := u.Get(ctx, PathProspects, &out)
	return out, err
}

func (u *UserClient) Reservations(ctx context.Context) ([]Reservation, error) {
	var out []Reservation
	err := u.Get(ctx, PathReservations, &out)
	return out, err
}

func (u *UserClient) Contracts(ctx context.Context) ([]Contract, error) {
	var out []Contract
	err := u.Get(ctx, PathContracts, &out)
	return out, err
}

func (u *UserClient) Extensions(ctx context.Context) ([]Extension, error) {
	var out []Extension
	err := u.Get(ctx, PathExtensions, &out)
	return out, err
}

func (u *UserClient) Ranking(ctx context.Context, q RankingQuery) (Ranking, error) {
	params := url.Values{}
	if q.FechaInicio != "" {
		params.Set("fechaInicio", q.FechaInicio)
	}
	if q.FechaFin != "" {
		params.Set("fechaFin", q.FechaFin)
	}
	if q.Proyecto != "" && q.Proyecto != "todos" {
		params.Set("proyecto", q.Proyecto)
	}
	tipo := strings.TrimSpace(q.TipoRanking)
	if tipo == "" {
		tipo = "asesor"
	}
	params.Set("tipoRanking", tipo)

	var out Ranking
	err := u.Get(ctx, PathRanking+"?"+params.Encode(), &out)
	return out, err
}

func (u *UserClient) ChangeProspectAgent(ctx context.Context, prospectID, agentID ID) (Result, error) {
	var out Result
	err := u.Patch(ctx, PathProspects+"/"+escapeID(prospectID)+"/cambiar-agente", map[string]ID{"nuevoAgenteId": agentID}, &out)
	if err == nil {
		u.clear(ctx, PathProspects, PathAllProspects, PathUsersPrefix)
	}
	return out, err
}

func (u *UserClient) SetProspectFollowUp(ctx context.Context, prospectID ID, seguimiento string) (Result, error) {
	var out Result
	err := u.Patch(ctx, PathProspects+"/"+escapeID(prospectID)+"/seguimiento", map[string]string{"seguimiento": seguimiento}, &out)
	if err == nil {
		u.clear(ctx, PathProspects, PathAllProspects)
	}
	return out, err
}

func (u *UserClient) CreateProspect(ctx context.Context, in ProspectInput) (Result, error) {
	var out Result
	err := u.Post(ctx, PathProspects, in, &out)
	if err == nil {
		u.clear(ctx, PathProspects, PathAllProspects, PathUsersPrefix, PathDashboard)
	}
	return out, err
}

func (u *UserClient) UpdateProspect(ctx context.Context, id ID, in ProspectInput) (Result, error) {
	var out Result
	err := u.Put(ctx, PathProspects+"/"+escapeID(id), in, &out)
	if err == nil {
		u.clear(ctx, PathProspects, PathAllProspects)
	}
	return out, err
}

func (u *UserClient) RegisterContract(ctx context.Context, prospectID ID, in ContractInput) (Result, error) {
	var out Result
	err := u.Post(ctx, PathProspects+"/"+escapeID(prospectID)+"/crear-contrato", in, &out)
	if err == nil {
		u.clear(ctx, PathProspects, PathAllProspects, PathContracts, PathClients, PathUsersPrefix, PathDashboard)
	}
	return out, err
}

func (u *UserClient) SignReservation(ctx context.Context, id ID, metodoPago string, monto float64) (Result, error) {
	var out Result
	body := map[string]any{"metodoPago": metodoPago, "monto": monto}
	err := u.Put(ctx, PathReservePrefix+"/"+escapeID(id)+"/firmar", body, &out)
	if err == nil {
		u.clear(ctx, PathReservePrefix, PathContracts, PathClients, PathDashboard)
	}
	return out, err
}

func (u *UserClient) ExtendReservation(ctx context.Context, id ID, dias int) (Result, error) {
	var out Result
	err := u.Put(ctx, PathReservePrefix+"/"+escapeID(id)+"/ampliar", map[string]int{"dias": dias}, &out)
	if err == nil {
		u.clear(ctx, PathReservePrefix)
	}
	return out, err
}

func (u *UserClient) EditReservationLot(ctx context.Context, id ID, manzano, terreno string) (Result, error) {
	var out Result
	body := map[string]string{"nuevoManzano": manzano, "nuevoTerreno": terreno}
	err := u.Put(ctx, PathReservePrefix+"/"+escapeID(id)+"/editar-lote", body, &out)
	if err == nil {
		u.clear(ctx, PathReservePrefix)
	}
	return out, err
}

// ReservationAction runs one of the generic reservation actions
// (firma_en_x_dias, declinado_sin_devolucion, declinado_con_devolucion).
func (u *UserClient) ReservationAction(ctx context.Context, id ID, accion string, data map[string]any) (Result, error) {
	body := map[string]any{"accion": accion}
	for k, v := range data {
		if k != "accion" {
			body[k] = v
		}
	}
	var out Result
	err := u.Put(ctx, PathReservePrefix+"/"+escapeID(id)+"/accion", body, &out)
	if err == nil {
		u.clear(ctx, PathReservePrefix, PathDashboard)
	}
	return out, err
}

func (u *UserClient) WallContract(ctx context.Context, contractID ID, metodoPago string, monto float64) (Result, error) {
	var out Result
	body := map[string]any{"contratoId": contractID, "metodoPago": metodoPago, "monto": monto}
	err := u.Post(ctx, PathContracts+"/muralla", body, &out)
	if err == nil {
		u.clear(ctx, PathContracts, PathClients)
	}
	return out, err
}

func (u *UserClient) RequestExtension(ctx context.Context, in ExtensionRequest) (Result, error) {
	var out Result
	err := u.Post(ctx, PathExtensions, in, &out)
	if err == nil {
		u.clear(ctx, PathExtensions)
	}
	return out, err
}

func (u *UserClient) ReviewExtension(ctx context.Context, id ID, in ExtensionReview) (Result, error) {
	var out Result
	err := u.Put(ctx, PathExtensions+"/"+escapeID(id), in, &out)
	if err == nil {
		u.clear(ctx, PathExtensions, PathProspects, PathAllProspects)
	}
	return out, err
}

func (u *UserClient) CreateTeam(ctx context.Context, in TeamInput) (Result, error) {
	var out Result
	err := u.Post(ctx, PathTeams, in, &out)
	if err == nil {
		u.clear(ctx, PathTeams, PathUsersPrefix)
	}
	return out, err
}

func (u *UserClient) DeleteTeam(ctx context.Context, id ID) (Result, error) {
	var out Result
	err := u.Delete(ctx, PathTeams+"/"+escapeID(id), &out)
	if err == nil {
		u.clear(ctx, PathTeams, PathUsersPrefix, PathContracts)
	}
	return out, err
}
