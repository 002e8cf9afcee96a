package sales

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/phillip-england/lotdesk/internal/backend"
	"github.com/phillip-england/lotdesk/internal/catalog"
	"github.com/phillip-england/lotdesk/internal/listing"
	"github.com/phillip-england/lotdesk/internal/session"
)

var monthNames = [12]string{"Ene", "Feb", "Mar", "Abr", "May", "Jun", "Jul", "Ago", "Sep", "Oct", "Nov", "Dic"}

// Trend compares this month's count with the previous month's.
type Trend struct {
	Current  int
	Previous int
}

// Percent is the month over month change, rounded. A previous count of zero
// reads as 100% growth when anything happened this month.
func (t Trend) Percent() int {
	if t.Previous == 0 {
		if t.Current > 0 {
			return 100
		}
		return 0
	}
	return int(math.Round(float64(t.Current-t.Previous) / float64(t.Previous) * 100))
}

func (t Trend) Visible() bool { return t.Current > 0 || t.Previous > 0 }
func (t Trend) Up() bool      { return t.Percent() >= 0 }

func (t Trend) Label() string {
	p := t.Percent()
	if p < 0 {
		p = -p
	}
	return fmt.Sprintf("%d%% vs mes anterior", p)
}

type Trends struct {
	Prospectos Trend
	Clientes   Trend
	Reservas   Trend
	Contratos  Trend
}

type DashboardView struct {
	backend.Dashboard
	Trends   Trends
	Fallback bool
}

// dated is any record carrying one of the date fields the trend counters
// look at.
type dated struct {
	Fecha         string `json:"fecha"`
	FechaCreacion string `json:"fechaCreacion"`
	CreatedAt     string `json:"createdAt"`
	FechaPago     string `json:"fechaPago"`
	FechaReserva  string `json:"fechaReserva"`
	FechaFirma    string `json:"fechaFirma"`
}

func (r dated) field(name string) string {
	switch name {
	case "fecha":
		return r.Fecha
	case "fechaCreacion":
		return r.FechaCreacion
	case "createdAt":
		return r.CreatedAt
	case "fechaPago":
		return r.FechaPago
	case "fechaReserva":
		return r.FechaReserva
	case "fechaFirma":
		return r.FechaFirma
	}
	return ""
}

// firstDate returns the first non-empty field in order.
func (r dated) firstDate(fields ...string) (time.Time, bool) {
	for _, f := range fields {
		if v := strings.TrimSpace(r.field(f)); v != "" {
			return listing.ParseDate(v)
		}
	}
	return time.Time{}, false
}

var (
	prospectDates    = []string{"fecha", "fechaCreacion", "createdAt"}
	clientDates      = []string{"fechaPago", "fechaCreacion", "createdAt"}
	reservationDates = []string{"fechaReserva", "createdAt"}
	contractDates    = []string{"fechaFirma", "createdAt"}
)

// countByMonth counts items dated in now's month and in the month before.
func countByMonth(items []dated, now time.Time, fields ...string) Trend {
	cur := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
	prev := cur.AddDate(0, -1, 0)
	var t Trend
	for _, item := range items {
		d, ok := item.firstDate(fields...)
		if !ok {
			continue
		}
		switch {
		case d.Year() == cur.Year() && d.Month() == cur.Month():
			t.Current++
		case d.Year() == prev.Year() && d.Month() == prev.Month():
			t.Previous++
		}
	}
	return t
}

type rawData struct {
	Prospectos []dated `json:"prospectos"`
	Contratos  []dated `json:"contratos"`
	Reservas   []dated `json:"reservas"`
}

// trendsFromRaw reads datosRaw. Contracts stand in for clients there.
func trendsFromRaw(raw json.RawMessage, now time.Time) (Trends, bool) {
	if len(raw) == 0 || string(raw) == "null" {
		return Trends{}, false
	}
	var data rawData
	if err := json.Unmarshal(raw, &data); err != nil {
		return Trends{}, false
	}
	return Trends{
		Prospectos: countByMonth(data.Prospectos, now, prospectDates...),
		Clientes:   countByMonth(data.Contratos, now, clientDates...),
		Reservas:   countByMonth(data.Reservas, now, reservationDates...),
		Contratos:  countByMonth(data.Contratos, now, contractDates...),
	}, true
}

// Dashboard loads the aggregate endpoint and falls back to computing the
// same figures from the individual lists when it fails. A session expiry is
// never papered over by the fallback.
func (d *Desk) Dashboard(ctx context.Context) (DashboardView, error) {
	dash, err := d.api().Dashboard(ctx)
	if err == nil {
		view := DashboardView{Dashboard: dash}
		view.Trends, _ = trendsFromRaw(dash.DatosRaw, d.now)
		return view, nil
	}
	if errors.Is(err, backend.ErrSessionExpired) || ctx.Err() != nil {
		return DashboardView{}, err
	}
	view, ferr := d.dashboardFallback(ctx)
	if ferr != nil {
		return DashboardView{}, fmt.Errorf("No se pudieron cargar los datos del dashboard: %w", ferr)
	}
	return view, nil
}

func (d *Desk) dashboardFallback(ctx context.Context) (DashboardView, error) {
	if err := d.cat.Load(ctx, catalog.Prospects, catalog.Clients, catalog.Reservations, catalog.Contracts, catalog.Users); err != nil {
		return DashboardView{}, err
	}
	prospects := datedProspects(d.cat.Prospects)
	clients := datedClients(d.cat.Clients)
	reservations := datedReservations(d.cat.Reservations)
	contracts := datedContracts(d.cat.Contracts)

	active := 0
	for _, r := range d.cat.Reservations {
		switch r.Estado {
		case "Activa", "activa", "Pendiente", "pendiente", "":
			active++
		}
	}

	view := DashboardView{Fallback: true}
	view.Estadisticas = backend.DashboardStats{
		TotalProspectos: len(d.cat.Prospects),
		TotalClientes:   len(d.cat.Clients),
		TotalReservas:   active,
		TotalContratos:  len(d.cat.Contracts),
	}
	view.Trends = Trends{
		Prospectos: countByMonth(prospects, d.now, prospectDates...),
		Clientes:   countByMonth(clients, d.now, clientDates...),
		Reservas:   countByMonth(reservations, d.now, reservationDates...),
		Contratos:  countByMonth(contracts, d.now, contractDates...),
	}

	view.Graficos = backend.Charts{
		ProgresoMensual:   MonthlyProgress(d.cat.Prospects, d.cat.Contracts, d.cat.Reservations, d.now),
		EstadosProspectos: ProspectAges(d.cat.Prospects, d.now),
		ReservasPorEstado: ReservationsByState(d.cat.Reservations),
	}
	view.RendimientoAgentes = AgentPerformance(d.cat.Agents, d.cat.Prospects, d.cat.Contracts)
	view.ActividadReciente = RecentActivity(d.cat.Reservations, d.cat.Contracts)
	return view, nil
}

// MonthlyProgress counts prospects, signed contracts and reservations over
// the six months ending at now.
func MonthlyProgress(prospects []backend.Prospect, contracts []backend.Contract, reservations []backend.Reservation, now time.Time) backend.MonthlyProgress {
	labels := LastMonths(now, 6)
	return backend.MonthlyProgress{
		Labels: labels,
		Datasets: []backend.Series{
			{Label: "Prospectos", Data: groupByMonth(datedProspects(prospects), labels, "fecha")},
			{Label: "Clientes", Data: groupByMonth(datedContracts(contracts), labels, "fechaFirma")},
			{Label: "Reservas", Data: groupByMonth(datedReservations(reservations), labels, "fechaReserva")},
		},
	}
}

func datedProspects(in []backend.Prospect) []dated {
	out := make([]dated, len(in))
	for i, p := range in {
		out[i] = dated{Fecha: p.Fecha}
	}
	return out
}

func datedClients(in []backend.ClientRow) []dated {
	out := make([]dated, len(in))
	for i, c := range in {
		out[i] = dated{FechaPago: c.FechaPago, FechaFirma: c.FechaFirma}
	}
	return out
}

func datedReservations(in []backend.Reservation) []dated {
	out := make([]dated, len(in))
	for i, r := range in {
		out[i] = dated{FechaReserva: r.FechaReserva, CreatedAt: r.CreatedAt}
	}
	return out
}

func datedContracts(in []backend.Contract) []dated {
	out := make([]dated, len(in))
	for i, c := range in {
		out[i] = dated{FechaFirma: c.FechaFirma, CreatedAt: c.CreatedAt}
	}
	return out
}

// LastMonths labels the n months ending at now, oldest first, as "Ene 2024".
func LastMonths(now time.Time, n int) []string {
	first := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
	out := make([]string, 0, n)
	for i := n - 1; i >= 0; i-- {
		m := first.AddDate(0, -i, 0)
		out = append(out, monthLabel(m))
	}
	return out
}

func monthLabel(t time.Time) string {
	return fmt.Sprintf("%s %d", monthNames[t.Month()-1], t.Year())
}

// groupByMonth counts items per labeled month using the first present field.
func groupByMonth(items []dated, labels []string, fields ...string) []int {
	index := make(map[string]int, len(labels))
	for i, l := range labels {
		index[l] = i
	}
	counts := make([]int, len(labels))
	for _, item := range items {
		d, ok := item.firstDate(fields...)
		if !ok {
			continue
		}
		if i, ok := index[monthLabel(d)]; ok {
			counts[i]++
		}
	}
	return counts
}

// ProspectAges buckets prospects by rounded-up absolute age in days.
func ProspectAges(prospects []backend.Prospect, now time.Time) backend.Breakdown {
	out := backend.Breakdown{
		{Label: "Nuevos (0-10 días)"},
		{Label: "Recientes (11-24 días)"},
		{Label: "Antiguos (25-30 días)"},
		{Label: "Expirados (+30 días)"},
	}
	for _, p := range prospects {
		created, ok := listing.ParseDate(p.Fecha)
		if !ok {
			continue
		}
		days := int(math.Ceil(math.Abs(now.Sub(created).Hours()) / 24))
		switch {
		case days <= 10:
			out[0].Count++
		case days <= 24:
			out[1].Count++
		case days <= 30:
			out[2].Count++
		default:
			out[3].Count++
		}
	}
	return out
}

func normalizeReservationState(estado string) string {
	if estado == "" {
		estado = "Pendiente"
	}
	lower := strings.ToLower(estado)
	out := estado
	if strings.Contains(lower, "pendiente") {
		out = "Pendiente"
	}
	if strings.Contains(lower, "activa") {
		out = "Activa"
	}
	if strings.Contains(lower, "firmado") || strings.Contains(lower, "firmada") {
		out = "Firmada"
	}
	if strings.Contains(lower, "cancel") {
		out = "Cancelada"
	}
	if strings.Contains(lower, "expirado") {
		out = "Expirada"
	}
	return out
}

// ReservationsByState counts reservations per normalized state in first-seen
// order, or a single "Sin datos" slice when there are none.
func ReservationsByState(reservations []backend.Reservation) backend.Breakdown {
	if len(reservations) == 0 {
		return backend.Breakdown{{Label: "Sin datos", Count: 1}}
	}
	index := map[string]int{}
	var out backend.Breakdown
	for _, r := range reservations {
		state := normalizeReservationState(r.Estado)
		i, ok := index[state]
		if !ok {
			i = len(out)
			index[state] = i
			out = append(out, backend.Slice{Label: state})
		}
		out[i].Count++
	}
	return out
}

// AgentPerformance ranks agents by prospect to contract conversion and
// keeps the top four.
func AgentPerformance(agents []backend.Agent, prospects []backend.Prospect, contracts []backend.Contract) []backend.AgentPerformance {
	var out []backend.AgentPerformance
	for _, a := range agents {
		if !strings.EqualFold(strings.TrimSpace(a.Rol), string(session.RoleAgent)) {
			continue
		}
		perf := backend.AgentPerformance{ID: a.ID, Nombre: a.Nombre, Apellido: a.Apellido, Rol: a.Rol}
		for _, p := range prospects {
			if p.AgenteID == a.ID {
				perf.Prospectos++
			}
		}
		for _, c := range contracts {
			if c.AsesorID == a.ID {
				perf.Clientes++
			}
		}
		if perf.Prospectos > 0 {
			perf.Conversion = int(math.Round(float64(perf.Clientes) / float64(perf.Prospectos) * 100))
		}
		out = append(out, perf)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Conversion > out[j].Conversion })
	if len(out) > 4 {
		out = out[:4]
	}
	return out
}

func lotLabel(lot backend.Text) string {
	if strings.TrimSpace(lot.String()) == "" {
		return catalog.NotAvailable
	}
	return lot.String()
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

func byDateDesc[T any](items []T, date func(T) string) []T {
	return listing.SortBy(items, listing.DateKey(date), true)
}

// RecentActivity merges the two newest reservations and contracts, newest
// first, capped at five entries.
func RecentActivity(reservations []backend.Reservation, contracts []backend.Contract) []backend.Activity {
	var out []backend.Activity
	rs := byDateDesc(reservations, func(r backend.Reservation) string { return firstNonEmpty(r.FechaReserva, r.CreatedAt) })
	for i := 0; i < len(rs) && i < 2; i++ {
		out = append(out, backend.Activity{
			Tipo:        "reserva",
			Titulo:      "Nueva Reserva",
			Descripcion: "Reserva para terreno " + lotLabel(rs[i].NroTerreno),
			Fecha:       firstNonEmpty(rs[i].FechaReserva, rs[i].CreatedAt),
			Icono:       "calendar-check",
			Color:       "primary",
		})
	}
	cs := byDateDesc(contracts, func(c backend.Contract) string { return firstNonEmpty(c.FechaFirma, c.CreatedAt) })
	for i := 0; i < len(cs) && i < 2; i++ {
		out = append(out, backend.Activity{
			Tipo:        "contrato",
			Titulo:      "Contrato Firmado",
			Descripcion: "Contrato para terreno " + lotLabel(cs[i].NroTerreno),
			Fecha:       firstNonEmpty(cs[i].FechaFirma, cs[i].CreatedAt),
			Icono:       "file-contract",
			Color:       "success",
		})
	}
	out = byDateDesc(out, func(a backend.Activity) string { return a.Fecha })
	if len(out) > 5 {
		out = out[:5]
	}
	return out
}
