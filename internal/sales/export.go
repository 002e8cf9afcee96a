package sales

import (
	"strconv"
	"strings"

	"github.com/phillip-england/lotdesk/internal/backend"
	"github.com/phillip-england/lotdesk/internal/catalog"
	"github.com/phillip-england/lotdesk/internal/export"
	"github.com/phillip-england/lotdesk/internal/listing"
)

// Money renders an amount the way reports show it: "1500.50 Bs.".
func Money(v float64) string {
	return strconv.FormatFloat(v, 'f', 2, 64) + " Bs."
}

func yesNo(v bool) string {
	if v {
		return "Sí"
	}
	return "No"
}

func (d *Desk) AgentFilterSummary(f AgentFilter) []string {
	var out []string
	if listing.Selected(f.Equipo) {
		out = append(out, "Equipo: "+f.Equipo)
	}
	if s := strings.TrimSpace(f.Search); s != "" {
		out = append(out, `Búsqueda: "`+s+`"`)
	}
	return out
}

func (d *Desk) ExtensionFilterSummary(f ExtensionFilter) []string {
	var out []string
	if f.Fechas.Active() {
		out = append(out, "Fechas: "+f.Fechas.Summary())
	}
	if listing.Selected(f.Estado) {
		out = append(out, "Estado: "+Capitalize(f.Estado))
	}
	if listing.Selected(f.Asesor) {
		out = append(out, "Asesor: "+d.cat.AgentName(backend.ID(f.Asesor)))
	}
	if s := strings.TrimSpace(f.Search); s != "" {
		out = append(out, `Búsqueda: "`+s+`"`)
	}
	return out
}

func ProspectsTable(rows []ProspectRow, filters []string) export.Table {
	t := export.Table{
		Name:      "prospectos",
		Title:     "Reporte de Prospectos",
		Columns:   []string{"Nombre", "Celular", "Agente", "Fecha", "Estado", "Seguimiento", "Días"},
		Filters:   filters,
		Landscape: true,
	}
	for _, r := range rows {
		t.Rows = append(t.Rows, []string{
			r.FullName(), r.Celular.String(), r.Agente, listing.FormatDate(r.Fecha),
			Capitalize(r.Estado), r.FollowUpLevel(), strconv.Itoa(r.Dias),
		})
	}
	return t
}

func ClientsTable(groups []ClientGroup, filters []string) export.Table {
	t := export.Table{
		Name:      "clientes",
		Title:     "Reporte de Clientes",
		Columns:   []string{"Nombre", "Teléfono", "Firmas", "Proyectos", "Equipos", "Amurallado", "Primera firma"},
		Filters:   filters,
		Landscape: true,
	}
	for _, g := range groups {
		t.Rows = append(t.Rows, []string{
			g.FullName(), g.Telefono, strconv.Itoa(g.Firmas),
			strings.Join(g.Proyectos, ", "), strings.Join(g.Equipos, ", "),
			yesNo(g.TieneAmurallado), listing.FormatDate(g.FechaFirma),
		})
	}
	return t
}

func AgentsTable(agents []backend.Agent, filters []string) export.Table {
	t := export.Table{
		Name:      "agentes",
		Title:     "Reporte de Agentes",
		Columns:   []string{"Nombre", "Teléfono", "Prospectos", "Contratos", "Equipo"},
		Filters:   filters,
		Landscape: true,
	}
	for _, a := range agents {
		t.Rows = append(t.Rows, []string{
			a.FullName(), orNA(a.Telefono.String()),
			strconv.Itoa(a.CantidadProspectos), strconv.Itoa(a.CantidadContratos), agentTeam(a),
		})
	}
	return t
}

func ContractsTable(rows []ContractRow, filters []string) export.Table {
	t := export.Table{
		Name:      "contratos",
		Title:     "Reporte de Contratos",
		Columns:   []string{"Proyecto", "Lote", "Cliente", "Asesor", "Equipo", "Tipo", "Método", "Monto", "Amurallado", "Fecha Firma"},
		Filters:   filters,
		Landscape: true,
	}
	for _, r := range rows {
		amurallado := "No Amurallado"
		if r.Amurallado {
			amurallado = "Amurallado"
		}
		monto := catalog.NotAvailable
		if r.Monto > 0 {
			monto = Money(r.Monto.Float())
		}
		t.Rows = append(t.Rows, []string{
			r.Proyecto, "Mz: " + r.ManzanoLabel() + ", Lt: " + r.TerrenoLabel(),
			r.Cliente, r.Asesor, r.Equipo, r.TipoLabel(), r.MetodoPagoLabel(),
			monto, amurallado, listing.FormatDate(r.FechaFirma),
		})
	}
	return t
}

func TeamsTable(rows []TeamRow) export.Table {
	t := export.Table{
		Name:    "equipos",
		Title:   "Reporte de Equipos",
		Columns: []string{"Nombre", "Miembros", "Total Miembros"},
	}
	for _, r := range rows {
		names := make([]string, 0, len(r.Miembros))
		for _, m := range r.Miembros {
			names = append(names, m.Nombre)
		}
		t.Rows = append(t.Rows, []string{r.Nombre, strings.Join(names, ", "), strconv.Itoa(len(r.Miembros))})
	}
	return t
}

func ExtensionsTable(rows []ExtensionRow, filters []string) export.Table {
	t := export.Table{
		Name:      "prorrogas",
		Title:     "Reporte de Prórrogas",
		Columns:   []string{"Cliente", "Asesor", "Fecha Solicitud", "Fecha Límite", "Estado", "Administrador"},
		Filters:   filters,
		Landscape: true,
	}
	for _, r := range rows {
		t.Rows = append(t.Rows, []string{
			r.ClienteNombre, r.AsesorNombre, listing.FormatDate(r.FechaSolicitud),
			listing.FormatDate(r.FechaLimiteExtendida), Capitalize(r.Estado), r.AdministradorNombre,
		})
	}
	return t
}

func ReservationsTable(rows []ReservationRow, filters []string) export.Table {
	t := export.Table{
		Name:  "reservas",
		Title: "Reporte de Reservas",
		Columns: []string{
			"Cliente", "Proyecto", "Manzano", "Lote", "Tiempo de espera", "Agente",
			"Método", "Monto", "Estado", "Fecha", "Hora",
		},
		Filters:   filters,
		Landscape: true,
	}
	for _, r := range rows {
		hora := r.HoraReserva
		if strings.TrimSpace(hora) == "" {
			hora = "No especificada"
		}
		metodo := r.MetodoPago
		if strings.TrimSpace(metodo) == "" {
			metodo = "No especificado"
		}
		t.Rows = append(t.Rows, []string{
			r.Cliente, r.Proyecto, orNA(r.Manzano.String()), orNA(r.NroTerreno.String()),
			r.TiempoEspera.String() + " días", r.Agente, metodo,
			Money(r.MontoReserva.Float()), r.Text(), listing.FormatDate(r.FechaReserva), hora,
		})
	}
	return t
}

func RankingTable(view RankingView, filters []string) export.Table {
	t := export.Table{
		Name:      "ranking",
		Title:     "Reporte de Ranking",
		Columns:   []string{"Posición", "Nombre", "Contratos", "Monto Total", "Cantidad Real", "Promedio"},
		Filters:   filters,
		Landscape: true,
	}
	for _, it := range view.Items {
		t.Rows = append(t.Rows, []string{
			strconv.Itoa(it.Posicion), orNA(it.Nombre), strconv.Itoa(it.Cantidad),
			Money(it.MontoTotal.Float()), strconv.Itoa(it.CantidadReal), Money(it.Promedio.Float()),
		})
	}
	return t
}
