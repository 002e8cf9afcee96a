package sales

import (
	"context"
	"strings"

	"github.com/phillip-england/lotdesk/internal/backend"
	"github.com/phillip-england/lotdesk/internal/catalog"
	"github.com/phillip-england/lotdesk/internal/listing"
)

// ClientGroup folds the per-contract /clientes rows of one person.
type ClientGroup struct {
	ID              backend.ID
	Nombre          string
	Apellido        string
	Telefono        string
	Firmas          int
	Contratos       []backend.ClientRow
	Proyectos       []string
	Agentes         []backend.ID
	Equipos         []string
	TieneAmurallado bool
	FechaFirma      string
}

func (g ClientGroup) FullName() string {
	return strings.TrimSpace(g.Nombre + " " + g.Apellido)
}

func (g ClientGroup) hasProject(name string) bool { return contains(g.Proyectos, name) }
func (g ClientGroup) hasTeam(name string) bool    { return contains(g.Equipos, name) }

func (g ClientGroup) hasAgent(id string) bool {
	for _, a := range g.Agentes {
		if a.String() == id {
			return true
		}
	}
	return false
}

func contains(values []string, v string) bool {
	for _, item := range values {
		if item == v {
			return true
		}
	}
	return false
}

func clientKey(r backend.ClientRow) string {
	return r.Nombre + "-" + r.Apellido + "-" + r.Telefono.String()
}

// GroupClients merges rows sharing nombre, apellido and telefono, keeping the
// first-seen order. The earliest fechaFirma wins.
func GroupClients(rows []backend.ClientRow) []ClientGroup {
	index := map[string]int{}
	var out []ClientGroup
	for _, r := range rows {
		key := clientKey(r)
		i, ok := index[key]
		if !ok {
			i = len(out)
			index[key] = i
			out = append(out, ClientGroup{
				ID:       r.ClienteID,
				Nombre:   r.Nombre,
				Apellido: r.Apellido,
				Telefono: r.Telefono.String(),
			})
		}
		g := &out[i]
		g.Firmas++
		g.Contratos = append(g.Contratos, r)
		if p := strings.TrimSpace(r.Proyecto); p != "" && !g.hasProject(p) {
			g.Proyectos = append(g.Proyectos, p)
		}
		if !r.AsesorID.Empty() && !g.hasAgent(r.AsesorID.String()) {
			g.Agentes = append(g.Agentes, r.AsesorID)
		}
		if e := strings.TrimSpace(r.Equipo); e != "" && !g.hasTeam(e) {
			g.Equipos = append(g.Equipos, e)
		}
		if r.Amurallado {
			g.TieneAmurallado = true
		}
		if day := listing.DatePart(r.FechaFirma); day != "" {
			if current := listing.DatePart(g.FechaFirma); current == "" || day < current {
				g.FechaFirma = r.FechaFirma
			}
		}
	}
	return out
}

type ClientFilter struct {
	Search     string
	Proyecto   string
	Agente     string
	Equipo     string
	Amurallado string
	Fechas     listing.DateRange
}

const (
	WalledYes = "amurallado"
	WalledNo  = "no_amurallado"
)

// matchClient applies f. Proyecto and equipo accept either a name or an id
// the catalog resolves to one of the group's names.
func (d *Desk) matchClient(f ClientFilter, g ClientGroup) bool {
	if !listing.MatchesText(f.Search, g.Nombre, g.Apellido, g.Telefono) {
		return false
	}
	if listing.Selected(f.Proyecto) && !g.hasProject(f.Proyecto) && !g.hasProject(d.cat.ProjectName(backend.ID(f.Proyecto))) {
		return false
	}
	if listing.Selected(f.Agente) && !g.hasAgent(f.Agente) {
		return false
	}
	if listing.Selected(f.Equipo) && !g.hasTeam(f.Equipo) && !g.hasTeam(d.cat.TeamName(backend.ID(f.Equipo))) {
		return false
	}
	switch f.Amurallado {
	case WalledYes:
		if !g.TieneAmurallado {
			return false
		}
	case WalledNo:
		if g.TieneAmurallado {
			return false
		}
	}
	return f.Fechas.Contains(g.FechaFirma)
}

// Clients lists grouped clients. Agents only see groups where they advised a
// contract.
func (d *Desk) Clients(ctx context.Context, f ClientFilter) ([]ClientGroup, error) {
	if err := d.cat.Load(ctx, catalog.Clients, catalog.Projects, catalog.Users, catalog.Teams); err != nil {
		return nil, err
	}
	groups := GroupClients(d.cat.Clients)
	if d.user.IsAgent() {
		me := d.userID().String()
		groups = listing.Filter(groups, func(g ClientGroup) bool { return g.hasAgent(me) })
	}
	return listing.Filter(groups, func(g ClientGroup) bool { return d.matchClient(f, g) }), nil
}

func (d *Desk) Client(ctx context.Context, id backend.ID) (ClientGroup, error) {
	groups, err := d.Clients(ctx, ClientFilter{})
	if err != nil {
		return ClientGroup{}, err
	}
	for _, g := range groups {
		if g.ID == id {
			return g, nil
		}
		for _, c := range g.Contratos {
			if c.ClienteID == id {
				return g, nil
			}
		}
	}
	return ClientGroup{}, ErrNotFound
}

func (d *Desk) ClientFilterSummary(f ClientFilter) []string {
	var out []string
	if listing.Selected(f.Proyecto) {
		name := d.cat.ProjectName(backend.ID(f.Proyecto))
		if name == catalog.NotAvailable {
			name = f.Proyecto
		}
		out = append(out, "Proyecto: "+name)
	}
	if listing.Selected(f.Agente) {
		out = append(out, "Agente: "+d.cat.AgentName(backend.ID(f.Agente)))
	}
	if listing.Selected(f.Equipo) {
		name := d.cat.TeamName(backend.ID(f.Equipo))
		if name == catalog.NoTeam {
			name = f.Equipo
		}
		out = append(out, "Equipo: "+name)
	}
	switch f.Amurallado {
	case WalledYes:
		out = append(out, "Amurallados")
	case WalledNo:
		out = append(out, "No Amurallados")
	}
	if f.Fechas.Active() {
		out = append(out, "Firma: "+f.Fechas.Summary())
	}
	if s := strings.TrimSpace(f.Search); s != "" {
		out = append(out, `Búsqueda: "`+s+`"`)
	}
	return out
}

// WallForm requests the perimeter wall ("muralla") for one contract.
type WallForm struct {
	ContratoID backend.ID
	MetodoPago string
	Monto      string
}

// WallContract marks a contract as amurallado. Only admins may do it and
// only once per contract.
func (d *Desk) WallContract(ctx context.Context, f WallForm) (backend.Result, error) {
	if !d.user.IsAdmin() {
		return backend.Result{}, forbidden("Solo los administradores pueden amurallar contratos")
	}
	if f.ContratoID.Empty() {
		return backend.Result{}, invalid("Seleccione un contrato")
	}
	if !validPaymentMethod(f.MetodoPago) {
		return backend.Result{}, invalid("Seleccione un método de pago válido")
	}
	monto, err := parseAmount(f.Monto)
	if err != nil || monto <= 0 {
		return backend.Result{}, invalid("El monto debe ser mayor a 0")
	}
	if err := d.cat.Load(ctx, catalog.Clients); err != nil {
		return backend.Result{}, err
	}
	found := false
	for _, r := range d.cat.Clients {
		if r.ContratoID != f.ContratoID {
			continue
		}
		found = true
		if r.Amurallado {
			return backend.Result{}, invalid("Este contrato ya está amurallado")
		}
	}
	if !found {
		return backend.Result{}, ErrNotFound
	}
	return d.api().WallContract(ctx, f.ContratoID, f.MetodoPago, monto)
}
