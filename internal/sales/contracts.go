package sales

import (
	"context"
	"strings"

	"github.com/phillip-england/lotdesk/internal/backend"
	"github.com/phillip-england/lotdesk/internal/catalog"
	"github.com/phillip-england/lotdesk/internal/listing"
)

type ContractRow struct {
	backend.Contract
	Proyecto string
	Cliente  string
	Asesor   string
	Equipo   string
}

func orNA(v string) string {
	if strings.TrimSpace(v) == "" {
		return catalog.NotAvailable
	}
	return v
}

func (r ContractRow) TipoLabel() string       { return orNA(r.Tipo) }
func (r ContractRow) MetodoPagoLabel() string { return orNA(r.MetodoPago) }
func (r ContractRow) ManzanoLabel() string    { return orNA(r.Manzano.String()) }
func (r ContractRow) TerrenoLabel() string    { return orNA(r.NroTerreno.String()) }

type ContractFilter struct {
	Search     string
	Proyecto   string
	Asesor     string
	Equipo     string
	MetodoPago string
	Tipo       string
	Amurallado string
	Fechas     listing.DateRange
}

func (f ContractFilter) Match(r ContractRow) bool {
	if !listing.MatchesText(f.Search, r.Cliente, r.NroTerreno.String(), r.Manzano.String(), r.Proyecto, r.Asesor, r.Equipo) {
		return false
	}
	switch f.Amurallado {
	case WalledYes:
		if !r.Amurallado {
			return false
		}
	case WalledNo:
		if r.Amurallado {
			return false
		}
	}
	return listing.MatchesSelect(f.Proyecto, r.ProyectoID.String()) &&
		listing.MatchesSelect(f.Asesor, r.AsesorID.String()) &&
		listing.MatchesSelect(f.Equipo, r.EquipoID.String()) &&
		listing.MatchesSelect(f.MetodoPago, r.MetodoPago) &&
		listing.MatchesSelect(f.Tipo, r.Tipo) &&
		f.Fechas.Contains(r.FechaFirma)
}

func (d *Desk) contractRow(c backend.Contract) ContractRow {
	equipo := catalog.NoTeam
	for _, t := range d.cat.Teams {
		if t.ID == c.EquipoID {
			equipo = t.Nombre
		}
	}
	return ContractRow{
		Contract: c,
		Proyecto: d.cat.ProjectName(c.ProyectoID),
		Cliente:  d.cat.ProspectName(c.ClienteID),
		Asesor:   d.cat.AgentName(c.AsesorID),
		Equipo:   equipo,
	}
}

// Contracts lists enriched contracts. Agents see the ones they advised.
func (d *Desk) Contracts(ctx context.Context, f ContractFilter) ([]ContractRow, error) {
	if err := d.cat.Load(ctx, catalog.Contracts, catalog.Projects, catalog.Users, catalog.Teams, catalog.Prospects); err != nil {
		return nil, err
	}
	rows := make([]ContractRow, 0, len(d.cat.Contracts))
	for _, c := range d.cat.Contracts {
		if d.user.IsAgent() && !d.owns(c.AsesorID) {
			continue
		}
		rows = append(rows, d.contractRow(c))
	}
	return listing.Filter(rows, f.Match), nil
}

// ContractTypes is the distinct tipo values for the filter select.
func (d *Desk) ContractTypes() []string {
	values := make([]string, 0, len(d.cat.Contracts))
	for _, c := range d.cat.Contracts {
		values = append(values, c.Tipo)
	}
	return listing.Distinct(values)
}

func (d *Desk) ContractFilterSummary(f ContractFilter) []string {
	var out []string
	if f.Fechas.Active() {
		out = append(out, "Fechas: "+f.Fechas.Summary())
	}
	if listing.Selected(f.Proyecto) {
		out = append(out, "Proyecto: "+d.cat.ProjectName(backend.ID(f.Proyecto)))
	}
	if listing.Selected(f.Asesor) {
		out = append(out, "Asesor: "+d.cat.AgentName(backend.ID(f.Asesor)))
	}
	if listing.Selected(f.Equipo) {
		out = append(out, "Equipo: "+optionLabel(d.TeamOptions(), f.Equipo))
	}
	if listing.Selected(f.MetodoPago) {
		out = append(out, "Método: "+f.MetodoPago)
	}
	if listing.Selected(f.Tipo) {
		out = append(out, "Tipo: "+f.Tipo)
	}
	switch f.Amurallado {
	case WalledYes:
		out = append(out, "Amurallados")
	case WalledNo:
		out = append(out, "No Amurallados")
	}
	if s := strings.TrimSpace(f.Search); s != "" {
		out = append(out, `Búsqueda: "`+s+`"`)
	}
	return out
}
