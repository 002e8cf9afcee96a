package sales

import (
	"context"
	"strings"

	"github.com/phillip-england/lotdesk/internal/backend"
	"github.com/phillip-england/lotdesk/internal/catalog"
	"github.com/phillip-england/lotdesk/internal/listing"
)

type TeamMember struct {
	ID       backend.ID
	Nombre   string
	Telefono string
}

type TeamRow struct {
	ID       backend.ID
	Nombre   string
	Miembros []TeamMember
}

// member resolves a team member against the agent list, falling back to the
// fields embedded in the team payload.
func (d *Desk) member(m backend.Member) TeamMember {
	if a, ok := d.cat.Agent(m.ID); ok {
		return TeamMember{ID: a.ID, Nombre: a.FullName(), Telefono: a.Telefono.String()}
	}
	name := strings.TrimSpace(m.Nombre + " " + m.Apellido)
	if name == "" {
		name = "Agente " + m.ID.String()
	}
	return TeamMember{ID: m.ID, Nombre: name, Telefono: m.Telefono.String()}
}

func (r TeamRow) matches(query string) bool {
	if listing.MatchesText(query, r.Nombre) {
		return true
	}
	for _, m := range r.Miembros {
		if listing.MatchesText(query, m.Nombre, m.Telefono) {
			return true
		}
	}
	return false
}

// Teams lists teams with resolved members. Admin only.
func (d *Desk) Teams(ctx context.Context, search string) ([]TeamRow, error) {
	if !d.user.IsAdmin() {
		return nil, ErrForbidden
	}
	if err := d.cat.Load(ctx, catalog.Teams, catalog.Users); err != nil {
		return nil, err
	}
	rows := make([]TeamRow, 0, len(d.cat.Teams))
	for _, t := range d.cat.Teams {
		row := TeamRow{ID: t.ID, Nombre: t.Nombre}
		for _, m := range t.Miembros {
			row.Miembros = append(row.Miembros, d.member(m))
		}
		if row.matches(search) {
			rows = append(rows, row)
		}
	}
	return rows, nil
}

type TeamForm struct {
	Nombre   string
	Miembros []string
}

func (d *Desk) CreateTeam(ctx context.Context, f TeamForm) (backend.Result, error) {
	if !d.user.IsAdmin() {
		return backend.Result{}, forbidden("Solo los administradores pueden crear equipos")
	}
	name := strings.TrimSpace(f.Nombre)
	if name == "" {
		return backend.Result{}, invalid("El nombre del equipo es obligatorio")
	}
	ids := make([]backend.ID, 0, len(f.Miembros))
	for _, m := range listing.Distinct(f.Miembros) {
		ids = append(ids, backend.ID(m))
	}
	if len(ids) == 0 {
		return backend.Result{}, invalid("Seleccione al menos un miembro")
	}
	return d.api().CreateTeam(ctx, backend.TeamInput{Nombre: name, Miembros: ids})
}

// DeleteTeam removes a team. confirm carries the explicit confirmation the
// form asks for.
func (d *Desk) DeleteTeam(ctx context.Context, id backend.ID, confirm bool) (backend.Result, error) {
	if !d.user.IsAdmin() {
		return backend.Result{}, forbidden("Solo los administradores pueden eliminar equipos")
	}
	if !confirm {
		return backend.Result{}, invalid("Confirme la eliminación del equipo")
	}
	return d.api().DeleteTeam(ctx, id)
}
