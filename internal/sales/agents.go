package sales

import (
	"context"
	"sort"
	"strings"

	"github.com/phillip-england/lotdesk/internal/backend"
	"github.com/phillip-england/lotdesk/internal/catalog"
	"github.com/phillip-england/lotdesk/internal/listing"
)

type AgentFilter struct {
	Search string
	Equipo string
}

func agentTeam(a backend.Agent) string {
	if strings.TrimSpace(a.Equipo) == "" {
		return catalog.NoTeam
	}
	return a.Equipo
}

// Agents lists the agent statistics rows. Admin only.
func (d *Desk) Agents(ctx context.Context, f AgentFilter) ([]backend.Agent, error) {
	if !d.user.IsAdmin() {
		return nil, ErrForbidden
	}
	if err := d.cat.Load(ctx, catalog.Users); err != nil {
		return nil, err
	}
	return listing.Filter(d.cat.Agents, func(a backend.Agent) bool {
		return listing.MatchesText(f.Search, a.Nombre, a.Apellido, a.Telefono.String(), a.Equipo) &&
			listing.MatchesSelect(f.Equipo, agentTeam(a))
	}), nil
}

// AgentTeams is the sorted set of team names on the statistics rows,
// without the "Sin equipo" placeholder.
func (d *Desk) AgentTeams() []string {
	names := make([]string, 0, len(d.cat.Agents))
	for _, a := range d.cat.Agents {
		if team := agentTeam(a); team != catalog.NoTeam {
			names = append(names, team)
		}
	}
	names = listing.Distinct(names)
	sort.Strings(names)
	return names
}
