package catalog

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/phillip-england/lotdesk/internal/backend"
)

type Kind string

const (
	Users        Kind = "usuarios"
	Projects     Kind = "proyectos"
	Clients      Kind = "clientes"
	Teams        Kind = "equipos"
	Prospects    Kind = "prospectos"
	AllProspects Kind = "todoProspectos"
	Reservations Kind = "reservas"
	Contracts    Kind = "contratos"
	Extensions   Kind = "prorrogas"
)

// AllKinds is the order Refresh walks when no kind is given.
var AllKinds = []Kind{Users, Projects, Clients, Teams, Prospects, AllProspects, Contracts, Reservations, Extensions}

// cachePrefix is the endpoint substring whose cached GETs Refresh drops.
var cachePrefix = map[Kind]string{
	Users:        backend.PathUsersPrefix,
	Projects:     backend.PathProjects,
	Clients:      backend.PathClients,
	Teams:        backend.PathTeams,
	Prospects:    backend.PathProspects,
	AllProspects: backend.PathAllProspects,
	Reservations: backend.PathReservePrefix,
	Contracts:    backend.PathContracts,
	Extensions:   backend.PathExtensions,
}

const (
	NotAvailable = "N/A"
	NoTeam       = "Sin equipo"
)

// Catalog holds the entity sets one request needs. Sets load lazily and at
// most once per catalog.
type Catalog struct {
	api   *backend.UserClient
	limit int

	mu     sync.Mutex
	loaded map[Kind]bool

	Agents       []backend.Agent
	Projects     []backend.Project
	Clients      []backend.ClientRow
	Teams        []backend.Team
	Prospects    []backend.Prospect
	AllProspects []backend.Prospect
	Reservations []backend.Reservation
	Contracts    []backend.Contract
	Extensions   []backend.Extension
}

func New(api *backend.UserClient, concurrency int) *Catalog {
	if concurrency <= 0 {
		concurrency = 4
	}
	return &Catalog{api: api, limit: concurrency, loaded: map[Kind]bool{}}
}

func (c *Catalog) API() *backend.UserClient { return c.api }

func (c *Catalog) Loaded(kind Kind) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.loaded[kind]
}

// Load fetches the requested sets concurrently, skipping the ones already
// loaded. The first failure cancels the rest.
func (c *Catalog) Load(ctx context.Context, kinds ...Kind) error {
	c.mu.Lock()
	pending := make([]Kind, 0, len(kinds))
	seen := map[Kind]bool{}
	for _, kind := range kinds {
		if c.loaded[kind] || seen[kind] {
			continue
		}
		seen[kind] = true
		pending = append(pending, kind)
	}
	c.mu.Unlock()

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.limit)
	for _, kind := range pending {
		kind := kind
		g.Go(func() error {
			if err := c.fetch(gctx, kind); err != nil {
				return fmt.Errorf("load %s: %w", kind, err)
			}
			return nil
		})
	}
	return g.Wait()
}

// Refresh drops the cached responses for each kind and reloads it. With no
// kinds every set is refreshed.
func (c *Catalog) Refresh(ctx context.Context, kinds ...Kind) error {
	if len(kinds) == 0 {
		kinds = AllKinds
	}
	for _, kind := range kinds {
		prefix, ok := cachePrefix[kind]
		if !ok {
			return fmt.Errorf("unknown catalog kind %q", kind)
		}
		if err := c.api.ClearEndpointCache(ctx, prefix); err != nil {
			return err
		}
		c.mu.Lock()
		delete(c.loaded, kind)
		c.mu.Unlock()
	}
	return c.Load(ctx, kinds...)
}

func (c *Catalog) fetch(ctx context.Context, kind Kind) error {
	var err error
	switch kind {
	case Users:
		var v []backend.Agent
		if v, err = c.api.AgentStats(ctx); err == nil {
			c.store(kind, func() { c.Agents = v })
		}
	case Projects:
		var v []backend.Project
		if v, err = c.api.Projects(ctx); err == nil {
			c.store(kind, func() { c.Projects = v })
		}
	case Clients:
		var v []backend.ClientRow
		if v, err = c.api.Clients(ctx); err == nil {
			c.store(kind, func() { c.Clients = v })
		}
	case Teams:
		var v []backend.Team
		if v, err = c.api.Teams(ctx); err == nil {
			c.store(kind, func() { c.Teams = v })
		}
	case Prospects:
		var v []backend.Prospect
		if v, err = c.api.Prospects(ctx); err == nil {
			c.store(kind, func() { c.Prospects = v })
		}
	case AllProspects:
		var v []backend.Prospect
		if v, err = c.api.AllProspects(ctx); err == nil {
			c.store(kind, func() { c.AllProspects = v })
		}
	case Reservations:
		var v []backend.Reservation
		if v, err = c.api.Reservations(ctx); err == nil {
			c.store(kind, func() { c.Reservations = v })
		}
	case Contracts:
		var v []backend.Contract
		if v, err = c.api.Contracts(ctx); err == nil {
			c.store(kind, func() { c.Contracts = v })
		}
	case Extensions:
		var v []backend.Extension
		if v, err = c.api.Extensions(ctx); err == nil {
			c.store(kind, func() { c.Extensions = v })
		}
	default:
		return fmt.Errorf("unknown catalog kind %q", kind)
	}
	return err
}

func (c *Catalog) store(kind Kind, set func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	set()
	c.loaded[kind] = true
}

func (c *Catalog) ProjectName(id backend.ID) string {
	for _, p := range c.Projects {
		if p.ID == id {
			return p.Nombre
		}
	}
	return NotAvailable
}

func (c *Catalog) Agent(id backend.ID) (backend.Agent, bool) {
	for _, a := range c.Agents {
		if a.ID == id {
			return a, true
		}
	}
	return backend.Agent{}, false
}

func (c *Catalog) AgentName(id backend.ID) string {
	if a, ok := c.Agent(id); ok {
		return a.FullName()
	}
	return NotAvailable
}

// Prospect resolves a client id against every prospect, falling back to
// the user-scoped list when the full list was not loaded.
func (c *Catalog) Prospect(id backend.ID) (backend.Prospect, bool) {
	for _, set := range [][]backend.Prospect{c.AllProspects, c.Prospects} {
		for _, p := range set {
			if p.ID == id {
				return p, true
			}
		}
	}
	return backend.Prospect{}, false
}

func (c *Catalog) ProspectName(id backend.ID) string {
	if p, ok := c.Prospect(id); ok {
		return p.FullName()
	}
	return NotAvailable
}

func (c *Catalog) TeamName(id backend.ID) string {
	for _, t := range c.Teams {
		if t.ID == id {
			return t.Nombre
		}
	}
	return NoTeam
}

// TeamOfAgent finds the team listing agentID as a member, then falls back to
// the team name on the agent's statistics row.
func (c *Catalog) TeamOfAgent(agentID backend.ID) string {
	for _, t := range c.Teams {
		for _, m := range t.Miembros {
			if m.ID == agentID {
				return t.Nombre
			}
		}
	}
	if a, ok := c.Agent(agentID); ok && strings.TrimSpace(a.Equipo) != "" {
		return a.Equipo
	}
	return NoTeam
}

// AgentsByRole returns agents whose rol matches (case-insensitive), sorted
// by name. An empty role returns every agent.
func (c *Catalog) AgentsByRole(role string) []backend.Agent {
	out := make([]backend.Agent, 0, len(c.Agents))
	for _, a := range c.Agents {
		if role == "" || strings.EqualFold(a.Rol, role) || (a.Rol == "" && strings.EqualFold(role, "Agente")) {
			out = append(out, a)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return strings.ToLower(out[i].FullName()) < strings.ToLower(out[j].FullName())
	})
	return out
}
