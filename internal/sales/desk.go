package sales

import (
	"time"

	"github.com/phillip-england/lotdesk/internal/backend"
	"github.com/phillip-england/lotdesk/internal/catalog"
	"github.com/phillip-england/lotdesk/internal/session"
)

// Desk binds one request's catalog to the signed-in user and a clock. Every
// feature module hangs off it.
type Desk struct {
	cat  *catalog.Catalog
	user session.User
	now  time.Time
}

func NewDesk(cat *catalog.Catalog, user session.User, now time.Time) *Desk {
	if now.IsZero() {
		now = time.Now()
	}
	return &Desk{cat: cat, user: user, now: now}
}

func (d *Desk) Catalog() *catalog.Catalog { return d.cat }
func (d *Desk) User() session.User        { return d.user }
func (d *Desk) Now() time.Time            { return d.now }

func (d *Desk) api() *backend.UserClient { return d.cat.API() }

func (d *Desk) userID() backend.ID { return backend.ID(d.user.ID.String()) }

// owns reports whether the signed-in user is the agent id.
func (d *Desk) owns(agentID backend.ID) bool {
	return !agentID.Empty() && agentID == d.userID()
}

// Option is a select entry for filter forms.
type Option struct {
	Value string
	Label string
}

func (d *Desk) ProjectOptions() []Option {
	out := make([]Option, 0, len(d.cat.Projects))
	for _, p := range d.cat.Projects {
		out = append(out, Option{Value: p.ID.String(), Label: p.Nombre})
	}
	return out
}

func (d *Desk) AgentOptions() []Option {
	agents := d.cat.AgentsByRole(string(session.RoleAgent))
	out := make([]Option, 0, len(agents))
	for _, a := range agents {
		out = append(out, Option{Value: a.ID.String(), Label: a.FullName()})
	}
	return out
}

func (d *Desk) TeamOptions() []Option {
	out := make([]Option, 0, len(d.cat.Teams))
	for _, t := range d.cat.Teams {
		out = append(out, Option{Value: t.ID.String(), Label: t.Nombre})
	}
	return out
}

// optionLabel resolves a select value to its label for filter summaries.
func optionLabel(options []Option, value string) string {
	for _, o := range options {
		if o.Value == value {
			return o.Label
		}
	}
	return catalog.NotAvailable
}
