package session

import "strings"

type Role string

const (
	RoleAdmin      Role = "Admin"
	RoleSuperAdmin Role = "SuperAdmin"
	RoleAgent      Role = "Agente"
)

// NormalizeRole maps the backend's rol field onto a known role. Anything
// unrecognized is an agent, the least privileged role.
func NormalizeRole(raw string) Role {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "admin":
		return RoleAdmin
	case "superadmin":
		return RoleSuperAdmin
	default:
		return RoleAgent
	}
}

type Module string

const (
	ModuleDashboard  Module = "dashboard"
	ModuleProspects  Module = "prospectos"
	ModuleClients    Module = "clientes"
	ModuleAgents     Module = "agentes"
	ModuleReserves   Module = "reservas"
	ModuleContracts  Module = "contratos"
	ModuleExtensions Module = "prorrogas"
	ModuleTeams      Module = "equipos"
	ModuleRanking    Module = "ranking"
)

var moduleTitles = map[Module]string{
	ModuleDashboard:  "Dashboard",
	ModuleProspects:  "Prospectos",
	ModuleClients:    "Clientes",
	ModuleAgents:     "Agentes",
	ModuleReserves:   "Reservas",
	ModuleContracts:  "Contratos",
	ModuleExtensions: "Prórrogas",
	ModuleTeams:      "Equipos",
	ModuleRanking:    "Ranking",
}

// navOrder is the sidebar order.
var navOrder = []Module{
	ModuleDashboard,
	ModuleProspects,
	ModuleClients,
	ModuleAgents,
	ModuleReserves,
	ModuleContracts,
	ModuleExtensions,
	ModuleTeams,
	ModuleRanking,
}

var agentModules = map[Module]bool{
	ModuleDashboard:  true,
	ModuleProspects:  true,
	ModuleClients:    true,
	ModuleReserves:   true,
	ModuleContracts:  true,
	ModuleExtensions: true,
	ModuleRanking:    true,
}

func (m Module) Title() string {
	if title, ok := moduleTitles[m]; ok {
		return title
	}
	return string(m)
}

func (m Module) Known() bool {
	_, ok := moduleTitles[m]
	return ok
}

// Allowed reports whether role may open module. Admins additionally manage
// agents and teams.
func Allowed(role Role, m Module) bool {
	if !m.Known() {
		return false
	}
	switch role {
	case RoleAdmin, RoleSuperAdmin:
		return true
	default:
		return agentModules[m]
	}
}

// Modules lists the modules visible to role in navigation order.
func Modules(role Role) []Module {
	out := make([]Module, 0, len(navOrder))
	for _, m := range navOrder {
		if Allowed(role, m) {
			out = append(out, m)
		}
	}
	return out
}
