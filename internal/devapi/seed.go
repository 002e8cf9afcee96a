package devapi

import (
	"context"
	"time"

	"github.com/phillip-england/lotdesk/internal/backend"
	"github.com/phillip-england/lotdesk/internal/config"
)

// seed creates the configured admin and agent plus a second agent, then
// fills an empty database with a small, coherent sales history dated
// relative to now.
func seed(ctx context.Context, store *Store, cfg config.DevAPIConfig, now time.Time) error {
	if _, err := store.ensureUser(ctx, userRecord{Email: cfg.AdminEmail, Nombre: "Lucía", Apellido: "Admin", Rol: "Admin"}, cfg.AdminPassword); err != nil {
		return err
	}
	agentID, err := store.ensureUser(ctx, userRecord{Email: cfg.AgentEmail, Nombre: "Ana", Apellido: "Paz", Rol: "Agente", Telefono: "70010020"}, cfg.AgentPassword)
	if err != nil {
		return err
	}
	otherID, err := store.ensureUser(ctx, userRecord{Email: "bruno@lotdesk.local", Nombre: "Bruno", Apellido: "Soto", Rol: "Agente", Telefono: "70030040"}, cfg.AgentPassword)
	if err != nil {
		return err
	}

	n, err := store.count(ctx, kindProjects)
	if err != nil || n > 0 {
		return err
	}

	day := func(offset int) string { return now.AddDate(0, 0, -offset).UTC().Format(dateLayout) }
	agent, other := idOf(agentID), idOf(otherID)

	var projects []backend.ID
	for _, name := range []string{"Los Pinos", "El Bosque", "Villa Sol"} {
		id, err := insertRecord(ctx, store, kindProjects, func(id backend.ID) backend.Project {
			return backend.Project{ID: id, Nombre: name}
		})
		if err != nil {
			return err
		}
		projects = append(projects, id)
	}

	team, err := insertRecord(ctx, store, kindTeams, func(id backend.ID) backend.Team {
		return backend.Team{ID: id, Nombre: "Halcones", Miembros: backend.Members{{ID: agent}}}
	})
	if err != nil {
		return err
	}
	teamID, _ := parseID(team)
	if err := store.setTeam(ctx, teamID, []int64{agentID}); err != nil {
		return err
	}

	prospects := []backend.Prospect{
		{Nombre: "Carla", Apellido: "Vaca", Celular: "71111111", Fecha: day(5), AgenteID: agent, Seguimiento: "Caliente"},
		{Nombre: "Diego", Apellido: "Ríos", Celular: "72222222", Fecha: day(18), AgenteID: agent, Seguimiento: "Tibio"},
		{Nombre: "Elena", Apellido: "Mora", Celular: "73333333", Fecha: day(28), AgenteID: agent},
		{Nombre: "Fabio", Apellido: "Luna", Celular: "74444444", Fecha: day(45), AgenteID: other, Seguimiento: "Frio"},
		{Nombre: "Gabriela", Apellido: "Suárez", Celular: "75555555", Fecha: day(60), AgenteID: other},
	}
	var prospectIDs []backend.ID
	for _, p := range prospects {
		id, err := insertRecord(ctx, store, kindProspects, func(id backend.ID) backend.Prospect {
			p.ID = id
			return p
		})
		if err != nil {
			return err
		}
		prospectIDs = append(prospectIDs, id)
	}

	reservations := []backend.Reservation{
		{ClienteID: prospectIDs[0], AsesorID: agent, ProyectoID: projects[0], Manzano: "A", NroTerreno: "12", FechaReserva: day(3), HoraReserva: "10:30", MetodoPago: "Efectivo", MontoReserva: 500, TiempoEspera: "7", Estado: "Activa"},
		{ClienteID: prospectIDs[1], AsesorID: agent, ProyectoID: projects[1], Manzano: "B", NroTerreno: "4", FechaReserva: day(12), HoraReserva: "16:00", MetodoPago: "Transferencia", MontoReserva: 300, TiempoEspera: "15", Estado: "En espera"},
		{ClienteID: prospectIDs[3], AsesorID: other, ProyectoID: projects[1], Manzano: "C", NroTerreno: "3", FechaReserva: day(40), HoraReserva: "09:15", MetodoPago: "Efectivo", MontoReserva: 800, TiempoEspera: "7", Estado: "Firmado"},
	}
	for _, res := range reservations {
		if _, err := insertRecord(ctx, store, kindReservations, func(id backend.ID) backend.Reservation {
			res.ID = id
			return res
		}); err != nil {
			return err
		}
	}

	contracts := []backend.Contract{
		{ClienteID: prospectIDs[3], AsesorID: other, ProyectoID: projects[1], Manzano: "C", NroTerreno: "3", Tipo: "Contado", MetodoPago: "Efectivo", Monto: 12000, FechaFirma: day(35)},
		{ClienteID: prospectIDs[4], AsesorID: other, ProyectoID: projects[2], Manzano: "D", NroTerreno: "9", Tipo: "Crédito", MetodoPago: "Transferencia", Monto: 9500, FechaFirma: day(50)},
		{ClienteID: prospectIDs[2], AsesorID: agent, EquipoID: team, ProyectoID: projects[0], Manzano: "A", NroTerreno: "2", Tipo: "Contado", MetodoPago: "Depósito", Monto: 15000, FechaFirma: day(8)},
	}
	for _, c := range contracts {
		if _, err := insertRecord(ctx, store, kindContracts, func(id backend.ID) backend.Contract {
			c.ID = id
			c.CreatedAt = c.FechaFirma
			return c
		}); err != nil {
			return err
		}
	}

	_, err = insertRecord(ctx, store, kindExtensions, func(id backend.ID) backend.Extension {
		return backend.Extension{
			ID:             id,
			ClienteID:      prospectIDs[1],
			AgenteID:       agent,
			Descripcion:    "El cliente espera la aprobación de su crédito",
			Estado:         "pendiente",
			FechaSolicitud: day(1),
			FechaLimite:    day(-12),
		}
	})
	return err
}
