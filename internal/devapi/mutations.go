package devapi

import (
	"errors"
	"fmt"
	"net/http"
	"slices"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/phillip-england/lotdesk/internal/backend"
	"github.com/phillip-england/lotdesk/internal/importer"
	"github.com/phillip-england/lotdesk/internal/listing"
	"github.com/phillip-england/lotdesk/internal/sales"
)

const contractWall = "Muralla"

func pathID(r *http.Request) backend.ID {
	return backend.ID(strings.TrimSpace(chi.URLParam(r, "id")))
}

func (s *Server) createProspect(w http.ResponseWriter, r *http.Request) {
	var in backend.ProspectInput
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, http.StatusBadRequest, "Solicitud inválida")
		return
	}
	in.Nombre, in.Apellido = strings.TrimSpace(in.Nombre), strings.TrimSpace(in.Apellido)
	celular := importer.NormalizePhone(in.Celular)
	if in.Nombre == "" || celular == "" {
		writeError(w, http.StatusBadRequest, "Nombre y celular son requeridos")
		return
	}
	user := currentUser(r)
	owner := in.AgenteID
	if owner.Empty() || !user.isAdmin() {
		owner = user.backendID()
	}

	prospects, err := listRecords[backend.Prospect](r.Context(), s.store, kindProspects)
	if err != nil {
		s.serverError(w, r, err, "")
		return
	}
	for _, p := range prospects {
		if importer.NormalizePhone(p.Celular.String()) == celular {
			writeError(w, http.StatusConflict, "Ya existe un prospecto con ese celular")
			return
		}
	}

	id, err := insertRecord(r.Context(), s.store, kindProspects, func(id backend.ID) backend.Prospect {
		return backend.Prospect{
			ID:          id,
			Nombre:      in.Nombre,
			Apellido:    in.Apellido,
			Celular:     backend.Text(celular),
			Fecha:       s.today(),
			AgenteID:    owner,
			Seguimiento: sales.DefaultFollowUp,
		}
	})
	if err != nil {
		s.serverError(w, r, err, "")
		return
	}
	writeJSON(w, http.StatusCreated, result{Message: "Prospecto creado exitosamente", ID: id.String()})
}

// ownProspect loads the prospect and checks an agent caller owns it.
func (s *Server) ownProspect(w http.ResponseWriter, r *http.Request, id backend.ID) (backend.Prospect, bool) {
	p, err := getRecord[backend.Prospect](r.Context(), s.store, kindProspects, id)
	if err != nil {
		s.serverError(w, r, err, "Prospecto no encontrado")
		return p, false
	}
	user := currentUser(r)
	if !user.isAdmin() && p.AgenteID != user.backendID() {
		writeError(w, http.StatusForbidden, "Solo puedes modificar tus propios prospectos")
		return p, false
	}
	return p, true
}

func (s *Server) updateProspect(w http.ResponseWriter, r *http.Request) {
	var in backend.ProspectInput
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, http.StatusBadRequest, "Solicitud inválida")
		return
	}
	p, ok := s.ownProspect(w, r, pathID(r))
	if !ok {
		return
	}
	if v := strings.TrimSpace(in.Nombre); v != "" {
		p.Nombre = v
	}
	if v := strings.TrimSpace(in.Apellido); v != "" {
		p.Apellido = v
	}
	if v := importer.NormalizePhone(in.Celular); v != "" {
		p.Celular = backend.Text(v)
	}
	if err := putRecord(r.Context(), s.store, kindProspects, p.ID, p); err != nil {
		s.serverError(w, r, err, "Prospecto no encontrado")
		return
	}
	writeJSON(w, http.StatusOK, result{Message: "Prospecto actualizado exitosamente", ID: p.ID.String()})
}

func (s *Server) setFollowUp(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Seguimiento string `json:"seguimiento"`
	}
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, http.StatusBadRequest, "Solicitud inválida")
		return
	}
	if !slices.Contains(sales.FollowUpLevels, in.Seguimiento) {
		writeError(w, http.StatusBadRequest, "Nivel de seguimiento no válido")
		return
	}
	p, ok := s.ownProspect(w, r, pathID(r))
	if !ok {
		return
	}
	p.Seguimiento = in.Seguimiento
	if err := putRecord(r.Context(), s.store, kindProspects, p.ID, p); err != nil {
		s.serverError(w, r, err, "Prospecto no encontrado")
		return
	}
	writeJSON(w, http.StatusOK, result{Message: "Seguimiento actualizado"})
}

func (s *Server) changeAgent(w http.ResponseWriter, r *http.Request) {
	var in struct {
		NuevoAgenteID backend.ID `json:"nuevoAgenteId"`
	}
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, http.StatusBadRequest, "Solicitud inválida")
		return
	}
	agentID, ok := parseID(in.NuevoAgenteID)
	if !ok {
		writeError(w, http.StatusBadRequest, "Debe seleccionar un agente")
		return
	}
	agent, err := s.store.userByID(r.Context(), agentID)
	if err != nil {
		s.serverError(w, r, err, "Agente no encontrado")
		return
	}
	if agent.isAdmin() {
		writeError(w, http.StatusBadRequest, "El usuario seleccionado no es un agente")
		return
	}
	p, err := getRecord[backend.Prospect](r.Context(), s.store, kindProspects, pathID(r))
	if err != nil {
		s.serverError(w, r, err, "Prospecto no encontrado")
		return
	}
	p.AgenteID = agent.backendID()
	if err := putRecord(r.Context(), s.store, kindProspects, p.ID, p); err != nil {
		s.serverError(w, r, err, "Prospecto no encontrado")
		return
	}
	writeJSON(w, http.StatusOK, result{Message: "Agente asignado a " + agent.fullName()})
}

// createContract converts a prospect into a client with a signed contract.
func (s *Server) createContract(w http.ResponseWriter, r *http.Request) {
	var in backend.ContractInput
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, http.StatusBadRequest, "Solicitud inválida")
		return
	}
	p, ok := s.ownProspect(w, r, pathID(r))
	if !ok {
		return
	}
	switch {
	case in.Lote <= 0 || strings.TrimSpace(in.Manzano) == "":
		writeError(w, http.StatusBadRequest, "Debe proporcionar el manzano y el lote")
		return
	case in.Monto <= 0:
		writeError(w, http.StatusBadRequest, "El monto debe ser mayor a cero")
		return
	}
	if _, err := getRecord[backend.Project](r.Context(), s.store, kindProjects, in.Proyecto); err != nil {
		s.serverError(w, r, err, "Proyecto no encontrado")
		return
	}
	fecha := listing.DatePart(in.FechaFirma)
	if fecha == "" {
		fecha = s.today()
	}
	asesor, err := s.store.userByID(r.Context(), mustID(p.AgenteID))
	if err != nil && !errors.Is(err, errNotFound) {
		s.serverError(w, r, err, "")
		return
	}
	var team backend.ID
	if asesor.EquipoID != 0 {
		team = idOf(asesor.EquipoID)
	}
	id, err := insertRecord(r.Context(), s.store, kindContracts, func(id backend.ID) backend.Contract {
		return backend.Contract{
			ID:         id,
			ClienteID:  p.ID,
			AsesorID:   p.AgenteID,
			EquipoID:   team,
			ProyectoID: in.Proyecto,
			Manzano:    backend.Text(strings.TrimSpace(in.Manzano)),
			NroTerreno: backend.Text(fmt.Sprint(in.Lote)),
			Tipo:       "Contado",
			MetodoPago: in.MetodoPago,
			Monto:      backend.Amount(in.Monto),
			FechaFirma: fecha,
			CreatedAt:  s.today(),
		}
	})
	if err != nil {
		s.serverError(w, r, err, "")
		return
	}
	writeJSON(w, http.StatusCreated, result{Message: "Contrato registrado exitosamente", ID: id.String()})
}

func mustID(id backend.ID) int64 {
	n, _ := parseID(id)
	return n
}

// wallContract records the wall payment for a signed lot as its own
// contract line and flags the original as walled.
func (s *Server) wallContract(w http.ResponseWriter, r *http.Request) {
	var in struct {
		ContratoID backend.ID     `json:"contratoId"`
		MetodoPago string         `json:"metodoPago"`
		Monto      backend.Amount `json:"monto"`
	}
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, http.StatusBadRequest, "Solicitud inválida")
		return
	}
	if in.Monto <= 0 {
		writeError(w, http.StatusBadRequest, "El monto debe ser mayor a cero")
		return
	}
	c, err := getRecord[backend.Contract](r.Context(), s.store, kindContracts, in.ContratoID)
	if err != nil {
		s.serverError(w, r, err, "Contrato no encontrado")
		return
	}
	if c.Amurallado {
		writeError(w, http.StatusConflict, "El contrato ya tiene muralla registrada")
		return
	}
	c.Amurallado = true
	if err := putRecord(r.Context(), s.store, kindContracts, c.ID, c); err != nil {
		s.serverError(w, r, err, "Contrato no encontrado")
		return
	}
	id, err := insertRecord(r.Context(), s.store, kindContracts, func(id backend.ID) backend.Contract {
		wall := c
		wall.ID = id
		wall.Tipo = contractWall
		wall.MetodoPago = in.MetodoPago
		wall.Monto = in.Monto
		wall.FechaFirma = s.today()
		wall.CreatedAt = s.today()
		return wall
	})
	if err != nil {
		s.serverError(w, r, err, "")
		return
	}
	writeJSON(w, http.StatusCreated, result{Message: "Muralla registrada exitosamente", ID: id.String()})
}

func (s *Server) requestExtension(w http.ResponseWriter, r *http.Request) {
	var in backend.ExtensionRequest
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, http.StatusBadRequest, "Solicitud inválida")
		return
	}
	if strings.TrimSpace(in.Descripcion) == "" {
		writeError(w, http.StatusBadRequest, "Debe indicar el motivo de la prórroga")
		return
	}
	p, ok := s.ownProspect(w, r, in.ClienteID)
	if !ok {
		return
	}
	existing, err := listRecords[backend.Extension](r.Context(), s.store, kindExtensions)
	if err != nil {
		s.serverError(w, r, err, "")
		return
	}
	for _, e := range existing {
		if e.ClienteID == p.ID && e.Estado == "pendiente" {
			writeError(w, http.StatusConflict, "Ya existe una prórroga pendiente para este cliente")
			return
		}
	}
	limit := listing.DatePart(in.FechaLimite)
	if limit == "" {
		limit = listing.AddDays(p.Fecha, 30)
	}
	id, err := insertRecord(r.Context(), s.store, kindExtensions, func(id backend.ID) backend.Extension {
		return backend.Extension{
			ID:             id,
			ClienteID:      p.ID,
			AgenteID:       p.AgenteID,
			Descripcion:    strings.TrimSpace(in.Descripcion),
			Estado:         "pendiente",
			FechaSolicitud: s.today(),
			FechaLimite:    limit,
			ImagenURL:      in.ImagenURL,
		}
	})
	if err != nil {
		s.serverError(w, r, err, "")
		return
	}
	writeJSON(w, http.StatusCreated, result{Message: "Prórroga solicitada exitosamente", ID: id.String()})
}

// reviewExtension approves or rejects a pending request. Approval moves the
// deadline and the prospect's date forward by diasExtra.
func (s *Server) reviewExtension(w http.ResponseWriter, r *http.Request) {
	var in backend.ExtensionReview
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, http.StatusBadRequest, "Solicitud inválida")
		return
	}
	if in.Estado != "aprobado" && in.Estado != "rechazado" {
		writeError(w, http.StatusBadRequest, "Estado de revisión no válido")
		return
	}
	e, err := getRecord[backend.Extension](r.Context(), s.store, kindExtensions, pathID(r))
	if err != nil {
		s.serverError(w, r, err, "Prórroga no encontrada")
		return
	}
	if e.Estado != "pendiente" {
		writeError(w, http.StatusBadRequest, "La prórroga ya fue revisada")
		return
	}
	e.Estado = in.Estado
	e.Comentario = in.Comentario
	e.AdministradorID = currentUser(r).backendID()
	e.FechaResolucion = s.today()
	if in.Estado == "aprobado" {
		if in.DiasExtra <= 0 {
			writeError(w, http.StatusBadRequest, "Debe indicar los días adicionales")
			return
		}
		e.FechaLimiteOriginal = e.FechaLimite
		e.FechaLimite = listing.AddDays(e.FechaLimite, in.DiasExtra)
		p, err := getRecord[backend.Prospect](r.Context(), s.store, kindProspects, e.ClienteID)
		if err == nil {
			p.Fecha = listing.AddDays(p.Fecha, in.DiasExtra)
			err = putRecord(r.Context(), s.store, kindProspects, p.ID, p)
		}
		if err != nil && !errors.Is(err, errNotFound) {
			s.serverError(w, r, err, "")
			return
		}
	}
	if err := putRecord(r.Context(), s.store, kindExtensions, e.ID, e); err != nil {
		s.serverError(w, r, err, "Prórroga no encontrada")
		return
	}
	writeJSON(w, http.StatusOK, result{Message: "Prórroga " + in.Estado})
}

func (s *Server) createTeam(w http.ResponseWriter, r *http.Request) {
	var in backend.TeamInput
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, http.StatusBadRequest, "Solicitud inválida")
		return
	}
	name := strings.TrimSpace(in.Nombre)
	if name == "" || len(in.Miembros) == 0 {
		writeError(w, http.StatusBadRequest, "El equipo necesita un nombre y al menos un miembro")
		return
	}
	teams, err := listRecords[backend.Team](r.Context(), s.store, kindTeams)
	if err != nil {
		s.serverError(w, r, err, "")
		return
	}
	for _, t := range teams {
		if strings.EqualFold(t.Nombre, name) {
			writeError(w, http.StatusConflict, "Ya existe un equipo con ese nombre")
			return
		}
	}

	members := make(backend.Members, 0, len(in.Miembros))
	ids := make([]int64, 0, len(in.Miembros))
	for _, m := range in.Miembros {
		u, err := s.store.userByID(r.Context(), mustID(m))
		if err != nil {
			s.serverError(w, r, err, "Agente no encontrado")
			return
		}
		if u.isAdmin() {
			writeError(w, http.StatusBadRequest, "Solo los agentes pueden formar parte de un equipo")
			return
		}
		if u.EquipoID != 0 {
			writeError(w, http.StatusConflict, "El agente "+u.fullName()+" ya pertenece a un equipo")
			return
		}
		members = append(members, backend.Member{ID: u.backendID()})
		ids = append(ids, u.ID)
	}

	id, err := insertRecord(r.Context(), s.store, kindTeams, func(id backend.ID) backend.Team {
		return backend.Team{ID: id, Nombre: name, Miembros: members}
	})
	if err != nil {
		s.serverError(w, r, err, "")
		return
	}
	if err := s.store.setTeam(r.Context(), mustID(id), ids); err != nil {
		s.serverError(w, r, err, "")
		return
	}
	writeJSON(w, http.StatusCreated, result{Message: "Equipo creado exitosamente", ID: id.String()})
}

func (s *Server) deleteTeam(w http.ResponseWriter, r *http.Request) {
	id := pathID(r)
	if err := deleteRecord(r.Context(), s.store, kindTeams, id); err != nil {
		s.serverError(w, r, err, "Equipo no encontrado")
		return
	}
	if err := s.store.clearTeam(r.Context(), mustID(id)); err != nil {
		s.serverError(w, r, err, "")
		return
	}
	writeJSON(w, http.StatusOK, result{Message: "Equipo eliminado exitosamente"})
}
