package sales

import (
	"context"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/phillip-england/lotdesk/internal/backend"
	"github.com/phillip-england/lotdesk/internal/catalog"
	"github.com/phillip-england/lotdesk/internal/listing"
)

const (
	StateNew     = "nuevo"
	StateRecent  = "reciente"
	StateOld     = "antiguo"
	StateExpired = "expirado"
)

var FollowUpLevels = []string{"Caliente", "Tibio", "Frio"}

const DefaultFollowUp = "Tibio"

// ProspectState buckets a prospect by whole days since fecha. Unreadable
// dates count as expired.
func ProspectState(fecha string, now time.Time) (string, int) {
	days, ok := listing.DaysSince(fecha, now)
	if !ok {
		return StateExpired, 0
	}
	switch {
	case days <= 10:
		return StateNew, days
	case days <= 25:
		return StateRecent, days
	case days <= 30:
		return StateOld, days
	default:
		return StateExpired, days
	}
}

type ProspectActions struct {
	Edit             bool
	Register         bool
	Reassign         bool
	FollowUp         bool
	RequestExtension bool
}

type ProspectRow struct {
	backend.Prospect
	Estado  string
	Dias    int
	Agente  string
	Actions ProspectActions
}

func (r ProspectRow) FollowUpLevel() string {
	if strings.TrimSpace(r.Seguimiento) == "" {
		return DefaultFollowUp
	}
	return r.Seguimiento
}

type ProspectFilter struct {
	Search      string
	Fechas      listing.DateRange
	Estado      string
	Seguimiento string
	Asesor      string
}

func (f ProspectFilter) Match(r ProspectRow) bool {
	return listing.MatchesText(f.Search, r.Nombre, r.Apellido, r.Celular.String()) &&
		f.Fechas.Contains(r.Fecha) &&
		listing.MatchesSelect(f.Estado, r.Estado) &&
		listing.MatchesSelect(f.Seguimiento, r.FollowUpLevel()) &&
		listing.MatchesSelect(f.Asesor, r.AgenteID.String())
}

func (d *Desk) prospectActions(estado string) ProspectActions {
	admin := d.user.IsAdmin()
	return ProspectActions{
		Edit:             !admin && estado != StateExpired,
		Register:         !admin && estado != StateExpired,
		Reassign:         admin,
		FollowUp:         !admin,
		RequestExtension: !admin && estado == StateOld,
	}
}

func (d *Desk) prospectRow(p backend.Prospect) ProspectRow {
	estado, dias := ProspectState(p.Fecha, d.now)
	return ProspectRow{
		Prospect: p,
		Estado:   estado,
		Dias:     dias,
		Agente:   d.cat.AgentName(p.AgenteID),
		Actions:  d.prospectActions(estado),
	}
}

// Prospects lists the prospects the user may see. Agents only get their own.
func (d *Desk) Prospects(ctx context.Context, f ProspectFilter) ([]ProspectRow, error) {
	if err := d.cat.Load(ctx, catalog.Prospects, catalog.Users); err != nil {
		return nil, err
	}
	rows := make([]ProspectRow, 0, len(d.cat.Prospects))
	for _, p := range d.cat.Prospects {
		if d.user.IsAgent() && !d.owns(p.AgenteID) {
			continue
		}
		rows = append(rows, d.prospectRow(p))
	}
	return listing.Filter(rows, f.Match), nil
}

func (d *Desk) findProspect(ctx context.Context, id backend.ID) (ProspectRow, error) {
	if err := d.cat.Load(ctx, catalog.Prospects, catalog.Users); err != nil {
		return ProspectRow{}, err
	}
	for _, p := range d.cat.Prospects {
		if p.ID == id {
			return d.prospectRow(p), nil
		}
	}
	return ProspectRow{}, ErrNotFound
}

// ProspectFilterSummary lists the active filters as display chips.
func (d *Desk) ProspectFilterSummary(f ProspectFilter) []string {
	var out []string
	if f.Fechas.Active() {
		out = append(out, "Fechas: "+f.Fechas.Summary())
	}
	if listing.Selected(f.Estado) {
		out = append(out, "Estado: "+Capitalize(f.Estado))
	}
	if listing.Selected(f.Seguimiento) {
		out = append(out, "Seguimiento: "+f.Seguimiento)
	}
	if listing.Selected(f.Asesor) {
		out = append(out, "Asesor: "+d.cat.AgentName(backend.ID(f.Asesor)))
	}
	if strings.TrimSpace(f.Search) != "" {
		out = append(out, `Búsqueda: "`+strings.TrimSpace(f.Search)+`"`)
	}
	return out
}

type ProspectForm struct {
	Nombre   string
	Apellido string
	Celular  string
}

func (f ProspectForm) validate() error {
	if strings.TrimSpace(f.Nombre) == "" || strings.TrimSpace(f.Apellido) == "" || strings.TrimSpace(f.Celular) == "" {
		return invalid("Nombre, apellido y celular son obligatorios")
	}
	return nil
}

func (f ProspectForm) input(agent backend.ID) backend.ProspectInput {
	return backend.ProspectInput{
		Nombre:   strings.TrimSpace(f.Nombre),
		Apellido: strings.TrimSpace(f.Apellido),
		Celular:  strings.TrimSpace(f.Celular),
		AgenteID: agent,
	}
}

// CreateProspect registers a prospect owned by the signed-in user.
func (d *Desk) CreateProspect(ctx context.Context, f ProspectForm) (backend.Result, error) {
	if err := f.validate(); err != nil {
		return backend.Result{}, err
	}
	return d.api().CreateProspect(ctx, f.input(d.userID()))
}

func (d *Desk) UpdateProspect(ctx context.Context, id backend.ID, f ProspectForm) (backend.Result, error) {
	if err := f.validate(); err != nil {
		return backend.Result{}, err
	}
	row, err := d.findProspect(ctx, id)
	if err != nil {
		return backend.Result{}, err
	}
	if !row.Actions.Edit {
		return backend.Result{}, forbidden("No puedes editar este prospecto")
	}
	return d.api().UpdateProspect(ctx, id, f.input(row.AgenteID))
}

func (d *Desk) ChangeProspectAgent(ctx context.Context, id, agentID backend.ID) (backend.Result, error) {
	if !d.user.IsAdmin() {
		return backend.Result{}, forbidden("Solo los administradores pueden cambiar el agente")
	}
	if agentID.Empty() {
		return backend.Result{}, invalid("Seleccione un agente")
	}
	if _, err := d.findProspect(ctx, id); err != nil {
		return backend.Result{}, err
	}
	return d.api().ChangeProspectAgent(ctx, id, agentID)
}

func (d *Desk) SetFollowUp(ctx context.Context, id backend.ID, level string) (backend.Result, error) {
	if d.user.IsAdmin() {
		return backend.Result{}, forbidden("Solo los agentes registran el seguimiento")
	}
	valid := false
	for _, l := range FollowUpLevels {
		if l == level {
			valid = true
		}
	}
	if !valid {
		return backend.Result{}, invalid("Seguimiento inválido")
	}
	return d.api().SetProspectFollowUp(ctx, id, level)
}

// ContractForm is the raw "registrar" form for converting a prospect.
type ContractForm struct {
	Proyecto   string
	Lote       string
	Manzano    string
	FechaFirma string
	MetodoPago string
	Monto      string
}

func (f ContractForm) parse() (backend.ContractInput, error) {
	for _, v := range []string{f.Proyecto, f.Lote, f.Manzano, f.FechaFirma, f.MetodoPago, f.Monto} {
		if strings.TrimSpace(v) == "" {
			return backend.ContractInput{}, invalid("Todos los campos son obligatorios")
		}
	}
	lote, err := strconv.Atoi(strings.TrimSpace(f.Lote))
	if err != nil || lote <= 0 {
		return backend.ContractInput{}, invalid("El número de lote debe ser un entero positivo")
	}
	monto, err := parseAmount(f.Monto)
	if err != nil || monto <= 0 {
		return backend.ContractInput{}, invalid("El monto debe ser mayor a 0")
	}
	if listing.DatePart(f.FechaFirma) == "" {
		return backend.ContractInput{}, invalid("La fecha de firma no es válida")
	}
	return backend.ContractInput{
		Proyecto:   backend.ID(strings.TrimSpace(f.Proyecto)),
		Lote:       lote,
		Manzano:    strings.TrimSpace(f.Manzano),
		FechaFirma: listing.DatePart(f.FechaFirma),
		MetodoPago: strings.TrimSpace(f.MetodoPago),
		Monto:      monto,
	}, nil
}

// RegisterContract converts a prospect into a signed contract.
func (d *Desk) RegisterContract(ctx context.Context, id backend.ID, f ContractForm) (backend.Result, error) {
	in, err := f.parse()
	if err != nil {
		return backend.Result{}, err
	}
	row, err := d.findProspect(ctx, id)
	if err != nil {
		return backend.Result{}, err
	}
	if !row.Actions.Register {
		return backend.Result{}, forbidden("No puedes registrar un contrato para este prospecto")
	}
	return d.api().RegisterContract(ctx, id, in)
}

// parseAmount reads a money value typed with either decimal separator.
func parseAmount(value string) (float64, error) {
	value = strings.TrimSpace(value)
	if strings.Contains(value, ",") && !strings.Contains(value, ".") {
		value = strings.ReplaceAll(value, ",", ".")
	}
	v, err := strconv.ParseFloat(value, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, invalid("Monto inválido")
	}
	return v, nil
}
