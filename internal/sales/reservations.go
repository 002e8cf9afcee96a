package sales

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/phillip-england/lotdesk/internal/backend"
	"github.com/phillip-england/lotdesk/internal/catalog"
	"github.com/phillip-england/lotdesk/internal/listing"
)

// Reservation states as the backend writes them.
const (
	ReservationActive     = "Activa"
	ReservationPending    = "Pendiente"
	ReservationWaiting    = "En espera"
	ReservationSigned     = "Firmado"
	ReservationExtended   = "Ampliado"
	ReservationExpired    = "Expirado"
	ReservationDeclinedSD = "Declinado sin Devolución"
	ReservationDeclinedCD = "Declinado con Devolución"
)

// Filter keys for the estado select.
const (
	FilterActive     = "activa"
	FilterPending    = "pendiente"
	FilterWaiting    = "En espera"
	FilterSigned     = "firmado"
	FilterDeclinedSD = "declinada_sd"
	FilterDeclinedCD = "declinada_cd"
	FilterExpired    = "Expirado"
)

// Generic reservation actions sent to /reservas/{id}/accion.
const (
	ActionSignInDays      = "firma_en_x_dias"
	ActionDeclineNoRefund = "declinado_sin_devolucion"
	ActionDeclineRefund   = "declinado_con_devolucion"
)

const (
	MaxLotLength  = 10
	MaxCustomDays = 365
)

// ExtendDays are the only spans /ampliar accepts.
var ExtendDays = []int{7, 20}

var stateFilterKey = map[string]string{
	"Activa":                   FilterActive,
	"Pendiente":                FilterPending,
	"En espera":                FilterWaiting,
	"Firmado":                  FilterSigned,
	"Declinado sin Devolución": FilterDeclinedSD,
	"Declinado S/D":            FilterDeclinedSD,
	"Declinado Sin Devolución": FilterDeclinedSD,
	"Declinado con Devolución": FilterDeclinedCD,
	"Declinado C/D":            FilterDeclinedCD,
	"Declinado Con Devolución": FilterDeclinedCD,
	"Expirado":                 FilterExpired,
}

// StateFilterKey maps a backend state onto its filter key. Unknown states
// filter as active.
func StateFilterKey(estado string) string {
	if key, ok := stateFilterKey[estado]; ok {
		return key
	}
	return FilterActive
}

var closedStates = map[string]bool{
	"Firmado":                  true,
	"Expirado":                 true,
	"Declinado sin Devolución": true,
	"Declinado con Devolución": true,
	"Declinado S/D":            true,
	"Declinado C/D":            true,
}

// Editable reports whether a reservation in estado still accepts actions.
func Editable(estado string) bool { return !closedStates[estado] }

var reservationBadge = map[string]string{
	"En espera":                "warning",
	"Pendiente":                "warning",
	"Firmado":                  "success",
	"Declinado sin Devolución": "danger",
	"Declinado con Devolución": "danger",
	"Declinado S/D":            "danger",
	"Declinado C/D":            "danger",
	"Expirado":                 "secondary",
	"Activa":                   "primary",
	"Ampliado":                 "info",
}

func ReservationBadge(estado string) string {
	if class, ok := reservationBadge[estado]; ok {
		return class
	}
	return "secondary"
}

var reservationText = map[string]string{
	"En espera":                "En Espera",
	"Declinado sin Devolución": "Declinado S/D",
	"Declinado con Devolución": "Declinado C/D",
}

func ReservationText(estado string) string {
	if text, ok := reservationText[estado]; ok {
		return text
	}
	return estado
}

type ReservationActions struct {
	Edit    bool
	Extend  bool
	Sign    bool
	Decline bool
}

type ReservationRow struct {
	backend.Reservation
	Cliente  string
	Agente   string
	Proyecto string
	Actions  ReservationActions
}

func (r ReservationRow) Badge() string { return ReservationBadge(r.Estado) }
func (r ReservationRow) Text() string  { return ReservationText(r.Estado) }

func (d *Desk) reservationActions(r backend.Reservation) ReservationActions {
	open := Editable(r.Estado)
	admin := d.user.IsAdmin()
	return ReservationActions{
		Edit:    open && d.user.IsAgent() && d.owns(r.AsesorID),
		Extend:  open && admin,
		Sign:    open && admin,
		Decline: open && admin,
	}
}

func (d *Desk) reservationRow(r backend.Reservation) ReservationRow {
	return ReservationRow{
		Reservation: r,
		Cliente:     d.cat.ProspectName(r.ClienteID),
		Agente:      d.cat.AgentName(r.AsesorID),
		Proyecto:    d.cat.ProjectName(r.ProyectoID),
		Actions:     d.reservationActions(r),
	}
}

type ReservationFilter struct {
	Search     string
	Proyecto   string
	Agente     string
	Estado     string
	MetodoPago string
	Fechas     listing.DateRange
}

func (f ReservationFilter) Match(r ReservationRow) bool {
	cliente, agente := r.Cliente, r.Agente
	if cliente == catalog.NotAvailable {
		cliente = ""
	}
	if agente == catalog.NotAvailable {
		agente = ""
	}
	if listing.Selected(f.MetodoPago) && r.MetodoPago == "" {
		return false
	}
	return listing.MatchesText(f.Search, cliente, agente, r.Manzano.String(), r.NroTerreno.String()) &&
		listing.MatchesSelect(f.Proyecto, r.ProyectoID.String()) &&
		listing.MatchesSelect(f.Agente, r.AsesorID.String()) &&
		listing.MatchesSelect(f.Estado, StateFilterKey(r.Estado)) &&
		listing.MatchesSelect(f.MetodoPago, r.MetodoPago) &&
		f.Fechas.Contains(r.FechaReserva)
}

var reservationKinds = []catalog.Kind{catalog.Reservations, catalog.Projects, catalog.Users, catalog.AllProspects}

// Reservations lists reservations in backend order with names resolved and
// the actions the user may take on each.
func (d *Desk) Reservations(ctx context.Context, f ReservationFilter) ([]ReservationRow, error) {
	if err := d.cat.Load(ctx, reservationKinds...); err != nil {
		return nil, err
	}
	rows := make([]ReservationRow, 0, len(d.cat.Reservations))
	for _, r := range d.cat.Reservations {
		rows = append(rows, d.reservationRow(r))
	}
	return listing.Filter(rows, f.Match), nil
}

func (d *Desk) Reservation(ctx context.Context, id backend.ID) (ReservationRow, error) {
	if err := d.cat.Load(ctx, reservationKinds...); err != nil {
		return ReservationRow{}, err
	}
	for _, r := range d.cat.Reservations {
		if r.ID == id {
			return d.reservationRow(r), nil
		}
	}
	return ReservationRow{}, notFound("La reserva no fue encontrada")
}

var stateFilterLabel = map[string]string{
	FilterActive:     "Activa",
	FilterPending:    "Pendiente",
	FilterWaiting:    "En Espera",
	FilterSigned:     "Firmado",
	FilterDeclinedSD: "Declinado S/D",
	FilterDeclinedCD: "Declinado C/D",
	FilterExpired:    "Expirado",
}

func (d *Desk) ReservationFilterSummary(f ReservationFilter) []string {
	var out []string
	if f.Fechas.Active() {
		out = append(out, fmt.Sprintf("Fechas: %s a %s", dash(f.Fechas.From), dash(f.Fechas.To)))
	}
	if listing.Selected(f.Proyecto) {
		out = append(out, "Proyecto: "+d.cat.ProjectName(backend.ID(f.Proyecto)))
	}
	if listing.Selected(f.Agente) {
		out = append(out, "Agente: "+d.cat.AgentName(backend.ID(f.Agente)))
	}
	if listing.Selected(f.Estado) {
		label, ok := stateFilterLabel[f.Estado]
		if !ok {
			label = Capitalize(f.Estado)
		}
		out = append(out, "Estado: "+label)
	}
	if listing.Selected(f.MetodoPago) {
		out = append(out, "Método Pago: "+f.MetodoPago)
	}
	if s := strings.TrimSpace(f.Search); s != "" {
		out = append(out, `Búsqueda: "`+s+`"`)
	}
	return out
}

func dash(v string) string {
	if strings.TrimSpace(v) == "" {
		return "-"
	}
	return v
}

var notFoundRule = messageRule{"Reserva no encontrada", "La reserva no fue encontrada"}

// EditLot moves the owning agent's reservation to another manzano/lote.
func (d *Desk) EditLot(ctx context.Context, id backend.ID, manzano, terreno string) (backend.Result, error) {
	manzano, terreno = strings.TrimSpace(manzano), strings.TrimSpace(terreno)
	if manzano == "" || terreno == "" {
		return backend.Result{}, invalid("Debe proporcionar el manzano y el número de terreno")
	}
	if utf8.RuneCountInString(manzano) > MaxLotLength || utf8.RuneCountInString(terreno) > MaxLotLength {
		return backend.Result{}, invalid(fmt.Sprintf("El manzano y el terreno admiten como máximo %d caracteres", MaxLotLength))
	}
	row, err := d.Reservation(ctx, id)
	if err != nil {
		return backend.Result{}, err
	}
	if !Editable(row.Estado) {
		return backend.Result{}, invalid("No se puede editar una reserva ya firmada o declinada")
	}
	if !row.Actions.Edit {
		return backend.Result{}, forbidden("Solo puedes editar tus propias reservas")
	}
	if manzano == row.Manzano.String() && terreno == row.NroTerreno.String() {
		return backend.Result{}, invalid("No se realizaron cambios en el lote")
	}
	res, err := d.api().EditReservationLot(ctx, id, manzano, terreno)
	return res, translate(err, "Error al editar el lote de la reserva",
		messageRule{"Ya existe una reserva activa", "Ya existe una reserva activa para este Proyecto, Manzano y Lote"},
		notFoundRule,
		messageRule{"Debe proporcionar el manzano", "Debe proporcionar el manzano y el número de terreno"},
		messageRule{"No se puede realizar acciones", "No se puede editar una reserva ya firmada o declinada"},
	)
}

// checkExtendable applies the guards shared by both ampliar paths.
func (d *Desk) checkExtendable(row ReservationRow) error {
	if row.Estado == ReservationSigned {
		return invalid("No se puede ampliar una reserva ya firmada")
	}
	if !Editable(row.Estado) {
		return invalid("No se puede ampliar una reserva cerrada")
	}
	if d.user.IsAgent() && !d.owns(row.AsesorID) {
		return forbidden("Solo puedes ampliar tus propias reservas")
	}
	if !d.user.IsAdmin() && !d.user.IsAgent() {
		return ErrForbidden
	}
	return nil
}

// Extend adds 7 or 20 days to the waiting time.
func (d *Desk) Extend(ctx context.Context, id backend.ID, days int) (backend.Result, error) {
	valid := false
	for _, n := range ExtendDays {
		if n == days {
			valid = true
		}
	}
	if !valid {
		return backend.Result{}, invalid("Solo se puede ampliar por 7 o 20 días")
	}
	row, err := d.Reservation(ctx, id)
	if err != nil {
		return backend.Result{}, err
	}
	if err := d.checkExtendable(row); err != nil {
		return backend.Result{}, err
	}
	res, err := d.api().ExtendReservation(ctx, id, days)
	return res, translate(err, "Error al ampliar la reserva",
		messageRule{"Solo puedes ampliar tus propias reservas", "Solo puedes ampliar las reservas que has creado"},
		messageRule{"Debe especificar 7 o 20 días", "Solo se puede ampliar por 7 o 20 días"},
		notFoundRule,
	)
}

// ParseDays reads a day count from a form value.
func ParseDays(value string) (int, error) {
	n, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return 0, invalid("Ingrese un número de días válido")
	}
	return n, nil
}

// ScheduleSigning sets a custom signing deadline of 1..365 days. Admin only.
func (d *Desk) ScheduleSigning(ctx context.Context, id backend.ID, days int) (backend.Result, error) {
	if !d.user.IsAdmin() {
		return backend.Result{}, forbidden("Solo los administradores pueden programar firmas")
	}
	if days < 1 || days > MaxCustomDays {
		return backend.Result{}, invalid(fmt.Sprintf("Los días deben estar entre 1 y %d", MaxCustomDays))
	}
	row, err := d.Reservation(ctx, id)
	if err != nil {
		return backend.Result{}, err
	}
	if err := d.checkExtendable(row); err != nil {
		return backend.Result{}, err
	}
	res, err := d.api().ReservationAction(ctx, id, ActionSignInDays, map[string]any{"dias": days})
	return res, translate(err, "Error al programar la firma",
		messageRule{"Solo administradores", "Solo los administradores pueden programar firmas"},
		notFoundRule,
		messageRule{"No se puede realizar acciones", "No se puede programar firma en una reserva ya firmada"},
	)
}

// Sign converts the reservation into a contract.
func (d *Desk) Sign(ctx context.Context, id backend.ID, metodoPago, monto string) (backend.Result, error) {
	if !validPaymentMethod(metodoPago) {
		return backend.Result{}, invalid("Seleccione un método de pago válido")
	}
	amount, err := parseAmount(monto)
	if err != nil || amount <= 0 {
		return backend.Result{}, invalid("El monto debe ser mayor a 0")
	}
	row, err := d.Reservation(ctx, id)
	if err != nil {
		return backend.Result{}, err
	}
	if row.Estado == ReservationSigned {
		return backend.Result{}, invalid("Esta reserva ya ha sido firmada")
	}
	if d.user.IsAgent() && !d.owns(row.AsesorID) {
		return backend.Result{}, forbidden("Solo puedes firmar tus propias reservas")
	}
	if !row.Actions.Sign {
		return backend.Result{}, forbidden("No se puede firmar esta reserva")
	}
	res, err := d.api().SignReservation(ctx, id, metodoPago, amount)
	return res, translate(err, "Error al firmar la reserva",
		messageRule{"Solo puedes firmar tus propias reservas", "Solo puedes firmar las reservas que has creado"},
		notFoundRule,
		messageRule{"No se puede realizar acciones", "No se puede firmar una reserva ya firmada o declinada"},
		messageRule{"Acción no válida", "Acción de firma no válida"},
		messageRule{"monto", "El monto ingresado no es válido"},
		messageRule{"método de pago", "El método de pago seleccionado no es válido"},
	)
}

// Decline closes the reservation with or without refund. Admin only.
func (d *Desk) Decline(ctx context.Context, id backend.ID, accion string) (backend.Result, error) {
	if accion != ActionDeclineNoRefund && accion != ActionDeclineRefund {
		return backend.Result{}, invalid("Por favor selecciona un tipo de declinación")
	}
	row, err := d.Reservation(ctx, id)
	if err != nil {
		return backend.Result{}, err
	}
	if row.Estado == ReservationSigned {
		return backend.Result{}, invalid("No se puede declinar una reserva ya firmada")
	}
	if !d.user.IsAdmin() {
		return backend.Result{}, forbidden("Solo los administradores pueden declinar reservas")
	}
	if !Editable(row.Estado) {
		return backend.Result{}, invalid("No se puede declinar una reserva cerrada")
	}
	res, err := d.api().ReservationAction(ctx, id, accion, nil)
	if err == nil && res.Message == "" {
		res.Message = "Reserva declinada exitosamente sin devolución"
		if accion == ActionDeclineRefund {
			res.Message = "Reserva declinada exitosamente con devolución"
		}
	}
	return res, translate(err, "Error al declinar la reserva",
		messageRule{"Solo administradores", "Solo los administradores pueden declinar reservas"},
		notFoundRule,
		messageRule{"No se puede realizar acciones", "No se puede declinar una reserva ya firmada"},
		messageRule{"Acción no válida", "Tipo de declinación no válido"},
	)
}
