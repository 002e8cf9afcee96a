package devapi

import (
	"database/sql"
	"net/http"
	"slices"
	"strconv"
	"strings"

	"github.com/phillip-england/lotdesk/internal/backend"
	"github.com/phillip-england/lotdesk/internal/sales"
)

// Messages the dashboard matches on to pick its own wording.
const (
	msgReservationMissing = "Reserva no encontrada"
	msgClosed             = "No se puede realizar acciones sobre una reserva cerrada"
	msgInvalidAction      = "Acción no válida"
)

// openReservation loads the reservation in the path, rejecting closed ones.
func (s *Server) openReservation(w http.ResponseWriter, r *http.Request) (backend.Reservation, bool) {
	res, err := getRecord[backend.Reservation](r.Context(), s.store, kindReservations, pathID(r))
	if err != nil {
		s.serverError(w, r, err, msgReservationMissing)
		return res, false
	}
	if !sales.Editable(res.Estado) {
		writeError(w, http.StatusBadRequest, msgClosed)
		return res, false
	}
	return res, true
}

// ownedBy reports whether the caller may act on res as its agent. Admins
// act on every reservation.
func ownedBy(r *http.Request, res backend.Reservation) bool {
	u := currentUser(r)
	return u.isAdmin() || res.AsesorID == u.backendID()
}

func (s *Server) saveReservation(w http.ResponseWriter, r *http.Request, res backend.Reservation, msg string) {
	if err := putRecord(r.Context(), s.store, kindReservations, res.ID, res); err != nil {
		s.serverError(w, r, err, msgReservationMissing)
		return
	}
	writeReservation(w, res, msg)
}

func writeReservation(w http.ResponseWriter, res backend.Reservation, msg string) {
	writeJSON(w, http.StatusOK, result{
		Message:      msg,
		ID:           res.ID.String(),
		MontoReserva: res.MontoReserva.Float(),
		TiempoEspera: res.TiempoEspera.String(),
	})
}

// signReservation closes the reservation as Firmado and turns it into a contract.
func (s *Server) signReservation(w http.ResponseWriter, r *http.Request) {
	var in struct {
		MetodoPago string         `json:"metodoPago"`
		Monto      backend.Amount `json:"monto"`
	}
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, http.StatusBadRequest, "Solicitud inválida")
		return
	}
	res, ok := s.openReservation(w, r)
	if !ok {
		return
	}
	if !ownedBy(r, res) {
		writeError(w, http.StatusForbidden, "Solo puedes firmar tus propias reservas")
		return
	}
	if !slices.Contains(sales.PaymentMethods, in.MetodoPago) {
		writeError(w, http.StatusBadRequest, "El método de pago no es válido")
		return
	}
	if in.Monto <= 0 {
		writeError(w, http.StatusBadRequest, "El monto debe ser mayor a cero")
		return
	}

	res.Estado = sales.ReservationSigned
	res.MetodoPago = in.MetodoPago
	res.MontoReserva = in.Monto
	asesor, _ := s.store.userByID(r.Context(), mustID(res.AsesorID))
	var team backend.ID
	if asesor.EquipoID != 0 {
		team = idOf(asesor.EquipoID)
	}
	contract := func(id backend.ID) backend.Contract {
		return backend.Contract{
			ID:         id,
			ClienteID:  res.ClienteID,
			AsesorID:   res.AsesorID,
			EquipoID:   team,
			ProyectoID: res.ProyectoID,
			Manzano:    res.Manzano,
			NroTerreno: res.NroTerreno,
			Tipo:       "Contado",
			MetodoPago: in.MetodoPago,
			Monto:      in.Monto,
			FechaFirma: s.today(),
			CreatedAt:  s.today(),
		}
	}
	// The contract and the signed reservation land together or not at all.
	err := s.store.inTx(r.Context(), func(tx *sql.Tx) error {
		if _, err := insertRecordTx(r.Context(), tx, kindContracts, contract); err != nil {
			return err
		}
		return putRecordTx(r.Context(), tx, kindReservations, res.ID, res)
	})
	if err != nil {
		s.serverError(w, r, err, msgReservationMissing)
		return
	}
	writeReservation(w, res, "Reserva firmada exitosamente")
}

// extendReservation adds 7 or 20 days to the waiting time.
func (s *Server) extendReservation(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Dias int `json:"dias"`
	}
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, http.StatusBadRequest, "Solicitud inválida")
		return
	}
	if !slices.Contains(sales.ExtendDays, in.Dias) {
		writeError(w, http.StatusBadRequest, "Debe especificar 7 o 20 días")
		return
	}
	res, ok := s.openReservation(w, r)
	if !ok {
		return
	}
	if !ownedBy(r, res) {
		writeError(w, http.StatusForbidden, "Solo puedes ampliar tus propias reservas")
		return
	}
	current, _ := strconv.Atoi(strings.TrimSpace(res.TiempoEspera.String()))
	res.TiempoEspera = backend.Text(strconv.Itoa(current + in.Dias))
	res.Estado = "Ampliado"
	s.saveReservation(w, r, res, "Reserva ampliada por "+strconv.Itoa(in.Dias)+" días")
}

// editLot moves an agent's own reservation to another lot of the same
// project, provided no other open reservation holds it.
func (s *Server) editLot(w http.ResponseWriter, r *http.Request) {
	var in struct {
		NuevoManzano string `json:"nuevoManzano"`
		NuevoTerreno string `json:"nuevoTerreno"`
	}
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, http.StatusBadRequest, "Solicitud inválida")
		return
	}
	manzano, terreno := strings.TrimSpace(in.NuevoManzano), strings.TrimSpace(in.NuevoTerreno)
	if manzano == "" || terreno == "" {
		writeError(w, http.StatusBadRequest, "Debe proporcionar el manzano y el número de terreno")
		return
	}
	res, ok := s.openReservation(w, r)
	if !ok {
		return
	}
	if res.AsesorID != currentUser(r).backendID() {
		writeError(w, http.StatusForbidden, "Solo puedes editar tus propias reservas")
		return
	}
	all, err := listRecords[backend.Reservation](r.Context(), s.store, kindReservations)
	if err != nil {
		s.serverError(w, r, err, "")
		return
	}
	for _, other := range all {
		if other.ID == res.ID || other.ProyectoID != res.ProyectoID || !sales.Editable(other.Estado) {
			continue
		}
		if strings.EqualFold(other.Manzano.String(), manzano) && strings.EqualFold(other.NroTerreno.String(), terreno) {
			writeError(w, http.StatusConflict, "Ya existe una reserva activa para este lote")
			return
		}
	}
	res.Manzano = backend.Text(manzano)
	res.NroTerreno = backend.Text(terreno)
	s.saveReservation(w, r, res, "Lote actualizado exitosamente")
}

// reservationAction runs the admin actions: scheduling the signing in a
// number of days, or declining with or without refund.
func (s *Server) reservationAction(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Accion string `json:"accion"`
		Dias   int    `json:"dias"`
	}
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, http.StatusBadRequest, "Solicitud inválida")
		return
	}
	var estado string
	switch in.Accion {
	case sales.ActionSignInDays:
		estado = "En espera"
	case sales.ActionDeclineNoRefund:
		estado = "Declinado sin Devolución"
	case sales.ActionDeclineRefund:
		estado = "Declinado con Devolución"
	default:
		writeError(w, http.StatusBadRequest, msgInvalidAction)
		return
	}
	if !currentUser(r).isAdmin() {
		writeError(w, http.StatusForbidden, "Solo administradores pueden realizar esta acción")
		return
	}
	res, ok := s.openReservation(w, r)
	if !ok {
		return
	}
	msg := "Reserva " + strings.ToLower(estado)
	if in.Accion == sales.ActionSignInDays {
		if in.Dias < 1 || in.Dias > sales.MaxCustomDays {
			writeError(w, http.StatusBadRequest, "Debe especificar entre 1 y 365 días")
			return
		}
		res.TiempoEspera = backend.Text(strconv.Itoa(in.Dias))
		msg = "Firma programada en " + strconv.Itoa(in.Dias) + " días"
	}
	res.Estado = estado
	s.saveReservation(w, r, res, msg)
}
