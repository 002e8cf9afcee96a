package sales

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/phillip-england/lotdesk/internal/backend"
	"github.com/phillip-england/lotdesk/internal/catalog"
	"github.com/phillip-england/lotdesk/internal/listing"
)

func reservationIDs(rows []ReservationRow) []string {
	return ids(rows, func(r ReservationRow) backend.ID { return r.ID })
}

func TestStateFilterKey(t *testing.T) {
	assert.Equal(t, FilterDeclinedSD, StateFilterKey("Declinado S/D"))
	assert.Equal(t, FilterDeclinedCD, StateFilterKey(ReservationDeclinedCD))
	assert.Equal(t, FilterSigned, StateFilterKey(ReservationSigned))
	assert.Equal(t, FilterActive, StateFilterKey("Raro"))
	assert.Equal(t, FilterActive, StateFilterKey(""))

	assert.False(t, Editable(ReservationSigned))
	assert.False(t, Editable("Declinado C/D"))
	assert.True(t, Editable(ReservationWaiting))
	assert.True(t, Editable(ReservationExtended))

	assert.Equal(t, "danger", ReservationBadge(ReservationDeclinedSD))
	assert.Equal(t, "secondary", ReservationBadge("Raro"))
	assert.Equal(t, "En Espera", ReservationText(ReservationWaiting))
	assert.Equal(t, "Firmado", ReservationText(ReservationSigned))
}

func TestReservationRows(t *testing.T) {
	admin := newDesk(t, newFake(), adminUser)
	rows, err := admin.Reservations(context.Background(), ReservationFilter{})
	require.NoError(t, err)
	require.Len(t, rows, 5)

	assert.Equal(t, "Carla Vaca", rows[0].Cliente)
	assert.Equal(t, "Ana Paz", rows[0].Agente)
	assert.Equal(t, "Los Pinos", rows[0].Proyecto)
	assert.Equal(t, ReservationActions{Extend: true, Sign: true, Decline: true}, rows[0].Actions)
	assert.Equal(t, "Gina Paredes", rows[1].Cliente)
	assert.Equal(t, ReservationActions{}, rows[1].Actions)
	assert.Equal(t, catalog.NotAvailable, rows[4].Cliente)

	agent := newDesk(t, newFake(), agentUser)
	row, err := agent.Reservation(context.Background(), "100")
	require.NoError(t, err)
	assert.Equal(t, ReservationActions{Edit: true}, row.Actions)

	row, err = agent.Reservation(context.Background(), "103")
	require.NoError(t, err)
	assert.False(t, row.Actions.Edit)

	_, err = agent.Reservation(context.Background(), "999")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Equal(t, "La reserva no fue encontrada", Message(err, ""))
}

func TestReservationFilters(t *testing.T) {
	ctx := context.Background()
	desk := newDesk(t, newFake(), adminUser)

	cases := map[string]struct {
		filter ReservationFilter
		want   []string
	}{
		"declined":       {ReservationFilter{Estado: FilterDeclinedSD}, []string{"102"}},
		"unknown active": {ReservationFilter{Estado: FilterActive}, []string{"100", "104"}},
		"waiting":        {ReservationFilter{Estado: FilterWaiting}, []string{"103"}},
		"client search":  {ReservationFilter{Search: "gina"}, []string{"101"}},
		"lot search":     {ReservationFilter{Search: "9"}, []string{"102"}},
		"method":         {ReservationFilter{MetodoPago: "Efectivo"}, []string{"100"}},
		"project":        {ReservationFilter{Proyecto: "11"}, []string{"101", "104"}},
		"agent":          {ReservationFilter{Agente: "3", Estado: listing.DefaultFilter}, []string{"101", "103"}},
		"dates":          {ReservationFilter{Fechas: listing.DateRange{From: "2024-05-11", To: "2024-05-19"}}, []string{"101", "103"}},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			rows, err := desk.Reservations(ctx, tc.filter)
			require.NoError(t, err)
			assert.Equal(t, tc.want, reservationIDs(rows))
		})
	}
}

func TestReservationFilterSummary(t *testing.T) {
	desk := newDesk(t, newFake(), adminUser)
	_, err := desk.Reservations(context.Background(), ReservationFilter{})
	require.NoError(t, err)

	got := desk.ReservationFilterSummary(ReservationFilter{
		Fechas:     listing.DateRange{From: "2024-05-01"},
		Proyecto:   "10",
		Estado:     FilterDeclinedCD,
		MetodoPago: "Tarjeta",
	})
	assert.Equal(t, []string{
		"Fechas: 2024-05-01 a -",
		"Proyecto: Los Pinos",
		"Estado: Declinado C/D",
		"Método Pago: Tarjeta",
	}, got)
}

func TestEditLot(t *testing.T) {
	ctx := context.Background()
	fake := newFake()
	agent := newDesk(t, fake, agentUser)

	_, err := agent.EditLot(ctx, "100", "A", "12")
	assert.Equal(t, "No se realizaron cambios en el lote", Message(err, ""))

	_, err = agent.EditLot(ctx, "100", "ABCDEFGHIJK", "1")
	assert.ErrorIs(t, err, ErrValidation)

	_, err = agent.EditLot(ctx, "102", "B", "1")
	assert.ErrorIs(t, err, ErrValidation)

	_, err = agent.EditLot(ctx, "103", "B", "1")
	assert.ErrorIs(t, err, ErrForbidden)

	admin := newDesk(t, fake, adminUser)
	_, err = admin.EditLot(ctx, "100", "B", "1")
	assert.ErrorIs(t, err, ErrForbidden)

	_, err = agent.EditLot(ctx, "100", " B ", "14")
	require.NoError(t, err)

	fake.on("PUT /reservas/104/editar-lote", fail(http.StatusConflict, "Ya existe una reserva activa en ese lote"))
	_, err = agent.EditLot(ctx, "104", "A", "12")
	assert.Equal(t, "Ya existe una reserva activa para este Proyecto, Manzano y Lote", Message(err, ""))

	calls := fake.mutations()
	require.Len(t, calls, 2)
	assert.Equal(t, "/reservas/100/editar-lote", calls[0].Path)
	assert.Equal(t, "B", calls[0].Body["nuevoManzano"])
	assert.Equal(t, "14", calls[0].Body["nuevoTerreno"])
}

func TestExtendReservation(t *testing.T) {
	ctx := context.Background()
	fake := newFake()
	admin := newDesk(t, fake, adminUser)

	_, err := admin.Extend(ctx, "100", 10)
	assert.Equal(t, "Solo se puede ampliar por 7 o 20 días", Message(err, ""))

	_, err = admin.Extend(ctx, "101", 7)
	assert.Equal(t, "No se puede ampliar una reserva ya firmada", Message(err, ""))

	_, err = admin.Extend(ctx, "100", 20)
	require.NoError(t, err)

	fake.on("PUT /reservas/103/ampliar", fail(http.StatusBadRequest, "Debe especificar 7 o 20 días"))
	_, err = admin.Extend(ctx, "103", 7)
	assert.Equal(t, "Solo se puede ampliar por 7 o 20 días", Message(err, ""))
	assert.True(t, backend.IsStatus(err, http.StatusBadRequest))

	agent := newDesk(t, fake, agentUser)
	_, err = agent.Extend(ctx, "103", 7)
	assert.ErrorIs(t, err, ErrForbidden)

	calls := fake.mutations()
	require.Len(t, calls, 2)
	assert.EqualValues(t, 20, calls[0].Body["dias"])
}

func TestScheduleSigning(t *testing.T) {
	ctx := context.Background()
	fake := newFake()
	admin := newDesk(t, fake, adminUser)

	days, err := ParseDays(" 15 ")
	require.NoError(t, err)
	assert.Equal(t, 15, days)
	_, err = ParseDays("quince")
	assert.ErrorIs(t, err, ErrValidation)

	_, err = admin.ScheduleSigning(ctx, "100", 0)
	assert.ErrorIs(t, err, ErrValidation)
	_, err = admin.ScheduleSigning(ctx, "100", MaxCustomDays+1)
	assert.ErrorIs(t, err, ErrValidation)
	_, err = admin.ScheduleSigning(ctx, "100", 15)
	require.NoError(t, err)

	agent := newDesk(t, fake, agentUser)
	_, err = agent.ScheduleSigning(ctx, "100", 15)
	assert.ErrorIs(t, err, ErrForbidden)

	calls := fake.mutations()
	require.Len(t, calls, 1)
	assert.Equal(t, "/reservas/100/accion", calls[0].Path)
	assert.Equal(t, ActionSignInDays, calls[0].Body["accion"])
	assert.EqualValues(t, 15, calls[0].Body["dias"])
}

func TestSignAndDecline(t *testing.T) {
	ctx := context.Background()
	fake := newFake()
	admin := newDesk(t, fake, adminUser)
	agent := newDesk(t, fake, agentUser)

	_, err := admin.Sign(ctx, "100", "Bitcoin", "10")
	assert.ErrorIs(t, err, ErrValidation)
	_, err = admin.Sign(ctx, "101", "Efectivo", "10")
	assert.Equal(t, "Esta reserva ya ha sido firmada", Message(err, ""))
	_, err = agent.Sign(ctx, "100", "Efectivo", "10")
	assert.ErrorIs(t, err, ErrForbidden)
	_, err = admin.Sign(ctx, "100", "Transferencia", "9800.75")
	require.NoError(t, err)

	_, err = admin.Decline(ctx, "100", "otro")
	assert.ErrorIs(t, err, ErrValidation)
	_, err = agent.Decline(ctx, "100", ActionDeclineRefund)
	assert.ErrorIs(t, err, ErrForbidden)
	_, err = admin.Decline(ctx, "102", ActionDeclineRefund)
	assert.ErrorIs(t, err, ErrValidation)

	fake.on("PUT /reservas/103/accion", func(w http.ResponseWriter) {
		_, _ = w.Write([]byte(`{}`))
	})
	res, err := admin.Decline(ctx, "103", ActionDeclineRefund)
	require.NoError(t, err)
	assert.Equal(t, "Reserva declinada exitosamente con devolución", res.Message)

	calls := fake.mutations()
	require.Len(t, calls, 2)
	assert.Equal(t, "/reservas/100/firmar", calls[0].Path)
	assert.InDelta(t, 9800.75, calls[0].Body["monto"], 0.001)
	assert.Equal(t, ActionDeclineRefund, calls[1].Body["accion"])
}
