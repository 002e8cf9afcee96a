package sales

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/phillip-england/lotdesk/internal/backend"
	"github.com/phillip-england/lotdesk/internal/listing"
)

func ids[T any](rows []T, id func(T) backend.ID) []string {
	out := make([]string, 0, len(rows))
	for _, r := range rows {
		out = append(out, id(r).String())
	}
	return out
}

func prospectIDs(rows []ProspectRow) []string {
	return ids(rows, func(r ProspectRow) backend.ID { return r.ID })
}

func TestProspectState(t *testing.T) {
	now := time.Date(2024, 5, 31, 0, 0, 0, 0, time.UTC)
	cases := map[string]struct {
		fecha string
		want  string
		days  int
	}{
		"today":        {"2024-05-31", StateNew, 0},
		"ten days":     {"2024-05-21", StateNew, 10},
		"eleven days":  {"2024-05-20", StateRecent, 11},
		"twenty five":  {"2024-05-06", StateRecent, 25},
		"twenty six":   {"2024-05-05", StateOld, 26},
		"thirty":       {"2024-05-01", StateOld, 30},
		"thirty one":   {"2024-04-30", StateExpired, 31},
		"missing date": {"", StateExpired, 0},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			estado, days := ProspectState(tc.fecha, now)
			assert.Equal(t, tc.want, estado)
			assert.Equal(t, tc.days, days)
		})
	}
}

func TestAgentsOnlySeeTheirProspects(t *testing.T) {
	desk := newDesk(t, newFake(), agentUser)
	rows, err := desk.Prospects(context.Background(), ProspectFilter{})
	require.NoError(t, err)
	assert.Equal(t, []string{"30", "31", "32"}, prospectIDs(rows))

	old := rows[2]
	assert.Equal(t, StateOld, old.Estado)
	assert.True(t, old.Actions.RequestExtension)
	assert.True(t, old.Actions.Edit)
	assert.False(t, old.Actions.Reassign)
	assert.Equal(t, "Tibio", old.FollowUpLevel())
	assert.False(t, rows[0].Actions.RequestExtension)
}

func TestAdminProspectActions(t *testing.T) {
	desk := newDesk(t, newFake(), adminUser)
	rows, err := desk.Prospects(context.Background(), ProspectFilter{})
	require.NoError(t, err)
	require.Len(t, rows, 4)
	for _, r := range rows {
		assert.Equal(t, ProspectActions{Reassign: true}, r.Actions, r.ID)
	}
	assert.Equal(t, "Bruno Soto", rows[3].Agente)
}

func TestProspectFilters(t *testing.T) {
	ctx := context.Background()
	desk := newDesk(t, newFake(), adminUser)

	cases := map[string]struct {
		filter ProspectFilter
		want   []string
	}{
		"estado":        {ProspectFilter{Estado: StateRecent}, []string{"31"}},
		"numeric phone": {ProspectFilter{Search: "7222"}, []string{"31"}},
		"name":          {ProspectFilter{Search: "MORA"}, []string{"32"}},
		"default level": {ProspectFilter{Seguimiento: "Tibio"}, []string{"31", "32", "33"}},
		"asesor":        {ProspectFilter{Asesor: "3"}, []string{"33"}},
		"todos":         {ProspectFilter{Asesor: listing.DefaultFilter, Estado: listing.DefaultFilter}, []string{"30", "31", "32", "33"}},
		"date range":    {ProspectFilter{Fechas: listing.DateRange{From: "2024-04-01", To: "2024-05-01"}}, []string{"31", "32"}},
		"combined":      {ProspectFilter{Asesor: "2", Estado: StateNew}, []string{"30"}},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			rows, err := desk.Prospects(ctx, tc.filter)
			require.NoError(t, err)
			assert.Equal(t, tc.want, prospectIDs(rows))
		})
	}
}

func TestProspectFilterSummary(t *testing.T) {
	desk := newDesk(t, newFake(), adminUser)
	require.NoError(t, desk.Catalog().Load(context.Background(), "usuarios"))
	got := desk.ProspectFilterSummary(ProspectFilter{Estado: StateOld, Asesor: "2", Search: " carla "})
	assert.Equal(t, []string{"Estado: Antiguo", "Asesor: Ana Paz", `Búsqueda: "carla"`}, got)
}

func TestCreateProspect(t *testing.T) {
	ctx := context.Background()
	fake := newFake()
	desk := newDesk(t, fake, agentUser)

	_, err := desk.CreateProspect(ctx, ProspectForm{Nombre: "Juan", Apellido: " "})
	assert.ErrorIs(t, err, ErrValidation)
	assert.Equal(t, "Nombre, apellido y celular son obligatorios", Message(err, ""))

	_, err = desk.CreateProspect(ctx, ProspectForm{Nombre: " Juan ", Apellido: "Perez", Celular: "70011122"})
	require.NoError(t, err)
	calls := fake.mutations()
	require.Len(t, calls, 1)
	assert.Equal(t, "POST", calls[0].Method)
	assert.Equal(t, backend.PathProspects, calls[0].Path)
	assert.Equal(t, "Juan", calls[0].Body["nombre"])
	assert.EqualValues(t, 2, calls[0].Body["agenteId"])
}

func TestRegisterContract(t *testing.T) {
	ctx := context.Background()
	fake := newFake()
	desk := newDesk(t, fake, agentUser)

	form := ContractForm{Proyecto: "10", Lote: "abc", Manzano: "B", FechaFirma: "2024-05-20", MetodoPago: "Efectivo", Monto: "1500,5"}
	_, err := desk.RegisterContract(ctx, "31", form)
	assert.Equal(t, "El número de lote debe ser un entero positivo", Message(err, ""))

	form.Lote = "4"
	_, err = desk.RegisterContract(ctx, "31", form)
	require.NoError(t, err)
	calls := fake.mutations()
	require.Len(t, calls, 1)
	assert.Equal(t, "/prospectos/31/crear-contrato", calls[0].Path)
	assert.EqualValues(t, 4, calls[0].Body["lote"])
	assert.InDelta(t, 1500.5, calls[0].Body["monto"], 0.001)
	assert.EqualValues(t, 10, calls[0].Body["proyecto"])

	form.Monto = "0"
	_, err = desk.RegisterContract(ctx, "31", form)
	assert.ErrorIs(t, err, ErrValidation)

	form.Monto = "100"
	_, err = desk.RegisterContract(ctx, "33", form)
	assert.ErrorIs(t, err, ErrForbidden)

	_, err = desk.RegisterContract(ctx, "999", form)
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestChangeAgentAndFollowUp(t *testing.T) {
	ctx := context.Background()
	fake := newFake()

	admin := newDesk(t, fake, adminUser)
	_, err := admin.ChangeProspectAgent(ctx, "30", "3")
	require.NoError(t, err)
	_, err = admin.SetFollowUp(ctx, "30", "Frio")
	assert.ErrorIs(t, err, ErrForbidden)

	agent := newDesk(t, fake, agentUser)
	_, err = agent.ChangeProspectAgent(ctx, "30", "3")
	assert.ErrorIs(t, err, ErrForbidden)
	_, err = agent.SetFollowUp(ctx, "30", "Helado")
	assert.ErrorIs(t, err, ErrValidation)
	_, err = agent.SetFollowUp(ctx, "30", "Frio")
	require.NoError(t, err)

	calls := fake.mutations()
	require.Len(t, calls, 2)
	assert.Equal(t, "/prospectos/30/cambiar-agente", calls[0].Path)
	assert.EqualValues(t, 3, calls[0].Body["nuevoAgenteId"])
	assert.Equal(t, "PATCH", calls[1].Method)
	assert.Equal(t, "Frio", calls[1].Body["seguimiento"])
}
