package sales

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/phillip-england/lotdesk/internal/backend"
	"github.com/phillip-england/lotdesk/internal/listing"
)

func extensionIDs(rows []ExtensionRow) []string {
	return ids(rows, func(r ExtensionRow) backend.ID { return r.ID })
}

func TestExtensionRows(t *testing.T) {
	admin := newDesk(t, newFake(), adminUser)
	rows, err := admin.Extensions(context.Background(), ExtensionFilter{})
	require.NoError(t, err)
	require.Equal(t, []string{"200", "202", "201"}, extensionIDs(rows))

	first := rows[0]
	assert.Equal(t, "2024-05-22", first.FechaLimiteExtendida)
	assert.Equal(t, "Elena Mora", first.ClienteNombre)
	assert.Equal(t, "Ana Paz", first.AsesorNombre)
	assert.Equal(t, "Pendiente", first.AdministradorNombre)
	assert.True(t, first.CanReview)

	assert.Equal(t, ExtensionPending, rows[1].Estado)
	assert.Equal(t, "Ana Paz", rows[1].AsesorNombre)

	assert.Equal(t, "Lucía Admin", rows[2].AdministradorNombre)
	assert.Equal(t, "Sin descripción", rows[2].DescripcionLabel())
	assert.False(t, rows[2].CanReview)

	agent := newDesk(t, newFake(), agentUser)
	rows, err = agent.Extensions(context.Background(), ExtensionFilter{})
	require.NoError(t, err)
	assert.Equal(t, []string{"200", "202"}, extensionIDs(rows))
	assert.False(t, rows[0].CanReview)
}

func TestExtensionFilters(t *testing.T) {
	ctx := context.Background()
	desk := newDesk(t, newFake(), adminUser)

	cases := map[string]struct {
		filter ExtensionFilter
		want   []string
	}{
		"estado":  {ExtensionFilter{Estado: ExtensionApproved}, []string{"201"}},
		"pending": {ExtensionFilter{Estado: ExtensionPending}, []string{"200", "202"}},
		"motivo":  {ExtensionFilter{Search: "viaje"}, []string{"200"}},
		"cliente": {ExtensionFilter{Search: "luna"}, []string{"201"}},
		"asesor":  {ExtensionFilter{Asesor: "3"}, []string{"201"}},
		"fechas":  {ExtensionFilter{Fechas: listing.DateRange{From: "2024-05-05"}}, []string{"200", "202"}},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			rows, err := desk.Extensions(ctx, tc.filter)
			require.NoError(t, err)
			assert.Equal(t, tc.want, extensionIDs(rows))
		})
	}
}

func TestRequestExtension(t *testing.T) {
	ctx := context.Background()
	fake := newFake()
	agent := newDesk(t, fake, agentUser)

	_, err := agent.RequestExtension(ctx, ExtensionForm{ClienteID: "32", Motivo: "  "})
	assert.Equal(t, "Debe ingresar el motivo de la prórroga", Message(err, ""))

	_, err = agent.RequestExtension(ctx, ExtensionForm{ClienteID: "30", Motivo: "Viaje"})
	assert.ErrorIs(t, err, ErrForbidden)

	_, err = agent.RequestExtension(ctx, ExtensionForm{ClienteID: "32", Motivo: "Viaje", ImagenURL: "data:image/jpeg;base64,AAAA"})
	require.NoError(t, err)

	admin := newDesk(t, fake, adminUser)
	_, err = admin.RequestExtension(ctx, ExtensionForm{ClienteID: "32", Motivo: "Viaje"})
	assert.ErrorIs(t, err, ErrForbidden)

	calls := fake.mutations()
	require.Len(t, calls, 1)
	assert.Equal(t, http.MethodPost, calls[0].Method)
	assert.Equal(t, backend.PathExtensions, calls[0].Path)
	assert.EqualValues(t, 32, calls[0].Body["clienteId"])
	assert.Equal(t, "2024-04-22", calls[0].Body["fechaLimite"])
	assert.Equal(t, "data:image/jpeg;base64,AAAA", calls[0].Body["imagenUrl"])
}

func TestReviewExtension(t *testing.T) {
	ctx := context.Background()
	fake := newFake()
	admin := newDesk(t, fake, adminUser)

	_, err := admin.ReviewExtension(ctx, "200", ReviewForm{})
	assert.Equal(t, "Seleccione una acción", Message(err, ""))
	_, err = admin.ReviewExtension(ctx, "200", ReviewForm{Estado: ExtensionApproved, DiasExtra: "x"})
	assert.Equal(t, "Ingrese un número válido de días extra", Message(err, ""))
	_, err = admin.ReviewExtension(ctx, "201", ReviewForm{Estado: ExtensionRejected})
	assert.Equal(t, "La solicitud ya fue revisada", Message(err, ""))
	_, err = admin.ReviewExtension(ctx, "299", ReviewForm{Estado: ExtensionRejected})
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = admin.ReviewExtension(ctx, "200", ReviewForm{Estado: ExtensionApproved, DiasExtra: "7", Comentario: " ok "})
	require.NoError(t, err)

	agent := newDesk(t, fake, agentUser)
	_, err = agent.ReviewExtension(ctx, "200", ReviewForm{Estado: ExtensionRejected})
	assert.ErrorIs(t, err, ErrForbidden)

	calls := fake.mutations()
	require.Len(t, calls, 1)
	assert.Equal(t, http.MethodPut, calls[0].Method)
	assert.Equal(t, "/prorrogas/200", calls[0].Path)
	assert.EqualValues(t, 7, calls[0].Body["diasExtra"])
	assert.Equal(t, "ok", calls[0].Body["comentario"])
}

func TestBulkReview(t *testing.T) {
	ctx := context.Background()
	fake := newFake()
	fake.on("PUT /prorrogas/202", fail(http.StatusInternalServerError, "falló"))
	admin := newDesk(t, fake, adminUser)

	out, err := admin.ReviewExtensions(ctx, []backend.ID{"202", "200"}, ReviewForm{Estado: ExtensionApproved, DiasExtra: "5"}, 2)
	require.NoError(t, err)
	assert.Equal(t, []backend.ID{"200"}, out.Succeeded)
	assert.Equal(t, map[backend.ID]string{"202": "falló"}, out.Failed)
	assert.Equal(t, "1 prórrogas aprobadas correctamente, 1 con error", out.Summary(ExtensionApproved))
	assert.Len(t, fake.mutations(), 2)

	_, err = admin.ReviewExtensions(ctx, nil, ReviewForm{Estado: ExtensionRejected}, 2)
	assert.ErrorIs(t, err, ErrValidation)

	agent := newDesk(t, fake, agentUser)
	_, err = agent.ReviewExtensions(ctx, []backend.ID{"200"}, ReviewForm{Estado: ExtensionRejected}, 2)
	assert.ErrorIs(t, err, ErrForbidden)

	rejected := BulkOutcome{Succeeded: []backend.ID{"1"}}
	assert.Equal(t, "1 prórrogas rechazadas correctamente", rejected.Summary(ExtensionRejected))
}

func TestBulkReviewSkipsReviewedAndRepeatedIDs(t *testing.T) {
	fake := newFake()
	admin := newDesk(t, fake, adminUser)

	out, err := admin.ReviewExtensions(context.Background(),
		[]backend.ID{"201", "200", "200", "299"},
		ReviewForm{Estado: ExtensionApproved, DiasExtra: "5"}, 2)
	require.NoError(t, err)
	assert.Equal(t, []backend.ID{"200"}, out.Succeeded)
	assert.Equal(t, map[backend.ID]string{
		"201": "La solicitud ya fue revisada",
		"299": ErrNotFound.Error(),
	}, out.Failed)

	calls := fake.mutations()
	require.Len(t, calls, 1)
	assert.Equal(t, "/prorrogas/200", calls[0].Path)
}

func TestRequestExtensionEvidence(t *testing.T) {
	ctx := context.Background()
	fake := newFake()
	agent := newDesk(t, fake, agentUser)

	_, err := agent.RequestExtension(ctx, ExtensionForm{ClienteID: "32", Motivo: "Viaje", Evidence: []byte("texto plano")})
	assert.ErrorIs(t, err, ErrValidation)
	assert.Equal(t, "la imagen debe ser png, jpeg o webp", Message(err, ""))
	assert.Empty(t, fake.mutations())
}
