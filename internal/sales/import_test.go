package sales

import (
	"context"
	"io"
	"net/http"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/phillip-england/lotdesk/internal/backend"
	"github.com/phillip-england/lotdesk/internal/importer"
)

var importSheet = [][]string{
	{"Nombre", "Apellido", "Celular"},
	{"Ana", "Ruiz", "71234567"},
	{"Beto", "", "72222222"},
	{"Carla", "Vaca", "73333333"},
	{"Diego", "Rios", "74444444"},
}

func TestImportProspects(t *testing.T) {
	fake := newFake()
	var n atomic.Int32
	fake.on("POST "+backend.PathProspects, func(w http.ResponseWriter) {
		if n.Add(1) == 2 {
			fail(http.StatusConflict, "El celular ya está registrado")(w)
			return
		}
		_, _ = io.WriteString(w, `{"message":"ok"}`)
	})
	d := newDesk(t, fake, agentUser)

	out, err := d.ImportProspects(context.Background(), importSheet)
	require.NoError(t, err)
	assert.Equal(t, 2, out.Created)
	assert.Equal(t, []importer.Skipped{
		{Line: 3, Reason: "nombre y apellido son requeridos"},
		{Line: 4, Reason: "El celular ya está registrado"},
	}, out.Skipped)
	assert.Equal(t, "2 prospectos importados, 2 filas omitidas", out.Summary())

	calls := fake.mutations()
	require.Len(t, calls, 3)
	assert.Equal(t, "Ana", calls[0].Body["nombre"])
	assert.EqualValues(t, 2, calls[0].Body["agenteId"])
}

func TestImportProspectsStopsOnExpiredSession(t *testing.T) {
	fake := newFake()
	fake.on("POST "+backend.PathProspects, fail(http.StatusUnauthorized, "token"))
	d := newDesk(t, fake, agentUser)

	out, err := d.ImportProspects(context.Background(), importSheet)
	assert.ErrorIs(t, err, backend.ErrSessionExpired)
	assert.Zero(t, out.Created)
	assert.Len(t, fake.mutations(), 1)
}

func TestImportProspectsRejects(t *testing.T) {
	admin := newDesk(t, newFake(), adminUser)
	_, err := admin.ImportProspects(context.Background(), importSheet)
	assert.ErrorIs(t, err, ErrForbidden)

	agent := newDesk(t, newFake(), agentUser)
	_, err = agent.ImportProspects(context.Background(), [][]string{{"nombre"}})
	assert.ErrorIs(t, err, ErrValidation)

	_, err = agent.ImportProspects(context.Background(), importSheet[:1])
	assert.EqualError(t, err, "El archivo no tiene filas válidas para importar")
}
