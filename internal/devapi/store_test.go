package devapi

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/phillip-england/lotdesk/internal/backend"
)

func TestInTxRollsBackEveryWrite(t *testing.T) {
	ctx := context.Background()
	store, err := OpenStore(ctx, ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	err = store.inTx(ctx, func(tx *sql.Tx) error {
		if _, err := insertRecordTx(ctx, tx, kindContracts, func(id backend.ID) backend.Contract {
			return backend.Contract{ID: id, Manzano: "A", NroTerreno: "1"}
		}); err != nil {
			return err
		}
		return putRecordTx(ctx, tx, kindReservations, "999", backend.Reservation{ID: "999"})
	})
	require.ErrorIs(t, err, errNotFound)

	n, err := store.count(ctx, kindContracts)
	require.NoError(t, err)
	assert.Zero(t, n)

	id, err := insertRecord(ctx, store, kindContracts, func(id backend.ID) backend.Contract {
		return backend.Contract{ID: id}
	})
	require.NoError(t, err)
	assert.Equal(t, backend.ID("1"), id)
}
