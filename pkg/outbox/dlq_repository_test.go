package outbox

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/uporders-backend/pkg/db/dbtest"
	"github.com/angelmondragon/uporders-backend/pkg/db/models"
	"github.com/angelmondragon/uporders-backend/pkg/enums"
)

func TestDLQReplayResetsEvent(t *testing.T) {
	ctx := context.Background()
	conn := dbtest.Open(t)
	repo := NewRepository(conn)
	dlq := NewDLQRepository(conn)

	event := models.OutboxEvent{
		EventType:     enums.EventOrderRejected,
		AggregateType: enums.AggregateFulfillmentRequest,
		AggregateID:   uuid.New(),
		Payload:       []byte(`{"version":1,"data":{}}`),
	}
	require.NoError(t, repo.Insert(conn, event))
	var stored models.OutboxEvent
	require.NoError(t, conn.First(&stored).Error)
	require.NoError(t, repo.MarkTerminalTx(conn, stored.ID, errors.New("topic gone"), 5))

	long := strings.Repeat("x", maxDLQErrorLen+10)
	require.NoError(t, dlq.InsertTx(conn, models.OutboxDLQ{
		EventID:       stored.ID,
		EventType:     stored.EventType,
		AggregateType: stored.AggregateType,
		AggregateID:   stored.AggregateID,
		Payload:       stored.Payload,
		ErrorReason:   enums.OutboxDLQReasonMaxAttempts,
		ErrorMessage:  &long,
		AttemptCount:  5,
	}))

	rows, err := dlq.List(ctx, "", 0)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Len(t, *rows[0].ErrorMessage, maxDLQErrorLen)

	rows, err = dlq.List(ctx, enums.OutboxDLQReasonNonRetryable, 10)
	require.NoError(t, err)
	assert.Empty(t, rows)

	require.NoError(t, dlq.Replay(ctx, stored.ID))

	var replayed models.OutboxEvent
	require.NoError(t, conn.First(&replayed, "id = ?", stored.ID).Error)
	assert.Zero(t, replayed.AttemptCount)
	assert.Nil(t, replayed.LastError)
	assert.Equal(t, int64(0), dbtest.Count(t, conn, &models.OutboxDLQ{}))

	err = dlq.Replay(ctx, stored.ID)
	assert.ErrorIs(t, err, ErrNotDeadLettered)
}

func TestDLQInsertRequiresTransaction(t *testing.T) {
	require.Error(t, NewDLQRepository(nil).InsertTx(nil, models.OutboxDLQ{}))
}

func TestMarkFailedTruncatesLastError(t *testing.T) {
	conn := dbtest.Open(t)
	repo := NewRepository(conn)
	require.NoError(t, repo.Insert(conn, models.OutboxEvent{
		EventType:     enums.EventOrderFulfilled,
		AggregateType: enums.AggregateOrder,
		AggregateID:   uuid.New(),
		Payload:       []byte(`{"version":1,"data":{}}`),
	}))
	var stored models.OutboxEvent
	require.NoError(t, conn.First(&stored).Error)

	require.NoError(t, repo.MarkFailedTx(conn, stored.ID, errors.New(strings.Repeat("y", maxDLQErrorLen*2))))

	require.NoError(t, conn.First(&stored, "id = ?", stored.ID).Error)
	require.NotNil(t, stored.LastError)
	assert.Len(t, *stored.LastError, maxDLQErrorLen)
	assert.Equal(t, 1, stored.AttemptCount)

	missing, err := NewDLQRepository(conn).FindByEventID(context.Background(), stored.ID)
	require.NoError(t, err)
	assert.Nil(t, missing)
}
