package fulfillment

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/angelmondragon/uporders-backend/pkg/db/dbtest"
	"github.com/angelmondragon/uporders-backend/pkg/db/models"
	"github.com/angelmondragon/uporders-backend/pkg/enums"
	"github.com/angelmondragon/uporders-backend/pkg/queue"
	"github.com/angelmondragon/uporders-backend/pkg/queue/memqueue"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type settled struct {
	acked  bool
	nacked bool
}

func delivery(t *testing.T, body []byte) (*queue.Delivery, *settled) {
	t.Helper()
	s := &settled{}
	d := queue.NewDelivery(queue.Message{ID: "m-1", Data: body}, 1,
		func() { s.acked = true },
		func() { s.nacked = true },
	)
	return d, s
}

func mustJSON(t *testing.T, v any) []byte {
	t.Helper()
	data, err := json.Marshal(v)
	require.NoError(t, err)
	return data
}

func TestHandleAcksMalformedPayload(t *testing.T) {
	h := newHarness(t, nil)

	d, s := delivery(t, []byte("{oops"))
	h.worker.Handle(context.Background(), d)
	assert.True(t, s.acked)
	assert.False(t, s.nacked)
}

func TestHandleAcksTerminalOutcomes(t *testing.T) {
	h := newHarness(t, nil)
	x := h.fixture.Item(t, h.conn, "X", "5.00")
	h.fixture.StockItem(t, h.conn, x.ID, 1)

	d, s := delivery(t, mustJSON(t, h.request("ok", unit(x, 1))))
	h.worker.Handle(context.Background(), d)
	assert.True(t, s.acked, "fulfilled must ack")

	d, s = delivery(t, mustJSON(t, h.request("sold-out", unit(x, 1))))
	h.worker.Handle(context.Background(), d)
	assert.True(t, s.acked, "rejected must ack")
}

func TestHandleNacksFailures(t *testing.T) {
	emitter := &flakyEmitter{failures: -1}
	h := newHarness(t, func(o *Options) {
		emitter.Emitter = o.Outbox
		o.Outbox = emitter
	})
	x := h.fixture.Item(t, h.conn, "X", "5.00")
	h.fixture.StockItem(t, h.conn, x.ID, 1)

	d, s := delivery(t, mustJSON(t, h.request("fails", unit(x, 1))))
	h.worker.Handle(context.Background(), d)
	assert.True(t, s.nacked)
	assert.False(t, s.acked)
}

func TestRunRedeliversTransientFailures(t *testing.T) {
	emitter := &flakyEmitter{failures: 2}
	h := newHarness(t, func(o *Options) {
		emitter.Emitter = o.Outbox
		o.Outbox = emitter
	})
	x := h.fixture.Item(t, h.conn, "X", "5.00")
	h.fixture.StockItem(t, h.conn, x.ID, 2)

	q := memqueue.New(16, 4)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	bodies := [][]byte{
		mustJSON(t, h.request("run-1", unit(x, 1))),
		mustJSON(t, h.request("run-2", unit(x, 1))),
		mustJSON(t, h.request("run-3", unit(x, 1))),
		mustJSON(t, h.request("run-1", unit(x, 1))),
	}
	for _, body := range bodies {
		require.NoError(t, q.Publish(ctx, queue.Message{Data: body}))
	}

	runCtx, stop := context.WithCancel(ctx)
	done := make(chan error, 1)
	go func() { done <- h.worker.Run(runCtx, q) }()

	require.NoError(t, q.WaitIdle(ctx))
	stop()
	require.NoError(t, <-done)

	assert.Equal(t, 0, dbtest.Available(t, h.conn, h.fixture.Store.ID, x.ID))
	assert.Equal(t, int64(2), dbtest.Count(t, h.conn, &models.Order{}))
	assert.Greater(t, q.Delivered(), int64(len(bodies)))

	var outcomes []models.FulfillmentOutcome
	require.NoError(t, h.conn.Find(&outcomes).Error)
	require.Len(t, outcomes, 3)
	statuses := map[enums.FulfillmentStatus]int{}
	for _, o := range outcomes {
		statuses[o.Status]++
	}
	assert.Equal(t, 2, statuses[enums.FulfillmentStatusFulfilled])
	assert.Equal(t, 1, statuses[enums.FulfillmentStatusRejected])
}
