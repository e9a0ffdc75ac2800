package main

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/uporders-backend/pkg/db/dbtest"
	"github.com/angelmondragon/uporders-backend/pkg/enums"
	"github.com/angelmondragon/uporders-backend/pkg/logger"
)

func TestRunScenarioNeverOversells(t *testing.T) {
	conn := dbtest.Open(t)
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()

	rep, err := runScenario(ctx, conn, scenario{
		Customers:   12,
		Stock:       5,
		Duplicates:  2,
		Concurrency: 4,
		Price:       "3.25",
		LeaseTTL:    time.Second,
	}, logger.New(logger.Options{Output: io.Discard}))
	require.NoError(t, err)

	assert.Equal(t, int64(36), rep.Published)
	assert.Equal(t, 5, rep.Outcomes[enums.FulfillmentStatusFulfilled])
	assert.Equal(t, 7, rep.Outcomes[enums.FulfillmentStatusRejected])
	assert.Equal(t, 0, rep.Remaining)
	assert.Equal(t, 5, rep.Events[enums.EventOrderFulfilled])
}

func TestRunScenarioWithSpareStock(t *testing.T) {
	conn := dbtest.Open(t)
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()

	rep, err := runScenario(ctx, conn, scenario{
		Customers:   3,
		Stock:       10,
		Concurrency: 2,
		Price:       "1.00",
		LeaseTTL:    time.Second,
	}, logger.New(logger.Options{Output: io.Discard}))
	require.NoError(t, err)
	assert.Equal(t, 7, rep.Remaining)
	assert.Zero(t, rep.Outcomes[enums.FulfillmentStatusRejected])
}

func TestScenarioValidate(t *testing.T) {
	err := scenario{Customers: 0, Stock: -1, Concurrency: 0, Price: "abc"}.validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "customers must be positive")
	assert.Contains(t, err.Error(), "stock must not be negative")
	assert.Contains(t, err.Error(), "price")
}

func TestReportCheckFlagsOversell(t *testing.T) {
	rep := &report{
		Outcomes:  map[enums.FulfillmentStatus]int{enums.FulfillmentStatusFulfilled: 4},
		Events:    map[enums.OutboxEventType]int{enums.EventOrderFulfilled: 4},
		Remaining: -1,
	}
	err := rep.check(scenario{Customers: 4, Stock: 3})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "stock went negative")
	assert.Contains(t, err.Error(), "fulfilled 4 requests, want 3")
}
