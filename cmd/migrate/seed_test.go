package main

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/uporders-backend/pkg/auth"
	"github.com/angelmondragon/uporders-backend/pkg/config"
	"github.com/angelmondragon/uporders-backend/pkg/db/dbtest"
	"github.com/angelmondragon/uporders-backend/pkg/db/models"
)

func TestSeedDemoCreatesStockedStoreAndToken(t *testing.T) {
	conn := dbtest.Open(t)
	jwtCfg := config.JWTConfig{Secret: "seed-secret", Issuer: "uporders", ExpirationMinutes: 60}

	result, err := seedDemo(context.Background(), conn, jwtCfg, time.Now())
	require.NoError(t, err)
	require.Len(t, result.Items, len(demoMenu))
	assert.Equal(t, int64(2), dbtest.Count(t, conn, &models.Customer{}))
	assert.Equal(t, int64(len(demoMenu)), dbtest.Count(t, conn, &models.StoreItem{}))

	for i, item := range result.Items {
		assert.Equal(t, demoMenu[i].stock, dbtest.Available(t, conn, result.StoreID, item.ID))
	}

	claims, err := auth.ParseAccessToken(jwtCfg, result.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, result.CustomerID, claims.CustomerID)
}

func TestSeedDemoWithoutSecretSkipsToken(t *testing.T) {
	conn := dbtest.Open(t)
	result, err := seedDemo(context.Background(), conn, config.JWTConfig{}, time.Now())
	require.NoError(t, err)
	assert.Empty(t, result.AccessToken)
}
