package catalog

import (
	"context"
	"testing"

	"github.com/angelmondragon/uporders-backend/pkg/db/dbtest"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func TestRepositoryLookups(t *testing.T) {
	conn := dbtest.Open(t)
	f := dbtest.Seed(t, conn)
	soup := f.Item(t, conn, "Soup", "5.00")
	tea := f.Item(t, conn, "Tea", "3.00")
	repo := NewRepository(conn)
	ctx := context.Background()

	store, err := repo.FindStore(ctx, f.Store.ID)
	require.NoError(t, err)
	require.NotNil(t, store)
	require.Equal(t, f.Merchant.ID, store.MerchantID)

	missing, err := repo.FindStore(ctx, uuid.New())
	require.NoError(t, err)
	require.Nil(t, missing)

	customer, err := repo.FindCustomer(ctx, f.Customer.ID)
	require.NoError(t, err)
	require.Equal(t, "Cody Consumer", customer.Name)

	items, err := repo.FindItems(ctx, []uuid.UUID{soup.ID, tea.ID, uuid.New()})
	require.NoError(t, err)
	require.Len(t, items, 2)
	require.Equal(t, "5", items[soup.ID].Price.String())

	empty, err := repo.FindItems(ctx, nil)
	require.NoError(t, err)
	require.Empty(t, empty)
}
