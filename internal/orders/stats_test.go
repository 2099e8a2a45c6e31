package orders

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/farmlink-backend/internal/catalog"
	"github.com/angelmondragon/farmlink-backend/internal/users"
	"github.com/angelmondragon/farmlink-backend/pkg/db/sqlitetest"
	"github.com/angelmondragon/farmlink-backend/pkg/enums"
	"github.com/angelmondragon/farmlink-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/farmlink-backend/pkg/errors"
	"github.com/angelmondragon/farmlink-backend/pkg/types"
)

func TestDashboardCountsAndRevenue(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	product := sqlitetest.SeedProduct(t, f.conn, f.farmerID, "Tomatoes", "3.99", 100)
	sqlitetest.SeedProduct(t, f.conn, f.farmerID, "Sold Out", "1.00", 0)

	f.addToCart(t, f.buyer, product.ID, 10)
	approved, err := f.svc.Confirm(ctx, f.buyer, ConfirmInput{})
	require.NoError(t, err)
	_, err = f.svc.Approve(ctx, f.admin, approved.ID)
	require.NoError(t, err)

	f.addToCart(t, f.buyer, product.ID, 2)
	rejected, err := f.svc.Confirm(ctx, f.buyer, ConfirmInput{})
	require.NoError(t, err)
	_, err = f.svc.Reject(ctx, f.admin, rejected.ID, RejectInput{})
	require.NoError(t, err)

	f.addToCart(t, f.buyer, product.ID, 1)
	_, err = f.svc.Confirm(ctx, f.buyer, ConfirmInput{})
	require.NoError(t, err)

	stats, err := NewStatsService(NewRepository(f.conn), catalog.NewRepository(f.conn), users.NewRepository(f.conn))
	require.NoError(t, err)

	dash, err := stats.Dashboard(ctx, f.admin)
	require.NoError(t, err)
	assert.Equal(t, int64(3), dash.TotalOrders)
	assert.Equal(t, int64(1), dash.OrdersByStatus[enums.OrderStatusApproved])
	assert.Equal(t, int64(1), dash.OrdersByStatus[enums.OrderStatusRejected])
	assert.Equal(t, int64(1), dash.OrdersByStatus[enums.OrderStatusPending])
	assert.Equal(t, int64(0), dash.OrdersByStatus[enums.OrderStatusCompleted])
	assert.Equal(t, "39.90", dash.TotalRevenue.StringFixed(2))
	assert.Equal(t, int64(2), dash.Products.Total)
	assert.Equal(t, int64(1), dash.Products.OutOfStock)
	assert.Equal(t, int64(1), dash.Users.TotalFarmers)
	assert.Equal(t, int64(1), dash.Users.ActiveBuyers)

	_, err = stats.Dashboard(ctx, f.buyer)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeForbidden))
}

func TestFarmerAnalyticsCountsSettledLinesOnly(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	farmer := types.Actor{UserID: f.farmerID, Role: enums.UserRoleFarmer}
	tomatoes := sqlitetest.SeedProduct(t, f.conn, f.farmerID, "Tomatoes", "3.99", 100)
	sqlitetest.SeedProduct(t, f.conn, f.farmerID, "Sold Out", "1.00", 0)
	garlic := sqlitetest.SeedProduct(t, f.conn, f.farmerID, "Garlic", "2.00", 5)
	require.NoError(t, f.conn.Model(&models.Product{}).Where("id = ?", garlic.ID).Update("is_approved", false).Error)
	neighbour := sqlitetest.SeedUser(t, f.conn, enums.UserRoleFarmer)
	eggs := sqlitetest.SeedProduct(t, f.conn, neighbour.ID, "Eggs", "6.00", 20)

	f.addToCart(t, f.buyer, tomatoes.ID, 10)
	f.addToCart(t, f.buyer, eggs.ID, 1)
	completed, err := f.svc.Confirm(ctx, f.buyer, ConfirmInput{})
	require.NoError(t, err)
	_, err = f.svc.Approve(ctx, f.admin, completed.ID)
	require.NoError(t, err)
	_, err = f.svc.Complete(ctx, f.admin, completed.ID)
	require.NoError(t, err)

	f.addToCart(t, f.buyer, tomatoes.ID, 2)
	rejected, err := f.svc.Confirm(ctx, f.buyer, ConfirmInput{})
	require.NoError(t, err)
	_, err = f.svc.Reject(ctx, f.admin, rejected.ID, RejectInput{})
	require.NoError(t, err)

	f.addToCart(t, f.buyer, tomatoes.ID, 4)
	approved, err := f.svc.Confirm(ctx, f.buyer, ConfirmInput{})
	require.NoError(t, err)
	_, err = f.svc.Approve(ctx, f.admin, approved.ID)
	require.NoError(t, err)

	f.addToCart(t, f.buyer, tomatoes.ID, 1)
	_, err = f.svc.Confirm(ctx, f.buyer, ConfirmInput{})
	require.NoError(t, err)

	stats, err := NewStatsService(NewRepository(f.conn), catalog.NewRepository(f.conn), users.NewRepository(f.conn))
	require.NoError(t, err)

	got, err := stats.FarmerAnalytics(ctx, farmer)
	require.NoError(t, err)
	assert.Equal(t, catalog.FarmerProductCounts{Total: 3, Approved: 2, Pending: 1, OutOfStock: 1}, got.Products)
	assert.Equal(t, int64(4), got.TotalLineItems)
	assert.Equal(t, "55.86", got.TotalRevenue.StringFixed(2))
	assert.Equal(t, int64(14), got.ItemsSold)

	empty, err := stats.FarmerAnalytics(ctx, types.Actor{UserID: neighbour.ID, Role: enums.UserRoleFarmer})
	require.NoError(t, err)
	assert.Equal(t, int64(1), empty.TotalLineItems)
	assert.Equal(t, "6.00", empty.TotalRevenue.StringFixed(2))

	_, err = stats.FarmerAnalytics(ctx, f.admin)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeForbidden))
}
