package cart

import (
	"context"
	"math"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/angelmondragon/farmlink-backend/internal/catalog"
	"github.com/angelmondragon/farmlink-backend/pkg/db/models"
	"github.com/angelmondragon/farmlink-backend/pkg/db/sqlitetest"
	"github.com/angelmondragon/farmlink-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/farmlink-backend/pkg/errors"
	"github.com/angelmondragon/farmlink-backend/pkg/types"
)

type countingRecorder struct {
	actions []enums.ActivityAction
}

func (c *countingRecorder) Record(_ context.Context, _ types.Actor, action enums.ActivityAction, _ string, _ enums.ActivityEntityType, _ uuid.UUID) {
	c.actions = append(c.actions, action)
}

type cartFixture struct {
	svc      Service
	conn     *gorm.DB
	buyer    types.Actor
	farmerID uuid.UUID
	recorder *countingRecorder
}

func newCartFixture(t *testing.T) cartFixture {
	t.Helper()
	client, conn := sqlitetest.OpenClient(t)
	recorder := &countingRecorder{}
	svc, err := NewService(NewRepository(conn), client, catalog.NewStore(catalog.NewRepository(conn)), recorder)
	require.NoError(t, err)
	buyer := sqlitetest.SeedUser(t, conn, enums.UserRoleBuyer)
	farmer := sqlitetest.SeedUser(t, conn, enums.UserRoleFarmer)
	return cartFixture{
		svc:      svc,
		conn:     conn,
		buyer:    types.Actor{UserID: buyer.ID, Role: enums.UserRoleBuyer},
		farmerID: farmer.ID,
		recorder: recorder,
	}
}

func TestAddItemCombinesQuantities(t *testing.T) {
	f := newCartFixture(t)
	product := sqlitetest.SeedProduct(t, f.conn, f.farmerID, "Tomatoes", "3.99", 10)
	ctx := context.Background()

	_, err := f.svc.AddItem(ctx, f.buyer, AddItemInput{ProductID: product.ID, Quantity: 4})
	require.NoError(t, err)
	cart, err := f.svc.AddItem(ctx, f.buyer, AddItemInput{ProductID: product.ID, Quantity: 6})
	require.NoError(t, err)

	require.Len(t, cart.Items, 1)
	assert.Equal(t, 10, cart.Items[0].Quantity)
	assert.True(t, cart.Total.Equal(decimal.RequireFromString("39.90")))
	assert.Equal(t, []enums.ActivityAction{enums.ActivityAddToCart, enums.ActivityAddToCart}, f.recorder.actions)
}

func TestAddItemOverStockLeavesLineUnchanged(t *testing.T) {
	f := newCartFixture(t)
	product := sqlitetest.SeedProduct(t, f.conn, f.farmerID, "Eggs", "5.99", 5)
	ctx := context.Background()

	_, err := f.svc.AddItem(ctx, f.buyer, AddItemInput{ProductID: product.ID, Quantity: 3})
	require.NoError(t, err)

	_, err = f.svc.AddItem(ctx, f.buyer, AddItemInput{ProductID: product.ID, Quantity: 3})
	require.Error(t, err)
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeInsufficientStock, typed.Code())
	shortfall, ok := typed.Details().(pkgerrors.StockShortfall)
	require.True(t, ok)
	assert.Equal(t, 6, shortfall.Requested)
	assert.Equal(t, 5, shortfall.Available)

	cart, err := f.svc.GetCart(ctx, f.buyer)
	require.NoError(t, err)
	require.Len(t, cart.Items, 1)
	assert.Equal(t, 3, cart.Items[0].Quantity)
	assert.Equal(t, 5, sqlitetest.ReloadProduct(t, f.conn, product.ID).Quantity)
}

func TestAddItemRejectsUnavailableProducts(t *testing.T) {
	f := newCartFixture(t)
	ctx := context.Background()

	hidden := sqlitetest.SeedProduct(t, f.conn, f.farmerID, "Hidden", "1.00", 5)
	require.NoError(t, f.conn.Model(&models.Product{}).Where("id = ?", hidden.ID).Update("is_approved", false).Error)
	_, err := f.svc.AddItem(ctx, f.buyer, AddItemInput{ProductID: hidden.ID, Quantity: 1})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))

	_, err = f.svc.AddItem(ctx, f.buyer, AddItemInput{ProductID: uuid.New(), Quantity: 1})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))

	empty := sqlitetest.SeedProduct(t, f.conn, f.farmerID, "Empty", "1.00", 0)
	_, err = f.svc.AddItem(ctx, f.buyer, AddItemInput{ProductID: empty.ID, Quantity: 1})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeOutOfStock))

	_, err = f.svc.AddItem(ctx, f.buyer, AddItemInput{ProductID: empty.ID, Quantity: 0})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
}

func TestUpdateItemValidatesQuantity(t *testing.T) {
	f := newCartFixture(t)
	product := sqlitetest.SeedProduct(t, f.conn, f.farmerID, "Milk", "2.50", 4)
	ctx := context.Background()

	cart, err := f.svc.AddItem(ctx, f.buyer, AddItemInput{ProductID: product.ID, Quantity: 1})
	require.NoError(t, err)
	itemID := cart.Items[0].ID

	_, err = f.svc.UpdateItem(ctx, f.buyer, itemID, 0)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))

	_, err = f.svc.UpdateItem(ctx, f.buyer, itemID, 5)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeInsufficientStock))

	cart, err = f.svc.UpdateItem(ctx, f.buyer, itemID, 4)
	require.NoError(t, err)
	assert.Equal(t, 4, cart.Items[0].Quantity)
	assert.True(t, cart.Total.Equal(decimal.RequireFromString("10")))
}

func TestRemoveItemTwiceIsNotFound(t *testing.T) {
	f := newCartFixture(t)
	product := sqlitetest.SeedProduct(t, f.conn, f.farmerID, "Corn", "0.75", 20)
	ctx := context.Background()

	cart, err := f.svc.AddItem(ctx, f.buyer, AddItemInput{ProductID: product.ID, Quantity: 2})
	require.NoError(t, err)
	itemID := cart.Items[0].ID

	cart, err = f.svc.RemoveItem(ctx, f.buyer, itemID)
	require.NoError(t, err)
	assert.Empty(t, cart.Items)

	_, err = f.svc.RemoveItem(ctx, f.buyer, itemID)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))
}

func TestItemsOfAnotherBuyerAreHidden(t *testing.T) {
	f := newCartFixture(t)
	product := sqlitetest.SeedProduct(t, f.conn, f.farmerID, "Beans", "1.10", 20)
	ctx := context.Background()

	cart, err := f.svc.AddItem(ctx, f.buyer, AddItemInput{ProductID: product.ID, Quantity: 2})
	require.NoError(t, err)

	other := sqlitetest.SeedUser(t, f.conn, enums.UserRoleBuyer)
	otherActor := types.Actor{UserID: other.ID, Role: enums.UserRoleBuyer}
	_, err = f.svc.RemoveItem(ctx, otherActor, cart.Items[0].ID)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))
}

func TestClearEmptiesCart(t *testing.T) {
	f := newCartFixture(t)
	a := sqlitetest.SeedProduct(t, f.conn, f.farmerID, "Apples", "2.00", 20)
	b := sqlitetest.SeedProduct(t, f.conn, f.farmerID, "Pears", "3.00", 20)
	ctx := context.Background()

	_, err := f.svc.AddItem(ctx, f.buyer, AddItemInput{ProductID: a.ID, Quantity: 2})
	require.NoError(t, err)
	_, err = f.svc.AddItem(ctx, f.buyer, AddItemInput{ProductID: b.ID, Quantity: 1})
	require.NoError(t, err)

	require.NoError(t, f.svc.Clear(ctx, f.buyer))
	cart, err := f.svc.GetCart(ctx, f.buyer)
	require.NoError(t, err)
	assert.Empty(t, cart.Items)
	assert.True(t, cart.Total.IsZero())
	assert.Equal(t, 20, sqlitetest.ReloadProduct(t, f.conn, a.ID).Quantity)
}

func TestCartRequiresBuyerRole(t *testing.T) {
	f := newCartFixture(t)
	_, err := f.svc.GetCart(context.Background(), types.Actor{UserID: f.farmerID, Role: enums.UserRoleFarmer})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeForbidden))
}

func TestAddItemHugeQuantityReportsShortfall(t *testing.T) {
	f := newCartFixture(t)
	product := sqlitetest.SeedProduct(t, f.conn, f.farmerID, "Honey", "8.00", 10)
	ctx := context.Background()

	_, err := f.svc.AddItem(ctx, f.buyer, AddItemInput{ProductID: product.ID, Quantity: 1})
	require.NoError(t, err)

	_, err = f.svc.AddItem(ctx, f.buyer, AddItemInput{ProductID: product.ID, Quantity: math.MaxInt})
	typed := pkgerrors.As(err)
	require.NotNil(t, typed, "got %v", err)
	assert.Equal(t, pkgerrors.CodeInsufficientStock, typed.Code())
	shortfall, ok := typed.Details().(pkgerrors.StockShortfall)
	require.True(t, ok)
	assert.Equal(t, math.MaxInt, shortfall.Requested)
	assert.Equal(t, 10, shortfall.Available)

	cart, err := f.svc.GetCart(ctx, f.buyer)
	require.NoError(t, err)
	require.Len(t, cart.Items, 1)
	assert.Equal(t, 1, cart.Items[0].Quantity)
}

type lockCountingRepo struct {
	Repository
	locks *int
}

func (r lockCountingRepo) WithTx(tx *gorm.DB) Repository {
	return lockCountingRepo{Repository: r.Repository.WithTx(tx), locks: r.locks}
}

func (r lockCountingRepo) FindByBuyerForUpdate(ctx context.Context, buyerID uuid.UUID) (*models.Cart, error) {
	*r.locks++
	return r.Repository.FindByBuyerForUpdate(ctx, buyerID)
}

func TestAddItemHoldsCartLock(t *testing.T) {
	client, conn := sqlitetest.OpenClient(t)
	locks := 0
	svc, err := NewService(lockCountingRepo{Repository: NewRepository(conn), locks: &locks}, client, catalog.NewStore(catalog.NewRepository(conn)), nil)
	require.NoError(t, err)
	buyer := sqlitetest.SeedUser(t, conn, enums.UserRoleBuyer)
	farmer := sqlitetest.SeedUser(t, conn, enums.UserRoleFarmer)
	product := sqlitetest.SeedProduct(t, conn, farmer.ID, "Walnuts", "4.00", 10)
	actor := types.Actor{UserID: buyer.ID, Role: enums.UserRoleBuyer}

	for range 2 {
		_, err := svc.AddItem(context.Background(), actor, AddItemInput{ProductID: product.ID, Quantity: 2})
		require.NoError(t, err)
	}
	assert.Equal(t, 2, locks)
}
