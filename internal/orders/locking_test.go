package orders

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/angelmondragon/farmlink-backend/internal/cart"
	"github.com/angelmondragon/farmlink-backend/internal/catalog"
	"github.com/angelmondragon/farmlink-backend/internal/profiles"
	"github.com/angelmondragon/farmlink-backend/internal/reservation"
	dbpkg "github.com/angelmondragon/farmlink-backend/pkg/db"
	"github.com/angelmondragon/farmlink-backend/pkg/db/models"
	"github.com/angelmondragon/farmlink-backend/pkg/db/sqlitetest"
	pkgerrors "github.com/angelmondragon/farmlink-backend/pkg/errors"
	"github.com/angelmondragon/farmlink-backend/pkg/outbox"
)

// callLog collects the row lookups a service makes, in order.
type callLog struct {
	calls []string
}

func (l *callLog) add(name string) { l.calls = append(l.calls, name) }

type recordingOrders struct {
	Repository
	log *callLog
}

func (r recordingOrders) WithTx(tx *gorm.DB) Repository {
	return recordingOrders{Repository: r.Repository.WithTx(tx), log: r.log}
}

func (r recordingOrders) FindByID(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	r.log.add("FindByID")
	return r.Repository.FindByID(ctx, id)
}

func (r recordingOrders) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	r.log.add("FindByIDForUpdate")
	return r.Repository.FindByIDForUpdate(ctx, id)
}

type recordingCarts struct {
	cart.Repository
	log *callLog
}

func (r recordingCarts) WithTx(tx *gorm.DB) cart.Repository {
	return recordingCarts{Repository: r.Repository.WithTx(tx), log: r.log}
}

func (r recordingCarts) FindByBuyer(ctx context.Context, buyerID uuid.UUID) (*models.Cart, error) {
	r.log.add("FindByBuyer")
	return r.Repository.FindByBuyer(ctx, buyerID)
}

func (r recordingCarts) FindByBuyerForUpdate(ctx context.Context, buyerID uuid.UUID) (*models.Cart, error) {
	r.log.add("FindByBuyerForUpdate")
	return r.Repository.FindByBuyerForUpdate(ctx, buyerID)
}

func newRecordingService(t *testing.T, f fixture, orderLog, cartLog *callLog) Service {
	t.Helper()
	store := catalog.NewStore(catalog.NewRepository(f.conn))
	engine, err := reservation.NewEngine(store, nil)
	require.NoError(t, err)
	svc, err := NewService(
		recordingOrders{Repository: NewRepository(f.conn), log: orderLog},
		dbpkg.Wrap(f.conn),
		recordingCarts{Repository: cart.NewRepository(f.conn), log: cartLog},
		store,
		profiles.NewRepository(f.conn),
		engine,
		outbox.NewService(outbox.NewRepository(f.conn), nil),
		nil,
		nil,
	)
	require.NoError(t, err)
	return svc
}

func TestConfirmLocksTheBuyerCart(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	var orderLog, cartLog callLog
	svc := newRecordingService(t, f, &orderLog, &cartLog)

	product := sqlitetest.SeedProduct(t, f.conn, f.farmerID, "Plums", "2.50", 8)
	f.addToCart(t, f.buyer, product.ID, 3)

	_, err := svc.Confirm(ctx, f.buyer, ConfirmInput{})
	require.NoError(t, err)
	assert.Equal(t, []string{"FindByBuyerForUpdate"}, cartLog.calls)

	// A second confirm behind the same lock finds the cart already drained.
	_, err = svc.Confirm(ctx, f.buyer, ConfirmInput{})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeEmptyCart), "got %v", err)

	var count int64
	require.NoError(t, f.conn.Model(&models.Order{}).Where("buyer_id = ?", f.buyer.UserID).Count(&count).Error)
	assert.EqualValues(t, 1, count)
}

func TestTransitionsReadTheOrderUnderRowLock(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	var orderLog, cartLog callLog
	svc := newRecordingService(t, f, &orderLog, &cartLog)

	product := sqlitetest.SeedProduct(t, f.conn, f.farmerID, "Pears", "3.00", 20)
	f.addToCart(t, f.buyer, product.ID, 2)
	approved, err := svc.Confirm(ctx, f.buyer, ConfirmInput{})
	require.NoError(t, err)
	f.addToCart(t, f.buyer, product.ID, 2)
	rejected, err := svc.Confirm(ctx, f.buyer, ConfirmInput{})
	require.NoError(t, err)

	cases := []struct {
		name string
		run  func() error
	}{
		{"approve", func() error { _, err := svc.Approve(ctx, f.admin, approved.ID); return err }},
		{"complete", func() error { _, err := svc.Complete(ctx, f.admin, approved.ID); return err }},
		{"reject", func() error { _, err := svc.Reject(ctx, f.admin, rejected.ID, RejectInput{}); return err }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			orderLog.calls = nil
			require.NoError(t, tc.run())
			assert.Equal(t, []string{"FindByIDForUpdate"}, orderLog.calls)
		})
	}
}
