package repo

import (
	"context"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/avdeev/shop_orders/internal/models"
)

func newTestRepo(t *testing.T) *GormRepo {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{TranslateError: true})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, db.AutoMigrate(&models.Product{}, &models.Order{}, &models.OrderItem{}))
	return &GormRepo{DB: db}
}

func TestPaidOrderRejectsMutation(t *testing.T) {
	r := newTestRepo(t)
	ctx := context.Background()

	order := models.Order{UserID: uuid.New(), IsPaid: true, OrderCode: "ABCDEF"}
	require.NoError(t, r.DB.Create(&order).Error)

	productID := uuid.New()
	require.ErrorIs(t, r.AddItem(ctx, order.ID, productID), ErrOrderPaid)
	require.ErrorIs(t, r.SetItemQty(ctx, order.ID, productID, 2), ErrOrderPaid)
	require.ErrorIs(t, r.RemoveItem(ctx, order.ID, productID), ErrOrderPaid)
}

func TestMutationOnMissingOrder(t *testing.T) {
	r := newTestRepo(t)

	err := r.AddItem(context.Background(), uuid.New(), uuid.New())
	require.ErrorIs(t, err, gorm.ErrRecordNotFound)
}

func TestMutationsBumpVersion(t *testing.T) {
	r := newTestRepo(t)
	ctx := context.Background()
	userID := uuid.New()
	productID := uuid.New()

	cart, err := r.GetCart(ctx, userID)
	require.NoError(t, err)
	require.EqualValues(t, 0, cart.Version)

	require.NoError(t, r.AddItem(ctx, cart.ID, productID))
	require.NoError(t, r.SetItemQty(ctx, cart.ID, productID, 4))

	current, err := r.GetOrder(ctx, cart.ID)
	require.NoError(t, err)
	require.EqualValues(t, 2, current.Version)
	require.True(t, current.UpdatedAt.After(cart.UpdatedAt) || current.UpdatedAt.Equal(cart.UpdatedAt))
}

func TestFinalizeOrder(t *testing.T) {
	r := newTestRepo(t)
	ctx := context.Background()
	userID := uuid.New()
	productID := uuid.New()

	cart, err := r.GetCart(ctx, userID)
	require.NoError(t, err)
	require.NoError(t, r.AddItem(ctx, cart.ID, productID))

	cart, err = r.GetOrder(ctx, cart.ID)
	require.NoError(t, err)

	prices := map[uuid.UUID]float64{productID: 9.5}
	require.NoError(t, r.FinalizeOrder(ctx, cart, "ABC123", prices))

	paid, err := r.GetOrder(ctx, cart.ID)
	require.NoError(t, err)
	require.True(t, paid.IsPaid)
	require.Equal(t, "ABC123", paid.OrderCode)
	require.Equal(t, 9.5, paid.Items[0].UnitPrice)
}

func TestFinalizeOrderStaleVersion(t *testing.T) {
	r := newTestRepo(t)
	ctx := context.Background()
	userID := uuid.New()
	productID := uuid.New()

	cart, err := r.GetCart(ctx, userID)
	require.NoError(t, err)
	require.NoError(t, r.AddItem(ctx, cart.ID, productID))

	stale, err := r.GetOrder(ctx, cart.ID)
	require.NoError(t, err)

	// a concurrent mutation after the read makes the snapshot stale
	require.NoError(t, r.AddItem(ctx, cart.ID, productID))

	err = r.FinalizeOrder(ctx, stale, "ABC123", nil)
	require.ErrorIs(t, err, ErrStaleOrder)

	current, err := r.GetOrder(ctx, cart.ID)
	require.NoError(t, err)
	require.False(t, current.IsPaid)
}

func TestFinalizeOrderAlreadyPaid(t *testing.T) {
	r := newTestRepo(t)
	ctx := context.Background()
	userID := uuid.New()
	productID := uuid.New()

	cart, err := r.GetCart(ctx, userID)
	require.NoError(t, err)
	require.NoError(t, r.AddItem(ctx, cart.ID, productID))

	cart, err = r.GetOrder(ctx, cart.ID)
	require.NoError(t, err)
	require.NoError(t, r.FinalizeOrder(ctx, cart, "ABC123", nil))

	err = r.FinalizeOrder(ctx, cart, "ABC123", nil)
	require.ErrorIs(t, err, ErrOrderPaid)
}

func TestGetCartAfterFinalizeOpensNewSession(t *testing.T) {
	r := newTestRepo(t)
	ctx := context.Background()
	userID := uuid.New()
	productID := uuid.New()

	first, err := r.GetCart(ctx, userID)
	require.NoError(t, err)
	require.NoError(t, r.AddItem(ctx, first.ID, productID))

	first, err = r.GetOrder(ctx, first.ID)
	require.NoError(t, err)
	require.NoError(t, r.FinalizeOrder(ctx, first, "ABC123", nil))

	second, err := r.GetCart(ctx, userID)
	require.NoError(t, err)
	require.NotEqual(t, first.ID, second.ID)
	require.Empty(t, second.Items)

	paid, err := r.ListPaid(ctx, userID)
	require.NoError(t, err)
	require.Len(t, paid, 1)
	require.Equal(t, first.ID, paid[0].ID)
}
