package service

import (
	"context"
	"sync"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/avdeev/shop_orders/internal/models"
	"github.com/avdeev/shop_orders/internal/payment"
	"github.com/avdeev/shop_orders/internal/repo"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{TranslateError: true})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	// a pooled :memory: sqlite hands every connection its own database
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, db.AutoMigrate(&models.Product{}, &models.Order{}, &models.OrderItem{}))
	return db
}

type fakeGateway struct {
	mu            sync.Mutex
	calls         int
	lastReq       payment.ConfirmRequest
	declineReason string
	err           error
	onConfirm     func()
}

func (g *fakeGateway) ConfirmPayment(ctx context.Context, req payment.ConfirmRequest) (*payment.Confirmation, error) {
	g.mu.Lock()
	g.calls++
	g.lastReq = req
	g.mu.Unlock()

	if g.onConfirm != nil {
		g.onConfirm()
	}
	if g.declineReason != "" {
		return nil, &payment.DeclineError{Reason: g.declineReason}
	}
	if g.err != nil {
		return nil, g.err
	}
	return &payment.Confirmation{TransactionID: "txn_test_1"}, nil
}

func (g *fakeGateway) callCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.calls
}

type testEnv struct {
	DB       *gorm.DB
	Repo     *repo.GormRepo
	Svc      *OrderService
	Checkout *CheckoutService
	Gateway  *fakeGateway
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	db := newTestDB(t)
	r := &repo.GormRepo{DB: db}
	gw := &fakeGateway{}

	return &testEnv{
		DB:      db,
		Repo:    r,
		Svc:     &OrderService{Repo: r, Catalog: r},
		Gateway: gw,
		Checkout: &CheckoutService{
			Repo:     r,
			Catalog:  r,
			Gateway:  gw,
			Currency: "USD",
		},
	}
}

func seedProduct(t *testing.T, db *gorm.DB, name string, price float64) uuid.UUID {
	t.Helper()
	p := models.Product{Name: name, Price: price}
	require.NoError(t, db.Create(&p).Error)
	return p.ID
}
