package services

import (
	"fmt"
	"io"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/arsuvenir/backend/internal/models"
)

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&models.Partner{}, &models.ProductType{}, &models.ProductGroup{}, &models.Product{},
		&models.Order{}, &models.OrderItem{},
		&models.Realization{}, &models.RealizationItem{}, &models.RealizationPayment{},
	))
	return db
}

func quietLogger() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

func newServices(t *testing.T) (*gorm.DB, *RealizationService, *OrderService) {
	t.Helper()
	db := setupTestDB(t)
	rs := NewRealizationService(db, quietLogger())
	os := NewOrderService(db, quietLogger(), rs)
	return db, rs, os
}

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

// seedConsignment creates a partner, a product priced so the order totals
// exactly total, and a confirmed consignment order with its realization.
func seedConsignment(t *testing.T, db *gorm.DB, rs *RealizationService, os *OrderService, total string) (*models.Order, *models.Realization) {
	t.Helper()
	partner := models.Partner{Name: "Kiosk One", Login: "kiosk-" + t.Name(), PasswordHash: "x"}
	require.NoError(t, db.Create(&partner).Error)
	pt := models.ProductType{Name: "Magnet-" + t.Name()}
	require.NoError(t, db.Create(&pt).Error)
	product := models.Product{Number: "P-" + t.Name(), TypeID: pt.ID, Cost: dec(total)}
	require.NoError(t, db.Create(&product).Error)

	order, err := os.Create(t.Context(), partner.ID, []OrderLine{{ProductID: product.ID, Quantity: 1}}, "", true, false)
	require.NoError(t, err)
	require.True(t, order.TotalPrice.Equal(dec(total)))

	order, err = os.SetStatus(t.Context(), order.ID, models.OrderStatusConfirmed)
	require.NoError(t, err)

	var realization models.Realization
	require.NoError(t, db.Where("order_id = ?", order.ID).First(&realization).Error)
	return order, &realization
}

// requireLedgerConsistent asserts the sum and bounds invariants for one
// realization.
func requireLedgerConsistent(t *testing.T, db *gorm.DB, realizationID uint) {
	t.Helper()
	var r models.Realization
	require.NoError(t, db.Preload("Payments").First(&r, realizationID).Error)
	sum := decimal.Zero
	for _, p := range r.Payments {
		sum = sum.Add(p.Amount)
	}
	require.True(t, r.PaidAmount.Equal(sum), "paid %s != payment sum %s", r.PaidAmount, sum)
	require.True(t, r.PaidAmount.Sign() >= 0)
	require.True(t, r.PaidAmount.LessThanOrEqual(r.TotalCost))
}
