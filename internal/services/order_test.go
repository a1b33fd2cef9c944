package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arsuvenir/backend/internal/models"
)

func TestConfirmSpawnsRealization(t *testing.T) {
	db, rs, os := newServices(t)
	order, r := seedConsignment(t, db, rs, os, "750")

	assert.Equal(t, models.OrderStatusConfirmed, order.Status)
	assert.True(t, r.TotalCost.Equal(order.TotalPrice))
	assert.True(t, r.PaidAmount.IsZero())
	assert.Equal(t, models.RealizationStatusPending, r.Status)

	// items cloned with product cost captured
	var items []models.RealizationItem
	require.NoError(t, db.Where("realization_id = ?", r.ID).Find(&items).Error)
	require.Len(t, items, 1)
	assert.True(t, items[0].UnitCost.Equal(dec("750")))
}

func TestConfirmIsIdempotent(t *testing.T) {
	db, rs, os := newServices(t)
	order, r := seedConsignment(t, db, rs, os, "750")

	_, err := os.SetStatus(t.Context(), order.ID, models.OrderStatusNew)
	require.NoError(t, err)
	_, err = os.SetStatus(t.Context(), order.ID, models.OrderStatusConfirmed)
	require.NoError(t, err)
	_ = r

	var count int64
	require.NoError(t, db.Model(&models.Realization{}).Where("order_id = ?", order.ID).Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

func TestRegressToNewDeletesRealization(t *testing.T) {
	db, rs, os := newServices(t)
	order, r := seedConsignment(t, db, rs, os, "750")

	_, err := os.SetStatus(t.Context(), order.ID, models.OrderStatusNew)
	require.NoError(t, err)

	var count int64
	require.NoError(t, db.Model(&models.Realization{}).Where("id = ?", r.ID).Count(&count).Error)
	assert.Equal(t, int64(0), count)
	require.NoError(t, db.Model(&models.RealizationItem{}).Where("realization_id = ?", r.ID).Count(&count).Error)
	assert.Equal(t, int64(0), count)
}

func TestCancelPreservesRealization(t *testing.T) {
	db, rs, os := newServices(t)
	order, r := seedConsignment(t, db, rs, os, "1000")
	_, err := rs.AddPayment(t.Context(), r.ID, dec("200"), "", nil)
	require.NoError(t, err)

	_, err = os.SetStatus(t.Context(), order.ID, models.OrderStatusCancelled)
	require.NoError(t, err)

	var got models.Realization
	require.NoError(t, db.Preload("Items").Preload("Payments").First(&got, r.ID).Error)
	assert.Equal(t, models.RealizationStatusCancelled, got.Status)
	assert.True(t, got.PaidAmount.Equal(dec("200")))
	assert.Len(t, got.Items, 1)
	assert.Len(t, got.Payments, 1)
}

func TestCancelledOrderBackToNewKeepsCancelledLedger(t *testing.T) {
	db, rs, os := newServices(t)
	order, r := seedConsignment(t, db, rs, os, "1000")
	_, err := os.SetStatus(t.Context(), order.ID, models.OrderStatusCancelled)
	require.NoError(t, err)

	// CONFIRMED→NEW deletes, but a cancelled ledger is an audit record
	_, err = os.SetStatus(t.Context(), order.ID, models.OrderStatusNew)
	require.NoError(t, err)
	var count int64
	require.NoError(t, db.Model(&models.Realization{}).Where("id = ?", r.ID).Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

func TestReviveRederivesStatus(t *testing.T) {
	db, rs, os := newServices(t)
	order, r := seedConsignment(t, db, rs, os, "1000")
	_, err := rs.AddPayment(t.Context(), r.ID, dec("400"), "", nil)
	require.NoError(t, err)

	_, err = os.SetStatus(t.Context(), order.ID, models.OrderStatusCancelled)
	require.NoError(t, err)
	_, err = os.SetStatus(t.Context(), order.ID, models.OrderStatusConfirmed)
	require.NoError(t, err)

	// revival recomputes from amounts instead of forcing PENDING
	var got models.Realization
	require.NoError(t, db.First(&got, r.ID).Error)
	assert.Equal(t, models.RealizationStatusPartial, got.Status)
	assert.True(t, got.PaidAmount.Equal(dec("400")))
}

func TestDirectPaidRejectedForConsignment(t *testing.T) {
	db, rs, os := newServices(t)
	order, _ := seedConsignment(t, db, rs, os, "1000")

	_, err := os.SetStatus(t.Context(), order.ID, models.OrderStatusPaid)
	assert.ErrorIs(t, err, ErrInvalidTransition)

	var got models.Order
	require.NoError(t, db.First(&got, order.ID).Error)
	assert.Equal(t, models.OrderStatusConfirmed, got.Status)
}

func TestDirectPaidAllowedForOrdinaryOrder(t *testing.T) {
	db, rs, os := newServices(t)
	partner := models.Partner{Name: "Shop", Login: "shop", PasswordHash: "x"}
	require.NoError(t, db.Create(&partner).Error)
	pt := models.ProductType{Name: "Postcard"}
	require.NoError(t, db.Create(&pt).Error)
	product := models.Product{Number: "P-1", TypeID: pt.ID, Cost: dec("50")}
	require.NoError(t, db.Create(&product).Error)
	_ = rs

	order, err := os.Create(t.Context(), partner.ID, []OrderLine{{ProductID: product.ID, Quantity: 2}}, "", false, false)
	require.NoError(t, err)
	require.True(t, order.TotalPrice.Equal(dec("100")))

	order, err = os.SetStatus(t.Context(), order.ID, models.OrderStatusPaid)
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusPaid, order.Status)

	var count int64
	require.NoError(t, db.Model(&models.Realization{}).Count(&count).Error)
	assert.Equal(t, int64(0), count)
}

func TestSetStatusErrors(t *testing.T) {
	_, _, os := newServices(t)
	_, err := os.SetStatus(t.Context(), 42, models.OrderStatusConfirmed)
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = os.SetStatus(t.Context(), 42, models.OrderStatus("SHIPPED"))
	assert.ErrorIs(t, err, ErrInvalidTransition)
}

func TestCreateWithPriceOverride(t *testing.T) {
	db, rs, os := newServices(t)
	partner := models.Partner{Name: "Shop", Login: "shop2", PasswordHash: "x"}
	require.NoError(t, db.Create(&partner).Error)
	pt := models.ProductType{Name: "Figurine"}
	require.NoError(t, db.Create(&pt).Error)
	product := models.Product{Number: "F-1", TypeID: pt.ID, Cost: dec("80")}
	require.NoError(t, db.Create(&product).Error)
	_ = rs

	override := dec("65")
	order, err := os.Create(t.Context(), partner.ID, []OrderLine{{ProductID: product.ID, Quantity: 3, UnitPrice: &override}}, "negotiated", false, false)
	require.NoError(t, err)
	assert.True(t, order.TotalPrice.Equal(dec("195")))
	require.Len(t, order.Items, 1)
	assert.True(t, order.Items[0].UnitPrice.Equal(dec("65")))
}

func TestCreateValidation(t *testing.T) {
	db, rs, os := newServices(t)
	partner := models.Partner{Name: "Shop", Login: "shop3", PasswordHash: "x"}
	require.NoError(t, db.Create(&partner).Error)
	_ = rs

	_, err := os.Create(t.Context(), partner.ID, nil, "", false, false)
	assert.ErrorIs(t, err, ErrInvalidInput)
	_, err = os.Create(t.Context(), partner.ID, []OrderLine{{ProductID: 0, Quantity: 1}}, "", false, false)
	assert.ErrorIs(t, err, ErrInvalidInput)
	_, err = os.Create(t.Context(), partner.ID, []OrderLine{{ProductID: 999, Quantity: 1}}, "", false, false)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestAdminCreateConfirmedConsignment(t *testing.T) {
	db, rs, os := newServices(t)
	partner := models.Partner{Name: "Shop", Login: "shop4", PasswordHash: "x"}
	require.NoError(t, db.Create(&partner).Error)
	pt := models.ProductType{Name: "Magnet"}
	require.NoError(t, db.Create(&pt).Error)
	product := models.Product{Number: "M-1", TypeID: pt.ID, Cost: dec("30")}
	require.NoError(t, db.Create(&product).Error)
	_ = rs

	order, err := os.Create(t.Context(), partner.ID, []OrderLine{{ProductID: product.ID, Quantity: 10}}, "", true, true)
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusConfirmed, order.Status)

	var r models.Realization
	require.NoError(t, db.Where("order_id = ?", order.ID).First(&r).Error)
	assert.True(t, r.TotalCost.Equal(dec("300")))
	assert.Equal(t, models.RealizationStatusPending, r.Status)
}

func TestReviveFullyCoveredLedgerRestoresPaidOrder(t *testing.T) {
	db, rs, os := newServices(t)
	order, r := seedConsignment(t, db, rs, os, "1000")
	_, err := rs.AddPayment(t.Context(), r.ID, dec("1000"), "", nil)
	require.NoError(t, err)

	var paid models.Order
	require.NoError(t, db.First(&paid, order.ID).Error)
	require.Equal(t, models.OrderStatusPaid, paid.Status)

	_, err = os.SetStatus(t.Context(), order.ID, models.OrderStatusCancelled)
	require.NoError(t, err)
	updated, err := os.SetStatus(t.Context(), order.ID, models.OrderStatusConfirmed)
	require.NoError(t, err)

	// the revived ledger is already covered, so the order must come back
	// PAID, not CONFIRMED
	assert.Equal(t, models.OrderStatusPaid, updated.Status)
	var gotOrder models.Order
	require.NoError(t, db.First(&gotOrder, order.ID).Error)
	assert.Equal(t, models.OrderStatusPaid, gotOrder.Status)
	var gotRealization models.Realization
	require.NoError(t, db.First(&gotRealization, r.ID).Error)
	assert.Equal(t, models.RealizationStatusCompleted, gotRealization.Status)
	requireLedgerConsistent(t, db, r.ID)
}

func TestPaidConsignmentCannotRegressToNew(t *testing.T) {
	db, rs, os := newServices(t)
	order, r := seedConsignment(t, db, rs, os, "1000")
	_, err := rs.AddPayment(t.Context(), r.ID, dec("1000"), "", nil)
	require.NoError(t, err)

	_, err = os.SetStatus(t.Context(), order.ID, models.OrderStatusNew)
	assert.ErrorIs(t, err, ErrInvalidTransition)

	// order and ledger untouched
	var gotOrder models.Order
	require.NoError(t, db.First(&gotOrder, order.ID).Error)
	assert.Equal(t, models.OrderStatusPaid, gotOrder.Status)
	var gotRealization models.Realization
	require.NoError(t, db.First(&gotRealization, r.ID).Error)
	assert.Equal(t, models.RealizationStatusCompleted, gotRealization.Status)
	var payments int64
	db.Model(&models.RealizationPayment{}).Where("realization_id = ?", r.ID).Count(&payments)
	assert.Equal(t, int64(1), payments)
}
