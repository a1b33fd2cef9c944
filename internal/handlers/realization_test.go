package handlers

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/arsuvenir/backend/internal/auth"
	"github.com/arsuvenir/backend/internal/models"
	"github.com/arsuvenir/backend/internal/policy"
	"github.com/arsuvenir/backend/internal/services"
)

func setupHandlerTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := db.AutoMigrate(
		&models.Partner{}, &models.ProductType{}, &models.ProductGroup{}, &models.Product{},
		&models.Order{}, &models.OrderItem{},
		&models.Realization{}, &models.RealizationItem{}, &models.RealizationPayment{},
	); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

func testLogger() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

func mustDec(t *testing.T, s string) decimal.Decimal {
	t.Helper()
	d, err := decimal.NewFromString(s)
	if err != nil {
		t.Fatalf("decimal %q: %v", s, err)
	}
	return d
}

// seedRealizationFixtures builds an admin, a partner and a confirmed
// consignment order with its realization.
func seedRealizationFixtures(t *testing.T, db *gorm.DB) (admin, partner models.Partner, realization models.Realization) {
	t.Helper()
	admin = models.Partner{Name: "Admin", Login: "admin-" + t.Name(), PasswordHash: "x", Role: models.RoleAdmin}
	if err := db.Create(&admin).Error; err != nil {
		t.Fatalf("admin: %v", err)
	}
	partner = models.Partner{Name: "Kiosk", Login: "kiosk-" + t.Name(), PasswordHash: "x", Role: models.RolePartner}
	if err := db.Create(&partner).Error; err != nil {
		t.Fatalf("partner: %v", err)
	}
	pt := models.ProductType{Name: "Magnet-" + t.Name()}
	if err := db.Create(&pt).Error; err != nil {
		t.Fatalf("type: %v", err)
	}
	product := models.Product{Number: "M-" + t.Name(), TypeID: pt.ID, Cost: mustDec(t, "100")}
	if err := db.Create(&product).Error; err != nil {
		t.Fatalf("product: %v", err)
	}

	rs := services.NewRealizationService(db, testLogger())
	os := services.NewOrderService(db, testLogger(), rs)
	order, err := os.Create(t.Context(), partner.ID, []services.OrderLine{{ProductID: product.ID, Quantity: 10}}, "", true, false)
	if err != nil {
		t.Fatalf("order: %v", err)
	}
	if _, err := os.SetStatus(t.Context(), order.ID, models.OrderStatusConfirmed); err != nil {
		t.Fatalf("confirm: %v", err)
	}
	if err := db.Where("order_id = ?", order.ID).First(&realization).Error; err != nil {
		t.Fatalf("realization: %v", err)
	}
	return admin, partner, realization
}

func asPartner(r *http.Request, p models.Partner) *http.Request {
	return r.WithContext(auth.WithPartnerID(r.Context(), p.ID))
}

func newRealizationHandler(db *gorm.DB) *RealizationHandler {
	rs := services.NewRealizationService(db, testLogger())
	return NewRealizationHandler(db, rs, policy.NewDefault())
}

func TestAddPaymentEndpoint(t *testing.T) {
	db := setupHandlerTestDB(t)
	admin, _, realization := seedRealizationFixtures(t, db)
	h := newRealizationHandler(db)

	body := fmt.Sprintf(`{"realization_id":%d,"amount":"400","note":"first"}`, realization.ID)
	req := httptest.NewRequest(http.MethodPost, "/realizations/payments", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	h.AddPayment(w, asPartner(req, admin))
	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201 got %d body=%s", w.Code, w.Body.String())
	}
	var payment models.RealizationPayment
	if err := json.Unmarshal(w.Body.Bytes(), &payment); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !payment.Amount.Equal(mustDec(t, "400")) {
		t.Fatalf("unexpected amount %s", payment.Amount)
	}

	var got models.Realization
	if err := db.First(&got, realization.ID).Error; err != nil {
		t.Fatalf("reload: %v", err)
	}
	if got.Status != models.RealizationStatusPartial || !got.PaidAmount.Equal(mustDec(t, "400")) {
		t.Fatalf("unexpected realization state %s/%s", got.Status, got.PaidAmount)
	}
}

func TestAddPaymentEndpointForbiddenForPartner(t *testing.T) {
	db := setupHandlerTestDB(t)
	_, partner, realization := seedRealizationFixtures(t, db)
	h := newRealizationHandler(db)

	body := fmt.Sprintf(`{"realization_id":%d,"amount":"400"}`, realization.ID)
	req := httptest.NewRequest(http.MethodPost, "/realizations/payments", strings.NewReader(body))
	w := httptest.NewRecorder()
	h.AddPayment(w, asPartner(req, partner))
	if w.Code != http.StatusForbidden {
		t.Fatalf("expected 403 got %d", w.Code)
	}
	var count int64
	db.Model(&models.RealizationPayment{}).Count(&count)
	if count != 0 {
		t.Fatalf("payment must not be created")
	}
}

func TestAddPaymentEndpointExceedsBalance(t *testing.T) {
	db := setupHandlerTestDB(t)
	admin, _, realization := seedRealizationFixtures(t, db)
	h := newRealizationHandler(db)

	body := fmt.Sprintf(`{"realization_id":%d,"amount":"1200"}`, realization.ID)
	req := httptest.NewRequest(http.MethodPost, "/realizations/payments", strings.NewReader(body))
	w := httptest.NewRecorder()
	h.AddPayment(w, asPartner(req, admin))
	if w.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422 got %d body=%s", w.Code, w.Body.String())
	}
	var resp struct {
		Error   string            `json:"error"`
		Details map[string]string `json:"details"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Error != "exceeds_balance" || resp.Details["remaining"] != "1000" {
		t.Fatalf("unexpected error payload %#v", resp)
	}
}

func TestUpdateAndDeletePaymentEndpoints(t *testing.T) {
	db := setupHandlerTestDB(t)
	admin, _, realization := seedRealizationFixtures(t, db)
	h := newRealizationHandler(db)

	rs := services.NewRealizationService(db, testLogger())
	payment, err := rs.AddPayment(t.Context(), realization.ID, mustDec(t, "1000"), "", nil)
	if err != nil {
		t.Fatalf("add: %v", err)
	}

	body := fmt.Sprintf(`{"payment_id":%d,"amount":"700"}`, payment.ID)
	req := httptest.NewRequest(http.MethodPost, "/realizations/payments/update", strings.NewReader(body))
	w := httptest.NewRecorder()
	h.UpdatePayment(w, asPartner(req, admin))
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d body=%s", w.Code, w.Body.String())
	}
	var order models.Order
	if err := db.First(&order, realization.OrderID).Error; err != nil {
		t.Fatalf("order: %v", err)
	}
	if order.Status != models.OrderStatusConfirmed {
		t.Fatalf("order should revert to CONFIRMED, got %s", order.Status)
	}

	body = fmt.Sprintf(`{"payment_id":%d}`, payment.ID)
	req = httptest.NewRequest(http.MethodPost, "/realizations/payments/delete", strings.NewReader(body))
	w = httptest.NewRecorder()
	h.DeletePayment(w, asPartner(req, admin))
	if w.Code != http.StatusNoContent {
		t.Fatalf("expected 204 got %d", w.Code)
	}
	var got models.Realization
	if err := db.First(&got, realization.ID).Error; err != nil {
		t.Fatalf("reload: %v", err)
	}
	if got.Status != models.RealizationStatusPending || !got.PaidAmount.IsZero() {
		t.Fatalf("unexpected realization state %s/%s", got.Status, got.PaidAmount)
	}
}

func TestRealizationListScoping(t *testing.T) {
	db := setupHandlerTestDB(t)
	admin, partner, _ := seedRealizationFixtures(t, db)
	h := newRealizationHandler(db)

	other := models.Partner{Name: "Other", Login: "other-" + t.Name(), PasswordHash: "x"}
	if err := db.Create(&other).Error; err != nil {
		t.Fatalf("other: %v", err)
	}

	for _, tc := range []struct {
		who  models.Partner
		want int
	}{
		{admin, 1},
		{partner, 1},
		{other, 0},
	} {
		req := httptest.NewRequest(http.MethodGet, "/realizations", nil)
		w := httptest.NewRecorder()
		h.List(w, asPartner(req, tc.who))
		if w.Code != http.StatusOK {
			t.Fatalf("expected 200 got %d", w.Code)
		}
		var resp struct {
			Items []models.Realization `json:"items"`
		}
		if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if len(resp.Items) != tc.want {
			t.Fatalf("partner %s: expected %d items got %d", tc.who.Login, tc.want, len(resp.Items))
		}
	}
}
