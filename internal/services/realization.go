package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/arsuvenir/backend/internal/models"
)

// RealizationService owns the consignment ledger: realization lifecycle,
// payment mutations and the order synchronization that follows them. Every
// multi-step write runs in a single transaction so a crash or concurrent
// request leaves either the old or the new consistent state, never a partial
// one.
type RealizationService struct {
	db  *gorm.DB
	log *logrus.Logger
}

func NewRealizationService(db *gorm.DB, log *logrus.Logger) *RealizationService {
	return &RealizationService{db: db, log: log}
}

// lockForUpdate re-reads rows with FOR UPDATE on postgres so two concurrent
// payment mutations cannot both pass the balance check against a stale paid
// amount. sqlite (tests/dev) has a single writer and rejects the clause.
func lockForUpdate(tx *gorm.DB) *gorm.DB {
	if tx.Dialector.Name() == "postgres" {
		return tx.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	return tx
}

// CreateForOrder builds the realization for a consignment order inside the
// caller's transaction. TotalCost is frozen at the order's current total and
// items are cloned with the product cost captured for margin accounting.
// If a realization already exists it is returned as-is, except a CANCELLED
// one, which is revived with its status re-derived from the current amounts.
func (s *RealizationService) CreateForOrder(tx *gorm.DB, order *models.Order) (*models.Realization, error) {
	var existing models.Realization
	err := tx.Where("order_id = ?", order.ID).First(&existing).Error
	switch {
	case err == nil:
		if existing.Status != models.RealizationStatusCancelled {
			return &existing, nil
		}
		// Revival: recompute from amounts rather than forcing PENDING, so a
		// cancelled ledger that somehow carries payments comes back in the
		// right state.
		revived := DeriveRealizationStatus(existing.PaidAmount, existing.TotalCost, models.RealizationStatusPending)
		if err := tx.Model(&existing).Update("status", revived).Error; err != nil {
			return nil, err
		}
		existing.Status = revived
		s.log.WithFields(logrus.Fields{"realization_id": existing.ID, "order_id": order.ID, "status": revived}).Info("realization revived")
		return &existing, nil
	case !errors.Is(err, gorm.ErrRecordNotFound):
		return nil, err
	}

	var items []models.OrderItem
	if err := tx.Preload("Product").Where("order_id = ?", order.ID).Find(&items).Error; err != nil {
		return nil, err
	}
	r := models.Realization{
		OrderID:    order.ID,
		PartnerID:  order.PartnerID,
		TotalCost:  order.TotalPrice,
		PaidAmount: decimal.Zero,
		Status:     models.RealizationStatusPending,
	}
	if err := tx.Create(&r).Error; err != nil {
		return nil, err
	}
	for _, it := range items {
		ri := models.RealizationItem{
			RealizationID: r.ID,
			ProductID:     it.ProductID,
			Quantity:      it.Quantity,
			UnitPrice:     it.UnitPrice,
			UnitCost:      it.Product.Cost,
			LineTotal:     it.LineTotal,
		}
		if err := tx.Create(&ri).Error; err != nil {
			return nil, err
		}
	}
	s.log.WithFields(logrus.Fields{"realization_id": r.ID, "order_id": order.ID, "total_cost": r.TotalCost}).Info("realization created")
	return &r, nil
}

// CancelForOrder soft-cancels the order's realization: amounts and payment
// history stay for audit, no new payments are accepted.
func (s *RealizationService) CancelForOrder(tx *gorm.DB, orderID uint) error {
	var r models.Realization
	if err := tx.Where("order_id = ?", orderID).First(&r).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil
		}
		return err
	}
	return tx.Model(&r).Update("status", models.RealizationStatusCancelled).Error
}

// DeleteForOrder hard-deletes the order's realization with its items and
// payments. Cancelled realizations are kept: they are audit records.
func (s *RealizationService) DeleteForOrder(tx *gorm.DB, orderID uint) error {
	var r models.Realization
	if err := tx.Where("order_id = ?", orderID).First(&r).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil
		}
		return err
	}
	if r.Status == models.RealizationStatusCancelled {
		return nil
	}
	if err := tx.Where("realization_id = ?", r.ID).Delete(&models.RealizationPayment{}).Error; err != nil {
		return err
	}
	if err := tx.Where("realization_id = ?", r.ID).Delete(&models.RealizationItem{}).Error; err != nil {
		return err
	}
	return tx.Delete(&r).Error
}

// AddPayment records a money-received event. The balance check runs against
// the row re-read inside the transaction, so concurrent adds cannot jointly
// overshoot the total.
func (s *RealizationService) AddPayment(ctx context.Context, realizationID uint, amount decimal.Decimal, note string, date *time.Time) (*models.RealizationPayment, error) {
	if amount.Sign() <= 0 {
		return nil, fmt.Errorf("%w: amount must be positive", ErrInvalidInput)
	}
	var payment models.RealizationPayment
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var r models.Realization
		if err := lockForUpdate(tx).First(&r, realizationID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("realization %d: %w", realizationID, ErrNotFound)
			}
			return err
		}
		if r.Status == models.RealizationStatusCancelled {
			return fmt.Errorf("%w: realization is cancelled", ErrInvalidTransition)
		}
		if amount.GreaterThan(r.Remaining()) {
			return &ExceedsBalanceError{Remaining: r.Remaining()}
		}
		when := time.Now()
		if date != nil {
			when = *date
		}
		payment = models.RealizationPayment{
			RealizationID: r.ID,
			Amount:        amount,
			Note:          note,
			PaymentDate:   when,
		}
		if err := tx.Create(&payment).Error; err != nil {
			return err
		}
		oldPaid := r.PaidAmount
		newPaid := oldPaid.Add(amount)
		return s.applyPaidAmount(tx, &r, oldPaid, newPaid)
	})
	if err != nil {
		return nil, err
	}
	s.log.WithFields(logrus.Fields{"realization_id": realizationID, "payment_id": payment.ID, "amount": amount}).Info("payment added")
	return &payment, nil
}

// PaymentPatch carries the optional fields of a payment update. Nil means
// "leave unchanged".
type PaymentPatch struct {
	Amount      *decimal.Decimal
	Note        *string
	PaymentDate *time.Time
}

// UpdatePayment edits an existing payment, re-deriving the realization's paid
// amount and status and syncing the parent order. The balance precondition is
// checked against the sum of the other payments plus the new amount.
func (s *RealizationService) UpdatePayment(ctx context.Context, paymentID uint, patch PaymentPatch) (*models.RealizationPayment, error) {
	if patch.Amount != nil && patch.Amount.Sign() <= 0 {
		return nil, fmt.Errorf("%w: amount must be positive", ErrInvalidInput)
	}
	var payment models.RealizationPayment
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&payment, paymentID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("payment %d: %w", paymentID, ErrNotFound)
			}
			return err
		}
		var r models.Realization
		if err := lockForUpdate(tx).First(&r, payment.RealizationID).Error; err != nil {
			return err
		}
		if r.Status == models.RealizationStatusCancelled {
			return fmt.Errorf("%w: realization is cancelled", ErrInvalidTransition)
		}
		otherSum := r.PaidAmount.Sub(payment.Amount)
		if otherSum.Sign() < 0 {
			return fmt.Errorf("realization %d: paid amount %s below payment %s, ledger inconsistent", r.ID, r.PaidAmount, payment.Amount)
		}
		newAmount := payment.Amount
		if patch.Amount != nil {
			newAmount = *patch.Amount
		}
		if otherSum.Add(newAmount).GreaterThan(r.TotalCost) {
			return &ExceedsBalanceError{Remaining: r.TotalCost.Sub(otherSum)}
		}
		updates := map[string]any{}
		if patch.Amount != nil {
			updates["amount"] = *patch.Amount
			payment.Amount = *patch.Amount
		}
		if patch.Note != nil {
			updates["note"] = *patch.Note
			payment.Note = *patch.Note
		}
		if patch.PaymentDate != nil {
			updates["payment_date"] = *patch.PaymentDate
			payment.PaymentDate = *patch.PaymentDate
		}
		if len(updates) > 0 {
			if err := tx.Model(&models.RealizationPayment{}).Where("id = ?", payment.ID).Updates(updates).Error; err != nil {
				return err
			}
		}
		oldPaid := r.PaidAmount
		newPaid := otherSum.Add(newAmount)
		return s.applyPaidAmount(tx, &r, oldPaid, newPaid)
	})
	if err != nil {
		return nil, err
	}
	s.log.WithFields(logrus.Fields{"payment_id": paymentID}).Info("payment updated")
	return &payment, nil
}

// DeletePayment removes a payment, shrinking the realization's paid amount
// and reverting the parent order to CONFIRMED if it loses full coverage.
func (s *RealizationService) DeletePayment(ctx context.Context, paymentID uint) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var payment models.RealizationPayment
		if err := tx.First(&payment, paymentID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("payment %d: %w", paymentID, ErrNotFound)
			}
			return err
		}
		var r models.Realization
		if err := lockForUpdate(tx).First(&r, payment.RealizationID).Error; err != nil {
			return err
		}
		if r.Status == models.RealizationStatusCancelled {
			return fmt.Errorf("%w: realization is cancelled", ErrInvalidTransition)
		}
		oldPaid := r.PaidAmount
		newPaid := oldPaid.Sub(payment.Amount)
		if newPaid.Sign() < 0 {
			return fmt.Errorf("realization %d: deleting payment %d would drive paid amount negative, ledger inconsistent", r.ID, payment.ID)
		}
		if err := tx.Delete(&payment).Error; err != nil {
			return err
		}
		return s.applyPaidAmount(tx, &r, oldPaid, newPaid)
	})
	if err != nil {
		return err
	}
	s.log.WithFields(logrus.Fields{"payment_id": paymentID}).Info("payment deleted")
	return nil
}

// applyPaidAmount persists the re-derived totals and status, then keeps the
// parent order in lockstep. Runs after every paidAmount-changing mutation so
// add, update and delete all follow the same rule.
func (s *RealizationService) applyPaidAmount(tx *gorm.DB, r *models.Realization, oldPaid, newPaid decimal.Decimal) error {
	status := DeriveRealizationStatus(newPaid, r.TotalCost, r.Status)
	if err := tx.Model(r).Updates(map[string]any{"paid_amount": newPaid, "status": status}).Error; err != nil {
		return err
	}
	r.PaidAmount = newPaid
	r.Status = status
	return s.syncParentOrder(tx, r, oldPaid, newPaid)
}

// syncParentOrder forces the owning order to PAID exactly when the
// realization reaches full coverage and reverts it to CONFIRMED when coverage
// is lost again.
func (s *RealizationService) syncParentOrder(tx *gorm.DB, r *models.Realization, oldPaid, newPaid decimal.Decimal) error {
	wasCovered := oldPaid.GreaterThanOrEqual(r.TotalCost)
	nowCovered := newPaid.GreaterThanOrEqual(r.TotalCost)
	if wasCovered == nowCovered {
		return nil
	}
	status := models.OrderStatusConfirmed
	if nowCovered {
		status = models.OrderStatusPaid
	}
	return tx.Model(&models.Order{}).Where("id = ?", r.OrderID).Update("status", status).Error
}

// Get loads one realization with items, payments and products.
func (s *RealizationService) Get(ctx context.Context, id uint) (*models.Realization, error) {
	var r models.Realization
	err := s.db.WithContext(ctx).Preload("Items.Product").Preload("Payments").First(&r, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("realization %d: %w", id, ErrNotFound)
		}
		return nil, err
	}
	return &r, nil
}

// List returns realizations, scoped to one partner when partnerID is non-zero.
func (s *RealizationService) List(ctx context.Context, partnerID uint) ([]models.Realization, error) {
	q := s.db.WithContext(ctx).Preload("Items.Product").Preload("Payments").Order("id desc")
	if partnerID != 0 {
		q = q.Where("partner_id = ?", partnerID)
	}
	var out []models.Realization
	if err := q.Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}
