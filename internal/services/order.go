package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/arsuvenir/backend/internal/models"
)

// OrderService creates orders and drives the order status machine, keeping
// consignment orders in lockstep with their realization.
type OrderService struct {
	db           *gorm.DB
	log          *logrus.Logger
	realizations *RealizationService
}

func NewOrderService(db *gorm.DB, log *logrus.Logger, realizations *RealizationService) *OrderService {
	return &OrderService{db: db, log: log, realizations: realizations}
}

// OrderLine is one requested line. UnitPrice overrides the product cost when
// set (admin-negotiated pricing); nil means "price at product cost".
type OrderLine struct {
	ProductID uint
	Quantity  int
	UnitPrice *decimal.Decimal
}

// Create builds an order for a partner. When confirm is true (admin creating
// a consignment order on a partner's behalf) the order starts CONFIRMED and
// its realization is created in the same transaction.
func (s *OrderService) Create(ctx context.Context, partnerID uint, lines []OrderLine, note string, isRealization, confirm bool) (*models.Order, error) {
	if len(lines) == 0 {
		return nil, fmt.Errorf("%w: order needs at least one line", ErrInvalidInput)
	}
	ids := make([]uint, 0, len(lines))
	for _, l := range lines {
		if l.ProductID == 0 || l.Quantity <= 0 {
			return nil, fmt.Errorf("%w: bad product or quantity", ErrInvalidInput)
		}
		if l.UnitPrice != nil && l.UnitPrice.Sign() <= 0 {
			return nil, fmt.Errorf("%w: price override must be positive", ErrInvalidInput)
		}
		ids = append(ids, l.ProductID)
	}
	var products []models.Product
	if err := s.db.WithContext(ctx).Where("id IN ?", ids).Find(&products).Error; err != nil {
		return nil, err
	}
	byID := make(map[uint]models.Product, len(products))
	for _, p := range products {
		byID[p.ID] = p
	}

	order := models.Order{PartnerID: partnerID, Status: models.OrderStatusNew, IsRealization: isRealization, Note: note}
	items := make([]models.OrderItem, 0, len(lines))
	total := decimal.Zero
	for _, l := range lines {
		p, ok := byID[l.ProductID]
		if !ok {
			return nil, fmt.Errorf("product %d: %w", l.ProductID, ErrNotFound)
		}
		price := p.Cost
		if l.UnitPrice != nil {
			price = *l.UnitPrice
		}
		lineTotal := price.Mul(decimal.NewFromInt(int64(l.Quantity)))
		total = total.Add(lineTotal)
		items = append(items, models.OrderItem{ProductID: p.ID, Quantity: l.Quantity, UnitPrice: price, LineTotal: lineTotal})
	}
	order.TotalPrice = total

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&order).Error; err != nil {
			return err
		}
		for i := range items {
			items[i].OrderID = order.ID
		}
		if err := tx.Create(&items).Error; err != nil {
			return err
		}
		order.Items = items
		if confirm {
			if order.IsRealization {
				if _, err := s.realizations.CreateForOrder(tx, &order); err != nil {
					return err
				}
			}
			if err := tx.Model(&order).Update("status", models.OrderStatusConfirmed).Error; err != nil {
				return err
			}
			order.Status = models.OrderStatusConfirmed
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.log.WithFields(logrus.Fields{"order_id": order.ID, "partner_id": partnerID, "total": total, "is_realization": isRealization}).Info("order created")
	return &order, nil
}

// SetStatus is the admin-driven order transition, including the
// order↔realization synchronizer:
//
//	NEW → CONFIRMED   create the realization (or revive a cancelled one); a
//	                  revived ledger that is already fully covered pushes the
//	                  order straight to PAID
//	CONFIRMED → NEW   hard-delete the realization unless it was cancelled
//	PAID → NEW        rejected; a paid consignment keeps its ledger
//	any → CANCELLED   soft-cancel the realization, amounts preserved
//	any → PAID        rejected for consignment orders; PAID is reachable only
//	                  through realization completion
func (s *OrderService) SetStatus(ctx context.Context, orderID uint, newStatus models.OrderStatus) (*models.Order, error) {
	if !newStatus.Valid() {
		return nil, fmt.Errorf("%w: unknown status %q", ErrInvalidTransition, string(newStatus))
	}
	var order models.Order
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := lockForUpdate(tx).First(&order, orderID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("order %d: %w", orderID, ErrNotFound)
			}
			return err
		}
		if order.Status == newStatus {
			return nil
		}
		if order.IsRealization {
			switch newStatus {
			case models.OrderStatusPaid:
				return fmt.Errorf("%w: consignment orders reach PAID only through realization completion", ErrInvalidTransition)
			case models.OrderStatusConfirmed:
				r, err := s.realizations.CreateForOrder(tx, &order)
				if err != nil {
					return err
				}
				// keep the lockstep rule: the order is PAID exactly when the
				// realization is fully covered, which a revived ledger can
				// already be
				if r.Status == models.RealizationStatusCompleted {
					newStatus = models.OrderStatusPaid
				}
			case models.OrderStatusNew:
				if order.Status == models.OrderStatusPaid {
					return fmt.Errorf("%w: paid consignment orders cannot return to NEW", ErrInvalidTransition)
				}
				if order.Status == models.OrderStatusConfirmed {
					if err := s.realizations.DeleteForOrder(tx, order.ID); err != nil {
						return err
					}
				}
			case models.OrderStatusCancelled:
				if err := s.realizations.CancelForOrder(tx, order.ID); err != nil {
					return err
				}
			}
		}
		if err := tx.Model(&order).Update("status", newStatus).Error; err != nil {
			return err
		}
		order.Status = newStatus
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.log.WithFields(logrus.Fields{"order_id": orderID, "status": newStatus}).Info("order status changed")
	return &order, nil
}

// Get loads one order with items and products.
func (s *OrderService) Get(ctx context.Context, id uint) (*models.Order, error) {
	var order models.Order
	err := s.db.WithContext(ctx).Preload("Items.Product").First(&order, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("order %d: %w", id, ErrNotFound)
		}
		return nil, err
	}
	return &order, nil
}

// List returns orders, scoped to one partner when partnerID is non-zero.
func (s *OrderService) List(ctx context.Context, partnerID uint) ([]models.Order, error) {
	q := s.db.WithContext(ctx).Preload("Items.Product").Order("id desc")
	if partnerID != 0 {
		q = q.Where("partner_id = ?", partnerID)
	}
	var out []models.Order
	if err := q.Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}
