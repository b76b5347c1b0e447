package persistence

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/storefront/backend/internal/domain/order"
	"github.com/storefront/backend/internal/domain/shared"
	"github.com/storefront/backend/internal/infrastructure/persistence/models"
	"gorm.io/gorm"
)

// GormOrderRepository implements order.Repository using GORM
type GormOrderRepository struct {
	db       *gorm.DB
	invoices *order.InvoiceGenerator
	now      func() time.Time
}

// NewGormOrderRepository creates a new GormOrderRepository.
// A nil generator uses the default invoice settings.
func NewGormOrderRepository(db *gorm.DB, invoices *order.InvoiceGenerator) *GormOrderRepository {
	if invoices == nil {
		invoices = order.NewInvoiceGenerator()
	}
	return &GormOrderRepository{db: db, invoices: invoices, now: time.Now}
}

type txInvoiceChecker struct {
	tx *gorm.DB
}

func (c txInvoiceChecker) InvoiceExists(ctx context.Context, invoiceNo int64) (bool, error) {
	return invoiceExists(c.tx.WithContext(ctx), invoiceNo)
}

func invoiceExists(db *gorm.DB, invoiceNo int64) (bool, error) {
	var count int64
	if err := db.Model(&models.OrderModel{}).
		Where("invoice_no = ?", invoiceNo).
		Limit(1).
		Count(&count).Error; err != nil {
		return false, ClassifyError(err)
	}
	return count > 0, nil
}

// InvoiceExists reports whether an order already carries invoiceNo
func (r *GormOrderRepository) InvoiceExists(ctx context.Context, invoiceNo int64) (bool, error) {
	return invoiceExists(r.db.WithContext(ctx), invoiceNo)
}

// Checkout writes the order header, one line per snapshot item and the
// payment in a single transaction. With ConsumeCart the ordered quantities
// leave the cart in the same transaction.
// The header insert is the invoice claim: it runs under a savepoint so a
// unique violation on invoice_no only costs one attempt.
func (r *GormOrderRepository) Checkout(ctx context.Context, req order.Request) (*order.Receipt, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	var receipt *order.Receipt
	err := withinTx(ctx, r.db, func(tx *gorm.DB) error {
		now := r.now().UTC()
		header := &models.OrderModel{
			CustomerID: req.CustomerID,
			OrderDate:  now,
			Status:     string(order.StatusPending),
		}

		_, err := r.invoices.Reserve(ctx, txInvoiceChecker{tx: tx}, func(invoiceNo int64) error {
			header.ID = 0
			header.InvoiceNo = invoiceNo
			return withSavepoint(tx, "order_header", func(tx *gorm.DB) error {
				return tx.Create(header).Error
			})
		})
		if err != nil {
			return err
		}

		lines := req.Lines()
		for i := range lines {
			lines[i].OrderID = header.ID
			m := &models.OrderLineModel{
				OrderID:   header.ID,
				ProductID: lines[i].ProductID,
				Quantity:  lines[i].Quantity,
			}
			if err := tx.Create(m).Error; err != nil {
				return fmt.Errorf("order line for product %d: %w", lines[i].ProductID, ClassifyError(err))
			}
		}

		payment := &models.PaymentModel{
			OrderID:     header.ID,
			CustomerID:  req.CustomerID,
			Amount:      req.Total.Round(2),
			Currency:    req.Currency,
			Method:      req.PaymentMethod,
			PaymentDate: now,
		}
		if err := tx.Create(payment).Error; err != nil {
			return err
		}

		if req.ConsumeCart {
			if _, err := consumeLines(tx, req.Snapshot.Owner, req.Snapshot.Items, now); err != nil {
				return fmt.Errorf("consume cart: %w", err)
			}
		}

		receipt = &order.Receipt{
			Order:   header.ToDomain(),
			Lines:   lines,
			Payment: payment.ToDomain(),
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return receipt, nil
}

// UpdateStatus changes the status of an order
func (r *GormOrderRepository) UpdateStatus(ctx context.Context, orderID int64, status order.Status) error {
	if !status.IsValid() {
		return shared.NewValidationError("status", "unknown order status", string(status))
	}
	res := r.db.WithContext(ctx).
		Model(&models.OrderModel{}).
		Where("order_id = ?", orderID).
		Update("order_status", string(status))
	if res.Error != nil {
		return ClassifyError(res.Error)
	}
	if res.RowsAffected > 0 {
		return nil
	}
	// MySQL reports zero affected rows when the value is unchanged.
	var count int64
	if err := r.db.WithContext(ctx).Model(&models.OrderModel{}).Where("order_id = ?", orderID).Count(&count).Error; err != nil {
		return ClassifyError(err)
	}
	if count == 0 {
		return shared.ErrOrderNotFound
	}
	return nil
}

// FindByID loads one order of a customer
func (r *GormOrderRepository) FindByID(ctx context.Context, customerID, orderID int64) (*order.Receipt, error) {
	var header models.OrderModel
	if err := r.db.WithContext(ctx).
		Where("order_id = ? AND customer_id = ?", orderID, customerID).
		First(&header).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrOrderNotFound
		}
		return nil, ClassifyError(err)
	}

	receipts, err := r.assemble(ctx, []models.OrderModel{header})
	if err != nil {
		return nil, err
	}
	return &receipts[0], nil
}

// FindByCustomer lists a customer's orders, newest first unless the filter says otherwise
func (r *GormOrderRepository) FindByCustomer(ctx context.Context, customerID int64, filter shared.Filter) ([]order.Receipt, int64, error) {
	orderClause := orderSort.clause(filter.OrderBy, filter.OrderDir)
	filter = filter.Normalize()

	query := r.db.WithContext(ctx).Model(&models.OrderModel{}).Where("customer_id = ?", customerID)
	if v, ok := filter.Filters["status"]; ok && v != nil {
		query = query.Where("order_status = ?", v)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, ClassifyError(err)
	}

	var headers []models.OrderModel
	if err := query.Order(orderClause).
		Offset(filter.Offset()).
		Limit(filter.PageSize).
		Find(&headers).Error; err != nil {
		return nil, 0, ClassifyError(err)
	}
	if len(headers) == 0 {
		return []order.Receipt{}, total, nil
	}

	receipts, err := r.assemble(ctx, headers)
	if err != nil {
		return nil, 0, err
	}
	return receipts, total, nil
}

// assemble loads lines and payments for the given headers in two queries.
// Line titles and prices are read from the current catalog.
func (r *GormOrderRepository) assemble(ctx context.Context, headers []models.OrderModel) ([]order.Receipt, error) {
	ids := make([]int64, len(headers))
	for i, h := range headers {
		ids[i] = h.ID
	}

	var lineRows []models.OrderLineRow
	if err := r.db.WithContext(ctx).
		Table("order_lines AS ol").
		Select("ol.order_id, ol.product_id, ol.quantity, p.title, p.price").
		Joins("LEFT JOIN products p ON p.product_id = ol.product_id").
		Where("ol.order_id IN ?", ids).
		Order("ol.order_id, ol.product_id").
		Scan(&lineRows).Error; err != nil {
		return nil, ClassifyError(err)
	}

	var payments []models.PaymentModel
	if err := r.db.WithContext(ctx).
		Where("order_id IN ?", ids).
		Find(&payments).Error; err != nil {
		return nil, ClassifyError(err)
	}

	linesByOrder := make(map[int64][]order.Line, len(headers))
	for i := range lineRows {
		linesByOrder[lineRows[i].OrderID] = append(linesByOrder[lineRows[i].OrderID], lineRows[i].ToDomain())
	}
	paymentByOrder := make(map[int64]order.Payment, len(payments))
	for i := range payments {
		paymentByOrder[payments[i].OrderID] = payments[i].ToDomain()
	}

	receipts := make([]order.Receipt, 0, len(headers))
	for i := range headers {
		lines := linesByOrder[headers[i].ID]
		if lines == nil {
			lines = []order.Line{}
		}
		receipts = append(receipts, order.Receipt{
			Order:   headers[i].ToDomain(),
			Lines:   lines,
			Payment: paymentByOrder[headers[i].ID],
		})
	}
	return receipts, nil
}

var _ order.Repository = (*GormOrderRepository)(nil)
