package models

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/storefront/backend/internal/domain/order"
)

// OrderModel is the persistence model for order headers
type OrderModel struct {
	ID         int64     `gorm:"column:order_id;primaryKey;autoIncrement"`
	CustomerID int64     `gorm:"not null;index"`
	InvoiceNo  int64     `gorm:"not null;uniqueIndex"`
	OrderDate  time.Time `gorm:"not null"`
	Status     string    `gorm:"column:order_status;type:varchar(20);not null;default:'pending'"`
}

// TableName returns the table name for GORM
func (OrderModel) TableName() string {
	return "orders"
}

// ToDomain converts the persistence model to an order.Order
func (m *OrderModel) ToDomain() order.Order {
	return order.Order{
		ID:         m.ID,
		CustomerID: m.CustomerID,
		InvoiceNo:  m.InvoiceNo,
		OrderDate:  m.OrderDate,
		Status:     order.Status(m.Status),
	}
}

// OrderLineModel is the persistence model for order_lines
type OrderLineModel struct {
	OrderID   int64 `gorm:"primaryKey;autoIncrement:false"`
	ProductID int64 `gorm:"primaryKey;autoIncrement:false"`
	Quantity  int   `gorm:"not null"`
}

// TableName returns the table name for GORM
func (OrderLineModel) TableName() string {
	return "order_lines"
}

// OrderLineRow is an order line joined with the current product title and price
type OrderLineRow struct {
	OrderID   int64
	ProductID int64
	Quantity  int
	Title     *string
	Price     decimal.NullDecimal
}

// ToDomain converts the joined row to an order.Line priced at the current catalog price
func (r *OrderLineRow) ToDomain() order.Line {
	l := order.Line{
		OrderID:   r.OrderID,
		ProductID: r.ProductID,
		Quantity:  r.Quantity,
		Price:     decimal.Zero,
		Subtotal:  decimal.Zero,
	}
	if r.Title != nil {
		l.Title = *r.Title
	}
	if r.Price.Valid {
		l.Price = r.Price.Decimal
		l.Subtotal = r.Price.Decimal.Mul(decimal.NewFromInt(int64(r.Quantity)))
	}
	return l
}

// PaymentModel is the persistence model for payments
type PaymentModel struct {
	ID          int64           `gorm:"column:payment_id;primaryKey;autoIncrement"`
	OrderID     int64           `gorm:"not null;uniqueIndex"`
	CustomerID  int64           `gorm:"not null;index"`
	Amount      decimal.Decimal `gorm:"type:decimal(10,2);not null"`
	Currency    string          `gorm:"type:varchar(3);not null;default:'USD'"`
	Method      string          `gorm:"column:payment_method;type:varchar(32);not null"`
	PaymentDate time.Time       `gorm:"not null"`
}

// TableName returns the table name for GORM
func (PaymentModel) TableName() string {
	return "payments"
}

// ToDomain converts the persistence model to an order.Payment
func (m *PaymentModel) ToDomain() order.Payment {
	return order.Payment{
		ID:          m.ID,
		OrderID:     m.OrderID,
		CustomerID:  m.CustomerID,
		Amount:      m.Amount,
		Currency:    m.Currency,
		Method:      m.Method,
		PaymentDate: m.PaymentDate,
	}
}
