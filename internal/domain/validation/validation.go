// Package validation checks and normalises raw request values into typed
// values. Every failure is a *shared.DomainError of kind validation_error
// that names the offending field. Nothing here performs I/O.
package validation

import (
	"encoding/json"
	"math"
	"reflect"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
	"github.com/spf13/cast"
	"github.com/storefront/backend/internal/domain/cart"
	"github.com/storefront/backend/internal/domain/shared"
)

const (
	// MaxID is the largest accepted product or customer id
	MaxID = math.MaxInt32

	// MaxQuantity is the largest quantity a cart line may hold
	MaxQuantity = cart.MaxQuantity

	// DefaultIPAddress is used when a guest request carries no address
	DefaultIPAddress = "127.0.0.1"

	// DefaultCurrency is used when a checkout names no currency
	DefaultCurrency = "USD"
)

// MaxOrderAmount is the largest accepted order total
var MaxOrderAmount = decimal.RequireFromString("999999.99")

// Currencies is the allow-list of ISO 4217 codes accepted at checkout
var Currencies = []string{
	"USD", "EUR", "GBP", "JPY", "CAD", "AUD", "CHF", "CNY", "SEK", "NZD",
	"MXN", "SGD", "HKD", "NOK", "KRW", "TRY", "INR", "BRL", "ZAR", "DKK",
}

// Payment methods
const (
	PaymentCreditCard       = "credit_card"
	PaymentDebitCard        = "debit_card"
	PaymentPayPal           = "paypal"
	PaymentBankTransfer     = "bank_transfer"
	PaymentCashOnDelivery   = "cash_on_delivery"
	PaymentSimulatedSuccess = "simulated_success"
	PaymentSimulatedFailure = "simulated_failure"
	PaymentSimulatedTimeout = "simulated_timeout"
)

// PaymentMethods is the allow-list of accepted payment methods
var PaymentMethods = []string{
	PaymentCreditCard, PaymentDebitCard, PaymentPayPal, PaymentBankTransfer,
	PaymentCashOnDelivery, PaymentSimulatedSuccess, PaymentSimulatedFailure,
	PaymentSimulatedTimeout,
}

var (
	validate = validator.New()

	currencyTag = "oneof=" + strings.Join(Currencies, " ")
	methodTag   = "oneof=" + strings.Join(PaymentMethods, " ")
)

// QuantityOptions bounds an accepted quantity.
// Zero Min and Max mean 1 (0 with AllowZero) and MaxQuantity.
type QuantityOptions struct {
	AllowZero bool
	Min       int
	Max       int
}

// ProductID validates a product id in 1..MaxID
func ProductID(v any) (int64, error) {
	return id("product_id", v)
}

// CustomerID validates an optional customer id.
// nil or an empty string yields nil, meaning a guest.
func CustomerID(v any) (*int64, error) {
	if isBlank(v) {
		return nil, nil
	}
	n, err := id("customer_id", v)
	if err != nil {
		return nil, err
	}
	return &n, nil
}

// Quantity validates a cart quantity
func Quantity(v any, opts QuantityOptions) (int, error) {
	lo, hi := opts.Min, opts.Max
	if lo == 0 && !opts.AllowZero {
		lo = 1
	}
	if hi <= 0 {
		hi = MaxQuantity
	}

	n, ok := toInt64(v)
	if !ok {
		return 0, shared.NewValidationError("quantity", "must be an integer", v)
	}
	if n == 0 && opts.AllowZero {
		return 0, nil
	}
	if n < int64(lo) {
		return 0, shared.NewValidationError("quantity", "must be at least "+strconv.Itoa(lo), v)
	}
	if n > int64(hi) {
		return 0, shared.NewValidationError("quantity", "must be at most "+strconv.Itoa(hi), v)
	}
	return int(n), nil
}

// IPAddress validates an IPv4 or IPv6 address. Blank input yields 127.0.0.1.
func IPAddress(v any) (string, error) {
	if isBlank(v) {
		return DefaultIPAddress, nil
	}
	s, ok := v.(string)
	if !ok {
		return "", shared.NewValidationError("ip_address", "must be a string", v)
	}
	s = strings.TrimSpace(s)
	if err := validate.Var(s, "ip"); err != nil {
		return "", shared.NewValidationError("ip_address", "must be a valid IPv4 or IPv6 address", v)
	}
	return s, nil
}

// UserIdentification resolves the cart owner. A customer id wins over an IP.
func UserIdentification(customerID, ip any) (cart.Owner, error) {
	cid, err := CustomerID(customerID)
	if err != nil {
		return cart.Owner{}, err
	}
	if cid != nil {
		return cart.CustomerOwner(*cid), nil
	}
	if isBlank(ip) {
		return cart.Owner{}, shared.NewValidationError("identity", "either customer_id or ip_address is required", nil)
	}
	addr, err := IPAddress(ip)
	if err != nil {
		return cart.Owner{}, err
	}
	return cart.GuestOwner(addr), nil
}

// OrderAmount validates a positive amount up to MaxOrderAmount, rounded to cents
func OrderAmount(v any) (decimal.Decimal, error) {
	d, ok := toDecimal(v)
	if !ok {
		return decimal.Zero, shared.NewValidationError("amount", "must be a decimal number", v)
	}
	d = d.Round(2)
	if !d.IsPositive() {
		return decimal.Zero, shared.NewValidationError("amount", "must be greater than zero", v)
	}
	if d.GreaterThan(MaxOrderAmount) {
		return decimal.Zero, shared.NewValidationError("amount", "must not exceed "+MaxOrderAmount.StringFixed(2), v)
	}
	return d, nil
}

// Currency validates an ISO 4217 code from the allow-list. Blank yields USD.
func Currency(v any) (string, error) {
	if isBlank(v) {
		return DefaultCurrency, nil
	}
	s, ok := v.(string)
	if !ok {
		return "", shared.NewValidationError("currency", "must be a string", v)
	}
	s = strings.ToUpper(strings.TrimSpace(s))
	if err := validate.Var(s, "len=3,alpha"); err != nil {
		return "", shared.NewValidationError("currency", "must be a 3-letter code", v)
	}
	if err := validate.Var(s, currencyTag); err != nil {
		return "", shared.NewValidationError("currency", "unsupported currency", v)
	}
	return s, nil
}

// PaymentMethod validates a required payment method from the allow-list
func PaymentMethod(v any) (string, error) {
	if isBlank(v) {
		return "", shared.NewValidationError("payment_method", "is required", v)
	}
	s, ok := v.(string)
	if !ok {
		return "", shared.NewValidationError("payment_method", "must be a string", v)
	}
	s = strings.ToLower(strings.TrimSpace(s))
	if err := validate.Var(s, methodTag); err != nil {
		return "", shared.NewValidationError("payment_method", "unsupported payment method", v)
	}
	return s, nil
}

func id(field string, v any) (int64, error) {
	n, ok := toInt64(v)
	if !ok {
		return 0, shared.NewValidationError(field, "must be an integer", v)
	}
	if n < 1 || n > MaxID {
		return 0, shared.NewValidationError(field, "must be between 1 and "+strconv.Itoa(MaxID), v)
	}
	return n, nil
}

func isBlank(v any) bool {
	if v == nil {
		return true
	}
	if s, ok := v.(string); ok {
		return strings.TrimSpace(s) == ""
	}
	rv := reflect.ValueOf(v)
	return rv.Kind() == reflect.Pointer && rv.IsNil()
}

// toInt64 coerces integer kinds, integral floats, json.Number and base-10
// strings. Booleans and fractional values are rejected.
func toInt64(v any) (int64, bool) {
	switch x := v.(type) {
	case nil, bool:
		return 0, false
	case string:
		n, err := strconv.ParseInt(strings.TrimSpace(x), 10, 64)
		return n, err == nil
	case json.Number:
		n, err := x.Int64()
		return n, err == nil
	case float32:
		return floatToInt64(float64(x))
	case float64:
		return floatToInt64(x)
	}
	n, err := cast.ToInt64E(v)
	return n, err == nil
}

func floatToInt64(f float64) (int64, bool) {
	if math.IsNaN(f) || math.IsInf(f, 0) || f != math.Trunc(f) {
		return 0, false
	}
	if f > math.MaxInt64 || f < math.MinInt64 {
		return 0, false
	}
	return int64(f), true
}

func toDecimal(v any) (decimal.Decimal, bool) {
	switch x := v.(type) {
	case decimal.Decimal:
		return x, true
	case string:
		d, err := decimal.NewFromString(strings.TrimSpace(x))
		return d, err == nil
	case json.Number:
		d, err := decimal.NewFromString(x.String())
		return d, err == nil
	case float32:
		return toDecimal(float64(x))
	case float64:
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return decimal.Zero, false
		}
		return decimal.NewFromFloat(x), true
	case nil, bool:
		return decimal.Zero, false
	}
	n, ok := toInt64(v)
	if !ok {
		return decimal.Zero, false
	}
	return decimal.NewFromInt(n), true
}
