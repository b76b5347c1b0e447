package validation

import (
	"encoding/json"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/storefront/backend/internal/domain/cart"
	"github.com/storefront/backend/internal/domain/shared"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func requireFieldError(t *testing.T, err error, field string) {
	t.Helper()
	require.Error(t, err)
	de := shared.AsDomainError(err)
	assert.Equal(t, shared.KindValidation, de.Kind)
	f, ok := de.Field()
	require.True(t, ok)
	assert.Equal(t, field, f.Field)
}

func TestProductID(t *testing.T) {
	valid := []any{1, int32(7), int64(2147483647), uint8(3), "42", " 9 ", 5.0, json.Number("12")}
	for _, v := range valid {
		_, err := ProductID(v)
		assert.NoError(t, err, "value %#v", v)
	}

	n, err := ProductID("42")
	require.NoError(t, err)
	assert.Equal(t, int64(42), n)

	invalid := []any{nil, 0, -1, int64(2147483648), "abc", "4.5", 4.5, true, "", "0x10", []int{1}}
	for _, v := range invalid {
		_, err := ProductID(v)
		requireFieldError(t, err, "product_id")
	}
}

func TestCustomerID(t *testing.T) {
	t.Run("blank means guest", func(t *testing.T) {
		for _, v := range []any{nil, "", "  "} {
			id, err := CustomerID(v)
			require.NoError(t, err)
			assert.Nil(t, id)
		}
	})

	t.Run("valid id", func(t *testing.T) {
		id, err := CustomerID(15)
		require.NoError(t, err)
		require.NotNil(t, id)
		assert.Equal(t, int64(15), *id)
	})

	t.Run("non-numeric rejected", func(t *testing.T) {
		_, err := CustomerID("bob")
		requireFieldError(t, err, "customer_id")
	})
}

func TestQuantity(t *testing.T) {
	tests := []struct {
		name    string
		value   any
		opts    QuantityOptions
		want    int
		wantErr bool
	}{
		{"one", 1, QuantityOptions{}, 1, false},
		{"max", 999, QuantityOptions{}, 999, false},
		{"over max", 1000, QuantityOptions{}, 0, true},
		{"zero rejected by default", 0, QuantityOptions{}, 0, true},
		{"zero allowed", 0, QuantityOptions{AllowZero: true}, 0, false},
		{"negative with zero allowed", -1, QuantityOptions{AllowZero: true}, 0, true},
		{"custom max", 11, QuantityOptions{Max: 10}, 0, true},
		{"custom min", 2, QuantityOptions{Min: 3}, 0, true},
		{"string", "12", QuantityOptions{}, 12, false},
		{"garbage", "twelve", QuantityOptions{}, 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Quantity(tt.value, tt.opts)
			if tt.wantErr {
				requireFieldError(t, err, "quantity")
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestIPAddress(t *testing.T) {
	ip, err := IPAddress("")
	require.NoError(t, err)
	assert.Equal(t, DefaultIPAddress, ip)

	for _, v := range []string{"10.1.2.3", "192.168.0.1", "::1", "2001:db8::68"} {
		got, err := IPAddress(v)
		require.NoError(t, err)
		assert.Equal(t, v, got)
	}

	for _, v := range []any{"999.1.1.1", "localhost", 12} {
		_, err := IPAddress(v)
		requireFieldError(t, err, "ip_address")
	}
}

func TestUserIdentification(t *testing.T) {
	t.Run("customer wins over ip", func(t *testing.T) {
		o, err := UserIdentification("5", "10.0.0.1")
		require.NoError(t, err)
		assert.Equal(t, cart.CustomerOwner(5), o)
	})

	t.Run("guest from ip", func(t *testing.T) {
		o, err := UserIdentification(nil, "10.0.0.1")
		require.NoError(t, err)
		assert.Equal(t, cart.GuestOwner("10.0.0.1"), o)
	})

	t.Run("neither side resolves", func(t *testing.T) {
		_, err := UserIdentification(nil, "")
		requireFieldError(t, err, "identity")
	})

	t.Run("bad customer id is reported", func(t *testing.T) {
		_, err := UserIdentification("-3", "10.0.0.1")
		requireFieldError(t, err, "customer_id")
	})
}

func TestOrderAmount(t *testing.T) {
	t.Run("rounds half away from zero", func(t *testing.T) {
		d, err := OrderAmount("29.999")
		require.NoError(t, err)
		assert.Equal(t, "30.00", d.StringFixed(2))

		d, err = OrderAmount("10.005")
		require.NoError(t, err)
		assert.Equal(t, "10.01", d.StringFixed(2))
	})

	t.Run("accepts numbers and decimals", func(t *testing.T) {
		for _, v := range []any{12, 12.5, decimal.NewFromInt(3), json.Number("1.25"), "999999.99"} {
			_, err := OrderAmount(v)
			assert.NoError(t, err, "value %#v", v)
		}
	})

	t.Run("rejects out of range", func(t *testing.T) {
		for _, v := range []any{"-1", 0, "0.001", "1000000", "abc", nil, true} {
			_, err := OrderAmount(v)
			requireFieldError(t, err, "amount")
		}
	})
}

func TestCurrency(t *testing.T) {
	c, err := Currency(nil)
	require.NoError(t, err)
	assert.Equal(t, "USD", c)

	c, err = Currency("eur")
	require.NoError(t, err)
	assert.Equal(t, "EUR", c)

	assert.Len(t, Currencies, 20)

	for _, v := range []any{"EURO", "E1R", "XXX", 840} {
		_, err := Currency(v)
		requireFieldError(t, err, "currency")
	}
}

func TestPaymentMethod(t *testing.T) {
	m, err := PaymentMethod("  PayPal ")
	require.NoError(t, err)
	assert.Equal(t, PaymentPayPal, m)

	for _, v := range PaymentMethods {
		_, err := PaymentMethod(v)
		assert.NoError(t, err)
	}

	for _, v := range []any{nil, "", "bitcoin", 3} {
		_, err := PaymentMethod(v)
		requireFieldError(t, err, "payment_method")
	}
}

func TestValidateAddToCart(t *testing.T) {
	t.Run("defaults quantity to one", func(t *testing.T) {
		got, err := ValidateAddToCart(AddToCartInput{ProductID: "3", IPAddress: "10.0.0.9"})
		require.NoError(t, err)
		assert.Equal(t, int64(3), got.ProductID)
		assert.Equal(t, 1, got.Quantity)
		assert.Equal(t, cart.GuestOwner("10.0.0.9"), got.Owner)
	})

	t.Run("reports every failing field", func(t *testing.T) {
		_, err := ValidateAddToCart(AddToCartInput{ProductID: "x", Quantity: 5000, IPAddress: "nope"})
		require.Error(t, err)
		de := shared.AsDomainError(err)
		assert.Equal(t, shared.KindValidation, de.Kind)
		assert.Equal(t, 3, de.Count)

		fields := make([]string, 0, len(de.Errors))
		for _, f := range de.Errors {
			fields = append(fields, f.Field)
		}
		assert.ElementsMatch(t, []string{"product_id", "quantity", "ip_address"}, fields)
	})
}

func TestValidateCheckout(t *testing.T) {
	t.Run("valid input", func(t *testing.T) {
		got, err := ValidateCheckout(CheckoutInput{CustomerID: 1, Amount: "10.5", PaymentMethod: "credit_card"})
		require.NoError(t, err)
		assert.Equal(t, int64(1), got.CustomerID)
		assert.Equal(t, "10.50", got.Amount.StringFixed(2))
		assert.Equal(t, "USD", got.Currency)
	})

	t.Run("guest cannot check out", func(t *testing.T) {
		_, err := ValidateCheckout(CheckoutInput{Amount: "10", PaymentMethod: "paypal"})
		requireFieldError(t, err, "customer_id")
	})

	t.Run("aggregates failures", func(t *testing.T) {
		_, err := ValidateCheckout(CheckoutInput{CustomerID: 1, Amount: "-1", Currency: "XXX"})
		de := shared.AsDomainError(err)
		assert.Equal(t, 3, de.Count)
	})
}
