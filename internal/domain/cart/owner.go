package cart

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/storefront/backend/internal/domain/shared"
)

// OwnerType tells which identity a cart belongs to
type OwnerType string

const (
	OwnerTypeCustomer OwnerType = "customer"
	OwnerTypeGuest    OwnerType = "guest"
)

// Owner identifies whose cart a line belongs to.
// Exactly one of customer id or guest IP is set; the zero value is no owner.
type Owner struct {
	kind       OwnerType
	customerID int64
	ip         string
}

// CustomerOwner returns the owner for an authenticated customer
func CustomerOwner(customerID int64) Owner {
	return Owner{kind: OwnerTypeCustomer, customerID: customerID}
}

// GuestOwner returns the owner for an anonymous visitor keyed by IP address
func GuestOwner(ip string) Owner {
	return Owner{kind: OwnerTypeGuest, ip: ip}
}

// Type returns the owner type, empty for the zero Owner
func (o Owner) Type() OwnerType {
	return o.kind
}

// IsZero reports whether the owner was never set
func (o Owner) IsZero() bool {
	return o.kind == ""
}

// Validate rejects owners that cannot key a cart line. A guest needs an IP
// address and a customer a positive id, mirroring the cart_details
// owner check constraint.
func (o Owner) Validate() error {
	switch o.kind {
	case OwnerTypeCustomer:
		if o.customerID <= 0 {
			return shared.NewValidationError("customer_id", "must be a positive integer", o.customerID)
		}
		return nil
	case OwnerTypeGuest:
		if o.ip == "" {
			return shared.NewValidationError("ip_address", "is required for a guest cart", o.ip)
		}
		return nil
	}
	return shared.NewValidationError("identity", "either customer_id or ip_address is required", nil)
}

// IsCustomer reports whether the owner is an authenticated customer
func (o Owner) IsCustomer() bool {
	return o.kind == OwnerTypeCustomer
}

// IsGuest reports whether the owner is a guest
func (o Owner) IsGuest() bool {
	return o.kind == OwnerTypeGuest
}

// CustomerID returns the customer id and true for customer owners
func (o Owner) CustomerID() (int64, bool) {
	return o.customerID, o.kind == OwnerTypeCustomer
}

// IPAddress returns the guest IP and true for guest owners
func (o Owner) IPAddress() (string, bool) {
	return o.ip, o.kind == OwnerTypeGuest
}

func (o Owner) String() string {
	switch o.kind {
	case OwnerTypeCustomer:
		return "customer:" + strconv.FormatInt(o.customerID, 10)
	case OwnerTypeGuest:
		return "guest:" + o.ip
	}
	return "none"
}

type ownerJSON struct {
	Type       OwnerType `json:"type"`
	CustomerID *int64    `json:"customer_id,omitempty"`
	IPAddress  string    `json:"ip_address,omitempty"`
}

// MarshalJSON implements json.Marshaler
func (o Owner) MarshalJSON() ([]byte, error) {
	out := ownerJSON{Type: o.kind}
	if o.IsCustomer() {
		id := o.customerID
		out.CustomerID = &id
	}
	if o.IsGuest() {
		out.IPAddress = o.ip
	}
	return json.Marshal(out)
}

// UnmarshalJSON implements json.Unmarshaler
func (o *Owner) UnmarshalJSON(data []byte) error {
	var in ownerJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	switch in.Type {
	case OwnerTypeCustomer:
		if in.CustomerID == nil {
			return fmt.Errorf("customer owner without customer_id")
		}
		*o = CustomerOwner(*in.CustomerID)
	case OwnerTypeGuest:
		*o = GuestOwner(in.IPAddress)
	case "":
		*o = Owner{}
	default:
		return fmt.Errorf("unknown owner type %q", in.Type)
	}
	return nil
}
