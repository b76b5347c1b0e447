package persistence

import (
	"strings"
)

// sortSpec turns a caller supplied order_by/order_dir pair into an ORDER BY
// clause. Only whitelisted columns are ever interpolated.
type sortSpec struct {
	allowed    map[string]bool
	prefix     string
	defaultBy  string
	defaultDir string
	tiebreak   string
}

var productSort = sortSpec{
	allowed:    map[string]bool{"product_id": true, "title": true, "price": true},
	prefix:     "p.",
	defaultBy:  "title",
	defaultDir: "ASC",
	tiebreak:   "p.product_id ASC",
}

var orderSort = sortSpec{
	allowed:    map[string]bool{"order_id": true, "order_date": true, "invoice_no": true, "order_status": true},
	defaultBy:  "order_date",
	defaultDir: "DESC",
	tiebreak:   "order_id DESC",
}

// clause returns "<column> <dir>, <tiebreak>"
func (s sortSpec) clause(orderBy, orderDir string) string {
	field := strings.TrimSpace(orderBy)
	if !s.allowed[field] {
		field = s.defaultBy
	}
	return s.prefix + field + " " + sortDirection(orderDir, s.defaultDir) + ", " + s.tiebreak
}

// sortDirection normalizes dir to ASC or DESC, falling back to def
func sortDirection(dir, def string) string {
	switch strings.ToUpper(strings.TrimSpace(dir)) {
	case "ASC":
		return "ASC"
	case "DESC":
		return "DESC"
	default:
		return def
	}
}
