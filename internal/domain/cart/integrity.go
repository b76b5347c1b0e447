package cart

import (
	"fmt"
	"time"
)

// IssueType names a class of cart integrity problem
type IssueType string

const (
	IssueOrphanedProducts  IssueType = "orphaned_products"
	IssueInvalidQuantities IssueType = "invalid_quantities"
	IssueDuplicateEntries  IssueType = "duplicate_entries"
)

// Severity grades an integrity issue
type Severity string

const (
	SeverityMedium Severity = "medium"
	SeverityHigh   Severity = "high"
)

// Report status values
const (
	StatusHealthy     = "healthy"
	StatusIssuesFound = "issues_found"
)

// OrphanedLine is a cart line whose product no longer exists
type OrphanedLine struct {
	LineID    int64 `json:"line_id"`
	ProductID int64 `json:"product_id"`
	Quantity  int   `json:"quantity"`
}

// InvalidQuantityLine is a cart line with quantity outside 1..MaxQuantity
type InvalidQuantityLine struct {
	LineID    int64 `json:"line_id"`
	ProductID int64 `json:"product_id"`
	Quantity  int   `json:"quantity"`
}

// DuplicateGroup is a set of lines sharing product and owner
type DuplicateGroup struct {
	ProductID      int64 `json:"product_id"`
	Count          int   `json:"count"`
	MergedQuantity int   `json:"merged_quantity"`
}

// Issue is one entry in an integrity report
type Issue struct {
	Type        IssueType `json:"type"`
	Severity    Severity  `json:"severity"`
	Count       int       `json:"count"`
	Description string    `json:"description"`
	Details     any       `json:"details,omitempty"`
}

// IntegrityReport is the result of auditing one cart
type IntegrityReport struct {
	Owner             Owner     `json:"owner"`
	Status            string    `json:"status"`
	TotalIssues       int       `json:"total_issues"`
	HasCriticalIssues bool      `json:"has_critical_issues"`
	Issues            []Issue   `json:"issues"`
	CheckedAt         time.Time `json:"checked_at"`
}

// Healthy reports whether the audit found nothing
func (r *IntegrityReport) Healthy() bool {
	return r.Status == StatusHealthy
}

// Issue returns the issue of the given type, if present
func (r *IntegrityReport) Issue(t IssueType) (Issue, bool) {
	for _, is := range r.Issues {
		if is.Type == t {
			return is, true
		}
	}
	return Issue{}, false
}

// BuildIntegrityReport assembles the audit result from the three detectors.
// Invalid quantities are the only critical issue.
func BuildIntegrityReport(owner Owner, orphans []OrphanedLine, invalid []InvalidQuantityLine, dups []DuplicateGroup, now time.Time) *IntegrityReport {
	r := &IntegrityReport{
		Owner:     owner,
		Status:    StatusHealthy,
		Issues:    []Issue{},
		CheckedAt: now,
	}
	if len(orphans) > 0 {
		r.Issues = append(r.Issues, Issue{
			Type:        IssueOrphanedProducts,
			Severity:    SeverityMedium,
			Count:       len(orphans),
			Description: fmt.Sprintf("%d cart line(s) reference products that no longer exist", len(orphans)),
			Details:     orphans,
		})
	}
	if len(invalid) > 0 {
		r.Issues = append(r.Issues, Issue{
			Type:        IssueInvalidQuantities,
			Severity:    SeverityHigh,
			Count:       len(invalid),
			Description: fmt.Sprintf("%d cart line(s) have a quantity outside 1..%d", len(invalid), MaxQuantity),
			Details:     invalid,
		})
		r.HasCriticalIssues = true
	}
	if len(dups) > 0 {
		r.Issues = append(r.Issues, Issue{
			Type:        IssueDuplicateEntries,
			Severity:    SeverityMedium,
			Count:       len(dups),
			Description: fmt.Sprintf("%d product(s) appear on more than one cart line", len(dups)),
			Details:     dups,
		})
	}
	r.TotalIssues = len(r.Issues)
	if r.TotalIssues > 0 {
		r.Status = StatusIssuesFound
	}
	return r
}

// RepairOptions selects which repairs to run
type RepairOptions struct {
	RemoveOrphaned  bool `json:"remove_orphaned"`
	FixQuantities   bool `json:"fix_quantities"`
	MergeDuplicates bool `json:"merge_duplicates"`
}

// DefaultRepairOptions enables every repair
func DefaultRepairOptions() RepairOptions {
	return RepairOptions{RemoveOrphaned: true, FixQuantities: true, MergeDuplicates: true}
}

// Any reports whether at least one repair is selected
func (o RepairOptions) Any() bool {
	return o.RemoveOrphaned || o.FixQuantities || o.MergeDuplicates
}

// RepairResult is the outcome of one repair type
type RepairResult struct {
	Type     IssueType `json:"type"`
	Success  bool      `json:"success"`
	Affected int64     `json:"affected"`
	Kind     string    `json:"kind,omitempty"`
	Error    string    `json:"error,omitempty"`
}

// RepairReport collects the outcome of every requested repair
type RepairReport struct {
	Owner   Owner          `json:"owner"`
	Results []RepairResult `json:"results"`
}

// Success reports whether every requested repair succeeded
func (r *RepairReport) Success() bool {
	for _, res := range r.Results {
		if !res.Success {
			return false
		}
	}
	return true
}

// Result returns the result for one repair type, if it ran
func (r *RepairReport) Result(t IssueType) (RepairResult, bool) {
	for _, res := range r.Results {
		if res.Type == t {
			return res, true
		}
	}
	return RepairResult{}, false
}
