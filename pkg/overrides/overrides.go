// Package overrides rewrites seller ids for (customer, company) pairs whose credentials live
// under another seller account.
package overrides

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/Gobusters/ectolinq"
)

// Default keeps the one production rule in force when nothing is configured.
const Default = "209:115:2147483647=2473756526"

// Rule replaces SellerID with Replacement for one customer of one company
type Rule struct {
	CustomerID  int64
	CompanyID   int64
	SellerID    string
	Replacement string
}

type Table struct {
	rules []Rule
}

func NewTable(rules ...Rule) Table {
	return Table{rules: rules}
}

// Parse reads rules written as "customer:company:seller=replacement", separated by ";".
func Parse(raw string) (Table, error) {
	var rules []Rule
	for _, entry := range strings.Split(raw, ";") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}

		match, replacement, ok := strings.Cut(entry, "=")
		if !ok {
			return Table{}, fmt.Errorf("override %q: missing '='", entry)
		}
		parts := strings.Split(match, ":")
		if len(parts) != 3 {
			return Table{}, fmt.Errorf("override %q: expected customer:company:seller", entry)
		}

		customerID, err := strconv.ParseInt(strings.TrimSpace(parts[0]), 10, 64)
		if err != nil {
			return Table{}, fmt.Errorf("override %q: invalid customer id: %w", entry, err)
		}
		companyID, err := strconv.ParseInt(strings.TrimSpace(parts[1]), 10, 64)
		if err != nil {
			return Table{}, fmt.Errorf("override %q: invalid company id: %w", entry, err)
		}

		rule := Rule{
			CustomerID:  customerID,
			CompanyID:   companyID,
			SellerID:    strings.TrimSpace(parts[2]),
			Replacement: strings.TrimSpace(replacement),
		}
		if rule.SellerID == "" || rule.Replacement == "" {
			return Table{}, fmt.Errorf("override %q: seller and replacement are required", entry)
		}
		rules = append(rules, rule)
	}
	return Table{rules: rules}, nil
}

// Apply returns the seller id to resolve credentials for
func (t Table) Apply(customerID, companyID int64, sellerID string) string {
	rule := ectolinq.Find(t.rules, func(r Rule) bool {
		return r.CustomerID == customerID && r.CompanyID == companyID && r.SellerID == sellerID
	})
	if ectolinq.IsEmpty(rule) {
		return sellerID
	}
	return rule.Replacement
}

func (t Table) Len() int {
	return len(t.rules)
}
