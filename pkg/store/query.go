package store

import (
	"math"
	"slices"
	"strings"

	"vendorhub/pkg/domain"
)

const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)

// VendorQuery filters and pages the vendor catalog. Empty fields do not
// constrain the result.
type VendorQuery struct {
	Search     string
	CategoryID string
	Location   string
	PriceRange string
	Dietary    []string
	Cuisine    []string
	Theme      []string
	Page       int
	Limit      int
}

// Normalize trims inputs, drops blank set members and clamps paging.
func (q VendorQuery) Normalize() VendorQuery {
	q.Search = strings.TrimSpace(q.Search)
	q.CategoryID = strings.TrimSpace(q.CategoryID)
	q.Location = strings.TrimSpace(q.Location)
	q.PriceRange = strings.TrimSpace(q.PriceRange)
	q.Dietary = cleanSet(q.Dietary)
	q.Cuisine = cleanSet(q.Cuisine)
	q.Theme = cleanSet(q.Theme)
	if q.Page < 1 {
		q.Page = 1
	}
	if q.Limit <= 0 {
		q.Limit = DefaultPageSize
	}
	if q.Limit > MaxPageSize {
		q.Limit = MaxPageSize
	}
	// Clamp so the offset of the last page still fits in an int.
	if q.Page-1 > math.MaxInt/q.Limit {
		q.Page = math.MaxInt/q.Limit + 1
	}
	return q
}

// Offset is the zero-based row offset of the page.
func (q VendorQuery) Offset() int {
	if q.Page < 1 || q.Limit < 1 {
		return 0
	}
	if q.Page-1 > math.MaxInt/q.Limit {
		return math.MaxInt
	}
	return (q.Page - 1) * q.Limit
}

// Matches evaluates the filters against v in memory.
func (q VendorQuery) Matches(v domain.Vendor) bool {
	if q.Search != "" {
		needle := strings.ToLower(q.Search)
		if !strings.Contains(strings.ToLower(v.Name), needle) &&
			!strings.Contains(strings.ToLower(v.Description), needle) {
			return false
		}
	}
	if q.CategoryID != "" && v.CategoryID != q.CategoryID {
		return false
	}
	if q.Location != "" && !strings.Contains(strings.ToLower(v.Location), strings.ToLower(q.Location)) {
		return false
	}
	if q.PriceRange != "" && v.PriceRange != q.PriceRange {
		return false
	}
	return containsAll(v.DietaryOptions, q.Dietary) &&
		containsAll(v.CuisineTypes, q.Cuisine) &&
		containsAll(v.ThemeTypes, q.Theme)
}

// CompareVendors orders by rating descending, then id ascending.
func CompareVendors(a, b domain.Vendor) int {
	switch {
	case a.Rating > b.Rating:
		return -1
	case a.Rating < b.Rating:
		return 1
	}
	return strings.Compare(a.ID, b.ID)
}

func containsAll(have, want []string) bool {
	for _, w := range want {
		if !slices.Contains(have, w) {
			return false
		}
	}
	return true
}

func cleanSet(values []string) []string {
	if len(values) == 0 {
		return nil
	}
	out := make([]string, 0, len(values))
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v == "" || slices.Contains(out, v) {
			continue
		}
		out = append(out, v)
	}
	return out
}

// likePattern escapes LIKE metacharacters and wraps term for substring search.
func likePattern(term string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return "%" + r.Replace(term) + "%"
}
