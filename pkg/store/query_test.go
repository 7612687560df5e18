package store

import (
	"math"
	"testing"

	"vendorhub/pkg/domain"
)

func TestVendorQueryNormalize(t *testing.T) {
	q := VendorQuery{Search: "  cake ", Page: 0, Limit: 500, Dietary: []string{" vegan", "", "vegan"}}.Normalize()
	if q.Search != "cake" || q.Page != 1 || q.Limit != MaxPageSize {
		t.Fatalf("unexpected normalized query: %+v", q)
	}
	if len(q.Dietary) != 1 || q.Dietary[0] != "vegan" {
		t.Fatalf("dietary = %v, want [vegan]", q.Dietary)
	}
	if d := (VendorQuery{}).Normalize(); d.Limit != DefaultPageSize {
		t.Fatalf("default limit = %d, want %d", d.Limit, DefaultPageSize)
	}
	if off := (VendorQuery{Page: 3, Limit: 10}).Offset(); off != 20 {
		t.Fatalf("offset = %d, want 20", off)
	}
}

func TestVendorQueryOffsetDoesNotOverflow(t *testing.T) {
	for _, limit := range []int{1, 20, MaxPageSize} {
		q := VendorQuery{Page: math.MaxInt, Limit: limit}.Normalize()
		off := q.Offset()
		if off < 0 {
			t.Fatalf("limit %d: offset = %d, want non-negative", limit, off)
		}
		if off < math.MaxInt-limit {
			t.Fatalf("limit %d: offset = %d, want the last addressable page", limit, off)
		}
	}
	if off := (VendorQuery{Page: math.MaxInt, Limit: 20}).Offset(); off != math.MaxInt {
		t.Fatalf("unnormalized offset = %d, want MaxInt", off)
	}
}

func TestLikePatternEscapesWildcards(t *testing.T) {
	if got := likePattern(`50%_off\`); got != `%50\%\_off\\%` {
		t.Fatalf("likePattern = %q", got)
	}
}

func TestAggregateExcludesRejected(t *testing.T) {
	reviews := []domain.Review{
		{Rating: 5, Status: domain.ReviewApproved},
		{Rating: 4, Status: domain.ReviewPending},
		{Rating: 1, Status: domain.ReviewRejected},
		{Rating: 4, Status: domain.ReviewApproved},
	}
	avg, n := Aggregate(reviews)
	if n != 3 || avg != 4.3 {
		t.Fatalf("aggregate = %.2f/%d, want 4.3/3", avg, n)
	}
	if avg, n := Aggregate(nil); avg != 0 || n != 0 {
		t.Fatalf("empty aggregate = %.1f/%d", avg, n)
	}
}
