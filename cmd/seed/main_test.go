package main

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"vendorhub/pkg/domain"
	"vendorhub/pkg/store"
)

const testFixture = `
categories:
  - name: Wedding Caterers
    description: Food for the big day
  - name: Venues
    slug: venues
vendors:
  - name: Golden Spoon
    category: wedding-caterers
    priceRange: "$$"
    location: Austin, TX
    tier: premium
    dietaryOptions: [vegan, halal]
  - name: Old Mill Hall
    category: venues
    priceRange: "$$$"
`

func loadTestFixture(t *testing.T, body string) fixture {
	t.Helper()
	path := filepath.Join(t.TempDir(), "fixture.yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write fixture: %v", err)
	}
	fx, err := loadFixture(path)
	if err != nil {
		t.Fatalf("load fixture: %v", err)
	}
	return fx
}

func TestSeedCreatesThenSkips(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemoryStore()
	fx := loadTestFixture(t, testFixture)

	sum, err := seed(ctx, st, fx)
	if err != nil {
		t.Fatalf("seed: %v", err)
	}
	if sum.CategoriesCreated != 2 || sum.VendorsCreated != 2 {
		t.Fatalf("first run summary = %+v", sum)
	}

	cat, ok, err := st.GetCategoryBySlug(ctx, "wedding-caterers")
	if err != nil || !ok {
		t.Fatalf("derived slug not found: ok=%v err=%v", ok, err)
	}
	vendors, err := st.SearchVendors(ctx, store.VendorQuery{CategoryID: cat.ID})
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(vendors) != 1 {
		t.Fatalf("vendors in category = %d, want 1", len(vendors))
	}
	v := vendors[0]
	if v.SubscriptionTier != domain.TierPremium || !v.ReviewsEnabled || v.CataloguePages != 8 {
		t.Fatalf("entitlements not applied: %+v", v)
	}

	sum, err = seed(ctx, st, fx)
	if err != nil {
		t.Fatalf("second seed: %v", err)
	}
	if sum.CategoriesCreated != 0 || sum.CategoriesSkipped != 2 || sum.VendorsCreated != 0 || sum.VendorsSkipped != 2 {
		t.Fatalf("second run summary = %+v", sum)
	}
}

func TestSeedRejectsBadFixtures(t *testing.T) {
	cases := []struct {
		name string
		body string
		want string
	}{
		{"unknown category", "vendors:\n  - name: X\n    category: nope\n", "unknown category"},
		{"bad tier", "categories:\n  - name: Venues\nvendors:\n  - name: X\n    category: venues\n    tier: gold\n", "unknown tier"},
		{"bad price", "categories:\n  - name: Venues\nvendors:\n  - name: X\n    category: venues\n    priceRange: cheap\n", "priceRange"},
		{"too many words", "categories:\n  - name: Venues\nvendors:\n  - name: X\n    category: venues\n    description: \"" + strings.Repeat("word ", 51) + "\"\n", "words"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			fx := loadTestFixture(t, tc.body)
			_, err := seed(context.Background(), store.NewMemoryStore(), fx)
			if err == nil || !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("err = %v, want mention of %q", err, tc.want)
			}
		})
	}
}

func TestRunValidatesBeforeConnecting(t *testing.T) {
	if err := run("fixture.yaml", "  "); err == nil || !strings.Contains(err.Error(), "DATABASE_URL") {
		t.Fatalf("err = %v, want DATABASE_URL error", err)
	}
	missing := filepath.Join(t.TempDir(), "missing.yaml")
	if err := run(missing, "postgres://localhost/vendorhub"); err == nil || !strings.Contains(err.Error(), "read fixture") {
		t.Fatalf("err = %v, want read fixture error", err)
	}
}
