package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"vendorhub/internal/validation"
	"vendorhub/pkg/domain"
	"vendorhub/pkg/entitlement"
	"vendorhub/pkg/store"
)

// seedNamespace makes fixture ids stable so reruns find existing rows.
var seedNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("https://vendorhub.local/seed"))

type fixture struct {
	Categories []categoryFixture `yaml:"categories"`
	Vendors    []vendorFixture   `yaml:"vendors"`
}

type categoryFixture struct {
	Name        string `yaml:"name"`
	Slug        string `yaml:"slug"`
	Description string `yaml:"description"`
	ImageURL    string `yaml:"imageUrl"`
}

type vendorFixture struct {
	Name        string   `yaml:"name"`
	Category    string   `yaml:"category"`
	Description string   `yaml:"description"`
	PriceRange  string   `yaml:"priceRange"`
	Location    string   `yaml:"location"`
	ImageURL    string   `yaml:"imageUrl"`
	LogoURL     string   `yaml:"logoUrl"`
	Tier        string   `yaml:"tier"`
	Dietary     []string `yaml:"dietaryOptions"`
	Cuisine     []string `yaml:"cuisineTypes"`
	Themes      []string `yaml:"themeTypes"`
}

type summary struct {
	CategoriesCreated, CategoriesSkipped int
	VendorsCreated, VendorsSkipped       int
}

func main() {
	if len(os.Args) != 2 {
		fmt.Fprintf(os.Stderr, "usage: %s <fixture.yaml>\n", os.Args[0])
		os.Exit(2)
	}
	if err := run(os.Args[1], os.Getenv("DATABASE_URL")); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(path, dsn string) error {
	dsn = strings.TrimSpace(dsn)
	if dsn == "" {
		return errors.New("DATABASE_URL is required")
	}
	fx, err := loadFixture(path)
	if err != nil {
		return err
	}
	st, err := store.NewGormStore(dsn)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer st.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()
	sum, err := seed(ctx, st, fx)
	if err != nil {
		return err
	}
	fmt.Printf("categories: %d created, %d existing\n", sum.CategoriesCreated, sum.CategoriesSkipped)
	fmt.Printf("vendors: %d created, %d existing\n", sum.VendorsCreated, sum.VendorsSkipped)
	return nil
}

func loadFixture(path string) (fixture, error) {
	var fx fixture
	data, err := os.ReadFile(path)
	if err != nil {
		return fx, fmt.Errorf("read fixture: %w", err)
	}
	if err := yaml.Unmarshal(data, &fx); err != nil {
		return fx, fmt.Errorf("parse fixture %s: %w", path, err)
	}
	return fx, nil
}

// seed writes every category and vendor that is not there yet. Vendors refer
// to categories by slug.
func seed(ctx context.Context, st store.Store, fx fixture) (summary, error) {
	var sum summary
	now := time.Now().UTC()
	categories := make(map[string]domain.Category)

	for i, c := range fx.Categories {
		name := strings.TrimSpace(c.Name)
		if name == "" {
			return sum, fmt.Errorf("categories[%d]: name is required", i)
		}
		slug := strings.TrimSpace(c.Slug)
		if slug == "" {
			slug = validation.Slugify(name)
		}
		if !validation.ValidSlug(slug) {
			return sum, fmt.Errorf("categories[%d]: invalid slug %q", i, slug)
		}
		existing, ok, err := st.GetCategoryBySlug(ctx, slug)
		if err != nil {
			return sum, fmt.Errorf("categories[%d]: %w", i, err)
		}
		if ok {
			categories[slug] = existing
			sum.CategoriesSkipped++
			continue
		}
		cat := domain.Category{
			ID:          stableID("category", slug),
			Name:        name,
			Slug:        slug,
			Description: strings.TrimSpace(c.Description),
			ImageURL:    strings.TrimSpace(c.ImageURL),
			CreatedAt:   now,
		}
		if err := st.CreateCategory(ctx, cat); err != nil {
			return sum, fmt.Errorf("categories[%d]: create %s: %w", i, slug, err)
		}
		categories[slug] = cat
		sum.CategoriesCreated++
	}

	for i, f := range fx.Vendors {
		v, err := buildVendor(ctx, st, categories, f, now)
		if err != nil {
			return sum, fmt.Errorf("vendors[%d]: %w", i, err)
		}
		_, exists, err := st.GetVendor(ctx, v.ID)
		if err != nil {
			return sum, fmt.Errorf("vendors[%d]: %w", i, err)
		}
		if exists {
			sum.VendorsSkipped++
			continue
		}
		if err := st.CreateVendor(ctx, v); err != nil {
			return sum, fmt.Errorf("vendors[%d]: create %s: %w", i, v.Name, err)
		}
		sum.VendorsCreated++
	}
	return sum, nil
}

func buildVendor(ctx context.Context, st store.Store, categories map[string]domain.Category, f vendorFixture, now time.Time) (domain.Vendor, error) {
	name := strings.TrimSpace(f.Name)
	if name == "" {
		return domain.Vendor{}, errors.New("name is required")
	}
	slug := strings.TrimSpace(f.Category)
	cat, ok := categories[slug]
	if !ok {
		found, exists, err := st.GetCategoryBySlug(ctx, slug)
		if err != nil {
			return domain.Vendor{}, err
		}
		if !exists {
			return domain.Vendor{}, fmt.Errorf("unknown category %q", slug)
		}
		cat = found
	}
	if f.PriceRange != "" && !validation.ValidPriceRange(f.PriceRange) {
		return domain.Vendor{}, fmt.Errorf("invalid priceRange %q", f.PriceRange)
	}
	tier := domain.TierFree
	if strings.TrimSpace(f.Tier) != "" {
		if tier, ok = entitlement.ParseTier(f.Tier); !ok {
			return domain.Vendor{}, fmt.Errorf("unknown tier %q", f.Tier)
		}
	}
	v := domain.Vendor{
		ID:             stableID("vendor", cat.Slug+"/"+validation.Slugify(name)),
		Name:           name,
		Description:    strings.TrimSpace(f.Description),
		ImageURL:       strings.TrimSpace(f.ImageURL),
		LogoURL:        strings.TrimSpace(f.LogoURL),
		CategoryID:     cat.ID,
		PriceRange:     f.PriceRange,
		Location:       strings.TrimSpace(f.Location),
		DietaryOptions: f.Dietary,
		CuisineTypes:   f.Cuisine,
		ThemeTypes:     f.Themes,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	entitlement.Apply(&v, tier, domain.SubscriptionActive)
	if n := validation.WordCount(v.Description); n > v.WordCount {
		return domain.Vendor{}, fmt.Errorf("description has %d words, %s tier allows %d", n, v.SubscriptionTier, v.WordCount)
	}
	return v, nil
}

func stableID(kind, key string) string {
	return uuid.NewSHA1(seedNamespace, []byte(kind+":"+key)).String()
}
