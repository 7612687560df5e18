// Package entitlement maps a vendor subscription tier to the capabilities it
// unlocks. The mapping is pure; callers persist the result alongside the tier.
package entitlement

import (
	"strings"

	"vendorhub/pkg/domain"
)

// Entitlements is the capability bundle of one tier.
type Entitlements struct {
	Tier           domain.SubscriptionTier `json:"tier"`
	CataloguePages int                     `json:"cataloguePages"`
	ReviewsEnabled bool                    `json:"reviewsEnabled"`
	PhotoLimit     int                     `json:"photoLimit"`
	WordCount      int                     `json:"wordCount"`
}

var table = map[domain.SubscriptionTier]Entitlements{
	domain.TierFree:       {Tier: domain.TierFree, CataloguePages: 0, ReviewsEnabled: false, PhotoLimit: 1, WordCount: 50},
	domain.TierBasic:      {Tier: domain.TierBasic, CataloguePages: 2, ReviewsEnabled: false, PhotoLimit: 2, WordCount: 150},
	domain.TierPro:        {Tier: domain.TierPro, CataloguePages: 6, ReviewsEnabled: false, PhotoLimit: 8, WordCount: 300},
	domain.TierPremium:    {Tier: domain.TierPremium, CataloguePages: 8, ReviewsEnabled: true, PhotoLimit: 100, WordCount: 500},
	domain.TierPremiumPro: {Tier: domain.TierPremiumPro, CataloguePages: 10, ReviewsEnabled: true, PhotoLimit: 15, WordCount: 1000},
}

// Tiers lists every known tier from lowest to highest.
var Tiers = []domain.SubscriptionTier{
	domain.TierFree,
	domain.TierBasic,
	domain.TierPro,
	domain.TierPremium,
	domain.TierPremiumPro,
}

// ParseTier normalizes a tier identifier. It accepts the canonical names plus
// the "premium_pro"/"premium-pro" spellings used by some clients.
func ParseTier(raw string) (domain.SubscriptionTier, bool) {
	normalized := strings.ToLower(strings.TrimSpace(raw))
	normalized = strings.NewReplacer("_", " ", "-", " ").Replace(normalized)
	normalized = strings.Join(strings.Fields(normalized), " ")
	tier := domain.SubscriptionTier(normalized)
	if _, ok := table[tier]; !ok {
		return "", false
	}
	return tier, true
}

// ParseStatus normalizes a subscription status.
func ParseStatus(raw string) (domain.SubscriptionStatus, bool) {
	switch domain.SubscriptionStatus(strings.ToLower(strings.TrimSpace(raw))) {
	case domain.SubscriptionActive:
		return domain.SubscriptionActive, true
	case domain.SubscriptionInactive:
		return domain.SubscriptionInactive, true
	case domain.SubscriptionCanceled, "cancelled":
		return domain.SubscriptionCanceled, true
	default:
		return "", false
	}
}

// ForTier returns the bundle for tier. Unknown tiers get the free bundle.
func ForTier(tier domain.SubscriptionTier) Entitlements {
	if e, ok := table[tier]; ok {
		return e
	}
	return table[domain.TierFree]
}

// Resolve returns the tier that takes effect for (tier, status) together with
// its bundle. A canceled subscription always falls back to free.
func Resolve(tier domain.SubscriptionTier, status domain.SubscriptionStatus) (domain.SubscriptionTier, Entitlements) {
	if status == domain.SubscriptionCanceled {
		return domain.TierFree, table[domain.TierFree]
	}
	e := ForTier(tier)
	return e.Tier, e
}

// Apply writes tier, status and the derived fields onto v.
func Apply(v *domain.Vendor, tier domain.SubscriptionTier, status domain.SubscriptionStatus) {
	effective, e := Resolve(tier, status)
	v.SubscriptionTier = effective
	v.SubscriptionStatus = status
	v.CataloguePages = e.CataloguePages
	v.WordCount = e.WordCount
	v.PhotoLimit = e.PhotoLimit
	v.ReviewsEnabled = e.ReviewsEnabled
}

// Consistent reports whether v's derived fields match its tier.
func Consistent(v domain.Vendor) bool {
	e := ForTier(v.SubscriptionTier)
	return v.CataloguePages == e.CataloguePages &&
		v.WordCount == e.WordCount &&
		v.PhotoLimit == e.PhotoLimit &&
		v.ReviewsEnabled == e.ReviewsEnabled
}
