package domain

import (
	"fmt"
	"slices"
	"time"
)

// Tier is a purchasable premium plan.
type Tier string

const (
	TierMonthly  Tier = "monthly"
	TierYearly   Tier = "yearly"
	TierLifetime Tier = "lifetime"

	// TierFree is reported for tenants without a live entitlement. It is never stored on a license.
	TierFree Tier = "free"
)

// ParseTier validates a tier name supplied at a boundary.
func ParseTier(s string) (Tier, error) {
	switch t := Tier(s); t {
	case TierMonthly, TierYearly, TierLifetime:
		return t, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownTier, s)
	}
}

func (t Tier) String() string { return string(t) }

// Feature identifies a single gated capability.
type Feature string

const (
	FeatureUnlimitedKeywordFiltering Feature = "unlimited_keyword_filtering"
	FeatureAdvancedRaidProtection    Feature = "advanced_raid_protection"
	FeaturePremiumEconomyActivities  Feature = "premium_economy_activities"
	FeatureExtendedLogs90Days        Feature = "extended_logs_90_days"
	FeatureWebDashboardAccess        Feature = "web_dashboard_access"
	FeatureCustomCommands20          Feature = "custom_commands_20"
	FeatureCustomCommands50          Feature = "custom_commands_50"
	FeatureCustomCommandsUnlimited   Feature = "custom_commands_unlimited"
	FeatureGlobalLeaderboard         Feature = "global_leaderboard"
	FeatureBulkPurge50000            Feature = "bulk_purge_50000"
	FeatureAPIAccess                 Feature = "api_access"
	FeaturePrioritySupport           Feature = "priority_support"
	FeatureEarlyAccessFeatures       Feature = "early_access_features"
	FeatureCustomBranding            Feature = "custom_branding"
)

var knownFeatures = []Feature{
	FeatureUnlimitedKeywordFiltering,
	FeatureAdvancedRaidProtection,
	FeaturePremiumEconomyActivities,
	FeatureExtendedLogs90Days,
	FeatureWebDashboardAccess,
	FeatureCustomCommands20,
	FeatureCustomCommands50,
	FeatureCustomCommandsUnlimited,
	FeatureGlobalLeaderboard,
	FeatureBulkPurge50000,
	FeatureAPIAccess,
	FeaturePrioritySupport,
	FeatureEarlyAccessFeatures,
	FeatureCustomBranding,
}

// KnownFeatures returns every feature the catalog can grant.
func KnownFeatures() []Feature {
	return slices.Clone(knownFeatures)
}

// ParseFeature rejects feature names the product does not know about.
func ParseFeature(s string) (Feature, error) {
	f := Feature(s)
	if !slices.Contains(knownFeatures, f) {
		return "", fmt.Errorf("%w: %q", ErrUnknownFeature, s)
	}
	return f, nil
}

// FeatureSet is an ordered list of features.
type FeatureSet []Feature

// Contains reports whether f is in the set.
func (s FeatureSet) Contains(f Feature) bool {
	return slices.Contains(s, f)
}

// Strings returns the feature names in order.
func (s FeatureSet) Strings() []string {
	out := make([]string, len(s))
	for i, f := range s {
		out[i] = string(f)
	}
	return out
}

// Plan describes what a tier costs and unlocks.
type Plan struct {
	Tier         Tier
	Name         string
	PriceCents   int64
	Currency     string
	DurationDays int // zero means the plan never expires
	Features     FeatureSet
}

// Expiring reports whether licenses of this plan carry an expiry.
func (p Plan) Expiring() bool {
	return p.DurationDays > 0
}

// ExpiresFrom computes the effective expiry of a license activated at now.
// A preset expiry carried by the license wins for expiring plans; non-expiring
// plans always return nil.
func (p Plan) ExpiresFrom(now time.Time, preset *time.Time) *time.Time {
	if !p.Expiring() {
		return nil
	}
	if preset != nil {
		at := preset.UTC()
		return &at
	}
	at := now.UTC().AddDate(0, 0, p.DurationDays)
	return &at
}

// Catalog is the immutable tier table consulted by activation and resolution.
type Catalog struct {
	plans map[Tier]Plan
	order []Tier
}

// NewCatalog builds a catalog from plans. Duplicate tiers and unknown features are rejected.
func NewCatalog(plans ...Plan) (*Catalog, error) {
	c := &Catalog{plans: make(map[Tier]Plan, len(plans))}
	for _, p := range plans {
		if _, err := ParseTier(string(p.Tier)); err != nil {
			return nil, err
		}
		if _, dup := c.plans[p.Tier]; dup {
			return nil, fmt.Errorf("duplicate plan for tier %q", p.Tier)
		}
		for _, f := range p.Features {
			if _, err := ParseFeature(string(f)); err != nil {
				return nil, err
			}
		}
		if p.DurationDays < 0 {
			return nil, fmt.Errorf("plan %q has negative duration", p.Tier)
		}
		p.Features = slices.Clone(p.Features)
		c.plans[p.Tier] = p
		c.order = append(c.order, p.Tier)
	}
	return c, nil
}

// DefaultCatalog returns the product's standard plans.
func DefaultCatalog() *Catalog {
	monthly := FeatureSet{
		FeatureUnlimitedKeywordFiltering,
		FeatureAdvancedRaidProtection,
		FeaturePremiumEconomyActivities,
		FeatureExtendedLogs90Days,
		FeatureWebDashboardAccess,
		FeatureCustomCommands20,
		FeatureGlobalLeaderboard,
		FeatureBulkPurge50000,
	}
	yearly := FeatureSet{
		FeatureUnlimitedKeywordFiltering,
		FeatureAdvancedRaidProtection,
		FeaturePremiumEconomyActivities,
		FeatureExtendedLogs90Days,
		FeatureWebDashboardAccess,
		FeatureCustomCommands50,
		FeatureGlobalLeaderboard,
		FeatureBulkPurge50000,
		FeatureAPIAccess,
		FeaturePrioritySupport,
	}
	lifetime := FeatureSet{
		FeatureUnlimitedKeywordFiltering,
		FeatureAdvancedRaidProtection,
		FeaturePremiumEconomyActivities,
		FeatureExtendedLogs90Days,
		FeatureWebDashboardAccess,
		FeatureCustomCommandsUnlimited,
		FeatureGlobalLeaderboard,
		FeatureBulkPurge50000,
		FeatureAPIAccess,
		FeaturePrioritySupport,
		FeatureEarlyAccessFeatures,
		FeatureCustomBranding,
	}

	c, err := NewCatalog(
		Plan{Tier: TierMonthly, Name: "Monthly Premium", PriceCents: 499, Currency: "USD", DurationDays: 30, Features: monthly},
		Plan{Tier: TierYearly, Name: "Yearly Premium", PriceCents: 4999, Currency: "USD", DurationDays: 365, Features: yearly},
		Plan{Tier: TierLifetime, Name: "Lifetime Premium", PriceCents: 6000, Currency: "USD", Features: lifetime},
	)
	if err != nil {
		panic(err)
	}
	return c
}

// Plan returns the plan for a tier.
func (c *Catalog) Plan(t Tier) (Plan, error) {
	p, ok := c.plans[t]
	if !ok {
		return Plan{}, fmt.Errorf("%w: %q", ErrUnknownTier, t)
	}
	p.Features = slices.Clone(p.Features)
	return p, nil
}

// Plans returns every plan in catalog order.
func (c *Catalog) Plans() []Plan {
	out := make([]Plan, 0, len(c.order))
	for _, t := range c.order {
		p, _ := c.Plan(t)
		out = append(out, p)
	}
	return out
}
