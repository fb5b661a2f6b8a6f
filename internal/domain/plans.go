package domain

// Plan is read-only reference data describing a purchasable plan. The
// ProviderPriceID ties it to the processor's price object; CommissionRate
// is the platform's cut applied downstream, not by this service.
type Plan struct {
	ID              string  `json:"id"`
	Name            string  `json:"name"`
	PriceUSD        int64   `json:"priceUsd"` // monthly price in USD cents
	ProviderPriceID string  `json:"-"`
	CommissionRate  float64 `json:"commissionRate"`
	TrialDays       int     `json:"trialDays"`
	Popular         bool    `json:"popular"`
}

// AvailablePlans returns all purchasable plans.
func AvailablePlans() []Plan {
	return []Plan{
		{
			ID:              "starter",
			Name:            "Starter",
			PriceUSD:        900, // $9/mo
			ProviderPriceID: "price_starter_monthly",
			CommissionRate:  0.15,
			TrialDays:       0,
			Popular:         false,
		},
		{
			ID:              "pro",
			Name:            "Pro",
			PriceUSD:        2900, // $29/mo
			ProviderPriceID: "price_pro_monthly",
			CommissionRate:  0.12,
			TrialDays:       14,
			Popular:         true,
		},
		{
			ID:              "business",
			Name:            "Business",
			PriceUSD:        9900, // $99/mo
			ProviderPriceID: "price_business_monthly",
			CommissionRate:  0.10,
			TrialDays:       14,
			Popular:         false,
		},
	}
}

// LookupPlan returns the plan for a given ID, or false if it doesn't exist.
func LookupPlan(id string) (Plan, bool) {
	for _, p := range AvailablePlans() {
		if p.ID == id {
			return p, true
		}
	}
	return Plan{}, false
}
