package types

import "github.com/shopspring/decimal"

// Plan is an immutable catalog entry. The catalog is owned by configuration
// (see pkg/config); this core never mutates plans.
type Plan struct {
	ID           string          `json:"id" mapstructure:"id"`
	Code         string          `json:"code" mapstructure:"code"`
	Name         string          `json:"name" mapstructure:"name"`
	PriceMonthly decimal.Decimal `json:"price_monthly" mapstructure:"price_monthly"`
	PriceYearly  decimal.Decimal `json:"price_yearly" mapstructure:"price_yearly"`
	Currency     string          `json:"currency" mapstructure:"currency"`
	MaxEmails    int64           `json:"max_emails" mapstructure:"max_emails"`
	MaxAccounts  int64           `json:"max_accounts" mapstructure:"max_accounts"`
	MaxCampaigns int64           `json:"max_campaigns" mapstructure:"max_campaigns"`
	MaxLeads     int64           `json:"max_leads" mapstructure:"max_leads"`
}

// PriceFor returns the plan price for the given billing cycle.
func (p *Plan) PriceFor(cycle BillingCycle) decimal.Decimal {
	if cycle == BillingCycleYearly {
		return p.PriceYearly
	}
	return p.PriceMonthly
}
