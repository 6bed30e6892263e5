package config

// Tax categories understood by the rate table.
const (
	TaxEquities      = "equities"
	TaxREITs         = "reits"
	TaxBondsTreasury = "bonds_treasury"
	TaxBondsMuni     = "bonds_muni"
	TaxBondsOther    = "bonds_other"
	TaxCollectibles  = "collectibles"
)

// TaxTreatment holds the three rates applied to one asset's gains:
// short-term and long-term capital gains, and income (dividends and
// bond payments).
type TaxTreatment struct {
	ShortTerm float64
	LongTerm  float64
	Income    float64
}

// collectiblesLTCap is the federal long-term rate on collectibles (gold,
// silver). It never exceeds the holder's short-term federal rate.
const collectiblesLTCap = 0.28

// RatesByCategory expands the four marginal input rates into per-category
// treatments. Treasury income is state-exempt, municipal bond income is
// federally exempt, REIT dividends are taxed as ordinary income.
func RatesByCategory(tr TaxRates) map[string]TaxTreatment {
	st := tr.StateShortTerm + tr.FedShortTerm
	lt := tr.StateLongTerm + tr.FedLongTerm

	collectiblesLT := collectiblesLTCap
	if collectiblesLT > tr.FedShortTerm {
		collectiblesLT = tr.FedShortTerm
	}

	return map[string]TaxTreatment{
		TaxEquities:      {ShortTerm: st, LongTerm: lt, Income: lt},
		TaxREITs:         {ShortTerm: st, LongTerm: lt, Income: st},
		TaxBondsTreasury: {ShortTerm: st, LongTerm: lt, Income: tr.FedLongTerm},
		TaxBondsMuni:     {ShortTerm: st, LongTerm: lt, Income: tr.StateLongTerm},
		TaxBondsOther:    {ShortTerm: st, LongTerm: lt, Income: st},
		TaxCollectibles:  {ShortTerm: st, LongTerm: collectiblesLT, Income: st},
	}
}

// RatesByTicker resolves a treatment for every ticker a run touches.
// The tax category comes from the ticker reference when given, else from
// the catalog. An unresolvable ticker is a ConfigError: this fails at
// construction, never at run time.
func RatesByTicker(tr TaxRates, cat *Catalog, refs []TickerRef, extra ...string) (map[string]TaxTreatment, error) {
	byCategory := RatesByCategory(tr)
	out := make(map[string]TaxTreatment, len(refs)+len(extra))

	resolve := func(ticker, category string) error {
		if category == "" {
			info, ok := cat.Lookup(ticker)
			if !ok {
				return errf("tickers", "no tax category for %s: pass one or add the ticker to the catalog", ticker)
			}
			category = info.TaxCategory
		}
		treatment, ok := byCategory[category]
		if !ok {
			return errf("tickers", "unknown tax category %q for %s", category, ticker)
		}
		out[ticker] = treatment
		return nil
	}

	for _, ref := range refs {
		if err := resolve(ref.Ticker, ref.TaxCategory); err != nil {
			return nil, err
		}
	}
	for _, ticker := range extra {
		if _, done := out[ticker]; done {
			continue
		}
		if err := resolve(ticker, ""); err != nil {
			return nil, err
		}
	}
	return out, nil
}
