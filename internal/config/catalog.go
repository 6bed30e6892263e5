package config

import (
	_ "embed"
	"fmt"
	"os"
	"sort"

	yaml "gopkg.in/yaml.v3"
)

//go:embed catalog.yaml
var embeddedCatalog []byte

// TickerInfo is the catalog entry for one ticker: display name, first
// year of usable data, tax category, and the earlier fund spliced in to
// extend history backward.
type TickerInfo struct {
	Name             string `yaml:"name"`
	StartYear        int    `yaml:"start_year"`
	TaxCategory      string `yaml:"tax_category"`
	EarlyReplacement string `yaml:"early_replacement,omitempty"`
}

// Catalog maps tickers to their metadata and replacement chains.
type Catalog struct {
	entries map[string]TickerInfo
}

type catalogFile struct {
	Tickers map[string]TickerInfo `yaml:"tickers"`
}

// DefaultCatalog returns the catalog compiled into the binary.
func DefaultCatalog() *Catalog {
	cat, err := parseCatalog(embeddedCatalog)
	if err != nil {
		// The embedded file is validated by tests; a parse failure here is
		// a build defect, not a runtime condition.
		panic(fmt.Sprintf("embedded catalog: %v", err))
	}
	return cat
}

// LoadCatalog reads a catalog YAML file from disk.
func LoadCatalog(path string) (*Catalog, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read catalog: %w", err)
	}
	return parseCatalog(b)
}

func parseCatalog(b []byte) (*Catalog, error) {
	var f catalogFile
	if err := yaml.Unmarshal(b, &f); err != nil {
		return nil, fmt.Errorf("failed to parse catalog YAML: %w", err)
	}
	return &Catalog{entries: f.Tickers}, nil
}

// Lookup returns the catalog entry for ticker.
func (c *Catalog) Lookup(ticker string) (TickerInfo, bool) {
	info, ok := c.entries[ticker]
	return info, ok
}

// Tickers returns every cataloged ticker in sorted order.
func (c *Catalog) Tickers() []string {
	out := make([]string, 0, len(c.entries))
	for t := range c.entries {
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}

// ReplacementChain returns ticker followed by its transitive early
// replacements, oldest last. The unit placeholder may appear only as
// the final element; callers that fetch never request it. A cycle in
// the configured chain is a ConfigError, never an endless walk.
func (c *Catalog) ReplacementChain(ticker string) ([]string, error) {
	var chain []string
	visited := make(map[string]bool)
	for ticker != "" {
		if ticker == PlaceholderTicker {
			chain = append(chain, ticker)
			break
		}
		if visited[ticker] {
			return nil, errf("catalog", "replacement chain for %s is cyclic at %s",
				chain[0], ticker)
		}
		visited[ticker] = true
		chain = append(chain, ticker)

		info, ok := c.entries[ticker]
		if !ok {
			// Uncataloged tickers simply have no replacements.
			break
		}
		ticker = info.EarlyReplacement
	}
	return chain, nil
}
