package grocery

import (
	_ "embed"
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"smartplates/internal/core"
)

//go:embed catalog.yaml
var defaultCatalog []byte

// Price is a catalog price, either per unit of measure or flat per item.
type Price struct {
	Amount string `yaml:"amount"`
	Per    string `yaml:"per,omitempty"`

	cents int64
}

// Catalog holds the staple list, the category vocabulary and the price
// table used for estimates.
type Catalog struct {
	Staples    []string            `yaml:"staples"`
	Categories map[string][]string `yaml:"categories"`
	Keywords   map[string][]string `yaml:"keywords"`
	Prices     map[string]Price    `yaml:"prices"`
	// CategoryPrices are flat per-item fallbacks keyed by category.
	CategoryPrices map[string]string `yaml:"category_prices"`
	DefaultPrice   string            `yaml:"default_price"`

	staples       map[string]struct{}
	exact         map[string]string
	keywords      []keywordEntry
	categoryCents map[string]int64
	defaultCents  int64
}

type keywordEntry struct {
	keyword  string
	category string
}

// DefaultCatalog returns the built-in catalog.
func DefaultCatalog() (*Catalog, error) {
	return ParseCatalog(defaultCatalog)
}

// LoadCatalog reads a catalog file, or the built-in one when path is empty.
func LoadCatalog(path string) (*Catalog, error) {
	if path == "" {
		return DefaultCatalog()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog: %w", err)
	}
	return ParseCatalog(data)
}

// ParseCatalog decodes and indexes a YAML catalog.
func ParseCatalog(data []byte) (*Catalog, error) {
	var c Catalog
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("decode catalog: %w", err)
	}
	if err := c.index(); err != nil {
		return nil, err
	}
	return &c, nil
}

func (c *Catalog) index() error {
	c.staples = make(map[string]struct{}, len(c.Staples))
	for _, s := range c.Staples {
		c.staples[core.NormalizeName(s)] = struct{}{}
	}

	c.exact = make(map[string]string)
	for category, names := range c.Categories {
		for _, n := range names {
			c.exact[core.NormalizeName(n)] = category
		}
	}

	c.keywords = c.keywords[:0]
	for category, words := range c.Keywords {
		for _, w := range words {
			c.keywords = append(c.keywords, keywordEntry{keyword: core.NormalizeName(w), category: category})
		}
	}
	// Longer keywords are more specific and must win ("ground beef" over "beef").
	sort.Slice(c.keywords, func(i, j int) bool {
		if len(c.keywords[i].keyword) != len(c.keywords[j].keyword) {
			return len(c.keywords[i].keyword) > len(c.keywords[j].keyword)
		}
		return c.keywords[i].keyword < c.keywords[j].keyword
	})

	prices := make(map[string]Price, len(c.Prices))
	for name, p := range c.Prices {
		cents, err := core.ParseDecimalToCents(p.Amount)
		if err != nil {
			return fmt.Errorf("catalog price for %q: %w", name, err)
		}
		p.cents = cents
		p.Per = NormalizeUnit(p.Per)
		prices[core.NormalizeName(name)] = p
	}
	c.Prices = prices

	c.categoryCents = make(map[string]int64, len(c.CategoryPrices))
	for category, amount := range c.CategoryPrices {
		cents, err := core.ParseDecimalToCents(amount)
		if err != nil {
			return fmt.Errorf("catalog category price for %q: %w", category, err)
		}
		c.categoryCents[category] = cents
	}

	if c.DefaultPrice != "" {
		cents, err := core.ParseDecimalToCents(c.DefaultPrice)
		if err != nil {
			return fmt.Errorf("catalog default price: %w", err)
		}
		c.defaultCents = cents
	}
	return nil
}

// IsStaple reports whether the normalized name is a pantry staple.
func (c *Catalog) IsStaple(name string) bool {
	_, ok := c.staples[core.NormalizeName(name)]
	return ok
}

// Categorize returns the category for an item name: exact match first, then
// substring match on keywords, then the default category.
func (c *Catalog) Categorize(name string) string {
	n := core.NormalizeName(name)
	if n == "" {
		return core.DefaultCategory
	}
	if cat, ok := c.exact[n]; ok {
		return cat
	}
	for _, entry := range c.keywords {
		if strings.Contains(n, entry.keyword) {
			return entry.category
		}
	}
	return core.DefaultCategory
}

// Estimate prices an aggregated item. Per-unit prices apply when the item
// quantity converts into the price unit; otherwise the price is taken per
// item. Items without a catalog price use the category or global fallback.
// The second return is false when no price is known at all.
func (c *Catalog) Estimate(item core.GroceryItem) (core.Money, bool) {
	if p, ok := c.Prices[item.Name]; ok {
		if p.Per != "" && item.Quantity > 0 {
			if q, ok := convert(item.Quantity, item.Unit, p.Per); ok {
				return core.Money{Cents: p.cents}.Scale(q), true
			}
			if item.Unit == "" || item.Unit == "pcs" {
				if p.Per == "pcs" {
					return core.Money{Cents: p.cents}.Scale(item.Quantity), true
				}
			}
		}
		return core.Money{Cents: p.cents}, true
	}
	if cents, ok := c.categoryCents[item.Category]; ok {
		return core.Money{Cents: cents}, true
	}
	if c.defaultCents > 0 {
		return core.Money{Cents: c.defaultCents}, true
	}
	return core.Money{}, false
}
