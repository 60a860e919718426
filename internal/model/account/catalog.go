package account

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// ErrUnknownAccountType is returned when a stored account carries a tag the
// catalog does not know about.
var ErrUnknownAccountType = errors.New("unknown account type")

// Tag identifies a fund product on the backend.
type Tag string

const (
	BalancedFund Tag = "balanced_fund"
	FixedIncome  Tag = "fixed_income"
	MoneyMarket  Tag = "money_market"
	StockMarket  Tag = "stock_market"
)

// Type describes a selectable fund product.
type Type struct {
	Tag        Tag             `json:"type"`
	Name       string          `json:"name"`
	MinBalance decimal.Decimal `json:"minBalance"`
}

// Seed returns the products offered in the account creation menu. The
// order is user facing: menu option k selects entry k-1.
func Seed() []Type {
	return []Type{
		{Tag: BalancedFund, Name: "Balanced Fund", MinBalance: decimal.NewFromInt(1000)},
		{Tag: FixedIncome, Name: "Fixed Income", MinBalance: decimal.NewFromInt(5000)},
		{Tag: MoneyMarket, Name: "Money Market", MinBalance: decimal.NewFromInt(10000)},
		{Tag: StockMarket, Name: "Stock Market", MinBalance: decimal.NewFromInt(20000)},
	}
}

// Catalog exposes account type lookups for menus and renderers.
type Catalog struct {
	items []Type
}

// NewCatalog returns a Catalog over a copy of items.
func NewCatalog(items []Type) *Catalog {
	return &Catalog{items: append([]Type(nil), items...)}
}

// List returns the catalog in menu order.
func (c *Catalog) List() []Type {
	return append([]Type(nil), c.items...)
}

// Len returns the number of entries.
func (c *Catalog) Len() int {
	return len(c.items)
}

// ByIndex selects an entry by its 1-based menu position.
func (c *Catalog) ByIndex(k int) (Type, bool) {
	if k < 1 || k > len(c.items) {
		return Type{}, false
	}
	return c.items[k-1], true
}

// ByTag looks up an entry by backend tag.
func (c *Catalog) ByTag(tag Tag) (Type, error) {
	for _, item := range c.items {
		if item.Tag == tag {
			return item, nil
		}
	}
	return Type{}, fmt.Errorf("%w: %q", ErrUnknownAccountType, tag)
}
