package models

import "github.com/shopspring/decimal"

// Badge is one cart line item. Monetary display fields are decimal strings on
// the wire; the backend's values are authoritative and never recomputed here.
type Badge struct {
	ID              int                 `json:"id"`
	FirstName       string              `json:"firstName"`
	LastName        string              `json:"lastName"`
	BadgeName       string              `json:"badgeName"`
	EffectiveLevel  EffectiveLevel      `json:"effectiveLevel"`
	DiscountedPrice decimal.NullDecimal `json:"discountedPrice"`
}

type EffectiveLevel struct {
	Name  string          `json:"name"`
	Price decimal.Decimal `json:"price"`
}

type Cart struct {
	Badges               []Badge             `json:"badges"`
	CharityDonation      decimal.Decimal     `json:"charityDonation"`
	OrganizationDonation decimal.Decimal     `json:"organizationDonation"`
	TotalDiscount        decimal.NullDecimal `json:"totalDiscount"`
	Total                decimal.Decimal     `json:"total"`
	Paid                 decimal.Decimal     `json:"paid"`
}

// EmptyCart is the cart shown before the backend pushes a snapshot.
func EmptyCart() Cart {
	return Cart{Badges: []Badge{}}
}

// IsEmpty reports whether the cart has no line items and no totals.
func (c Cart) IsEmpty() bool {
	return len(c.Badges) == 0 && c.Total.IsZero() && c.Paid.IsZero() &&
		c.CharityDonation.IsZero() && c.OrganizationDonation.IsZero()
}
