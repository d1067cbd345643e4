package cart

import (
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/storefront-client/pkg/types"
)

// UncategorizedBucket collects items with no resolvable category.
const UncategorizedBucket = "Uncategorized"

// Snapshot is an immutable copy of the cart state; all derivations are pure
// functions over it.
type Snapshot struct {
	Items []LineItem
}

// Summary is the checkout-facing rollup of a snapshot.
type Summary struct {
	Subtotal  decimal.Decimal
	Shipping  decimal.Decimal
	Total     decimal.Decimal
	Items     []LineItem
	ItemCount int
}

// Subtotal sums effective price times quantity across all rows.
func (s Snapshot) Subtotal() decimal.Decimal {
	total := decimal.Zero
	for _, li := range s.Items {
		total = total.Add(li.EffectivePrice().Mul(decimal.NewFromInt(int64(li.Quantity))))
	}
	return total
}

// ItemCount sums quantities, not rows.
func (s Snapshot) ItemCount() int {
	count := 0
	for _, li := range s.Items {
		count += li.Quantity
	}
	return count
}

// TotalSavings sums (original - effective) x quantity per row. Rows without
// an original price contribute nothing; when source data reports an original
// below the effective price the negative contribution is preserved as-is.
func (s Snapshot) TotalSavings() decimal.Decimal {
	total := decimal.Zero
	for _, li := range s.Items {
		if li.OriginalPrice.IsZero() {
			continue
		}
		perUnit := li.OriginalPrice.Sub(li.EffectivePrice())
		total = total.Add(perUnit.Mul(decimal.NewFromInt(int64(li.Quantity))))
	}
	return total
}

// Summarize produces the subtotal/shipping/total rollup. Shipping is the
// flat fee on any non-empty subtotal, zero otherwise; discount subtraction
// belongs to the checkout flow, not here.
func (s Snapshot) Summarize(shippingFee decimal.Decimal) Summary {
	subtotal := s.Subtotal()
	shipping := decimal.Zero
	if subtotal.IsPositive() {
		shipping = shippingFee
	}
	return Summary{
		Subtotal:  subtotal,
		Shipping:  shipping,
		Total:     subtotal.Add(shipping),
		Items:     s.Items,
		ItemCount: s.ItemCount(),
	}
}

// GroupByCategory partitions rows by category name; insertion order is
// preserved within each bucket.
func (s Snapshot) GroupByCategory() map[string][]LineItem {
	groups := make(map[string][]LineItem)
	for _, li := range s.Items {
		category := li.Category
		if category == "" {
			category = UncategorizedBucket
		}
		groups[category] = append(groups[category], li)
	}
	return groups
}

// CheckoutPayload maps rows into the shape order creation expects,
// preserving offer metadata.
func (s Snapshot) CheckoutPayload() []types.CheckoutItem {
	payload := make([]types.CheckoutItem, 0, len(s.Items))
	for _, li := range s.Items {
		item := types.CheckoutItem{
			ProductID: li.ProductID,
			Quantity:  li.Quantity,
			Price:     li.EffectivePrice(),
			OfferID:   li.OfferID,
		}
		if li.OfferType != types.OfferTypeNone {
			item.OfferType = li.OfferType
		}
		payload = append(payload, item)
	}
	return payload
}

func cloneItems(items []LineItem) []LineItem {
	cloned := make([]LineItem, len(items))
	for i, li := range items {
		li.FinalPrice = copyDecimalPtr(li.FinalPrice)
		li.ProductPrice = copyDecimalPtr(li.ProductPrice)
		cloned[i] = li
	}
	return cloned
}
