package cart

import (
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/storefront-client/pkg/types"
)

// Key uniquely identifies a line item within a cart. Two rows may never
// share both values; an empty OfferID means "no offer applied".
type Key struct {
	ProductID string
	OfferID   string
}

// LineItem is one row of the client-held cart, denormalized with enough
// product data to render without re-querying the catalog.
type LineItem struct {
	ProductID       string
	OfferID         string
	OfferType       types.OfferType
	Quantity        int
	DisplayQuantity int
	UnitPrice       decimal.Decimal
	OriginalPrice   decimal.Decimal
	FinalPrice      *decimal.Decimal
	Name            string
	ImageURL        string
	Category        string
	ProductPrice    *decimal.Decimal
}

func (li LineItem) Key() Key {
	return Key{ProductID: li.ProductID, OfferID: li.OfferID}
}

// EffectivePrice resolves the per-unit price actually charged: the
// server-reported final price first, then the denormalized product price,
// then the item price, defaulting to zero.
func (li LineItem) EffectivePrice() decimal.Decimal {
	if li.FinalPrice != nil {
		return *li.FinalPrice
	}
	if li.ProductPrice != nil {
		return *li.ProductPrice
	}
	return li.UnitPrice
}

func fromWire(item types.CartItem) LineItem {
	li := LineItem{
		ProductID:       item.ProductID,
		OfferID:         item.OfferID,
		OfferType:       types.NormalizeOfferType(string(item.OfferType)),
		Quantity:        item.Quantity,
		DisplayQuantity: item.DisplayQuantity,
		UnitPrice:       item.UnitPrice,
		OriginalPrice:   item.OriginalPrice,
		FinalPrice:      copyDecimalPtr(item.FinalPrice),
	}
	if item.Product != nil {
		li.Name = item.Product.Name
		li.ImageURL = item.Product.ImageURL
		li.Category = item.Product.Category
		li.ProductPrice = copyDecimalPtr(item.Product.Price)
	}
	return li
}

// FromWire builds a snapshot from wire rows. Used by the guest cart so its
// locally held items share the same derivations as the server-backed cart.
func FromWire(items []types.CartItem) Snapshot {
	return Snapshot{Items: fromWireItems(items)}
}

// fromWireItems converts the server payload, collapsing any rows that share
// a (product, offer) key so the uniqueness invariant holds locally even if
// the server misbehaves.
func fromWireItems(items []types.CartItem) []LineItem {
	converted := make([]LineItem, 0, len(items))
	index := make(map[Key]int, len(items))
	for _, item := range items {
		li := fromWire(item)
		if at, ok := index[li.Key()]; ok {
			converted[at].Quantity += li.Quantity
			converted[at].DisplayQuantity += li.DisplayQuantity
			continue
		}
		index[li.Key()] = len(converted)
		converted = append(converted, li)
	}
	return converted
}

func toWire(li LineItem) types.CartItem {
	item := types.CartItem{
		ProductID:       li.ProductID,
		OfferID:         li.OfferID,
		OfferType:       li.OfferType,
		Quantity:        li.Quantity,
		DisplayQuantity: li.DisplayQuantity,
		UnitPrice:       li.UnitPrice,
		OriginalPrice:   li.OriginalPrice,
		FinalPrice:      copyDecimalPtr(li.FinalPrice),
	}
	if li.Name != "" || li.ImageURL != "" || li.Category != "" || li.ProductPrice != nil {
		item.Product = &types.ProductSnapshot{
			Name:     li.Name,
			ImageURL: li.ImageURL,
			Category: li.Category,
			Price:    copyDecimalPtr(li.ProductPrice),
		}
	}
	return item
}

func copyDecimalPtr(src *decimal.Decimal) *decimal.Decimal {
	if src == nil {
		return nil
	}
	val := *src
	return &val
}
