package cart

import "time"

// LineItem is one product reference inside a user's cart.
type LineItem struct {
	ProductID string
	AddedAt   time.Time
}

// Cart is the ordered sequence of line items owned by a user. Version is
// bumped on every mutation and checked optimistically, so an add-to-cart
// racing a checkout snapshot cannot silently vanish.
type Cart struct {
	Items   []LineItem
	Version int64
}

func (c Cart) Clone() Cart {
	clone := Cart{Version: c.Version}
	if len(c.Items) > 0 {
		clone.Items = append([]LineItem(nil), c.Items...)
	}
	return clone
}
