package handler

import (
	"time"

	"github.com/go-faster/jx"
	"github.com/shopspring/decimal"

	"github.com/xenking/foodorder/internal/domain/cart"
	"github.com/xenking/foodorder/internal/domain/menu"
	"github.com/xenking/foodorder/internal/domain/order"
	"github.com/xenking/foodorder/internal/domain/pricing"
)

// money writes v as a JSON number with two decimals.
func money(e *jx.Encoder, v decimal.Decimal) {
	e.Raw([]byte(v.StringFixed(2)))
}

func timestamp(e *jx.Encoder, t time.Time) {
	e.Str(t.UTC().Format(time.RFC3339))
}

func (h *Handler) encodeMenuItem(e *jx.Encoder, m menu.MenuItem) {
	e.Obj(func(e *jx.Encoder) {
		e.Field("id", func(e *jx.Encoder) { e.Int64(m.ID) })
		e.Field("name", func(e *jx.Encoder) { e.Str(m.Name) })
		e.Field("description", func(e *jx.Encoder) { e.Str(m.Description) })
		e.Field("price", func(e *jx.Encoder) { money(e, m.Price) })
		e.Field("image", func(e *jx.Encoder) { e.Str(h.imageURL(m.Image)) })
		e.Field("category", func(e *jx.Encoder) { e.Str(m.Category) })
		e.Field("isAvailable", func(e *jx.Encoder) { e.Bool(m.Available) })
	})
}

func encodeBreakdown(e *jx.Encoder, b pricing.Breakdown) {
	e.Obj(func(e *jx.Encoder) {
		encodeBreakdownFields(e, b)
	})
}

func encodeBreakdownFields(e *jx.Encoder, b pricing.Breakdown) {
	e.Field("subtotal", func(e *jx.Encoder) { money(e, b.Subtotal) })
	e.Field("discount", func(e *jx.Encoder) { money(e, b.Discount) })
	e.Field("deliveryFee", func(e *jx.Encoder) { money(e, b.DeliveryFee) })
	e.Field("tax", func(e *jx.Encoder) { money(e, b.Tax) })
	e.Field("total", func(e *jx.Encoder) { money(e, b.Total) })
	e.Field("itemCount", func(e *jx.Encoder) { e.Int(b.ItemCount) })
	if b.CouponCode != "" {
		e.Field("couponCode", func(e *jx.Encoder) { e.Str(b.CouponCode) })
	}
}

func (h *Handler) encodeCartLine(e *jx.Encoder, l cart.Line) {
	e.Obj(func(e *jx.Encoder) {
		e.Field("menuItemId", func(e *jx.Encoder) { e.Int64(l.MenuItemID) })
		e.Field("name", func(e *jx.Encoder) { e.Str(l.Name) })
		e.Field("image", func(e *jx.Encoder) { e.Str(h.imageURL(l.Image)) })
		e.Field("price", func(e *jx.Encoder) { money(e, l.UnitPrice) })
		e.Field("quantity", func(e *jx.Encoder) { e.Int(l.Quantity) })
		e.Field("subtotal", func(e *jx.Encoder) { money(e, l.Subtotal()) })
	})
}

func (h *Handler) encodeOrder(e *jx.Encoder, o *order.Order) {
	e.Obj(func(e *jx.Encoder) {
		e.Field("id", func(e *jx.Encoder) { e.Str(o.ID) })
		e.Field("orderNumber", func(e *jx.Encoder) { e.Str(o.Number) })
		e.Field("userId", func(e *jx.Encoder) { e.Int64(o.UserID) })
		e.Field("customer", func(e *jx.Encoder) {
			e.Obj(func(e *jx.Encoder) {
				e.Field("name", func(e *jx.Encoder) { e.Str(o.Customer.Name) })
				e.Field("email", func(e *jx.Encoder) { e.Str(o.Customer.Email) })
				e.Field("phone", func(e *jx.Encoder) { e.Str(o.Customer.Phone) })
			})
		})
		e.Field("subtotal", func(e *jx.Encoder) { money(e, o.Subtotal) })
		e.Field("discount", func(e *jx.Encoder) { money(e, o.Discount) })
		e.Field("deliveryFee", func(e *jx.Encoder) { money(e, o.DeliveryFee) })
		e.Field("tax", func(e *jx.Encoder) { money(e, o.Tax) })
		e.Field("total", func(e *jx.Encoder) { money(e, o.Total) })
		if o.CouponCode != "" {
			e.Field("couponCode", func(e *jx.Encoder) { e.Str(o.CouponCode) })
		}
		e.Field("status", func(e *jx.Encoder) { e.Str(string(o.Status)) })
		e.Field("paymentMethod", func(e *jx.Encoder) { e.Str(string(o.PaymentMethod)) })
		e.Field("paymentStatus", func(e *jx.Encoder) { e.Str(string(o.PaymentStatus)) })
		e.Field("delivery", func(e *jx.Encoder) {
			e.Obj(func(e *jx.Encoder) {
				e.Field("address", func(e *jx.Encoder) { e.Str(o.Delivery.Address) })
				e.Field("city", func(e *jx.Encoder) { e.Str(o.Delivery.City) })
				e.Field("zip", func(e *jx.Encoder) { e.Str(o.Delivery.Zip) })
			})
		})
		if o.Notes != "" {
			e.Field("notes", func(e *jx.Encoder) { e.Str(o.Notes) })
		}
		e.Field("items", func(e *jx.Encoder) {
			e.Arr(func(e *jx.Encoder) {
				for _, it := range o.Items {
					h.encodeOrderItem(e, it)
				}
			})
		})
		e.Field("createdAt", func(e *jx.Encoder) { timestamp(e, o.CreatedAt) })
		e.Field("updatedAt", func(e *jx.Encoder) { timestamp(e, o.UpdatedAt) })
	})
}

func (h *Handler) encodeOrderItem(e *jx.Encoder, it order.Item) {
	e.Obj(func(e *jx.Encoder) {
		e.Field("menuItemId", func(e *jx.Encoder) { e.Int64(it.MenuItemID) })
		e.Field("name", func(e *jx.Encoder) { e.Str(it.Name) })
		e.Field("image", func(e *jx.Encoder) { e.Str(h.imageURL(it.Image)) })
		e.Field("quantity", func(e *jx.Encoder) { e.Int(it.Quantity) })
		e.Field("unitPrice", func(e *jx.Encoder) { money(e, it.UnitPrice) })
		e.Field("subtotal", func(e *jx.Encoder) { money(e, it.Subtotal()) })
	})
}

func (h *Handler) encodeOrders(e *jx.Encoder, orders []order.Order) {
	e.Arr(func(e *jx.Encoder) {
		for i := range orders {
			h.encodeOrder(e, &orders[i])
		}
	})
}

func encodeStats(e *jx.Encoder, s *order.Stats) {
	e.Obj(func(e *jx.Encoder) {
		e.Field("totalOrders", func(e *jx.Encoder) { e.Int(s.Total) })
		e.Field("byStatus", func(e *jx.Encoder) {
			e.Obj(func(e *jx.Encoder) {
				for _, st := range order.Statuses {
					e.Field(string(st), func(e *jx.Encoder) { e.Int(s.ByStatus[st]) })
				}
			})
		})
		e.Field("revenue", func(e *jx.Encoder) { money(e, s.Revenue) })
		e.Field("averageOrderValue", func(e *jx.Encoder) { money(e, s.AverageTotal) })
		e.Field("ordersToday", func(e *jx.Encoder) { e.Int(s.PlacedToday) })
	})
}
