package handler

import (
	"net/http"
	"strings"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/xenking/foodorder/internal/domain/cart"
)

const maxBodySize = 1 << 20

type decodable interface {
	Decode(d *jx.Decoder) error
}

// decodeBody reads a JSON body into v and runs struct validation.
func (h *Handler) decodeBody(w http.ResponseWriter, r *http.Request, v decodable) error {
	body := http.MaxBytesReader(w, r.Body, maxBodySize)
	defer func() { _ = body.Close() }()

	if err := v.Decode(jx.Decode(body, 4096)); err != nil {
		return badRequest("invalid JSON body: " + err.Error())
	}
	if err := h.validate.Struct(v); err != nil {
		return validationError(err)
	}
	return nil
}

func validationError(err error) error {
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return badRequest(err.Error())
	}
	msgs := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		if fe.Param() != "" {
			msgs = append(msgs, fe.Namespace()+" failed "+fe.Tag()+"="+fe.Param())
			continue
		}
		msgs = append(msgs, fe.Namespace()+" failed "+fe.Tag())
	}
	return badRequest(strings.Join(msgs, "; "))
}

// wrapField prefixes a decode error with the JSON key it happened at.
func wrapField(err error, key string) error {
	if err != nil {
		return errors.Wrap(err, key)
	}
	return nil
}

// decodeMoney accepts both JSON numbers and numeric strings.
func decodeMoney(d *jx.Decoder) (decimal.Decimal, error) {
	switch d.Next() {
	case jx.String:
		s, err := d.Str()
		if err != nil {
			return decimal.Decimal{}, err
		}
		return decimal.NewFromString(s)
	case jx.Number:
		n, err := d.Num()
		if err != nil {
			return decimal.Decimal{}, err
		}
		return decimal.NewFromString(string(n))
	default:
		return decimal.Decimal{}, errors.New("expected number")
	}
}

type lineRequest struct {
	MenuItemID int64 `validate:"gt=0"`
	Quantity   int   `validate:"gte=1,lte=99"`
	Price      decimal.Decimal
}

func (l *lineRequest) Decode(d *jx.Decoder) error {
	return d.ObjBytes(func(d *jx.Decoder, key []byte) (err error) {
		switch string(key) {
		case "menuItemId":
			l.MenuItemID, err = d.Int64()
		case "quantity":
			l.Quantity, err = d.Int()
		case "price":
			l.Price, err = decodeMoney(d)
		default:
			err = d.Skip()
		}
		return wrapField(err, string(key))
	})
}

type addCartItemRequest struct {
	MenuItemID int64 `validate:"gt=0"`
	Quantity   int   `validate:"gte=1,lte=99"`
}

func (a *addCartItemRequest) Decode(d *jx.Decoder) error {
	return d.ObjBytes(func(d *jx.Decoder, key []byte) (err error) {
		switch string(key) {
		case "menuItemId":
			a.MenuItemID, err = d.Int64()
		case "quantity":
			a.Quantity, err = d.Int()
		default:
			err = d.Skip()
		}
		return wrapField(err, string(key))
	})
}

// cartLineRequest is a client-held cart line. MenuItemID may be omitted
// when the line is only priced.
type cartLineRequest struct {
	MenuItemID int64 `validate:"gte=0"`
	Name       string
	Price      decimal.Decimal
	Quantity   int `validate:"gte=1,lte=99"`
}

func (l *cartLineRequest) Decode(d *jx.Decoder) error {
	return d.ObjBytes(func(d *jx.Decoder, key []byte) (err error) {
		switch string(key) {
		case "menuItemId":
			l.MenuItemID, err = d.Int64()
		case "name":
			l.Name, err = decodeOptStr(d)
		case "price":
			l.Price, err = decodeMoney(d)
		case "quantity":
			l.Quantity, err = d.Int()
		default:
			err = d.Skip()
		}
		return wrapField(err, string(key))
	})
}

// cartRequest carries the whole client-held cart.
type cartRequest struct {
	Items      []cartLineRequest `validate:"dive"`
	CouponCode string            `validate:"max=32"`
}

// decodeField decodes one cart key and reports whether key belongs to the
// cart.
func (c *cartRequest) decodeField(d *jx.Decoder, key string) (bool, error) {
	switch key {
	case "items":
		return true, d.Arr(func(d *jx.Decoder) error {
			var l cartLineRequest
			if err := l.Decode(d); err != nil {
				return err
			}
			c.Items = append(c.Items, l)
			return nil
		})
	case "couponCode":
		var err error
		c.CouponCode, err = decodeOptStr(d)
		return true, err
	default:
		return false, nil
	}
}

func (c *cartRequest) Decode(d *jx.Decoder) error {
	return d.ObjBytes(func(d *jx.Decoder, key []byte) error {
		ok, err := c.decodeField(d, string(key))
		if !ok {
			err = d.Skip()
		}
		return wrapField(err, string(key))
	})
}

// snapshot converts the request to a cart snapshot.
func (c *cartRequest) snapshot() cart.Snapshot {
	lines := make([]cart.Line, len(c.Items))
	for i, l := range c.Items {
		lines[i] = cart.Line{MenuItemID: l.MenuItemID, Name: l.Name, UnitPrice: l.Price, Quantity: l.Quantity}
	}
	return cart.Snapshot{Lines: lines, CouponCode: c.CouponCode}
}

// cartQuantityRequest is a cart plus the new quantity of one dish.
type cartQuantityRequest struct {
	cartRequest
	Quantity int `validate:"gte=1,lte=99"`
}

func (c *cartQuantityRequest) Decode(d *jx.Decoder) error {
	return d.ObjBytes(func(d *jx.Decoder, key []byte) error {
		ok, err := c.decodeField(d, string(key))
		switch {
		case ok:
		case string(key) == "quantity":
			c.Quantity, err = d.Int()
		default:
			err = d.Skip()
		}
		return wrapField(err, string(key))
	})
}

type createOrderRequest struct {
	DeliveryAddress string        `validate:"required,min=10,max=255"`
	DeliveryCity    string        `validate:"required,min=2,max=100"`
	DeliveryZip     string        `validate:"required,min=5,max=10"`
	PaymentMethod   string        `validate:"required,oneof=card cash"`
	Items           []lineRequest `validate:"dive"`
	Notes           string        `validate:"max=500"`
	CouponCode      string        `validate:"max=32"`
}

func (c *createOrderRequest) Decode(d *jx.Decoder) error {
	return d.ObjBytes(func(d *jx.Decoder, key []byte) (err error) {
		switch string(key) {
		case "deliveryAddress":
			c.DeliveryAddress, err = d.Str()
		case "deliveryCity":
			c.DeliveryCity, err = d.Str()
		case "deliveryZip":
			c.DeliveryZip, err = d.Str()
		case "paymentMethod":
			c.PaymentMethod, err = d.Str()
		case "notes":
			c.Notes, err = decodeOptStr(d)
		case "couponCode":
			c.CouponCode, err = decodeOptStr(d)
		case "items":
			err = d.Arr(func(d *jx.Decoder) error {
				var l lineRequest
				if err := l.Decode(d); err != nil {
					return err
				}
				c.Items = append(c.Items, l)
				return nil
			})
		default:
			err = d.Skip()
		}
		return wrapField(err, string(key))
	})
}

type statusRequest struct {
	Status string `validate:"required"`
}

func (s *statusRequest) Decode(d *jx.Decoder) error {
	return d.ObjBytes(func(d *jx.Decoder, key []byte) (err error) {
		if string(key) == "status" {
			s.Status, err = d.Str()
			return wrapField(err, "status")
		}
		return d.Skip()
	})
}

type paymentStatusRequest struct {
	PaymentStatus string `validate:"required"`
}

func (p *paymentStatusRequest) Decode(d *jx.Decoder) error {
	return d.ObjBytes(func(d *jx.Decoder, key []byte) (err error) {
		if string(key) == "paymentStatus" {
			p.PaymentStatus, err = d.Str()
			return wrapField(err, "paymentStatus")
		}
		return d.Skip()
	})
}

type cashPaymentRequest struct {
	OrderID string `validate:"required,uuid"`
}

func (c *cashPaymentRequest) Decode(d *jx.Decoder) error {
	return d.ObjBytes(func(d *jx.Decoder, key []byte) (err error) {
		if string(key) == "orderId" {
			c.OrderID, err = d.Str()
			return wrapField(err, "orderId")
		}
		return d.Skip()
	})
}

// Payment provider callback events.
const (
	eventPaymentSucceeded = "payment_succeeded"
	eventRefundSucceeded  = "refund_succeeded"
)

type webhookRequest struct {
	OrderID string `validate:"required,uuid"`
	Event   string `validate:"required,oneof=payment_succeeded refund_succeeded"`
}

func (wr *webhookRequest) Decode(d *jx.Decoder) error {
	return d.ObjBytes(func(d *jx.Decoder, key []byte) (err error) {
		switch string(key) {
		case "orderId":
			wr.OrderID, err = d.Str()
		case "event":
			wr.Event, err = d.Str()
		default:
			err = d.Skip()
		}
		return wrapField(err, string(key))
	})
}

type menuItemRequest struct {
	Name        string `validate:"required,max=100"`
	Description string `validate:"max=1000"`
	Price       decimal.Decimal
	Image       string `validate:"max=255"`
	Category    string `validate:"required,max=50"`
	Available   *bool
}

func (m *menuItemRequest) Decode(d *jx.Decoder) error {
	return d.ObjBytes(func(d *jx.Decoder, key []byte) (err error) {
		switch string(key) {
		case "name":
			m.Name, err = d.Str()
		case "description":
			m.Description, err = decodeOptStr(d)
		case "price":
			m.Price, err = decodeMoney(d)
		case "image":
			m.Image, err = decodeOptStr(d)
		case "category":
			m.Category, err = d.Str()
		case "isAvailable":
			var v bool
			v, err = d.Bool()
			m.Available = &v
		default:
			err = d.Skip()
		}
		return wrapField(err, string(key))
	})
}

// decodeOptStr reads a string that may be null.
func decodeOptStr(d *jx.Decoder) (string, error) {
	if d.Next() == jx.Null {
		return "", d.Null()
	}
	return d.Str()
}
