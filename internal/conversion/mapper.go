package conversion

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"capibridge/internal/constants"
	"capibridge/internal/identity"
)

// Mapper turns decoded orders into conversion events. It holds only immutable
// settings and is safe for concurrent use.
type Mapper struct {
	defaultCurrency string
	now             func() time.Time
}

type MapperOption func(*Mapper)

// WithClock replaces the wall clock used when an order carries no usable timestamp.
func WithClock(now func() time.Time) MapperOption {
	return func(m *Mapper) {
		m.now = now
	}
}

func NewMapper(defaultCurrency string, opts ...MapperOption) *Mapper {
	if defaultCurrency == "" {
		defaultCurrency = constants.DefaultCurrency
	}
	m := &Mapper{
		defaultCurrency: strings.ToUpper(defaultCurrency),
		now:             time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// EventID is the deduplication id for an order. It has no time component, so a
// redelivered webhook yields the same id and the API drops the duplicate.
func EventID(orderID string) string {
	return constants.EventIDPrefix + "-" + orderID
}

// Map builds the purchase event for order. It fails with ErrInvalidOrder when the
// order id or the identity fields cannot produce meaningful identifiers.
func (m *Mapper) Map(order InboundOrder) (ConversionEvent, error) {
	orderID, err := orderIDOf(order.ID)
	if err != nil {
		return ConversionEvent{}, err
	}

	email, ok := order.Email.(string)
	if !ok || email == "" {
		return ConversionEvent{}, fmt.Errorf("%w: email must be a non-empty string", ErrInvalidOrder)
	}

	var phone string
	if order.Phone != nil {
		if phone, ok = order.Phone.(string); !ok {
			return ConversionEvent{}, fmt.Errorf("%w: phone must be a string", ErrInvalidOrder)
		}
	}

	userData := UserData{
		Email: []string{identity.HashEmail(email)},
		FBP:   order.browserToken(order.FBP, "fbp", "_fbp"),
		FBC:   order.browserToken(order.FBC, "fbc", "_fbc"),
	}
	if identity.Digits(phone) != "" {
		userData.Phone = []string{identity.HashPhone(phone)}
	}

	return ConversionEvent{
		EventName:      constants.EventName,
		EventTime:      m.eventTime(order),
		EventID:        EventID(orderID),
		ActionSource:   constants.ActionSource,
		EventSourceURL: sourceURL(order),
		UserData:       userData,
		CustomData: CustomData{
			Currency: m.currency(order.Currency),
			Value:    parseValue(order.TotalPrice),
			OrderID:  orderID,
		},
	}, nil
}

func (m *Mapper) eventTime(order InboundOrder) int64 {
	for _, v := range []interface{}{order.CreatedAt, order.ProcessedAt} {
		s, ok := v.(string)
		if !ok || s == "" {
			continue
		}
		if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
			return t.Unix()
		}
	}
	return m.now().Unix()
}

func (m *Mapper) currency(v interface{}) string {
	if s, ok := v.(string); ok {
		if s = strings.TrimSpace(s); s != "" {
			return strings.ToUpper(s)
		}
	}
	return m.defaultCurrency
}

func orderIDOf(v interface{}) (string, error) {
	switch id := v.(type) {
	case json.Number:
		return id.String(), nil
	case string:
		if id = strings.TrimSpace(id); id != "" {
			return id, nil
		}
		return "", fmt.Errorf("%w: id is required", ErrInvalidOrder)
	case nil:
		return "", fmt.Errorf("%w: id is required", ErrInvalidOrder)
	}
	return "", fmt.Errorf("%w: id must be a string or number", ErrInvalidOrder)
}

// sourceURL is only built when the order came through a checkout.
func sourceURL(order InboundOrder) string {
	checkoutID := scalarString(order.CheckoutID)
	if checkoutID == "" {
		return ""
	}
	return fmt.Sprintf("https://%s/checkouts/%s", scalarString(order.SourceName), checkoutID)
}

// parseValue never fails: absent, non-numeric or non-finite prices are zero.
func parseValue(v interface{}) float64 {
	var f float64
	var err error
	switch p := v.(type) {
	case json.Number:
		f, err = p.Float64()
	case string:
		f, err = strconv.ParseFloat(strings.TrimSpace(p), 64)
	default:
		return 0
	}
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0
	}
	return f
}

// browserToken prefers the top-level field and falls back to the cart note
// attributes, where storefront scripts usually stash the pixel cookies.
func (o InboundOrder) browserToken(top interface{}, names ...string) string {
	if s := scalarString(top); s != "" {
		return s
	}
	for _, attr := range o.NoteAttributes {
		for _, name := range names {
			if attr.Name == name {
				if s := scalarString(attr.Value); s != "" {
					return s
				}
			}
		}
	}
	return ""
}

func scalarString(v interface{}) string {
	switch s := v.(type) {
	case string:
		return strings.TrimSpace(s)
	case json.Number:
		return s.String()
	}
	return ""
}
