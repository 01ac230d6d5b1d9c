package conversion

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

var (
	ErrMalformedOrder = errors.New("malformed order payload")
	ErrInvalidOrder   = errors.New("invalid order")
)

// DecodeOrder parses a webhook body. The body must be a single JSON object.
func DecodeOrder(raw []byte) (InboundOrder, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return InboundOrder{}, fmt.Errorf("%w: body is not a JSON object", ErrMalformedOrder)
	}

	// Unmarshal validates the whole document, trailing data included.
	var generic map[string]interface{}
	if err := json.Unmarshal(trimmed, &generic); err != nil {
		return InboundOrder{}, fmt.Errorf("%w: %v", ErrMalformedOrder, err)
	}

	var order InboundOrder
	dec := json.NewDecoder(bytes.NewReader(trimmed))
	dec.UseNumber()
	if err := dec.Decode(&order); err != nil {
		return InboundOrder{}, fmt.Errorf("%w: %v", ErrMalformedOrder, err)
	}
	order.Raw = generic

	return order, nil
}
