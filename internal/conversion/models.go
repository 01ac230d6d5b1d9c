package conversion

// InboundOrder is the subset of the storefront order webhook the bridge reads.
// Loosely typed fields stay as decoded so the mapper can tell a missing value
// from a structurally wrong one.
type InboundOrder struct {
	ID             interface{}     `json:"id"`
	Email          interface{}     `json:"email"`
	Phone          interface{}     `json:"phone"`
	CreatedAt      interface{}     `json:"created_at"`
	ProcessedAt    interface{}     `json:"processed_at"`
	CheckoutID     interface{}     `json:"checkout_id"`
	SourceName     interface{}     `json:"source_name"`
	Currency       interface{}     `json:"currency"`
	TotalPrice     interface{}     `json:"total_price"`
	FBP            interface{}     `json:"fbp"`
	FBC            interface{}     `json:"fbc"`
	NoteAttributes []NoteAttribute `json:"note_attributes"`

	// Raw is the whole body as a generic map, used by skip expressions.
	Raw map[string]interface{} `json:"-"`
}

type NoteAttribute struct {
	Name  string      `json:"name"`
	Value interface{} `json:"value"`
}

// ConversionEvent is one server event for the conversions API.
type ConversionEvent struct {
	EventName      string     `json:"event_name"`
	EventTime      int64      `json:"event_time"`
	EventID        string     `json:"event_id"`
	ActionSource   string     `json:"action_source"`
	EventSourceURL string     `json:"event_source_url"`
	UserData       UserData   `json:"user_data"`
	CustomData     CustomData `json:"custom_data"`
}

// UserData carries hashed identifiers as lists; the API accepts several per kind.
// Browser tokens are sent raw and omitted when unknown.
type UserData struct {
	Email []string `json:"em"`
	Phone []string `json:"ph,omitempty"`
	FBP   string   `json:"fbp,omitempty"`
	FBC   string   `json:"fbc,omitempty"`
}

type CustomData struct {
	Currency string  `json:"currency"`
	Value    float64 `json:"value"`
	OrderID  string  `json:"order_id,omitempty"`
}
