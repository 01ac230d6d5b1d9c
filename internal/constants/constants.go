package constants

import "time"

const (
	ServiceName = "capibridge"
)

const (
	DefaultPort            = 8080
	DefaultSignatureHeader = "X-Shopify-Hmac-Sha256"
	DefaultMaxBodyBytes    = 1 << 20
)

const (
	DefaultGraphBaseURL    = "https://graph.facebook.com"
	DefaultGraphAPIVersion = "v19.0"
	DefaultHTTPTimeout     = 10 * time.Second
	MaxErrorBodyBytes      = 4 << 10
)

const (
	DefaultCurrency = "INR"
	EventName       = "Purchase"
	ActionSource    = "website"
	EventIDPrefix   = "purchase"
)

const (
	ShutdownTimeout = 5 * time.Second
)

const (
	HTTPStatusOKMin = 200
	HTTPStatusOKMax = 300
)

const (
	CircuitBreakerName = "meta-capi"
)

const (
	HealthyMessage = "Conversions bridge is live"
)
