package webhook

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"capibridge/internal/config"
	"capibridge/internal/constants"
	"capibridge/internal/conversion"
	"capibridge/internal/delivery"
	"capibridge/internal/identity"
	"capibridge/internal/logger"
	"capibridge/internal/signature"
)

const (
	testSecret   = "shpss_test_secret"
	scenarioBody = `{"id":42,"email":"a@b.com","phone":"+1 (555) 123-4567","created_at":"2024-01-01T00:00:00Z","currency":"USD","total_price":"19.99"}`
)

// downstream records what the conversions endpoint received.
type downstream struct {
	server *httptest.Server
	calls  int32

	mu       sync.Mutex
	status   int
	delay    time.Duration
	lastBody []byte
}

func newDownstream(t *testing.T) *downstream {
	t.Helper()
	d := &downstream{status: http.StatusOK}
	d.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&d.calls, 1)
		body, _ := io.ReadAll(r.Body)
		d.mu.Lock()
		d.lastBody = body
		status, delay := d.status, d.delay
		d.mu.Unlock()
		if delay > 0 {
			select {
			case <-time.After(delay):
			case <-r.Context().Done():
				return
			}
		}
		w.WriteHeader(status)
		if status == http.StatusOK {
			_, _ = w.Write([]byte(`{"events_received":1,"messages":[],"fbtrace_id":"trace-1"}`))
			return
		}
		_, _ = w.Write([]byte(`{"error":{"message":"Invalid parameter","type":"OAuthException","code":100}}`))
	}))
	t.Cleanup(d.server.Close)
	return d
}

func (d *downstream) callCount() int32 {
	return atomic.LoadInt32(&d.calls)
}

func (d *downstream) respond(status int, delay time.Duration) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.status = status
	d.delay = delay
}

func (d *downstream) body() []byte {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.lastBody
}

type setup struct {
	webhook    config.WebhookConfig
	meta       config.MetaConfig
	skip       string
	downstream *downstream
}

func defaultSetup(t *testing.T) *setup {
	d := newDownstream(t)
	return &setup{
		webhook: config.WebhookConfig{
			Secret:          testSecret,
			SignatureHeader: constants.DefaultSignatureHeader,
			MaxBodyBytes:    constants.DefaultMaxBodyBytes,
		},
		meta: config.MetaConfig{
			PixelID:     "pixel-1",
			AccessToken: "token-1",
			APIVersion:  "v19.0",
			BaseURL:     d.server.URL,
			Timeout:     2 * time.Second,
		},
		downstream: d,
	}
}

func (s *setup) router(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	filter, err := conversion.NewFilter(s.skip)
	require.NoError(t, err)

	h := NewHandler(s.webhook, conversion.NewMapper("INR"), filter, delivery.NewClient(s.meta), logger.NopLogger())
	r := gin.New()
	h.RegisterRoutes(r)
	return r
}

func post(r *gin.Engine, body string, headers map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/webhook/purchase", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func signed(body string) map[string]string {
	return map[string]string{constants.DefaultSignatureHeader: signature.Sign(testSecret, []byte(body))}
}

func errorCode(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	code, _ := body["error_code"].(string)
	return code
}

func TestHandlePurchase_DeliversScenarioOrder(t *testing.T) {
	s := defaultSetup(t)
	r := s.router(t)

	w := post(r, scenarioBody, signed(scenarioBody))

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var result Result
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &result))
	assert.Equal(t, "delivered", result.Status)
	assert.Equal(t, "purchase-42", result.EventID)
	assert.Equal(t, 1, result.EventsReceived)

	require.Equal(t, int32(1), s.downstream.callCount())
	var sent struct {
		Data []conversion.ConversionEvent `json:"data"`
	}
	require.NoError(t, json.Unmarshal(s.downstream.body(), &sent))
	require.Len(t, sent.Data, 1)
	event := sent.Data[0]
	assert.Equal(t, "Purchase", event.EventName)
	assert.Equal(t, int64(1704067200), event.EventTime)
	assert.Equal(t, "USD", event.CustomData.Currency)
	assert.Equal(t, 19.99, event.CustomData.Value)
	assert.Equal(t, []string{identity.HashEmail("a@b.com")}, event.UserData.Email)
	assert.Equal(t, []string{identity.HashPhone("15551234567")}, event.UserData.Phone)
}

func TestHandlePurchase_VerifiesExactBytes(t *testing.T) {
	s := defaultSetup(t)
	r := s.router(t)
	body := "{ \"id\" : 7,\n  \"email\": \"x@y.z\" }\n"

	w := post(r, body, signed(body))

	assert.Equal(t, http.StatusOK, w.Code, w.Body.String())
}

func TestHandlePurchase_MissingSignature(t *testing.T) {
	s := defaultSetup(t)
	r := s.router(t)

	w := post(r, scenarioBody, nil)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "UNAUTHORIZED", errorCode(t, w))
	assert.Equal(t, int32(0), s.downstream.callCount())
}

func TestHandlePurchase_WrongSignature(t *testing.T) {
	s := defaultSetup(t)
	r := s.router(t)

	tests := map[string]string{
		"other secret": signature.Sign("other", []byte(scenarioBody)),
		"other body":   signature.Sign(testSecret, []byte(scenarioBody+" ")),
		"garbage":      "not-base64!",
	}
	for name, header := range tests {
		t.Run(name, func(t *testing.T) {
			w := post(r, scenarioBody, map[string]string{constants.DefaultSignatureHeader: header})
			assert.Equal(t, http.StatusUnauthorized, w.Code)
		})
	}
	assert.Equal(t, int32(0), s.downstream.callCount())
}

func TestHandlePurchase_MalformedBody(t *testing.T) {
	s := defaultSetup(t)
	r := s.router(t)

	for _, body := range []string{`not json`, `[1,2]`, `{"id":1`, ``} {
		w := post(r, body, signed(body))
		assert.Equal(t, http.StatusBadRequest, w.Code, body)
		assert.Equal(t, "VALIDATION_ERROR", errorCode(t, w))
	}
	assert.Equal(t, int32(0), s.downstream.callCount())
}

func TestHandlePurchase_InvalidOrder(t *testing.T) {
	s := defaultSetup(t)
	r := s.router(t)

	for _, body := range []string{`{"email":"a@b.com"}`, `{"id":1}`, `{"id":1,"email":""}`, `{"id":1,"email":"a@b.com","phone":5}`} {
		w := post(r, body, signed(body))
		assert.Equal(t, http.StatusBadRequest, w.Code, body)
	}
	assert.Equal(t, int32(0), s.downstream.callCount())
}

func TestHandlePurchase_MissingSecret(t *testing.T) {
	s := defaultSetup(t)
	s.webhook.Secret = ""
	r := s.router(t)

	w := post(r, scenarioBody, signed(scenarioBody))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, "SERVER_MISCONFIGURED", errorCode(t, w))
	assert.Equal(t, int32(0), s.downstream.callCount())
}

func TestHandlePurchase_BodyTooLarge(t *testing.T) {
	s := defaultSetup(t)
	s.webhook.MaxBodyBytes = 64
	r := s.router(t)
	body := `{"id":1,"email":"` + strings.Repeat("a", 100) + `"}`

	w := post(r, body, signed(body))

	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
	assert.Equal(t, "PAYLOAD_TOO_LARGE", errorCode(t, w))
	assert.Equal(t, int32(0), s.downstream.callCount())
}

func TestHandlePurchase_DownstreamTimeout(t *testing.T) {
	s := defaultSetup(t)
	s.meta.Timeout = 100 * time.Millisecond
	s.downstream.respond(http.StatusOK, 5*time.Second)
	r := s.router(t)

	start := time.Now()
	w := post(r, scenarioBody, signed(scenarioBody))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, "DELIVERY_FAILED", errorCode(t, w))
	assert.Less(t, time.Since(start), 2*time.Second)
}

func TestHandlePurchase_DownstreamRejects(t *testing.T) {
	s := defaultSetup(t)
	s.downstream.respond(http.StatusBadRequest, 0)
	r := s.router(t)

	w := post(r, scenarioBody, signed(scenarioBody))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, "DELIVERY_FAILED", errorCode(t, w))
	assert.NotContains(t, w.Body.String(), "token-1")
	assert.NotContains(t, w.Body.String(), "OAuthException")
}

func TestHandlePurchase_AllowUnsigned(t *testing.T) {
	s := defaultSetup(t)
	s.webhook.Secret = ""
	s.webhook.AllowUnsigned = true
	r := s.router(t)

	w := post(r, scenarioBody, nil)
	assert.Equal(t, http.StatusOK, w.Code, w.Body.String())

	// A header that is present is still checked.
	w = post(r, scenarioBody, map[string]string{constants.DefaultSignatureHeader: "bogus"})
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, int32(1), s.downstream.callCount())
}

func TestHandlePurchase_AllowUnsignedWithSecret(t *testing.T) {
	s := defaultSetup(t)
	s.webhook.AllowUnsigned = true
	r := s.router(t)

	assert.Equal(t, http.StatusOK, post(r, scenarioBody, nil).Code)
	assert.Equal(t, http.StatusUnauthorized, post(r, scenarioBody, map[string]string{constants.DefaultSignatureHeader: "bogus"}).Code)
}

func TestHandlePurchase_CustomSignatureHeader(t *testing.T) {
	s := defaultSetup(t)
	s.webhook.SignatureHeader = "X-Signature"
	r := s.router(t)

	w := post(r, scenarioBody, map[string]string{"X-Signature": signature.Sign(testSecret, []byte(scenarioBody))})

	assert.Equal(t, http.StatusOK, w.Code)
}

func TestHandlePurchase_SkipExpression(t *testing.T) {
	s := defaultSetup(t)
	s.skip = `has(order.test) && order.test == true`
	r := s.router(t)

	body := `{"id":5,"email":"a@b.com","test":true}`
	w := post(r, body, signed(body))

	require.Equal(t, http.StatusOK, w.Code)
	var result Result
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &result))
	assert.Equal(t, "skipped", result.Status)
	assert.Equal(t, int32(0), s.downstream.callCount())

	w = post(r, scenarioBody, signed(scenarioBody))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, int32(1), s.downstream.callCount())
}

func TestHandlePurchase_SkipExpressionErrorFailsOpen(t *testing.T) {
	s := defaultSetup(t)
	s.skip = `order.test == true`
	r := s.router(t)

	w := post(r, scenarioBody, signed(scenarioBody))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, int32(1), s.downstream.callCount())
}

func TestLiveness(t *testing.T) {
	s := defaultSetup(t)
	r := s.router(t)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, constants.HealthyMessage, w.Body.String())
}
