package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"capibridge/pkg/logging"
)

type recordingLogger struct {
	infos  []string
	errors []string
	fields [][]interface{}
}

func (l *recordingLogger) Infow(msg string, kv ...interface{}) {
	l.infos = append(l.infos, msg)
	l.fields = append(l.fields, kv)
}

func (l *recordingLogger) Errorw(msg string, kv ...interface{}) {
	l.errors = append(l.errors, msg)
	l.fields = append(l.fields, kv)
}

func init() {
	gin.SetMode(gin.TestMode)
}

func TestRequestIDMiddleware_GeneratesUUID(t *testing.T) {
	var seen string
	r := gin.New()
	r.Use(RequestIDMiddleware())
	r.GET("/", func(c *gin.Context) {
		seen = logging.GetRequestID(c.Request.Context())
		c.Status(http.StatusOK)
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))

	header := w.Header().Get(RequestIDHeader)
	_, err := uuid.Parse(header)
	require.NoError(t, err)
	assert.Equal(t, header, seen)
}

func TestRequestIDMiddleware_KeepsCallerID(t *testing.T) {
	r := gin.New()
	r.Use(RequestIDMiddleware())
	r.GET("/", func(c *gin.Context) { c.Status(http.StatusOK) })

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(RequestIDHeader, "abc-123")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, "abc-123", w.Header().Get(RequestIDHeader))
}

func TestRecoveryMiddleware(t *testing.T) {
	logger := &recordingLogger{}
	r := gin.New()
	r.Use(RecoveryMiddleware(logger))
	r.GET("/panic", func(*gin.Context) { panic("kaboom") })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/panic", nil))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "INTERNAL_ERROR", body["error_code"])
	assert.NotContains(t, w.Body.String(), "kaboom")
	assert.Equal(t, []string{"Panic recovered"}, logger.errors)
}

func TestLoggerMiddleware_LevelByStatus(t *testing.T) {
	logger := &recordingLogger{}
	r := gin.New()
	r.Use(LoggerMiddleware(logger))
	r.GET("/ok", func(c *gin.Context) { c.Status(http.StatusOK) })
	r.GET("/fail", func(c *gin.Context) { c.Status(http.StatusInternalServerError) })

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/ok?access_token=t", nil))
	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/fail", nil))

	assert.Equal(t, []string{"HTTP Request"}, logger.infos)
	assert.Equal(t, []string{"HTTP Request"}, logger.errors)
	assert.Contains(t, logger.fields[0], "/ok")
	assert.NotContains(t, logger.fields[0], "/ok?access_token=t")
}
