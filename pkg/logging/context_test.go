package logging

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGetLogFields(t *testing.T) {
	ctx := context.Background()
	assert.Empty(t, GetLogFields(ctx))

	ctx = WithRequestID(ctx, "req-1")
	ctx = WithEventID(ctx, "purchase-42")
	ctx = WithServiceName(ctx, "capibridge")

	assert.Equal(t,
		[]interface{}{"request_id", "req-1", "event_id", "purchase-42", "service_name", "capibridge"},
		GetLogFields(ctx),
	)
}

func TestContextKeysDoNotCollideWithStrings(t *testing.T) {
	ctx := context.WithValue(context.Background(), "request_id", "plain")
	assert.Equal(t, "", GetRequestID(ctx))
}
