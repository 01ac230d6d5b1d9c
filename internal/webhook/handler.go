package webhook

import (
	"context"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/attribute"

	"capibridge/internal/config"
	"capibridge/internal/constants"
	"capibridge/internal/conversion"
	"capibridge/internal/delivery"
	"capibridge/internal/logger"
	"capibridge/internal/signature"
	apperrors "capibridge/pkg/errors"
	"capibridge/pkg/logging"
	"capibridge/pkg/metrics"
	"capibridge/pkg/tracing"
)

const tracerName = "capibridge/webhook"

const (
	OutcomeDelivered      = "delivered"
	OutcomeSkipped        = "skipped"
	OutcomeUnauthorized   = "unauthorized"
	OutcomeInvalid        = "invalid"
	OutcomeTooLarge       = "too_large"
	OutcomeMisconfigured  = "misconfigured"
	OutcomeDeliveryFailed = "delivery_failed"
	OutcomeInternal       = "internal_error"
)

// Result is the body of a 200 answer.
type Result struct {
	Status         string `json:"status"`
	EventID        string `json:"event_id,omitempty"`
	EventsReceived int    `json:"events_received,omitempty"`
}

type Handler struct {
	verifier        *signature.Verifier
	signatureHeader string
	allowUnsigned   bool
	maxBodyBytes    int64
	mapper          *conversion.Mapper
	filter          *conversion.Filter
	sender          delivery.Sender
	logger          logger.Logger
}

func NewHandler(cfg config.WebhookConfig, mapper *conversion.Mapper, filter *conversion.Filter, sender delivery.Sender, log logger.Logger) *Handler {
	header := cfg.SignatureHeader
	if header == "" {
		header = constants.DefaultSignatureHeader
	}
	maxBody := cfg.MaxBodyBytes
	if maxBody <= 0 {
		maxBody = constants.DefaultMaxBodyBytes
	}

	return &Handler{
		verifier:        signature.NewVerifier(cfg.Secret),
		signatureHeader: header,
		allowUnsigned:   cfg.AllowUnsigned,
		maxBodyBytes:    maxBody,
		mapper:          mapper,
		filter:          filter,
		sender:          sender,
		logger:          log,
	}
}

// RegisterRoutes mounts the liveness probe and the purchase webhook. Extra
// middleware applies to the webhook route only.
func (h *Handler) RegisterRoutes(router gin.IRouter, webhookMiddleware ...gin.HandlerFunc) {
	router.GET("/", h.Liveness)

	handlers := append(append([]gin.HandlerFunc{}, webhookMiddleware...), h.HandlePurchase)
	router.POST("/webhook/purchase", handlers...)
}

// Liveness godoc
// @Summary      Liveness probe
// @Description  Returns a fixed confirmation while the process is serving
// @Tags         health
// @Produce      plain
// @Success      200  {string}  string
// @Router       / [get]
func (h *Handler) Liveness(c *gin.Context) {
	c.String(http.StatusOK, constants.HealthyMessage)
}

// HandlePurchase godoc
// @Summary      Receive an order-placed webhook
// @Description  Authenticates the body with the storefront HMAC, maps the order to a Purchase conversion event and forwards it
// @Tags         webhook
// @Accept       json
// @Produce      json
// @Param        X-Shopify-Hmac-Sha256  header  string  false  "base64 HMAC-SHA256 of the raw body"
// @Param        order                  body    object  true   "Storefront order"
// @Success      200  {object}  Result
// @Failure      400  {object}  errors.ErrorResponse
// @Failure      401  {object}  errors.ErrorResponse
// @Failure      413  {object}  errors.ErrorResponse
// @Failure      500  {object}  errors.ErrorResponse
// @Router       /webhook/purchase [post]
func (h *Handler) HandlePurchase(c *gin.Context) {
	start := time.Now()
	ctx, span := tracing.StartSpan(c.Request.Context(), tracerName, "webhook.purchase")

	result, outcome, err := h.process(ctx, c)

	span.SetAttributes(attribute.String("webhook.outcome", outcome))
	tracing.EndSpan(span, err)
	metrics.ObserveWebhook(outcome, time.Since(start))

	if err != nil {
		h.handleError(ctx, c, outcome, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h *Handler) process(ctx context.Context, c *gin.Context) (Result, string, error) {
	body, err := h.readBody(c)
	if err != nil {
		if apperrors.ToHTTPStatus(err) == http.StatusRequestEntityTooLarge {
			return Result{}, OutcomeTooLarge, err
		}
		return Result{}, OutcomeInvalid, err
	}
	metrics.ObserveWebhookBodySize(len(body))

	if outcome, err := h.authenticate(ctx, body, c.GetHeader(h.signatureHeader)); err != nil {
		return Result{}, outcome, err
	}

	order, err := conversion.DecodeOrder(body)
	if err != nil {
		return Result{}, OutcomeInvalid, apperrors.ErrValidation.WithCause(err).WithDetail("reason", err.Error())
	}

	event, err := h.mapper.Map(order)
	if err != nil {
		return Result{}, OutcomeInvalid, apperrors.ErrValidation.WithCause(err).WithDetail("reason", err.Error())
	}
	ctx = logging.WithEventID(ctx, event.EventID)

	skip, err := h.filter.Skip(ctx, order)
	if err != nil {
		h.logger.WarnwCtx(ctx, "Skip expression failed, forwarding order", "error", err, "expression", h.filter.Expression())
	} else if skip {
		h.logger.InfowCtx(ctx, "Order skipped by filter", "expression", h.filter.Expression())
		return Result{Status: OutcomeSkipped, EventID: event.EventID}, OutcomeSkipped, nil
	}

	resp, err := h.sender.Deliver(ctx, event)
	if err != nil {
		h.logDeliveryFailure(ctx, err)
		return Result{}, OutcomeDeliveryFailed, apperrors.ErrDeliveryFailed.WithCause(err)
	}

	h.logger.InfowCtx(ctx, "Conversion event delivered",
		"events_received", resp.EventsReceived,
		"fbtrace_id", resp.FBTraceID,
	)
	return Result{
		Status:         OutcomeDelivered,
		EventID:        event.EventID,
		EventsReceived: resp.EventsReceived,
	}, OutcomeDelivered, nil
}

func (h *Handler) readBody(c *gin.Context) ([]byte, error) {
	reader := http.MaxBytesReader(c.Writer, c.Request.Body, h.maxBodyBytes)
	defer reader.Close()

	body, err := io.ReadAll(reader)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return nil, apperrors.ErrPayloadTooLarge.WithDetail("limit_bytes", tooLarge.Limit)
		}
		return nil, apperrors.ErrValidation.WithCause(err).WithDetail("reason", "failed to read request body")
	}
	return body, nil
}

// authenticate verifies the raw body before anything parses it. With
// allow_unsigned set, a request without the header is let through; a header
// that is present is always checked.
func (h *Handler) authenticate(ctx context.Context, body []byte, header string) (string, error) {
	if header == "" && h.allowUnsigned {
		h.logger.WarnwCtx(ctx, "Accepting unsigned webhook", "header", h.signatureHeader)
		return "", nil
	}

	switch err := h.verifier.Check(body, header); {
	case err == nil:
		return "", nil
	case errors.Is(err, signature.ErrMissingSecret):
		return OutcomeMisconfigured, apperrors.ErrMisconfigured.WithCause(err)
	default:
		return OutcomeUnauthorized, apperrors.ErrUnauthorized.WithCause(err)
	}
}

func (h *Handler) logDeliveryFailure(ctx context.Context, err error) {
	fields := []interface{}{"error", err}
	var apiErr *delivery.APIError
	if errors.As(err, &apiErr) {
		fields = append(fields,
			"status_code", apiErr.StatusCode,
			"api_error_type", apiErr.Type,
			"api_error_code", apiErr.Code,
			"fbtrace_id", apiErr.FBTraceID,
		)
	}
	h.logger.ErrorwCtx(ctx, "Conversion event delivery failed", fields...)
}

func (h *Handler) handleError(ctx context.Context, c *gin.Context, outcome string, err error) {
	status := apperrors.ToHTTPStatus(err)
	switch {
	case outcome == OutcomeDeliveryFailed:
		// logged with the upstream details in logDeliveryFailure
	case status >= http.StatusInternalServerError:
		h.logger.ErrorwCtx(ctx, "Webhook rejected", "outcome", outcome, "error", err)
	default:
		h.logger.WarnwCtx(ctx, "Webhook rejected", "outcome", outcome, "error", err)
	}
	_ = c.Error(err)
	c.JSON(status, apperrors.ToErrorResponse(err))
}
