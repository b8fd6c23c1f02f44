package httpclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/erp/mall-admin/internal/domain/shared"
	"github.com/erp/mall-admin/internal/infrastructure/logger"
	"github.com/erp/mall-admin/internal/infrastructure/telemetry"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// Notification texts used by the pipeline
const (
	MsgNetworkError   = "Network error"
	MsgRequestFailed  = "Request failed"
	MsgMalformedReply = "Unexpected response from server"
)

type validatable interface {
	Validate() error
}

// Send issues req and decodes the envelope's data as T.
//
// Failures are signaled here so that callers only handle their own follow-up:
// transport failures and business failures are shown on the notifier, and a
// 401/403 additionally runs the auth-failure flow before Send returns.
func Send[T any](ctx context.Context, c *Client, req Request) (T, error) {
	var zero T

	requestID := uuid.NewString()
	ctx = logger.WithRequestID(ctx, requestID)
	endpoint := endpointLabel(req.Path)
	ctx, span := telemetry.StartSpan(ctx, fmt.Sprintf("http.client %s %s", req.Method, endpoint),
		telemetry.WithSpanKind(trace.SpanKindClient),
		telemetry.WithAttribute(telemetry.SpanAttrEndpoint, endpoint),
	)
	defer span.End()
	log := logger.WithLogger(ctx, c.logger)

	start := time.Now()
	resp, err := c.do(ctx, req, requestID)
	if err != nil {
		c.metrics.RecordRequest(req.Method, endpoint, telemetry.OutcomeTransport, time.Since(start))
		telemetry.RecordError(span, err)
		log.Warn("Request failed without response",
			zap.String("method", req.Method),
			zap.String("path", req.Path),
			zap.Error(err),
		)
		c.notifier.Error(fmt.Sprintf("%s: %v", MsgNetworkError, rootCause(err)))
		return zero, &TransportError{Method: req.Method, Path: req.Path, Err: err}
	}

	data, err := c.unwrap(ctx, resp)
	if err != nil {
		outcome := telemetry.OutcomeBusiness
		if errors.Is(err, ErrMalformedEnvelope) {
			outcome = telemetry.OutcomeMalformed
		}
		c.metrics.RecordRequest(req.Method, endpoint, outcome, resp.Duration)
		telemetry.RecordError(span, err)
		log.Info("Request rejected",
			zap.String("method", req.Method),
			zap.String("path", req.Path),
			zap.Int("status", resp.StatusCode),
			zap.Error(err),
		)
		return zero, err
	}

	out, err := decodeData[T](data)
	if err != nil {
		c.metrics.RecordRequest(req.Method, endpoint, telemetry.OutcomeMalformed, resp.Duration)
		telemetry.RecordError(span, err)
		log.Warn("Response data does not match expected shape",
			zap.String("method", req.Method),
			zap.String("path", req.Path),
			zap.Error(err),
		)
		c.notifier.Error(MsgMalformedReply)
		return zero, err
	}

	c.metrics.RecordRequest(req.Method, endpoint, telemetry.OutcomeOK, resp.Duration)
	log.Debug("Request succeeded",
		zap.String("method", req.Method),
		zap.String("path", req.Path),
		zap.Duration("duration", resp.Duration),
	)
	return out, nil
}

// Do is Send for calls whose data is ignored
func Do(ctx context.Context, c *Client, req Request) error {
	_, err := Send[json.RawMessage](ctx, c, req)
	return err
}

// unwrap checks the envelope and returns the raw data of a successful call.
func (c *Client) unwrap(ctx context.Context, resp *response) (json.RawMessage, error) {
	var env shared.RawEnvelope
	decodeErr := json.Unmarshal(resp.Body, &env)
	if decodeErr != nil || env.Code == nil {
		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			return nil, c.reject(ctx, &BusinessError{Code: resp.StatusCode, Message: http.StatusText(resp.StatusCode)})
		}
		c.notifier.Error(MsgMalformedReply)
		if decodeErr != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedEnvelope, decodeErr)
		}
		return nil, fmt.Errorf("%w: missing code", ErrMalformedEnvelope)
	}

	telemetry.SetAttribute(trace.SpanFromContext(ctx), telemetry.SpanAttrEnvelope, *env.Code)
	if *env.Code != shared.SuccessCode {
		msg := strings.TrimSpace(env.Message)
		if msg == "" {
			msg = MsgRequestFailed
		}
		return nil, c.reject(ctx, &BusinessError{Code: *env.Code, Message: msg})
	}
	return env.Data, nil
}

// reject surfaces a business failure and runs the auth-failure flow when needed
func (c *Client) reject(ctx context.Context, be *BusinessError) error {
	c.notifier.Error(be.Message)
	if be.IsAuthFailure() && c.authFailure != nil {
		c.authFailure.Handle(ctx)
	}
	return be
}

func decodeData[T any](data json.RawMessage) (T, error) {
	var out T
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return out, nil
	}
	if err := json.Unmarshal(trimmed, &out); err != nil {
		return out, fmt.Errorf("%w: %v", ErrMalformedEnvelope, err)
	}
	if v, ok := any(out).(validatable); ok {
		if err := v.Validate(); err != nil {
			return out, fmt.Errorf("%w: %v", ErrMalformedEnvelope, err)
		}
	}
	return out, nil
}

func injectTraceContext(ctx context.Context, req *http.Request) {
	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(req.Header))
}

// endpointLabel replaces numeric path segments so metrics stay low-cardinality
func endpointLabel(path string) string {
	segments := strings.Split(path, "/")
	for i, seg := range segments {
		if seg != "" && strings.Trim(seg, "0123456789") == "" {
			segments[i] = "{id}"
		}
	}
	return strings.Join(segments, "/")
}

func rootCause(err error) error {
	for {
		next := errors.Unwrap(err)
		if next == nil {
			return err
		}
		err = next
	}
}
