package transaction

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	apperrors "finhub-workers/internal/common/errors"
	"finhub-workers/internal/common/logger"
	"finhub-workers/internal/common/metrics"
	"finhub-workers/internal/models"
)

const (
	tracerName       = "finhub-workers/transaction"
	unsupportedLabel = "unsupported"
)

// DispatchRecord is the secret-free audit view of one dispatch.
type DispatchRecord struct {
	ID              string
	Origin          string
	TransactionType models.TransactionType
	Operation       string
	Status          Status
	Code            apperrors.ErrorCode
	Message         string
	Host            string
	Tenant          string
	User            string
	Amount          string
	Currency        string
	Duration        time.Duration
	CreatedAt       time.Time
}

// Auditor persists dispatch records.
type Auditor interface {
	RecordDispatch(ctx context.Context, rec DispatchRecord) error
}

// MetricsRecorder receives one call per dispatch outcome.
type MetricsRecorder interface {
	RecordDispatch(ctx context.Context, transactionType, status string)
}

type DispatcherOptions struct {
	Registry  Resolver
	Builder   RequestBuilder
	Transport Transport
	Auditor   Auditor
	Metrics   MetricsRecorder
	Logger    logger.Logger
	Tracer    trace.Tracer
}

// Dispatcher submits one transaction per call. It holds no mutable state and
// is safe for concurrent use.
type Dispatcher struct {
	registry  Resolver
	builder   RequestBuilder
	transport Transport
	auditor   Auditor
	metrics   MetricsRecorder
	logger    logger.Logger
	tracer    trace.Tracer
}

func NewDispatcher(opts DispatcherOptions) (*Dispatcher, error) {
	if opts.Transport == nil {
		return nil, errors.New("dispatcher requires a transport")
	}
	if opts.Registry == nil {
		opts.Registry = DefaultRegistry()
	}
	if opts.Builder == nil {
		opts.Builder = NewBuilder(DefaultMemoMaxLength)
	}
	if opts.Logger == nil {
		opts.Logger = logger.NewNoOpLogger()
	}
	if opts.Tracer == nil {
		opts.Tracer = otel.Tracer(tracerName)
	}

	return &Dispatcher{
		registry:  opts.Registry,
		builder:   opts.Builder,
		transport: opts.Transport,
		auditor:   opts.Auditor,
		metrics:   opts.Metrics,
		logger:    opts.Logger,
		tracer:    opts.Tracer,
	}, nil
}

type originKey struct{}

// WithOrigin tags ctx with the caller that triggered a dispatch, such as a
// session or a process instance, for the audit trail.
func WithOrigin(ctx context.Context, origin string) context.Context {
	return context.WithValue(ctx, originKey{}, origin)
}

func originFrom(ctx context.Context) string {
	if origin, ok := ctx.Value(originKey{}).(string); ok {
		return origin
	}
	return ""
}

// Dispatch resolves t, builds the request from intent and performs exactly
// one remote call with creds. Every outcome, including a panicking transport,
// is returned as a Result.
func (d *Dispatcher) Dispatch(ctx context.Context, t models.TransactionType, intent models.ExtractedIntent, creds models.Credentials) (result Result) {
	startedAt := time.Now()
	ctx, span := d.tracer.Start(ctx, "transaction.dispatch", trace.WithAttributes(
		attribute.String("transaction.type", string(t)),
	))

	defer func() {
		if r := recover(); r != nil {
			result = Failure(apperrors.ErrCodeInternal, creds.Redact(fmt.Sprintf("dispatch aborted: %v", r)))
		}
		d.finish(ctx, span, t, intent, creds, result, startedAt)
	}()

	if !creds.Complete() {
		return Failure(apperrors.ErrCodeCredentialsMissing, MessageCredentialsNotConfigured)
	}

	op, err := d.registry.Resolve(t)
	if err != nil {
		return Failure(apperrors.ErrCodeUnsupportedOperation, err.Error())
	}

	req, err := d.builder.BuildFor(t, intent)
	if err != nil {
		result = Failure(codeFor(err), err.Error())
		result.Operation = op.Name
		return result
	}

	resp, err := d.submit(ctx, op, creds, req)
	if err != nil {
		result = Failure(apperrors.ErrCodeRemoteTransportFailure, creds.Redact(err.Error()))
		result.Operation = op.Name
		return result
	}

	return Success(op.Name, resp)
}

func (d *Dispatcher) submit(ctx context.Context, op Operation, creds models.Credentials, req *RemoteRequest) (resp *RemoteResponse, err error) {
	defer func() {
		if r := recover(); r != nil {
			resp = nil
			err = fmt.Errorf("transport panic: %v", r)
		}
	}()
	return d.transport.Submit(ctx, op, creds, req)
}

func codeFor(err error) apperrors.ErrorCode {
	switch {
	case errors.Is(err, ErrUnsupportedOperation):
		return apperrors.ErrCodeUnsupportedOperation
	case errors.Is(err, ErrMalformedIntent):
		return apperrors.ErrCodeMalformedIntent
	default:
		return apperrors.ErrCodeInternal
	}
}

func (d *Dispatcher) finish(ctx context.Context, span trace.Span, t models.TransactionType, intent models.ExtractedIntent, creds models.Credentials, result Result, startedAt time.Time) {
	defer span.End()
	elapsed := time.Since(startedAt)

	label := typeLabel(t, result)

	metrics.DispatchTotal.WithLabelValues(label, string(result.Status)).Inc()
	metrics.DispatchDuration.WithLabelValues(label).Observe(elapsed.Seconds())
	if d.metrics != nil {
		d.contain(creds, "metrics", func() {
			d.metrics.RecordDispatch(ctx, label, string(result.Status))
		})
	}

	span.SetAttributes(
		attribute.String("dispatch.status", string(result.Status)),
		attribute.String("dispatch.operation", result.Operation),
	)
	if !result.OK() {
		span.SetAttributes(attribute.String("dispatch.code", string(result.Code)))
		span.SetStatus(codes.Error, result.Message)
	} else {
		span.SetStatus(codes.Ok, "")
	}

	fields := creds.LogFields()
	fields["transactionType"] = string(t)
	fields["operation"] = result.Operation
	fields["status"] = string(result.Status)
	fields["durationMs"] = elapsed.Milliseconds()
	if result.OK() {
		d.logger.Info("Transaction dispatched", fields)
	} else {
		fields["code"] = string(result.Code)
		fields["message"] = result.Message
		d.logger.Warn("Transaction dispatch failed", fields)
	}

	if d.auditor == nil {
		return
	}
	rec := DispatchRecord{
		ID:              uuid.NewString(),
		Origin:          originFrom(ctx),
		TransactionType: t,
		Operation:       result.Operation,
		Status:          result.Status,
		Code:            result.Code,
		Message:         result.Message,
		Host:            creds.Host,
		Tenant:          creds.Tenant,
		User:            creds.User,
		Currency:        intent.Currency,
		Duration:        elapsed,
		CreatedAt:       startedAt.UTC(),
	}
	if intent.Amount != nil {
		rec.Amount = intent.Amount.String()
	}
	d.contain(creds, "audit", func() {
		if err := d.auditor.RecordDispatch(ctx, rec); err != nil {
			d.logger.Error("Failed to write dispatch audit record", map[string]interface{}{
				"error":           creds.Redact(err.Error()),
				"transactionType": label,
			})
		}
	})
}

// typeLabel bounds metric label cardinality to registered types. A type is
// labelled by name only when it is built in or was resolved for this dispatch.
func typeLabel(t models.TransactionType, result Result) string {
	if IsSupported(t) || result.Operation != "" {
		return string(t)
	}
	return unsupportedLabel
}

// contain runs a post-dispatch hook so that a panicking collaborator is
// logged instead of escaping Dispatch.
func (d *Dispatcher) contain(creds models.Credentials, hook string, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			d.logger.Error("Dispatch hook panicked", map[string]interface{}{
				"hook":  hook,
				"panic": creds.Redact(fmt.Sprint(r)),
			})
		}
	}()
	fn()
}
