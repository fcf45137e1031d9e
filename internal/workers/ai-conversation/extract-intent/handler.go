package extractintent

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"

	apperrors "finhub-workers/internal/common/errors"
	commonhttp "finhub-workers/internal/common/http"
	"finhub-workers/internal/common/logger"
	"finhub-workers/internal/common/metrics"
	"finhub-workers/internal/common/validation"
	"finhub-workers/internal/models"
)

const (
	TaskType     = "extract-intent"
	extractPath  = "/api/ai/extract-transaction"
	maxBodyBytes = 1 << 20
)

var (
	ErrIntentParsingFailed   = errors.New("INTENT_PARSING_FAILED")
	ErrIntentAPITimeout      = errors.New("INTENT_API_TIMEOUT")
	ErrNoTransactionIntent   = errors.New("NO_TRANSACTION_INTENT")
	ErrInputValidationFailed = errors.New("INPUT_VALIDATION_FAILED")
)

type Handler struct {
	config       *Config
	client       *commonhttp.Client
	logger       logger.Logger
	errorHandler *apperrors.ErrorHandler
}

func NewHandler(config *Config, log logger.Logger) *Handler {
	return &Handler{
		config: config,
		client: commonhttp.NewClient(config.Timeout),
		logger: log.With(map[string]interface{}{
			"taskType": TaskType,
		}),
		errorHandler: apperrors.NewErrorHandler(log),
	}
}

// Handle is the Zeebe job entrypoint. A message without a transaction
// completes the job with found=false.
func (h *Handler) Handle(client worker.JobClient, job entities.Job) {
	start := time.Now()
	metrics.WorkerJobsActive.WithLabelValues(TaskType).Inc()
	defer func() {
		metrics.WorkerJobsActive.WithLabelValues(TaskType).Dec()
		metrics.WorkerJobDuration.WithLabelValues(TaskType).Observe(time.Since(start).Seconds())
	}()

	h.logger.Info("processing job", map[string]interface{}{
		"jobKey":      job.Key,
		"workflowKey": job.ProcessInstanceKey,
	})

	ctx, cancel := context.WithTimeout(context.Background(), h.jobTimeout())
	defer cancel()

	var variables map[string]interface{}
	if err := json.Unmarshal([]byte(job.Variables), &variables); err != nil {
		h.fail(ctx, client, job, apperrors.NewInputValidationFailedError(err.Error()))
		return
	}
	if result := validation.ValidateInput(variables, GetInputSchema()); !result.Valid {
		h.fail(ctx, client, job, apperrors.NewInputValidationFailedError(result.Error()))
		return
	}

	var input Input
	if err := json.Unmarshal([]byte(job.Variables), &input); err != nil {
		h.fail(ctx, client, job, apperrors.NewInputValidationFailedError(err.Error()))
		return
	}

	output, err := h.Execute(ctx, &input)
	if err != nil {
		h.fail(ctx, client, job, toStandardError(err))
		return
	}

	h.completeJob(ctx, client, job, output)
}

func (h *Handler) jobTimeout() time.Duration {
	// every attempt may take the full HTTP timeout
	return h.config.Timeout * time.Duration(h.config.MaxRetries+1)
}

// Execute runs one extraction for the job input.
func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	intent, err := h.Extract(ctx, input.Message, input.History)
	if errors.Is(err, ErrNoTransactionIntent) {
		return &Output{Found: false}, nil
	}
	if err != nil {
		return nil, err
	}
	return &Output{Found: true, Intent: intent}, nil
}

// Extract asks the GenAI service for the transaction described by message.
// It returns ErrNoTransactionIntent when the message describes none.
func (h *Handler) Extract(ctx context.Context, message string, history []models.ConversationEntry) (*models.ExtractedIntent, error) {
	if strings.TrimSpace(message) == "" {
		return nil, fmt.Errorf("%w: message is empty", ErrInputValidationFailed)
	}

	payload := apiRequest{Query: message, History: make([]apiMessage, 0, len(history))}
	for _, entry := range history {
		payload.History = append(payload.History, apiMessage{Role: string(entry.Role), Content: entry.Content})
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrIntentParsingFailed, err)
	}

	raw, err := h.call(ctx, body)
	if err != nil {
		metrics.IntentExtractions.WithLabelValues("error").Inc()
		return nil, err
	}

	intent, err := decodeResponse(raw)
	switch {
	case errors.Is(err, ErrNoTransactionIntent):
		metrics.IntentExtractions.WithLabelValues("none").Inc()
		h.logger.Info("no transaction in message", nil)
		return nil, err
	case err != nil:
		metrics.IntentExtractions.WithLabelValues("error").Inc()
		return nil, err
	}

	metrics.IntentExtractions.WithLabelValues("found").Inc()
	fields := map[string]interface{}{
		"transactionType": string(intent.TransactionType),
		"currency":        intent.Currency,
		"hasAmount":       intent.Amount != nil,
	}
	h.logger.Info("intent extracted", fields)

	return intent, nil
}

// call posts body with exponential backoff on transport errors and 5xx.
func (h *Handler) call(ctx context.Context, body []byte) ([]byte, error) {
	var lastErr error

	for attempt := 0; attempt <= h.config.MaxRetries; attempt++ {
		if attempt > 0 {
			backoff := h.config.RetryBackoff * time.Duration(1<<(attempt-1))
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return nil, ErrIntentAPITimeout
			}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, strings.TrimRight(h.config.GenAIBaseURL, "/")+extractPath, bytes.NewReader(body))
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrIntentParsingFailed, err)
		}
		req.Header.Set("Content-Type", "application/json")
		if h.config.APIKey != "" {
			req.Header.Set("Authorization", "Bearer "+h.config.APIKey)
		}

		resp, err := h.client.Do(req)
		if ctx.Err() != nil || errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
			if resp != nil {
				resp.Body.Close()
			}
			return nil, ErrIntentAPITimeout
		}
		if err != nil {
			lastErr = err
			continue
		}

		raw, readErr := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
		resp.Body.Close()

		switch {
		case resp.StatusCode == http.StatusOK && readErr == nil:
			return raw, nil
		case readErr != nil:
			lastErr = readErr
		case resp.StatusCode >= 500:
			lastErr = fmt.Errorf("status %d", resp.StatusCode)
		default:
			return nil, fmt.Errorf("%w: status %d", ErrIntentParsingFailed, resp.StatusCode)
		}

		h.logger.Warn("intent API attempt failed", map[string]interface{}{
			"attempt": attempt + 1,
			"error":   lastErr.Error(),
		})
	}

	return nil, fmt.Errorf("%w: %v", ErrIntentParsingFailed, lastErr)
}

func decodeResponse(raw []byte) (*models.ExtractedIntent, error) {
	if result := validation.ValidateJSON(raw, GetResponseSchema()); !result.Valid {
		return nil, fmt.Errorf("%w: invalid response: %s", ErrIntentParsingFailed, result.Error())
	}

	var resp apiResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, fmt.Errorf("%w: decode error: %v", ErrIntentParsingFailed, err)
	}

	if resp.Found != nil && !*resp.Found {
		return nil, ErrNoTransactionIntent
	}
	resp.TransactionType = models.TransactionType(strings.TrimSpace(string(resp.TransactionType)))
	if resp.TransactionType == "" || strings.EqualFold(string(resp.TransactionType), "none") {
		return nil, ErrNoTransactionIntent
	}

	intent := resp.ExtractedIntent
	return &intent, nil
}

func toStandardError(err error) *apperrors.StandardError {
	switch {
	case errors.Is(err, ErrIntentAPITimeout):
		return apperrors.NewIntentAPITimeoutError()
	case errors.Is(err, ErrInputValidationFailed):
		return apperrors.NewInputValidationFailedError(err.Error())
	default:
		return apperrors.NewIntentParsingFailedError(err)
	}
}

func (h *Handler) completeJob(ctx context.Context, client worker.JobClient, job entities.Job, output *Output) {
	cmd, err := client.NewCompleteJobCommand().
		JobKey(job.Key).
		VariablesFromObject(output)
	if err != nil {
		h.logger.Error("Failed to create complete job command", map[string]interface{}{
			"jobKey": job.Key,
			"error":  err.Error(),
		})
		return
	}

	if _, err := cmd.Send(ctx); err != nil {
		h.logger.Error("Failed to send complete job command", map[string]interface{}{
			"jobKey": job.Key,
			"error":  err.Error(),
		})
		return
	}
	metrics.WorkerJobsCompleted.WithLabelValues(TaskType).Inc()
}

func (h *Handler) fail(ctx context.Context, client worker.JobClient, job entities.Job, stdErr *apperrors.StandardError) {
	metrics.WorkerJobsFailed.WithLabelValues(TaskType, string(stdErr.Code)).Inc()
	h.errorHandler.HandleJobError(ctx, client, job, stdErr)
}
