package submittransaction

import (
	"context"
	"encoding/json"
	"time"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"

	apperrors "finhub-workers/internal/common/errors"
	"finhub-workers/internal/common/logger"
	"finhub-workers/internal/common/metrics"
	"finhub-workers/internal/common/validation"
)

const TaskType = "submit-transaction"

type Handler struct {
	config       *Config
	logger       logger.Logger
	service      *Service
	errorHandler *apperrors.ErrorHandler
}

type HandlerOptions struct {
	Config     *Config
	Dispatcher Dispatcher
	Logger     logger.Logger
}

func NewHandler(opts HandlerOptions) (*Handler, error) {
	if err := opts.Config.Validate(); err != nil {
		return nil, err
	}

	log := opts.Logger.With(map[string]interface{}{"taskType": TaskType})

	return &Handler{
		config: opts.Config,
		logger: log,
		service: NewService(ServiceDependencies{
			Dispatcher: opts.Dispatcher,
			Logger:     log,
		}, opts.Config),
		errorHandler: apperrors.NewErrorHandler(log),
	}, nil
}

// Handle submits the intent carried by the job. Dispatch failures are thrown
// as BPMN errors so the process can route them; they are never retried.
func (h *Handler) Handle(client worker.JobClient, job entities.Job) {
	start := time.Now()
	metrics.WorkerJobsActive.WithLabelValues(TaskType).Inc()
	defer func() {
		metrics.WorkerJobsActive.WithLabelValues(TaskType).Dec()
		metrics.WorkerJobDuration.WithLabelValues(TaskType).Observe(time.Since(start).Seconds())
	}()

	h.logger.Info("Processing job", map[string]interface{}{
		"jobKey":      job.Key,
		"workflowKey": job.ProcessInstanceKey,
	})

	ctx, cancel := context.WithTimeout(context.Background(), h.config.Timeout)
	defer cancel()

	input, stdErr := parseInput(job.Variables)
	if stdErr != nil {
		h.fail(ctx, client, job, stdErr)
		return
	}

	output, err := h.service.Execute(ctx, job.ProcessInstanceKey, input)
	if err != nil {
		h.fail(ctx, client, job, err)
		return
	}

	h.completeJob(ctx, client, job, output)
}

func parseInput(variables string) (*Input, *apperrors.StandardError) {
	var raw map[string]interface{}
	if err := json.Unmarshal([]byte(variables), &raw); err != nil {
		return nil, apperrors.NewInputValidationFailedError(err.Error())
	}
	if result := validation.ValidateInput(raw, GetInputSchema()); !result.Valid {
		return nil, apperrors.NewInputValidationFailedError(result.Error())
	}

	var input Input
	if err := json.Unmarshal([]byte(variables), &input); err != nil {
		// a non-numeric amount is a malformed intent, not a schema problem
		return nil, apperrors.NewMalformedIntentError(err.Error())
	}
	return &input, nil
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

func (h *Handler) fail(ctx context.Context, client worker.JobClient, job entities.Job, err error) {
	code := string(apperrors.ErrCodeInternal)
	if stdErr, ok := apperrors.AsStandardError(err); ok {
		code = string(stdErr.Code)
	}
	metrics.WorkerJobsFailed.WithLabelValues(TaskType, code).Inc()
	h.errorHandler.HandleJobError(ctx, client, job, err)
}
