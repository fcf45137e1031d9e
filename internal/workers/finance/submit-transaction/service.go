package submittransaction

import (
	"context"
	"fmt"

	apperrors "finhub-workers/internal/common/errors"
	"finhub-workers/internal/common/logger"
	"finhub-workers/internal/models"
	"finhub-workers/internal/transaction"
)

// Dispatcher is the part of transaction.Dispatcher the worker needs.
type Dispatcher interface {
	Dispatch(ctx context.Context, t models.TransactionType, intent models.ExtractedIntent, creds models.Credentials) transaction.Result
}

type ServiceDependencies struct {
	Dispatcher Dispatcher
	Logger     logger.Logger
}

type Service struct {
	config     *Config
	logger     logger.Logger
	dispatcher Dispatcher
}

func NewService(deps ServiceDependencies, config *Config) *Service {
	return &Service{
		config:     config,
		logger:     deps.Logger,
		dispatcher: deps.Dispatcher,
	}
}

// Execute dispatches the job's intent as the integration user. Dispatch
// failures come back as StandardErrors carrying the dispatch code.
func (s *Service) Execute(ctx context.Context, processInstanceKey int64, input *Input) (*Output, error) {
	txType := input.TransactionType
	if txType == "" {
		txType = input.Intent.TransactionType
	}

	ctx = transaction.WithOrigin(ctx, fmt.Sprintf("process:%d", processInstanceKey))
	result := s.dispatcher.Dispatch(ctx, txType, input.Intent, s.config.Credentials)
	if !result.OK() {
		return nil, resultError(txType, result, s.config.Credentials)
	}

	s.logger.Info("Transaction submitted", map[string]interface{}{
		"transactionType": string(txType),
		"operation":       result.Operation,
	})

	return &Output{
		DispatchStatus: result.Status,
		Operation:      result.Operation,
		Payload:        result.Payload,
	}, nil
}

func resultError(txType models.TransactionType, result transaction.Result, creds models.Credentials) *apperrors.StandardError {
	var stdErr *apperrors.StandardError
	switch result.Code {
	case apperrors.ErrCodeCredentialsMissing:
		stdErr = apperrors.NewCredentialsMissingError(creds.Missing())
	case apperrors.ErrCodeUnsupportedOperation:
		stdErr = apperrors.NewUnsupportedOperationError(string(txType))
	case apperrors.ErrCodeMalformedIntent:
		stdErr = apperrors.NewMalformedIntentError(result.Message)
	case apperrors.ErrCodeRemoteTransportFailure:
		stdErr = apperrors.NewRemoteTransportFailureError(result.Message)
	default:
		stdErr = apperrors.NewInternalError(fmt.Errorf("%s", result.Message))
	}
	if result.Operation != "" {
		stdErr.WithMetadata("operation", result.Operation)
	}
	return stdErr
}
