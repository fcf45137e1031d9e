package submittransaction

import (
	"context"
	"encoding/json"
	"sync"
	"testing"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/pb"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"finhub-workers/internal/common/config"
	apperrors "finhub-workers/internal/common/errors"
	"finhub-workers/internal/common/logger"
	"finhub-workers/internal/models"
	"finhub-workers/internal/transaction"
)

// ==========================
// Test doubles
// ==========================

type dispatchCall struct {
	ctx    context.Context
	txType models.TransactionType
	intent models.ExtractedIntent
	creds  models.Credentials
}

type fakeDispatcher struct {
	mu     sync.Mutex
	calls  []dispatchCall
	result transaction.Result
}

func (f *fakeDispatcher) Dispatch(ctx context.Context, t models.TransactionType, intent models.ExtractedIntent, creds models.Credentials) transaction.Result {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, dispatchCall{ctx: ctx, txType: t, intent: intent, creds: creds})
	return f.result
}

func integrationCreds() models.Credentials {
	return models.Credentials{Host: "wd2-impl.workday.com", Tenant: "acme", User: "isu_finhub", Secret: "s3cret"}
}

func newTestService(d Dispatcher) *Service {
	cfg := DefaultConfig()
	cfg.Credentials = integrationCreds()
	return NewService(ServiceDependencies{Dispatcher: d, Logger: logger.NewNoOpLogger()}, cfg)
}

func createMockJob(key int64, variables map[string]interface{}) entities.Job {
	variablesJSON, _ := json.Marshal(variables)

	return entities.Job{ActivatedJob: &pb.ActivatedJob{
		Key:                key,
		Type:               TaskType,
		ProcessInstanceKey: key * 10,
		BpmnProcessId:      "finance-submit",
		ElementId:          "Activity_SubmitTransaction",
		Retries:            3,
		Variables:          string(variablesJSON),
	}}
}

// ==========================
// Service
// ==========================

func TestService_Execute_Success(t *testing.T) {
	payload := &transaction.RemoteResponse{Element: "Submit_Supplier_Invoice_Response", Raw: "<ok/>"}
	d := &fakeDispatcher{result: transaction.Success("Submit_Supplier_Invoice", payload)}
	svc := newTestService(d)

	amount := decimal.RequireFromString("500")
	input := &Input{Intent: models.ExtractedIntent{
		TransactionType: models.TransactionTypeSupplierInvoice,
		Amount:          &amount,
		Currency:        "USD",
		Memo:            "Office Depot",
	}}

	output, err := svc.Execute(context.Background(), 42, input)

	require.NoError(t, err)
	assert.Equal(t, transaction.StatusSuccess, output.DispatchStatus)
	assert.Equal(t, "Submit_Supplier_Invoice", output.Operation)
	assert.Same(t, payload, output.Payload)

	require.Len(t, d.calls, 1)
	call := d.calls[0]
	assert.Equal(t, models.TransactionTypeSupplierInvoice, call.txType)
	assert.Equal(t, integrationCreds(), call.creds)
}

func TestService_Execute_TypeOverride(t *testing.T) {
	d := &fakeDispatcher{result: transaction.Success("Submit_Ad_Hoc_Payment", nil)}
	svc := newTestService(d)

	input := &Input{
		TransactionType: models.TransactionTypeAdHocPayment,
		Intent:          models.ExtractedIntent{TransactionType: models.TransactionTypeSupplierInvoice},
	}

	_, err := svc.Execute(context.Background(), 1, input)

	require.NoError(t, err)
	require.Len(t, d.calls, 1)
	assert.Equal(t, models.TransactionTypeAdHocPayment, d.calls[0].txType)
}

func TestService_Execute_Failures(t *testing.T) {
	tests := []struct {
		name   string
		result transaction.Result
		code   apperrors.ErrorCode
	}{
		{"credentials", transaction.Failure(apperrors.ErrCodeCredentialsMissing, transaction.MessageCredentialsNotConfigured), apperrors.ErrCodeCredentialsMissing},
		{"unsupported", transaction.Failure(apperrors.ErrCodeUnsupportedOperation, "unsupported transaction type: Wire"), apperrors.ErrCodeUnsupportedOperation},
		{"malformed", transaction.Failure(apperrors.ErrCodeMalformedIntent, "malformed transaction intent: amount is negative"), apperrors.ErrCodeMalformedIntent},
		{"remote", transaction.Failure(apperrors.ErrCodeRemoteTransportFailure, "connection refused"), apperrors.ErrCodeRemoteTransportFailure},
		{"internal", transaction.Failure(apperrors.ErrCodeInternal, "boom"), apperrors.ErrCodeInternal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := newTestService(&fakeDispatcher{result: tt.result})

			output, err := svc.Execute(context.Background(), 7, &Input{Intent: models.ExtractedIntent{TransactionType: "Wire"}})

			assert.Nil(t, output)
			stdErr, ok := apperrors.AsStandardError(err)
			require.True(t, ok)
			assert.Equal(t, tt.code, stdErr.Code)
			assert.False(t, stdErr.Retryable)
			assert.Equal(t, 0, apperrors.GetRetryCount(stdErr.Code))
		})
	}
}

func TestService_Execute_RemoteFailureKeepsOperation(t *testing.T) {
	result := transaction.Failure(apperrors.ErrCodeRemoteTransportFailure, "502 bad gateway")
	result.Operation = "Submit_Miscellaneous_Payment"
	svc := newTestService(&fakeDispatcher{result: result})

	_, err := svc.Execute(context.Background(), 7, &Input{Intent: models.ExtractedIntent{TransactionType: models.TransactionTypeMiscellaneousPayment}})

	stdErr, ok := apperrors.AsStandardError(err)
	require.True(t, ok)
	assert.Equal(t, "502 bad gateway", stdErr.Details)
	assert.Equal(t, "Submit_Miscellaneous_Payment", stdErr.Metadata["operation"])
	assert.NotContains(t, stdErr.Error(), "s3cret")
}

// ==========================
// Input parsing
// ==========================

func TestParseInput(t *testing.T) {
	job := createMockJob(5, map[string]interface{}{
		"found": true,
		"intent": map[string]interface{}{
			"transaction_type": "Ad_Hoc_Payment",
			"amount":           "120.50",
			"currency":         "EUR",
			"memo":             "Reimbursement",
			"counterparty":     nil,
		},
	})

	input, stdErr := parseInput(job.Variables)

	require.Nil(t, stdErr)
	assert.Equal(t, models.TransactionTypeAdHocPayment, input.Intent.TransactionType)
	require.NotNil(t, input.Intent.Amount)
	assert.Equal(t, "120.5", input.Intent.Amount.String())
	assert.Equal(t, "EUR", input.Intent.Currency)
	assert.Empty(t, input.TransactionType)
}

func TestParseInput_Invalid(t *testing.T) {
	tests := []struct {
		name      string
		variables string
		code      apperrors.ErrorCode
	}{
		{"not json", "{", apperrors.ErrCodeInputValidationFailed},
		{"missing intent", `{"found": true}`, apperrors.ErrCodeInputValidationFailed},
		{"missing type", `{"intent": {"amount": 5}}`, apperrors.ErrCodeInputValidationFailed},
		{"empty type", `{"intent": {"transaction_type": ""}}`, apperrors.ErrCodeInputValidationFailed},
		{"non-numeric amount", `{"intent": {"transaction_type": "Supplier_Invoice", "amount": "lots"}}`, apperrors.ErrCodeMalformedIntent},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			input, stdErr := parseInput(tt.variables)

			assert.Nil(t, input)
			require.NotNil(t, stdErr)
			assert.Equal(t, tt.code, stdErr.Code)
		})
	}
}

// ==========================
// Config
// ==========================

func TestLoadConfig(t *testing.T) {
	appConfig := &config.Config{
		Workers: map[string]config.WorkerConfig{
			TaskType: {Enabled: true, MaxJobsActive: 2, Timeout: 45000},
		},
	}
	appConfig.Workday.Host = "wd2-impl.workday.com"
	appConfig.Workday.Tenant = "acme"
	appConfig.Workday.User = "isu_finhub"
	appConfig.Workday.Password = "s3cret"

	cfg := LoadConfig(appConfig)

	assert.True(t, cfg.Enabled)
	assert.Equal(t, 2, cfg.MaxJobsActive)
	assert.Equal(t, int64(45000), cfg.Timeout.Milliseconds())
	assert.Equal(t, integrationCreds(), cfg.Credentials)
	assert.NoError(t, cfg.Validate())
}

func TestConfig_Validate_MissingCredentials(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Credentials = models.Credentials{Host: "h", Secret: "s3cret"}

	err := cfg.Validate()

	require.Error(t, err)
	assert.Contains(t, err.Error(), "tenant, user")
	assert.NotContains(t, err.Error(), "s3cret")
}

func TestNewHandler_RejectsInvalidConfig(t *testing.T) {
	_, err := NewHandler(HandlerOptions{
		Config:     DefaultConfig(),
		Dispatcher: &fakeDispatcher{},
		Logger:     logger.NewNoOpLogger(),
	})
	assert.Error(t, err)
}
