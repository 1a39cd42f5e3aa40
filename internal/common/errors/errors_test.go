package errors

import (
	stderrors "errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCouldNotUnderstand_InheritsRetryability(t *testing.T) {
	tests := []struct {
		name      string
		cause     error
		retryable bool
		details   string
	}{
		{"transient synthesis", NewSynthesisError(3, true, stderrors.New("502")), true, "SYNTHESIS_ERROR"},
		{"permanent synthesis", NewSynthesisError(1, false, stderrors.New("empty")), false, "SYNTHESIS_ERROR"},
		{"no generator", NewGeneratorNotConfiguredError(""), false, "GENERATOR_NOT_CONFIGURED"},
		{"plain error", stderrors.New("boom"), false, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := NewCouldNotUnderstandError(tt.cause)
			assert.Equal(t, ErrCodeCouldNotUnderstand, err.Code)
			assert.Equal(t, tt.retryable, err.Retryable)
			assert.Equal(t, tt.details, err.Details)
			assert.ErrorIs(t, err, tt.cause)
		})
	}
}

func TestUserMessage(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"identify default name", NewNeedsIdentificationError(), "Hi! I'm Jen, your AI assistant. Could you please tell me your agent ID or full name so I can help you?"},
		{"rephrase", NewCouldNotUnderstandError(NewSynthesisError(1, false, nil)), MessageRephrase},
		{"try later", NewCouldNotUnderstandError(NewSynthesisError(3, true, nil)), MessageTryLater},
		{"execution", NewExecutionError("cache", stderrors.New("syntax error at or near SELEC")), MessageNoAnswer},
		{"unknown error", stderrors.New("raw"), MessageNoAnswer},
		{"wrapped", fmt.Errorf("answer: %w", NewCouldNotUnderstandError(nil)), MessageRephrase},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, UserMessage(tt.err, ""))
		})
	}
}

func TestUserMessage_NeverLeaksQueryText(t *testing.T) {
	err := NewExecutionError("synthesized", stderrors.New(`relation "payroll" does not exist in SELECT * FROM payroll`))
	msg := UserMessage(err, "Jen")
	assert.NotContains(t, msg, "SELECT")
	assert.NotContains(t, err.Details, "SELECT")
}

func TestConvertToBPMNError(t *testing.T) {
	t.Run("retryable synthesis keeps one retry", func(t *testing.T) {
		bpmn := ConvertToBPMNError(NewSynthesisError(3, true, nil))
		assert.Equal(t, "SYNTHESIS_ERROR", bpmn.Code)
		assert.Equal(t, 1, bpmn.Retries)
		assert.True(t, bpmn.Retryable)
	})

	t.Run("execution never retried", func(t *testing.T) {
		bpmn := ConvertToBPMNError(NewExecutionError("cache", nil))
		assert.Equal(t, 0, bpmn.Retries)
	})

	t.Run("non retryable zeroes retries", func(t *testing.T) {
		stdErr := NewDatabaseConnectionFailedError(stderrors.New("refused"))
		stdErr.Retryable = false
		assert.Equal(t, 0, ConvertToBPMNError(stdErr).Retries)
	})

	t.Run("unmapped code passes through", func(t *testing.T) {
		bpmn := ConvertToBPMNError(NewConfigurationError("bad"))
		assert.Equal(t, "CONFIG_ERROR", bpmn.Code)
		vars := bpmn.ToErrorVariables()
		assert.Equal(t, "CONFIG_ERROR", vars["originalErrorCode"])
		assert.Equal(t, "CONFIG_ERROR", vars["errorCode"])
	})
}

func TestGetErrorCategory(t *testing.T) {
	assert.Equal(t, "IDENTITY", GetErrorCategory(ErrCodeNeedsIdentification))
	assert.Equal(t, "IDENTITY", GetErrorCategory(ErrCodeUnknownRole))
	assert.Equal(t, "AI", GetErrorCategory(ErrCodeGeneratorNotConfigured))
	assert.Equal(t, "DATABASE", GetErrorCategory(ErrCodeExecutionFailed))
	assert.Equal(t, "SEARCH", GetErrorCategory(ErrCodeSearchQueryFailed))
	assert.Equal(t, "VALIDATION", GetErrorCategory(ErrCodeInvalidInput))
	assert.Equal(t, "OTHER", GetErrorCategory(ErrCodeInternal))
}

func TestWithMetadata(t *testing.T) {
	err := NewNeedsIdentificationError().WithMetadata("requestId", "r-1")
	require.NotNil(t, err.Metadata)
	assert.Equal(t, "r-1", err.Metadata["requestId"])
	assert.True(t, HasCode(fmt.Errorf("x: %w", err), ErrCodeNeedsIdentification))
	assert.False(t, HasCode(stderrors.New("x"), ErrCodeNeedsIdentification))
}
