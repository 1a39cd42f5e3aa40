// internal/common/errors/handler.go
package errors

import (
	"context"
	"encoding/json"
	"time"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
)

// ErrorHandler turns pipeline errors into zeebe job outcomes: a FailJob while
// the code still earns retries, otherwise a BPMN error the process can catch.
type ErrorHandler struct {
	logger Logger
}

type Logger interface {
	Error(msg string, fields map[string]interface{})
}

func NewErrorHandler(logger Logger) *ErrorHandler {
	return &ErrorHandler{logger: logger}
}

// HandleJobError reports err against job.
func (h *ErrorHandler) HandleJobError(ctx context.Context, client worker.JobClient, job entities.Job, err error) {
	stdErr := h.normalizeError(err)
	bpmnErr := ConvertToBPMNError(stdErr)
	if id, ok := stdErr.Metadata["requestId"]; ok {
		bpmnErr.ErrorVariables["requestId"] = id
	}
	h.logError(job, stdErr, bpmnErr)

	if bpmnErr.Retries > 0 && job.Retries > 0 {
		h.failJob(ctx, client, job, bpmnErr)
		return
	}
	h.throwBPMNError(ctx, client, job, bpmnErr)
}

func (h *ErrorHandler) normalizeError(err error) *StandardError {
	if stdErr, ok := AsStandardError(err); ok {
		return stdErr
	}
	return &StandardError{
		Code:      ErrCodeInternal,
		Message:   "Unexpected error",
		Details:   err.Error(),
		Retryable: false,
		Cause:     err,
		Timestamp: time.Now().UTC(),
	}
}

// failJob never raises the retry count zeebe already holds for the job.
func (h *ErrorHandler) failJob(ctx context.Context, client worker.JobClient, job entities.Job, bpmnErr *BPMNError) {
	retries := bpmnErr.Retries
	if int(job.Retries) < retries {
		retries = int(job.Retries)
	}

	step := client.NewFailJobCommand().
		JobKey(job.Key).
		Retries(int32(retries)).
		ErrorMessage(bpmnErr.Message)

	var err error
	if vars, ok := errorVariables(bpmnErr); ok {
		if withVars, verr := step.VariablesFromString(vars); verr == nil {
			_, err = withVars.Send(ctx)
			h.reportSendFailure(job, "fail job", err)
			return
		}
	}
	_, err = step.Send(ctx)
	h.reportSendFailure(job, "fail job", err)
}

func (h *ErrorHandler) throwBPMNError(ctx context.Context, client worker.JobClient, job entities.Job, bpmnErr *BPMNError) {
	step := client.NewThrowErrorCommand().
		JobKey(job.Key).
		ErrorCode(bpmnErr.Code).
		ErrorMessage(bpmnErr.Message)

	var err error
	if vars, ok := errorVariables(bpmnErr); ok {
		if withVars, verr := step.VariablesFromString(vars); verr == nil {
			_, err = withVars.Send(ctx)
			h.reportSendFailure(job, "throw error", err)
			return
		}
	}
	_, err = step.Send(ctx)
	h.reportSendFailure(job, "throw error", err)
}

func errorVariables(bpmnErr *BPMNError) (string, bool) {
	raw, err := json.Marshal(bpmnErr.ToErrorVariables())
	if err != nil {
		return "", false
	}
	return string(raw), true
}

func (h *ErrorHandler) reportSendFailure(job entities.Job, what string, err error) {
	if err == nil {
		return
	}
	h.logger.Error("failed to "+what, map[string]interface{}{
		"jobKey": job.Key,
		"error":  err,
	})
}

func (h *ErrorHandler) logError(job entities.Job, stdErr *StandardError, bpmnErr *BPMNError) {
	h.logger.Error("Job failed", map[string]interface{}{
		"jobKey":           job.Key,
		"jobType":          job.Type,
		"errorCode":        string(stdErr.Code),
		"bpmnErrorCode":    bpmnErr.Code,
		"message":          bpmnErr.Message,
		"details":          stdErr.Details,
		"cause":            causeText(stdErr),
		"retryable":        stdErr.Retryable,
		"retries":          bpmnErr.Retries,
		"errorCategory":    GetErrorCategory(stdErr.Code),
		"requestId":        bpmnErr.ErrorVariables["requestId"],
		"workflowInstance": job.ProcessInstanceKey,
	})
}

func causeText(e *StandardError) string {
	if e.Cause == nil {
		return ""
	}
	return e.Cause.Error()
}
