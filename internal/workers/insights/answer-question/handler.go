package answerquestion

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"

	apperrors "brokerage-insights/internal/common/errors"
	"brokerage-insights/internal/common/logger"
	"brokerage-insights/internal/common/metrics"
	"brokerage-insights/internal/common/validation"
	"brokerage-insights/internal/models"
	"brokerage-insights/internal/pipeline/orchestrator"
	"brokerage-insights/internal/pipeline/rolepolicy"
)

const (
	TaskType = "answer-question"
)

var inputSchema = validation.MustCompile(TaskType+" input", `{
  "type": "object",
  "required": ["question"],
  "properties": {
    "question": {"type": "string", "minLength": 1, "maxLength": 2000},
    "callerId": {"type": "string", "maxLength": 64},
    "utterance": {"type": "string", "maxLength": 2000}
  }
}`)

// Answerer is the pipeline entry point the worker drives.
type Answerer interface {
	Answer(ctx context.Context, req orchestrator.Request) (*models.Answer, error)
}

type Handler struct {
	config       *Config
	pipeline     Answerer
	errorHandler *apperrors.ErrorHandler
	logger       logger.Logger
}

func NewHandler(config *Config, pipeline Answerer, log logger.Logger) *Handler {
	l := log.WithFields(map[string]interface{}{"taskType": TaskType})
	return &Handler{
		config:       config,
		pipeline:     pipeline,
		errorHandler: apperrors.NewErrorHandler(l),
		logger:       l,
	}
}

func (h *Handler) Handle(client worker.JobClient, job entities.Job) {
	h.logger.Info("processing job", map[string]interface{}{
		"jobKey":      job.Key,
		"workflowKey": job.ProcessInstanceKey,
	})
	start := time.Now()
	defer func() {
		metrics.WorkerJobDuration.WithLabelValues(TaskType).Observe(time.Since(start).Seconds())
	}()

	var input Input
	if err := json.Unmarshal([]byte(job.Variables), &input); err != nil {
		metrics.WorkerJobsFailed.WithLabelValues(TaskType, string(apperrors.ErrCodeInvalidInput)).Inc()
		h.errorHandler.HandleJobError(context.Background(), client, job,
			apperrors.NewInvalidInputError(fmt.Sprintf("parse input: %v", err)))
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), h.config.Timeout)
	defer cancel()

	output, err := h.execute(ctx, &input)
	if err != nil {
		metrics.WorkerJobsFailed.WithLabelValues(TaskType, failureCode(err)).Inc()
		if output == nil {
			h.errorHandler.HandleJobError(ctx, client, job, err)
			return
		}
		if h.shouldRetry(err, job) {
			h.errorHandler.HandleJobError(ctx, client, job, errors.Unwrap(err))
			return
		}
	}

	h.completeJob(client, job, output)
	metrics.WorkerJobsCompleted.WithLabelValues(TaskType).Inc()
}

// shouldRetry hands exhausted generation retries back to zeebe while the job has retries left.
func (h *Handler) shouldRetry(err error, job entities.Job) bool {
	if !h.config.RetryTransient || job.Retries <= 1 {
		return false
	}
	stdErr, ok := apperrors.AsStandardError(err)
	return ok && stdErr.Code == apperrors.ErrCodeCouldNotUnderstand && stdErr.Retryable
}

// execute returns an output for every pipeline outcome. The error is non-nil when
// the question was not answered; output is nil only for unusable input.
func (h *Handler) execute(ctx context.Context, input *Input) (*Output, error) {
	if input == nil || strings.TrimSpace(input.Question) == "" {
		return nil, apperrors.NewInvalidInputError("question is required")
	}
	result, err := inputSchema.ValidateValue(input)
	if err != nil {
		return nil, apperrors.NewInvalidInputError(err.Error())
	}
	if err := result.Err(); err != nil {
		return nil, apperrors.NewInvalidInputError(err.Error())
	}

	answer, err := h.pipeline.Answer(ctx, orchestrator.Request{
		Question:  input.Question,
		CallerID:  input.CallerID,
		Utterance: input.Utterance,
	})
	if err != nil {
		stdErr, ok := apperrors.AsStandardError(err)
		if !ok || stdErr.Code == apperrors.ErrCodeInvalidInput {
			return nil, err
		}
		out := &Output{
			Answered:  false,
			Message:   apperrors.UserMessage(err, h.config.AssistantName),
			ErrorCode: string(stdErr.Code),
		}
		if id, ok := stdErr.Metadata["requestId"].(string); ok {
			out.RequestID = id
		}
		return out, err
	}

	permissions := rolepolicy.PermissionsFor(answer.Identity.Role)
	return &Output{
		Answered:     true,
		Message:      answer.Narration,
		RequestID:    answer.RequestID,
		Source:       string(answer.Source),
		TemplateName: answer.TemplateName,
		Intent:       string(answer.Intent),
		QueryUsed:    answer.QueryUsed,
		UserID:       answer.Identity.ID,
		Role:         string(answer.Identity.Role),
		RowCount:     answer.Data.Len(),
		Data:         &answer.Data,
		Permissions:  &permissions,
	}, nil
}

func failureCode(err error) string {
	if stdErr, ok := apperrors.AsStandardError(err); ok {
		return string(stdErr.Code)
	}
	return string(apperrors.ErrCodeInternal)
}

func (h *Handler) completeJob(client worker.JobClient, job entities.Job, output *Output) {
	cmd, err := client.NewCompleteJobCommand().
		JobKey(job.Key).
		VariablesFromObject(output)
	if err != nil {
		h.logger.Error("failed to create complete job command", map[string]interface{}{
			"error": err,
		})
		return
	}

	_, err = cmd.Send(context.Background())
	if err != nil {
		h.logger.Error("failed to send complete job command", map[string]interface{}{
			"error": err,
		})
	}
}

func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	return h.execute(ctx, input)
}
