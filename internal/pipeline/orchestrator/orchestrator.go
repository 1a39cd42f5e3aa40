// Package orchestrator sequences identity resolution, query selection, execution and narration.
package orchestrator

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	apperrors "brokerage-insights/internal/common/errors"
	"brokerage-insights/internal/common/logger"
	"brokerage-insights/internal/common/metrics"
	"brokerage-insights/internal/common/observability"
	"brokerage-insights/internal/models"
	"brokerage-insights/internal/pipeline/narrator"
	"brokerage-insights/internal/pipeline/querycache"
	"brokerage-insights/internal/pipeline/rolepolicy"
)

type IdentityResolver interface {
	ResolveByCallerID(ctx context.Context, callerID string) (*models.Identity, error)
	ResolveByUtterance(ctx context.Context, text string) (*models.Identity, error)
}

type QueryMatcher interface {
	Match(question string, role models.Role) (querycache.Template, bool)
}

type QuerySynthesizer interface {
	Synthesize(ctx context.Context, question string, identity models.Identity) (*models.SynthesizedQuery, error)
	Configured() bool
}

type QueryExecutor interface {
	Execute(ctx context.Context, query string, params []interface{}) (models.ResultSet, error)
}

// Dependencies are the collaborators a request flows through.
// Synthesizer and Observability may be nil.
type Dependencies struct {
	Resolver      IdentityResolver
	Matcher       QueryMatcher
	Synthesizer   QuerySynthesizer
	Store         QueryExecutor
	Observability *observability.Observability
}

type Config struct {
	ExecutionTimeout time.Duration
	// LookupTimeout bounds each identity strategy, caller id and utterance separately.
	LookupTimeout time.Duration
	AssistantName string
}

// Request is one question. Utterance carries the caller's introduction when it
// arrives separately; when empty the question text itself is searched.
type Request struct {
	Question  string `json:"question"`
	CallerID  string `json:"callerId,omitempty"`
	Utterance string `json:"utterance,omitempty"`
}

type Orchestrator struct {
	deps          Dependencies
	config        Config
	canSynthesize bool
	logger        logger.Logger
}

func New(deps Dependencies, cfg Config, log logger.Logger) (*Orchestrator, error) {
	switch {
	case deps.Resolver == nil:
		return nil, apperrors.NewConfigurationError("orchestrator: resolver is required")
	case deps.Matcher == nil:
		return nil, apperrors.NewConfigurationError("orchestrator: matcher is required")
	case deps.Store == nil:
		return nil, apperrors.NewConfigurationError("orchestrator: store is required")
	}
	if cfg.ExecutionTimeout <= 0 {
		cfg.ExecutionTimeout = 15 * time.Second
	}
	if cfg.LookupTimeout <= 0 {
		cfg.LookupTimeout = 5 * time.Second
	}

	o := &Orchestrator{
		deps:          deps,
		config:        cfg,
		canSynthesize: deps.Synthesizer != nil && deps.Synthesizer.Configured(),
		logger:        log.Named("orchestrator"),
	}
	if !o.canSynthesize {
		o.logger.Warn("No text generation backend configured, only cached questions can be answered", nil)
	}
	return o, nil
}

// CanSynthesize reports whether uncached questions can be answered.
func (o *Orchestrator) CanSynthesize() bool {
	return o.canSynthesize
}

// run tracks the per-request state shared by the stages.
type run struct {
	id    string
	trace []models.Stage
	log   logger.Logger
}

func (r *run) enter(stage models.Stage) {
	r.trace = append(r.trace, stage)
}

// Answer runs one question through the pipeline. Failures are *errors.StandardError
// values carrying the stage trace in their metadata.
func (o *Orchestrator) Answer(ctx context.Context, req Request) (*models.Answer, error) {
	start := time.Now()
	r := &run{id: uuid.New().String()}
	r.log = o.logger.WithFields(map[string]interface{}{"requestId": r.id})

	ctx, span := o.deps.Observability.StartSpan(ctx, "insights.answer",
		attribute.String("request.id", r.id),
	)
	defer span.End()

	answer, source, err := o.answer(ctx, r, req)
	outcome := "answered"
	if err != nil {
		r.enter(models.StageFailed)
		outcome = "failed"
		if stdErr, ok := apperrors.AsStandardError(err); ok {
			outcome = strings.ToLower(string(stdErr.Code))
			stdErr.WithMetadata("requestId", r.id).WithMetadata("trace", r.trace)
		}
		span.SetStatus(codes.Error, outcome)
		r.log.Info("Question not answered", map[string]interface{}{
			"outcome":    outcome,
			"trace":      r.trace,
			"durationMs": time.Since(start).Milliseconds(),
		})
	} else {
		answer.Trace = r.trace
		r.log.Info("Question answered", map[string]interface{}{
			"source":     string(source),
			"template":   answer.TemplateName,
			"rows":       answer.Data.Len(),
			"durationMs": time.Since(start).Milliseconds(),
		})
	}

	metrics.AnswersTotal.WithLabelValues(outcome, string(source)).Inc()
	o.deps.Observability.RecordAnswer(ctx, outcome, string(source), time.Since(start))
	span.SetAttributes(attribute.String("answer.outcome", outcome), attribute.String("answer.source", string(source)))
	return answer, err
}

func (o *Orchestrator) answer(ctx context.Context, r *run, req Request) (*models.Answer, models.QuerySource, error) {
	question := strings.TrimSpace(req.Question)
	if question == "" {
		return nil, "", apperrors.NewInvalidInputError("question is empty")
	}

	r.enter(models.StageIdentityPending)
	identity, err := o.resolve(ctx, r, req)
	if err != nil {
		return nil, "", err
	}
	r.enter(models.StageIdentified)
	r.log = r.log.WithFields(map[string]interface{}{"userId": identity.ID, "role": string(identity.Role)})

	if _, err := rolepolicy.ScopeFor(identity.Role); err != nil {
		r.log.Warn("Unknown role, applying agent scope", map[string]interface{}{
			"error": apperrors.NewUnknownRoleError(string(identity.Role)),
		})
	}

	query, params, tpl, source, err := o.selectQuery(ctx, r, question, *identity)
	if err != nil {
		return nil, source, err
	}

	results, err := o.execute(ctx, query, params, source)
	if err != nil {
		r.log.Error("Query execution failed", map[string]interface{}{
			"source":   string(source),
			"template": tpl.Name,
			"query":    query,
			"error":    err,
		})
		return nil, source, apperrors.NewExecutionError(string(source), err)
	}
	r.enter(models.StageExecuted)

	intent := tpl.Intent
	if source != models.SourceCache {
		intent = models.ClassifyIntent(question)
	}
	narration := o.narrate(ctx, question, results, *identity, intent)
	r.enter(models.StageNarrated)

	return &models.Answer{
		RequestID:    r.id,
		Narration:    narration,
		Data:         results,
		QueryUsed:    query,
		Source:       source,
		TemplateName: tpl.Name,
		Identity:     *identity,
		Intent:       intent,
	}, source, nil
}

// resolve tries the caller id first, then the introduction text.
// Collaborator faults are logged and treated as unresolved.
func (o *Orchestrator) resolve(ctx context.Context, r *run, req Request) (*models.Identity, error) {
	ctx, span := o.deps.Observability.StartSpan(ctx, "insights.resolve_identity")
	defer o.observe(span, models.StageIdentified, time.Now())

	if req.CallerID != "" {
		lookupCtx, cancel := context.WithTimeout(ctx, o.config.LookupTimeout)
		identity, err := o.deps.Resolver.ResolveByCallerID(lookupCtx, req.CallerID)
		cancel()
		if err != nil {
			r.log.Warn("Caller id lookup failed", map[string]interface{}{"error": err})
		}
		if identity != nil {
			span.SetAttributes(attribute.String("identity.strategy", "caller_id"))
			return identity, nil
		}
	}

	utterance := req.Utterance
	if strings.TrimSpace(utterance) == "" {
		utterance = req.Question
	}
	lookupCtx, cancel := context.WithTimeout(ctx, o.config.LookupTimeout)
	defer cancel()
	identity, err := o.deps.Resolver.ResolveByUtterance(lookupCtx, utterance)
	if err != nil {
		r.log.Warn("Utterance lookup failed", map[string]interface{}{"error": err})
	}
	if identity == nil {
		span.SetStatus(codes.Error, "unresolved")
		return nil, apperrors.NewNeedsIdentificationError()
	}
	span.SetAttributes(attribute.String("identity.strategy", "utterance"))
	return identity, nil
}

func (o *Orchestrator) selectQuery(ctx context.Context, r *run, question string, identity models.Identity) (string, []interface{}, querycache.Template, models.QuerySource, error) {
	if tpl, ok := o.deps.Matcher.Match(question, identity.Role); ok {
		r.enter(models.StageCached)
		params, err := tpl.Bind(identity)
		if err != nil {
			return "", nil, tpl, models.SourceCache, apperrors.NewExecutionError(string(models.SourceCache), err)
		}
		return tpl.SQL, params, tpl, models.SourceCache, nil
	}

	r.enter(models.StageSynthesizing)
	if !o.canSynthesize {
		return "", nil, querycache.Template{}, models.SourceSynthesized,
			apperrors.NewCouldNotUnderstandError(apperrors.NewGeneratorNotConfiguredError(""))
	}

	ctx, span := o.deps.Observability.StartSpan(ctx, "insights.synthesize")
	start := time.Now()
	synthesized, err := o.deps.Synthesizer.Synthesize(ctx, question, identity)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "synthesis failed")
	}
	o.observe(span, models.StageSynthesizing, start)
	if err != nil {
		return "", nil, querycache.Template{}, models.SourceSynthesized, apperrors.NewCouldNotUnderstandError(err)
	}
	return synthesized.Text, synthesized.Params, querycache.Template{}, models.SourceSynthesized, nil
}

func (o *Orchestrator) execute(ctx context.Context, query string, params []interface{}, source models.QuerySource) (models.ResultSet, error) {
	ctx, span := o.deps.Observability.StartSpan(ctx, "insights.execute",
		attribute.String("query.source", string(source)),
		attribute.Int("query.params", len(params)),
	)
	start := time.Now()

	ctx, cancel := context.WithTimeout(ctx, o.config.ExecutionTimeout)
	defer cancel()

	results, err := o.deps.Store.Execute(ctx, query, params)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "execution failed")
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			span.SetAttributes(attribute.Bool("query.timeout", true))
			err = apperrors.NewQueryTimeoutError(string(source), err)
		}
	} else {
		span.SetAttributes(attribute.Int("query.rows", results.Len()))
	}
	o.observe(span, models.StageExecuted, start)
	return results, err
}

func (o *Orchestrator) narrate(ctx context.Context, question string, results models.ResultSet, identity models.Identity, intent models.IntentCategory) string {
	_, span := o.deps.Observability.StartSpan(ctx, "insights.narrate",
		attribute.String("intent", string(intent)),
	)
	defer o.observe(span, models.StageNarrated, time.Now())
	return narrator.Narrate(question, results, identity, intent)
}

func (o *Orchestrator) observe(span trace.Span, stage models.Stage, start time.Time) {
	metrics.StageDuration.WithLabelValues(string(stage)).Observe(time.Since(start).Seconds())
	span.End()
}
