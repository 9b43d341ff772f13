package llm

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/pavelanni/interviewer/internal/llm/prompts"
	"github.com/pavelanni/interviewer/internal/model"
)

const instrumentationName = "github.com/pavelanni/interviewer/internal/llm"

// Completer sends a system and user prompt to a model and returns its text reply.
type Completer interface {
	Complete(ctx context.Context, system, user string) (string, error)
	Model() string
}

// Judge evaluates answers, proposes next actions and writes reports by
// prompting a Completer. It returns the model's raw text; parsing is left
// to the caller.
type Judge struct {
	completer Completer
	variant   prompts.PromptVariant
	timeout   time.Duration

	tracer   trace.Tracer
	duration metric.Float64Histogram
}

// NewJudge creates a Judge. A zero timeout means no per-call deadline.
func NewJudge(c Completer, variant string, timeout time.Duration) (*Judge, error) {
	if !prompts.IsValidVariant(variant) {
		return nil, fmt.Errorf("invalid prompt variant %q", variant)
	}
	if err := prompts.Load(); err != nil {
		return nil, fmt.Errorf("load prompts: %w", err)
	}

	j := &Judge{
		completer: c,
		variant:   prompts.PromptVariant(variant),
		timeout:   timeout,
		tracer:    otel.Tracer(instrumentationName),
	}
	h, err := otel.Meter(instrumentationName).Float64Histogram(
		"judge.call.duration",
		metric.WithDescription("Duration of judge model calls"),
		metric.WithUnit("s"),
	)
	if err != nil {
		slog.Warn("create metric", "name", "judge.call.duration", "error", err)
	} else {
		j.duration = h
	}
	return j, nil
}

// Evaluate asks the model to score an answer.
func (j *Judge) Evaluate(ctx context.Context, question, answer, role string) (string, error) {
	prompt, err := prompts.BuildEvaluate(j.variant, role, question, answer)
	if err != nil {
		return "", fmt.Errorf("build evaluation prompt: %w", err)
	}
	return j.call(ctx, "judge.evaluate", prompts.EvaluateSystem, prompt, attribute.String("role", role))
}

// DecideNext asks the model how the interview should continue.
func (j *Judge) DecideNext(ctx context.Context, question, answer string, eval model.EvaluationResult, role string) (string, error) {
	prompt, err := prompts.BuildNext(role, question, answer, eval)
	if err != nil {
		return "", fmt.Errorf("build next-action prompt: %w", err)
	}
	return j.call(ctx, "judge.decide_next", prompts.NextSystem, prompt, attribute.String("role", role))
}

// Summarize asks the model for a final report over ordered evaluations.
func (j *Judge) Summarize(ctx context.Context, evals []model.EvaluationResult) (string, error) {
	prompt, err := prompts.BuildSummary(evals)
	if err != nil {
		return "", fmt.Errorf("build summary prompt: %w", err)
	}
	return j.call(ctx, "judge.summarize", prompts.SummarySystem, prompt, attribute.Int("evaluations", len(evals)))
}

func (j *Judge) call(ctx context.Context, op, system, prompt string, attrs ...attribute.KeyValue) (string, error) {
	if j.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, j.timeout)
		defer cancel()
	}

	attrs = append(attrs, attribute.String("model", j.completer.Model()))
	ctx, span := j.tracer.Start(ctx, op, trace.WithAttributes(attrs...))
	defer span.End()

	start := time.Now()
	raw, err := j.completer.Complete(ctx, system, prompt)
	elapsed := time.Since(start)

	if j.duration != nil {
		j.duration.Record(ctx, elapsed.Seconds(), metric.WithAttributes(
			attribute.String("op", op),
			attribute.Bool("error", err != nil),
		))
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return "", err
	}

	span.SetAttributes(attribute.Int("response.length", len(raw)))
	slog.Debug("judge response", "op", op, "duration", elapsed, "raw", truncateForLog(raw, 500))
	return raw, nil
}

// truncateForLog shortens s to limit runes, appending an ellipsis when truncated.
func truncateForLog(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit]) + "..."
}
