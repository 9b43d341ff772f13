// Package interview runs adaptive interview sessions: it picks questions
// without repetition, records judged answers and builds final reports.
package interview

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/pavelanni/interviewer/internal/bank"
	"github.com/pavelanni/interviewer/internal/extract"
	"github.com/pavelanni/interviewer/internal/model"
)

const maxUpdateAttempts = 3

// QuestionBank is the read-only question catalog.
type QuestionBank interface {
	QuestionsForRole(role string) ([]model.BankEntry, error)
	QuestionAt(role string, index int) (model.BankEntry, error)
	Version() string
}

// Store persists sessions and their turns. Implementations must make
// UpdateUsedIndices a conditional update on prev.
type Store interface {
	CreateSession(ctx context.Context, sess model.Session) error
	GetSession(ctx context.Context, id string) (*model.Session, error)
	UpdateUsedIndices(ctx context.Context, id string, prev, next []int) error
	MarkFinished(ctx context.Context, id string) error
	AppendTurn(ctx context.Context, t model.Turn) (int64, error)
	ListTurns(ctx context.Context, sessionID string) ([]model.Turn, error)
	SessionView(ctx context.Context, id string) (*model.SessionView, error)
}

// Judge scores answers and proposes next steps. It returns free-form
// text that is expected to contain a JSON record.
type Judge interface {
	Evaluate(ctx context.Context, question, answer, role string) (string, error)
	DecideNext(ctx context.Context, question, answer string, eval model.EvaluationResult, role string) (string, error)
	Summarize(ctx context.Context, evals []model.EvaluationResult) (string, error)
}

// NextQuestion is the result of advancing a session. Done is the
// completion signal; Index and Text are unset when Done is true.
type NextQuestion struct {
	Index int    `json:"question_index"`
	Text  string `json:"question,omitempty"`
	Done  bool   `json:"done"`
}

// Option configures an Engine.
type Option func(*Engine)

// WithRand sets the source used to pick question indices. fn must
// return a value in [0, n).
func WithRand(fn func(n int) int) Option {
	return func(e *Engine) { e.intN = fn }
}

// WithLogger sets the engine logger.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) { e.log = l }
}

// WithClock overrides time.Now.
func WithClock(fn func() time.Time) Option {
	return func(e *Engine) { e.now = fn }
}

// WithIDGenerator overrides session id generation.
func WithIDGenerator(fn func() string) Option {
	return func(e *Engine) { e.newID = fn }
}

// Engine orchestrates sessions. It is safe for concurrent use; calls on
// the same session are serialized, calls on different sessions are not.
type Engine struct {
	bank  QuestionBank
	store Store
	judge Judge

	intN  func(n int) int
	now   func() time.Time
	newID func() string
	log   *slog.Logger
	locks *sessionLocks

	metrics engineMetrics
}

type engineMetrics struct {
	started       metric.Int64Counter
	finished      metric.Int64Counter
	turns         metric.Int64Counter
	judgeFailures metric.Int64Counter
}

// New creates an Engine.
func New(b QuestionBank, s Store, j Judge, opts ...Option) *Engine {
	e := &Engine{
		bank:  b,
		store: s,
		judge: j,
		intN:  rand.IntN,
		now:   time.Now,
		newID: uuid.NewString,
		log:   slog.Default(),
		locks: newSessionLocks(),
	}
	for _, opt := range opts {
		opt(e)
	}
	e.metrics = newEngineMetrics(otel.Meter("github.com/pavelanni/interviewer/internal/interview"))
	return e
}

func newEngineMetrics(m metric.Meter) engineMetrics {
	var em engineMetrics
	var err error
	if em.started, err = m.Int64Counter("interview.sessions.started"); err != nil {
		slog.Warn("create metric", "name", "interview.sessions.started", "error", err)
	}
	if em.finished, err = m.Int64Counter("interview.sessions.finished"); err != nil {
		slog.Warn("create metric", "name", "interview.sessions.finished", "error", err)
	}
	if em.turns, err = m.Int64Counter("interview.turns.submitted"); err != nil {
		slog.Warn("create metric", "name", "interview.turns.submitted", "error", err)
	}
	if em.judgeFailures, err = m.Int64Counter("interview.judge.failures"); err != nil {
		slog.Warn("create metric", "name", "interview.judge.failures", "error", err)
	}
	return em
}

func (m engineMetrics) add(ctx context.Context, c metric.Int64Counter, attrs ...attribute.KeyValue) {
	if c != nil {
		c.Add(ctx, 1, metric.WithAttributes(attrs...))
	}
}

// Start opens a session for role and returns its id and first question.
// The first question is drawn uniformly from the whole catalog.
func (e *Engine) Start(ctx context.Context, role string) (string, *NextQuestion, error) {
	role = bank.NormalizeRole(role)
	questions, err := e.bank.QuestionsForRole(role)
	if err != nil {
		return "", nil, err
	}

	first := e.intN(len(questions))
	sess := model.Session{
		ID:          e.newID(),
		Role:        role,
		UsedIndices: []int{first},
		BankVersion: e.bank.Version(),
		CreatedAt:   e.now(),
	}
	if err := e.store.CreateSession(ctx, sess); err != nil {
		return "", nil, fmt.Errorf("create session: %w", err)
	}

	e.metrics.add(ctx, e.metrics.started, attribute.String("role", role))
	e.log.Info("interview started", "session_id", sess.ID, "role", role, "question_index", first)
	return sess.ID, &NextQuestion{Index: first, Text: questions[first].Question}, nil
}

// Submit evaluates an answer to the session's outstanding question.
func (e *Engine) Submit(ctx context.Context, sessionID, answer string) (*model.EvaluationResult, *model.NextActionDirective, error) {
	return e.submit(ctx, sessionID, -1, "", answer)
}

// SubmitFollowUp evaluates an answer to a follow-up question the judge
// asked about the outstanding question. The answer is judged against
// followUp and the turn records followUp as its question text, under the
// outstanding question's index. An empty followUp behaves like Submit.
func (e *Engine) SubmitFollowUp(ctx context.Context, sessionID, followUp, answer string) (*model.EvaluationResult, *model.NextActionDirective, error) {
	return e.submit(ctx, sessionID, -1, strings.TrimSpace(followUp), answer)
}

// SubmitAt is Submit guarded by the index of the question being answered.
// It fails with model.ErrStaleQuestion unless questionIndex is the
// outstanding question.
func (e *Engine) SubmitAt(ctx context.Context, sessionID string, questionIndex int, answer string) (*model.EvaluationResult, *model.NextActionDirective, error) {
	if questionIndex < 0 {
		return nil, nil, fmt.Errorf("%w: %d", model.ErrIndexOutOfRange, questionIndex)
	}
	return e.submit(ctx, sessionID, questionIndex, "", answer)
}

func (e *Engine) submit(ctx context.Context, sessionID string, want int, followUp, answer string) (*model.EvaluationResult, *model.NextActionDirective, error) {
	if strings.TrimSpace(answer) == "" {
		return nil, nil, model.ErrEmptyAnswer
	}

	turn, role, err := e.recordTurn(ctx, sessionID, want, followUp, answer)
	if err != nil {
		return nil, nil, err
	}

	raw, err := e.judge.DecideNext(ctx, turn.Question, answer, turn.Evaluation, role)
	if err != nil {
		e.judgeFailed(ctx, "decide_next", sessionID, err)
		return nil, nil, &model.JudgeCallError{Op: "decide_next", Err: err}
	}
	directive, err := decode[model.NextActionDirective]("decide_next", raw)
	if err != nil {
		e.judgeFailed(ctx, "decide_next", sessionID, err)
		return nil, nil, err
	}

	e.log.Info("answer evaluated",
		"session_id", sessionID,
		"question_index", turn.QuestionIndex,
		"score", turn.Evaluation.Score,
		"action", directive.Action,
	)
	return &turn.Evaluation, &directive, nil
}

// recordTurn evaluates the answer and appends the turn while holding the
// session lock, so the outstanding question cannot move underneath it.
// A non-empty followUp replaces the bank question as the judged text.
func (e *Engine) recordTurn(ctx context.Context, sessionID string, want int, followUp, answer string) (*model.Turn, string, error) {
	unlock := e.locks.lock(sessionID)
	defer unlock()

	sess, err := e.store.GetSession(ctx, sessionID)
	if err != nil {
		return nil, "", err
	}
	if sess.Finished {
		return nil, "", fmt.Errorf("%w: %s", model.ErrSessionFinished, sessionID)
	}
	current, ok := sess.Current()
	if !ok {
		return nil, "", fmt.Errorf("%w: session %s has no outstanding question", model.ErrStaleQuestion, sessionID)
	}
	if want >= 0 && want != current {
		return nil, "", fmt.Errorf("%w: got %d, outstanding is %d", model.ErrStaleQuestion, want, current)
	}

	question, err := e.questionAt(sess.Role, current)
	if err != nil {
		return nil, "", err
	}
	if followUp != "" {
		question = followUp
	}

	raw, err := e.judge.Evaluate(ctx, question, answer, sess.Role)
	if err != nil {
		e.judgeFailed(ctx, "evaluate", sessionID, err)
		return nil, "", &model.JudgeCallError{Op: "evaluate", Err: err}
	}
	eval, err := decode[model.EvaluationResult]("evaluate", raw)
	if err != nil {
		e.judgeFailed(ctx, "evaluate", sessionID, err)
		return nil, "", err
	}

	turn := model.Turn{
		SessionID:     sessionID,
		QuestionIndex: current,
		Question:      question,
		Answer:        answer,
		Evaluation:    eval,
		CreatedAt:     e.now(),
	}
	if turn.ID, err = e.store.AppendTurn(ctx, turn); err != nil {
		return nil, "", fmt.Errorf("append turn: %w", err)
	}
	e.metrics.add(ctx, e.metrics.turns, attribute.String("role", sess.Role))
	return &turn, sess.Role, nil
}

// NextQuestion asks a not yet used question, chosen uniformly at random.
// Once every question has been used the session finishes and every later
// call returns Done.
func (e *Engine) NextQuestion(ctx context.Context, sessionID string) (*NextQuestion, error) {
	unlock := e.locks.lock(sessionID)
	defer unlock()

	var err error
	for attempt := 0; attempt < maxUpdateAttempts; attempt++ {
		var next *NextQuestion
		next, err = e.advance(ctx, sessionID)
		if err == nil {
			return next, nil
		}
		if !errors.Is(err, model.ErrConflict) {
			return nil, err
		}
		// Another process changed the session between read and update.
		e.log.Warn("session update conflict, retrying", "session_id", sessionID, "attempt", attempt+1)
	}
	return nil, err
}

func (e *Engine) advance(ctx context.Context, sessionID string) (*NextQuestion, error) {
	sess, err := e.store.GetSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if sess.Finished {
		return &NextQuestion{Done: true}, nil
	}

	questions, err := e.bank.QuestionsForRole(sess.Role)
	if err != nil {
		return nil, err
	}
	total := len(questions)

	if len(sess.UsedIndices) >= total {
		if err := e.store.MarkFinished(ctx, sessionID); err != nil {
			return nil, fmt.Errorf("finish session: %w", err)
		}
		e.metrics.add(ctx, e.metrics.finished, attribute.String("role", sess.Role))
		e.log.Info("interview complete", "session_id", sessionID, "questions", total)
		return &NextQuestion{Done: true}, nil
	}

	idx := pickUnused(total, sess.UsedIndices, e.intN)
	next := make([]int, len(sess.UsedIndices), len(sess.UsedIndices)+1)
	copy(next, sess.UsedIndices)
	next = append(next, idx)

	if err := e.store.UpdateUsedIndices(ctx, sessionID, sess.UsedIndices, next); err != nil {
		return nil, err
	}
	e.log.Debug("next question", "session_id", sessionID, "question_index", idx, "asked", len(next), "total", total)
	return &NextQuestion{Index: idx, Text: questions[idx].Question}, nil
}

// pickUnused returns a uniformly chosen index in [0, total) that is not in used.
// It must only be called when at least one such index exists.
func pickUnused(total int, used []int, intN func(int) int) int {
	taken := make([]bool, total)
	for _, i := range used {
		if i >= 0 && i < total {
			taken[i] = true
		}
	}
	unused := make([]int, 0, total)
	for i, t := range taken {
		if !t {
			unused = append(unused, i)
		}
	}
	return unused[intN(len(unused))]
}

// Finalize asks the judge for a report over all turns of a session.
// The report is not cached; each call asks the judge again.
func (e *Engine) Finalize(ctx context.Context, sessionID string) (*model.FinalReport, error) {
	if _, err := e.store.GetSession(ctx, sessionID); err != nil {
		return nil, err
	}
	turns, err := e.store.ListTurns(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("list turns: %w", err)
	}
	if len(turns) == 0 {
		return nil, fmt.Errorf("%w: session %s", model.ErrNoData, sessionID)
	}

	evals := make([]model.EvaluationResult, 0, len(turns))
	for _, t := range turns {
		evals = append(evals, t.Evaluation)
	}

	raw, err := e.judge.Summarize(ctx, evals)
	if err != nil {
		e.judgeFailed(ctx, "summarize", sessionID, err)
		return nil, &model.JudgeCallError{Op: "summarize", Err: err}
	}
	report, err := decode[model.FinalReport]("summarize", raw)
	if err != nil {
		e.judgeFailed(ctx, "summarize", sessionID, err)
		return nil, err
	}

	e.log.Info("report generated", "session_id", sessionID, "turns", len(turns), "overall_score", report.OverallScore)
	return &report, nil
}

// Session returns a session with its turns.
func (e *Engine) Session(ctx context.Context, sessionID string) (*model.SessionView, error) {
	view, err := e.store.SessionView(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if qs, err := e.bank.QuestionsForRole(view.Session.Role); err == nil {
		view.TotalQuestions = len(qs)
	}
	return view, nil
}

// CurrentQuestion returns the outstanding question of an active session.
func (e *Engine) CurrentQuestion(ctx context.Context, sessionID string) (*NextQuestion, error) {
	sess, err := e.store.GetSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if sess.Finished {
		return &NextQuestion{Done: true}, nil
	}
	idx, ok := sess.Current()
	if !ok {
		return nil, fmt.Errorf("%w: session %s has no outstanding question", model.ErrStaleQuestion, sessionID)
	}
	text, err := e.questionAt(sess.Role, idx)
	if err != nil {
		return nil, err
	}
	return &NextQuestion{Index: idx, Text: text}, nil
}

func (e *Engine) questionAt(role string, index int) (string, error) {
	entry, err := e.bank.QuestionAt(role, index)
	if err != nil {
		return "", fmt.Errorf("role %s: %w", role, err)
	}
	return entry.Question, nil
}

func (e *Engine) judgeFailed(ctx context.Context, op, sessionID string, err error) {
	e.metrics.add(ctx, e.metrics.judgeFailures, attribute.String("op", op))
	e.log.Error("judge call failed", "op", op, "session_id", sessionID, "error", err)
}

type validator interface {
	Validate() error
}

// decode recovers a record from judge output and checks its fields.
func decode[T validator](op, raw string) (T, error) {
	v, err := extract.Extract[T](raw)
	if err != nil {
		return v, &model.JudgeContractError{Op: op, Err: err}
	}
	if err := v.Validate(); err != nil {
		return v, &model.JudgeContractError{Op: op, Err: err}
	}
	return v, nil
}
