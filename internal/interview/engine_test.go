package interview

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"sync"
	"testing"

	"github.com/pavelanni/interviewer/internal/bank"
	"github.com/pavelanni/interviewer/internal/extract"
	"github.com/pavelanni/interviewer/internal/model"
	"github.com/pavelanni/interviewer/internal/store"
)

const (
	goodEval     = `{"score": 82, "strengths": ["structured"], "weaknesses": ["needs more detail"], "skill_match": 70, "communication_score": 90, "final_feedback": "Solid."}`
	goodDecision = `Sure! {"action": "next", "question": ""}`
	goodSummary  = "```json\n{\"overall_score\": 78, \"strengths_summary\": \"clear\", \"weaknesses_summary\": \"depth\", \"role_fit\": \"good\", \"recommendations\": \"practice\"}\n```"
)

type stubJudge struct {
	mu sync.Mutex

	evalResp     string
	evalErr      error
	decideResp   string
	decideErr    error
	summaryResp  string
	summaryErr   error
	evalCalls    int
	questions    []string
	lastRole     string
	summaryEvals []model.EvaluationResult
}

func newStubJudge() *stubJudge {
	return &stubJudge{evalResp: goodEval, decideResp: goodDecision, summaryResp: goodSummary}
}

func (j *stubJudge) Evaluate(_ context.Context, question, _, role string) (string, error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.evalCalls++
	j.questions = append(j.questions, question)
	j.lastRole = role
	return j.evalResp, j.evalErr
}

func (j *stubJudge) DecideNext(_ context.Context, _, _ string, _ model.EvaluationResult, _ string) (string, error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.decideResp, j.decideErr
}

func (j *stubJudge) Summarize(_ context.Context, evals []model.EvaluationResult) (string, error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.summaryEvals = evals
	return j.summaryResp, j.summaryErr
}

type testEnv struct {
	engine *Engine
	store  *store.Store
	judge  *stubJudge
	bank   *bank.Bank
}

func newTestEnv(t *testing.T, numQuestions int, opts ...Option) *testEnv {
	t.Helper()
	questions := make([]string, numQuestions)
	for i := range questions {
		questions[i] = fmt.Sprintf("Question %d", i)
	}
	b, err := bank.New(map[string][]string{"software_engineer": questions})
	if err != nil {
		t.Fatalf("bank.New: %v", err)
	}
	s, err := store.New(":memory:")
	if err != nil {
		t.Fatalf("store.New: %v", err)
	}
	t.Cleanup(func() { s.Close() })

	j := newStubJudge()
	opts = append([]Option{WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))}, opts...)
	return &testEnv{engine: New(b, s, j, opts...), store: s, judge: j, bank: b}
}

// sequence returns a WithRand func that replays picks, taken modulo n.
func sequence(picks ...int) func(int) int {
	var mu sync.Mutex
	i := 0
	return func(n int) int {
		mu.Lock()
		defer mu.Unlock()
		p := picks[i%len(picks)]
		i++
		return p % n
	}
}

func TestStart(t *testing.T) {
	env := newTestEnv(t, 5, WithRand(sequence(3)), WithIDGenerator(func() string { return "fixed-id" }))
	ctx := context.Background()

	id, q, err := env.engine.Start(ctx, "Software Engineer")
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	if id != "fixed-id" {
		t.Errorf("expected fixed-id, got %q", id)
	}
	if q.Text != "Question 3" || q.Index != 3 || q.Done {
		t.Errorf("expected question 3, got %+v", q)
	}

	sess, err := env.store.GetSession(ctx, id)
	if err != nil {
		t.Fatalf("GetSession: %v", err)
	}
	if sess.Role != "software_engineer" {
		t.Errorf("expected normalized role, got %q", sess.Role)
	}
	if len(sess.UsedIndices) != 1 || sess.UsedIndices[0] != 3 {
		t.Errorf("expected used [3], got %v", sess.UsedIndices)
	}
	if sess.BankVersion != env.bank.Version() {
		t.Errorf("expected bank version recorded")
	}

	_, _, err = env.engine.Start(ctx, "astronaut")
	if !errors.Is(err, model.ErrUnknownRole) {
		t.Errorf("expected ErrUnknownRole, got %v", err)
	}
}

func TestStartIsUniform(t *testing.T) {
	const (
		numQuestions = 4
		trials       = 2000
	)
	env := newTestEnv(t, numQuestions)
	ctx := context.Background()

	counts := make(map[string]int)
	for i := 0; i < trials; i++ {
		_, q, err := env.engine.Start(ctx, "software_engineer")
		if err != nil {
			t.Fatalf("Start: %v", err)
		}
		counts[q.Text]++
	}

	if len(counts) != numQuestions {
		t.Fatalf("expected all %d questions to appear, got %v", numQuestions, counts)
	}
	// Expected 500 each; the bounds are more than 5 standard deviations wide.
	for q, n := range counts {
		if n < 400 || n > 600 {
			t.Errorf("question %q drawn %d times, expected about %d", q, n, trials/numQuestions)
		}
	}
}

func TestNextQuestionExhaustsBank(t *testing.T) {
	const total = 6
	env := newTestEnv(t, total)
	ctx := context.Background()

	id, _, err := env.engine.Start(ctx, "software_engineer")
	if err != nil {
		t.Fatalf("Start: %v", err)
	}

	for i := 1; i < total; i++ {
		next, err := env.engine.NextQuestion(ctx, id)
		if err != nil {
			t.Fatalf("NextQuestion #%d: %v", i, err)
		}
		if next.Done {
			t.Fatalf("NextQuestion #%d: unexpected completion", i)
		}
		if next.Text != fmt.Sprintf("Question %d", next.Index) {
			t.Errorf("text %q does not match index %d", next.Text, next.Index)
		}
	}

	sess, err := env.store.GetSession(ctx, id)
	if err != nil {
		t.Fatalf("GetSession: %v", err)
	}
	used := append([]int(nil), sess.UsedIndices...)
	sort.Ints(used)
	for i, idx := range used {
		if idx != i {
			t.Fatalf("expected every index exactly once, got %v", sess.UsedIndices)
		}
	}
	if sess.Finished {
		t.Fatal("session must not finish before completion is observed")
	}

	for i := 0; i < 3; i++ {
		next, err := env.engine.NextQuestion(ctx, id)
		if err != nil {
			t.Fatalf("NextQuestion after exhaustion: %v", err)
		}
		if !next.Done {
			t.Fatalf("expected completion signal, got %+v", next)
		}
	}

	sess, _ = env.store.GetSession(ctx, id)
	if !sess.Finished {
		t.Error("expected session to be finished")
	}
	if len(sess.UsedIndices) != total {
		t.Errorf("completion must not change used questions, got %v", sess.UsedIndices)
	}
}

func TestNextQuestionDeterministicWithInjectedRand(t *testing.T) {
	// Start picks 0; the next picks select the last unused index each time.
	env := newTestEnv(t, 4, WithRand(sequence(0, 2, 1, 0)))
	ctx := context.Background()

	id, q, err := env.engine.Start(ctx, "software_engineer")
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	got := []string{q.Text}
	for {
		next, err := env.engine.NextQuestion(ctx, id)
		if err != nil {
			t.Fatalf("NextQuestion: %v", err)
		}
		if next.Done {
			break
		}
		got = append(got, next.Text)
	}

	want := []string{"Question 0", "Question 3", "Question 2", "Question 1"}
	if fmt.Sprint(got) != fmt.Sprint(want) {
		t.Errorf("got order %v, want %v", got, want)
	}
}

func TestNextQuestionConcurrent(t *testing.T) {
	for run := 0; run < 20; run++ {
		env := newTestEnv(t, 3, WithRand(sequence(0)))
		ctx := context.Background()

		id, _, err := env.engine.Start(ctx, "software_engineer")
		if err != nil {
			t.Fatalf("Start: %v", err)
		}

		var wg sync.WaitGroup
		results := make([]*NextQuestion, 2)
		errs := make([]error, 2)
		for i := 0; i < 2; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				results[i], errs[i] = env.engine.NextQuestion(ctx, id)
			}(i)
		}
		wg.Wait()

		for _, err := range errs {
			if err != nil {
				t.Fatalf("NextQuestion: %v", err)
			}
		}
		if results[0].Done || results[1].Done {
			t.Fatalf("unexpected completion: %+v %+v", results[0], results[1])
		}
		if results[0].Index == results[1].Index {
			t.Fatalf("concurrent calls returned the same question %d", results[0].Index)
		}
		if n := env.engine.locks.size(); n != 0 {
			t.Errorf("expected session locks to be released, %d left", n)
		}
	}
}

func TestNextQuestionUnknownSession(t *testing.T) {
	env := newTestEnv(t, 2)
	_, err := env.engine.NextQuestion(context.Background(), "missing")
	if !errors.Is(err, model.ErrInvalidSession) {
		t.Errorf("expected ErrInvalidSession, got %v", err)
	}
}

func TestSubmit(t *testing.T) {
	env := newTestEnv(t, 3, WithRand(sequence(1)))
	ctx := context.Background()

	id, q, err := env.engine.Start(ctx, "software_engineer")
	if err != nil {
		t.Fatalf("Start: %v", err)
	}

	eval, next, err := env.engine.Submit(ctx, id, "I would use git bisect.")
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if eval.Score != 82 || eval.CommunicationScore != 90 {
		t.Errorf("unexpected evaluation %+v", eval)
	}
	if next.Action != model.ActionNext {
		t.Errorf("expected action next, got %q", next.Action)
	}
	if env.judge.questions[0] != q.Text {
		t.Errorf("judge got question %q, want %q", env.judge.questions[0], q.Text)
	}
	if env.judge.lastRole != "software_engineer" {
		t.Errorf("judge got role %q", env.judge.lastRole)
	}

	turns, err := env.store.ListTurns(ctx, id)
	if err != nil {
		t.Fatalf("ListTurns: %v", err)
	}
	if len(turns) != 1 {
		t.Fatalf("expected 1 turn, got %d", len(turns))
	}
	if turns[0].Question != q.Text || turns[0].QuestionIndex != 1 || turns[0].Answer != "I would use git bisect." {
		t.Errorf("unexpected turn %+v", turns[0])
	}

	sess, _ := env.store.GetSession(ctx, id)
	if len(sess.UsedIndices) != 1 {
		t.Errorf("submit must not change used questions, got %v", sess.UsedIndices)
	}

	// Answering again targets the same outstanding question.
	if _, _, err := env.engine.Submit(ctx, id, "More detail: ..."); err != nil {
		t.Fatalf("second Submit: %v", err)
	}
	if env.judge.questions[1] != q.Text {
		t.Errorf("expected second answer to target %q, got %q", q.Text, env.judge.questions[1])
	}
}

func TestSubmitTargetsLatestQuestion(t *testing.T) {
	env := newTestEnv(t, 3)
	ctx := context.Background()

	id, _, err := env.engine.Start(ctx, "software_engineer")
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	next, err := env.engine.NextQuestion(ctx, id)
	if err != nil {
		t.Fatalf("NextQuestion: %v", err)
	}
	if _, _, err := env.engine.Submit(ctx, id, "answer"); err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if env.judge.questions[0] != next.Text {
		t.Errorf("expected answer to target %q, got %q", next.Text, env.judge.questions[0])
	}
}

func TestSubmitFollowUp(t *testing.T) {
	env := newTestEnv(t, 3, WithRand(sequence(2)))
	ctx := context.Background()

	id, q, err := env.engine.Start(ctx, "software_engineer")
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	if _, _, err := env.engine.Submit(ctx, id, "first answer"); err != nil {
		t.Fatalf("Submit: %v", err)
	}

	const followUp = "Can you give a concrete example?"
	if _, _, err := env.engine.SubmitFollowUp(ctx, id, "  "+followUp+"\n", "We used it for payments."); err != nil {
		t.Fatalf("SubmitFollowUp: %v", err)
	}
	if env.judge.questions[1] != followUp {
		t.Errorf("judge got question %q, want the follow-up", env.judge.questions[1])
	}

	turns, err := env.store.ListTurns(ctx, id)
	if err != nil {
		t.Fatalf("ListTurns: %v", err)
	}
	if len(turns) != 2 {
		t.Fatalf("expected 2 turns, got %d", len(turns))
	}
	if turns[0].Question != q.Text {
		t.Errorf("first turn question = %q, want %q", turns[0].Question, q.Text)
	}
	if turns[1].Question != followUp || turns[1].QuestionIndex != q.Index || turns[1].Answer != "We used it for payments." {
		t.Errorf("unexpected follow-up turn %+v", turns[1])
	}

	// An empty follow-up falls back to the outstanding question.
	if _, _, err := env.engine.SubmitFollowUp(ctx, id, "", "again"); err != nil {
		t.Fatalf("SubmitFollowUp empty: %v", err)
	}
	if env.judge.questions[2] != q.Text {
		t.Errorf("judge got question %q, want %q", env.judge.questions[2], q.Text)
	}

	if _, err := env.engine.NextQuestion(ctx, id); err != nil {
		t.Fatalf("NextQuestion: %v", err)
	}
	if _, err := env.engine.NextQuestion(ctx, id); err != nil {
		t.Fatalf("NextQuestion: %v", err)
	}
	if _, err := env.engine.NextQuestion(ctx, id); err != nil {
		t.Fatalf("NextQuestion: %v", err)
	}
	if _, _, err := env.engine.SubmitFollowUp(ctx, id, followUp, "late"); !errors.Is(err, model.ErrSessionFinished) {
		t.Errorf("expected ErrSessionFinished, got %v", err)
	}
}

func TestFinalizeJudgeCallError(t *testing.T) {
	env := newTestEnv(t, 3)
	ctx := context.Background()

	id, _, err := env.engine.Start(ctx, "software_engineer")
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	if _, _, err := env.engine.Submit(ctx, id, "answer"); err != nil {
		t.Fatalf("Submit: %v", err)
	}
	env.judge.summaryErr = errors.New("connection refused")

	_, err = env.engine.Finalize(ctx, id)
	var ce *model.JudgeCallError
	if !errors.As(err, &ce) || ce.Op != "summarize" {
		t.Errorf("expected summarize JudgeCallError, got %v", err)
	}
}

func TestSubmitErrors(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name    string
		setup   func(j *stubJudge)
		check   func(t *testing.T, err error)
		session string
		answer  string
	}{
		{
			name:    "unknown session",
			session: "missing",
			answer:  "answer",
			check: func(t *testing.T, err error) {
				if !errors.Is(err, model.ErrInvalidSession) {
					t.Errorf("expected ErrInvalidSession, got %v", err)
				}
			},
		},
		{
			name:   "empty answer",
			answer: "   ",
			check: func(t *testing.T, err error) {
				if !errors.Is(err, model.ErrEmptyAnswer) {
					t.Errorf("expected ErrEmptyAnswer, got %v", err)
				}
			},
		},
		{
			name:   "judge error",
			answer: "answer",
			setup:  func(j *stubJudge) { j.evalErr = context.DeadlineExceeded },
			check: func(t *testing.T, err error) {
				var ce *model.JudgeCallError
				if !errors.As(err, &ce) || ce.Op != "evaluate" {
					t.Fatalf("expected evaluate JudgeCallError, got %v", err)
				}
				if !errors.Is(err, context.DeadlineExceeded) {
					t.Errorf("expected deadline cause preserved, got %v", err)
				}
			},
		},
		{
			name:   "unparseable evaluation",
			answer: "answer",
			setup:  func(j *stubJudge) { j.evalResp = "I cannot grade this." },
			check: func(t *testing.T, err error) {
				var ce *model.JudgeContractError
				if !errors.As(err, &ce) || ce.Op != "evaluate" {
					t.Fatalf("expected evaluate JudgeContractError, got %v", err)
				}
				var ue *extract.UnparseableResponseError
				if !errors.As(err, &ue) {
					t.Errorf("expected UnparseableResponseError inside, got %v", err)
				}
			},
		},
		{
			name:   "null evaluation",
			answer: "answer",
			setup:  func(j *stubJudge) { j.evalResp = "null" },
			check: func(t *testing.T, err error) {
				var ue *extract.UnparseableResponseError
				if !errors.As(err, &ue) {
					t.Errorf("expected UnparseableResponseError, got %v", err)
				}
			},
		},
		{
			name:   "score out of range",
			answer: "answer",
			setup:  func(j *stubJudge) { j.evalResp = `{"score": 140, "skill_match": 50, "communication_score": 50}` },
			check: func(t *testing.T, err error) {
				var ce *model.JudgeContractError
				if !errors.As(err, &ce) {
					t.Errorf("expected JudgeContractError, got %v", err)
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t, 3)
			id, _, err := env.engine.Start(ctx, "software_engineer")
			if err != nil {
				t.Fatalf("Start: %v", err)
			}
			if tt.session != "" {
				id = tt.session
			}
			if tt.setup != nil {
				tt.setup(env.judge)
			}

			_, _, err = env.engine.Submit(ctx, id, tt.answer)
			tt.check(t, err)

			// No turn is persisted for a failed submission.
			sessions, err := env.store.ListSessions(ctx)
			if err != nil {
				t.Fatalf("ListSessions: %v", err)
			}
			for _, s := range sessions {
				turns, _ := env.store.ListTurns(ctx, s.ID)
				if len(turns) != 0 {
					t.Errorf("expected no turns, got %d", len(turns))
				}
			}
		})
	}
}

func TestSubmitInvalidDirective(t *testing.T) {
	tests := []struct {
		name string
		resp string
	}{
		{"unknown action", `{"action": "skip", "question": ""}`},
		{"missing action", `{"question": "Why?"}`},
		{"not json", "Let's move on to the next topic."},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t, 3)
			ctx := context.Background()
			id, _, err := env.engine.Start(ctx, "software_engineer")
			if err != nil {
				t.Fatalf("Start: %v", err)
			}
			env.judge.decideResp = tt.resp

			_, _, err = env.engine.Submit(ctx, id, "answer")
			var ce *model.JudgeContractError
			if !errors.As(err, &ce) || ce.Op != "decide_next" {
				t.Errorf("expected decide_next JudgeContractError, got %v", err)
			}
		})
	}
}

func TestSubmitAt(t *testing.T) {
	env := newTestEnv(t, 3, WithRand(sequence(2, 0)))
	ctx := context.Background()

	id, _, err := env.engine.Start(ctx, "software_engineer")
	if err != nil {
		t.Fatalf("Start: %v", err)
	}

	if _, _, err := env.engine.SubmitAt(ctx, id, 2, "answer"); err != nil {
		t.Fatalf("SubmitAt current: %v", err)
	}
	if _, err := env.engine.NextQuestion(ctx, id); err != nil {
		t.Fatalf("NextQuestion: %v", err)
	}

	// Question 2 is no longer outstanding.
	_, _, err = env.engine.SubmitAt(ctx, id, 2, "late answer")
	if !errors.Is(err, model.ErrStaleQuestion) {
		t.Errorf("expected ErrStaleQuestion, got %v", err)
	}
	if env.judge.evalCalls != 1 {
		t.Errorf("stale answers must not reach the judge, got %d calls", env.judge.evalCalls)
	}
}

func TestSubmitAfterFinish(t *testing.T) {
	env := newTestEnv(t, 1)
	ctx := context.Background()

	id, _, err := env.engine.Start(ctx, "software_engineer")
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	next, err := env.engine.NextQuestion(ctx, id)
	if err != nil {
		t.Fatalf("NextQuestion: %v", err)
	}
	if !next.Done {
		t.Fatal("expected completion with a single-question bank")
	}

	_, _, err = env.engine.Submit(ctx, id, "answer")
	if !errors.Is(err, model.ErrSessionFinished) {
		t.Errorf("expected ErrSessionFinished, got %v", err)
	}
}

func TestFinalize(t *testing.T) {
	env := newTestEnv(t, 3)
	ctx := context.Background()

	id, _, err := env.engine.Start(ctx, "software_engineer")
	if err != nil {
		t.Fatalf("Start: %v", err)
	}

	_, err = env.engine.Finalize(ctx, id)
	if !errors.Is(err, model.ErrNoData) {
		t.Fatalf("expected ErrNoData, got %v", err)
	}
	if env.judge.summaryEvals != nil {
		t.Fatal("judge must not be called without turns")
	}

	scores := []float64{35, 60, 95}
	for _, score := range scores {
		env.judge.evalResp = fmt.Sprintf(`{"score": %v, "strengths": [], "weaknesses": [], "skill_match": 50, "communication_score": 50, "final_feedback": ""}`, score)
		if _, _, err := env.engine.Submit(ctx, id, "answer"); err != nil {
			t.Fatalf("Submit: %v", err)
		}
	}

	report, err := env.engine.Finalize(ctx, id)
	if err != nil {
		t.Fatalf("Finalize: %v", err)
	}
	if report.OverallScore != 78 || report.RoleFit != "good" {
		t.Errorf("unexpected report %+v", report)
	}
	if len(env.judge.summaryEvals) != len(scores) {
		t.Fatalf("judge got %d evaluations, want %d", len(env.judge.summaryEvals), len(scores))
	}
	for i, want := range scores {
		if env.judge.summaryEvals[i].Score != want {
			t.Errorf("evaluation %d: score %v, want %v", i, env.judge.summaryEvals[i].Score, want)
		}
	}

	// Finalize does not change session state and may be repeated.
	if _, err := env.engine.Finalize(ctx, id); err != nil {
		t.Fatalf("second Finalize: %v", err)
	}
	sess, _ := env.store.GetSession(ctx, id)
	if sess.Finished || len(sess.UsedIndices) != 1 {
		t.Errorf("finalize changed session state: %+v", sess)
	}
}

func TestFinalizeErrors(t *testing.T) {
	env := newTestEnv(t, 2)
	ctx := context.Background()

	if _, err := env.engine.Finalize(ctx, "missing"); !errors.Is(err, model.ErrInvalidSession) {
		t.Errorf("expected ErrInvalidSession, got %v", err)
	}

	id, _, err := env.engine.Start(ctx, "software_engineer")
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	if _, _, err := env.engine.Submit(ctx, id, "answer"); err != nil {
		t.Fatalf("Submit: %v", err)
	}

	env.judge.summaryResp = `{"overall_score": "great"}`
	_, err = env.engine.Finalize(ctx, id)
	var ce *model.JudgeContractError
	if !errors.As(err, &ce) || ce.Op != "summarize" {
		t.Errorf("expected summarize JudgeContractError, got %v", err)
	}
}

func TestSessionView(t *testing.T) {
	env := newTestEnv(t, 4, WithRand(sequence(1)))
	ctx := context.Background()

	id, _, err := env.engine.Start(ctx, "software_engineer")
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	if _, _, err := env.engine.Submit(ctx, id, "answer"); err != nil {
		t.Fatalf("Submit: %v", err)
	}

	view, err := env.engine.Session(ctx, id)
	if err != nil {
		t.Fatalf("Session: %v", err)
	}
	if view.TotalQuestions != 4 || len(view.Turns) != 1 || view.State != model.StateActive {
		t.Errorf("unexpected view %+v", view)
	}

	cur, err := env.engine.CurrentQuestion(ctx, id)
	if err != nil {
		t.Fatalf("CurrentQuestion: %v", err)
	}
	if cur.Index != 1 || cur.Text != "Question 1" {
		t.Errorf("unexpected current question %+v", cur)
	}
}

func TestPickUnused(t *testing.T) {
	tests := []struct {
		name  string
		total int
		used  []int
		pick  int
		want  int
	}{
		{"first unused", 5, []int{0, 2}, 0, 1},
		{"last unused", 5, []int{0, 2}, 2, 4},
		{"one left", 3, []int{2, 0}, 0, 1},
		{"ignores out of range", 3, []int{7, 1}, 1, 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := pickUnused(tt.total, tt.used, func(int) int { return tt.pick })
			if got != tt.want {
				t.Errorf("pickUnused = %d, want %d", got, tt.want)
			}
		})
	}
}
