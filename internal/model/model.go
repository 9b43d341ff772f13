package model

import (
	"fmt"
	"time"
)

// SessionState is the lifecycle state of an interview session.
type SessionState string

const (
	StateActive   SessionState = "active"
	StateFinished SessionState = "finished"
)

// Action is the next step proposed by the judge after a turn.
type Action string

const (
	ActionFollowUp  Action = "follow_up"
	ActionClarify   Action = "clarify"
	ActionNext      Action = "next"
	ActionChallenge Action = "challenge"
)

var validActions = map[Action]bool{
	ActionFollowUp:  true,
	ActionClarify:   true,
	ActionNext:      true,
	ActionChallenge: true,
}

// Valid reports whether a is one of the known actions.
func (a Action) Valid() bool {
	return validActions[a]
}

// BankEntry is a single question of the question bank.
type BankEntry struct {
	Role     string `json:"role" yaml:"role"`
	Question string `json:"question" yaml:"question"`
}

// Session is one candidate's interview run for a single role.
type Session struct {
	ID          string    `json:"session_id"`
	Role        string    `json:"role"`
	UsedIndices []int     `json:"used_question_indices"`
	Finished    bool      `json:"is_finished"`
	BankVersion string    `json:"bank_version,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Current returns the index of the most recently asked question.
func (s *Session) Current() (int, bool) {
	if len(s.UsedIndices) == 0 {
		return 0, false
	}
	return s.UsedIndices[len(s.UsedIndices)-1], true
}

// State returns the lifecycle state of the session.
func (s *Session) State() SessionState {
	if s.Finished {
		return StateFinished
	}
	return StateActive
}

// EvaluationResult is the judge's assessment of a single answer.
type EvaluationResult struct {
	Score              float64  `json:"score"`
	Strengths          []string `json:"strengths"`
	Weaknesses         []string `json:"weaknesses"`
	SkillMatch         float64  `json:"skill_match"`
	CommunicationScore float64  `json:"communication_score"`
	FinalFeedback      string   `json:"final_feedback"`
}

// Validate checks that all scores are within 0..100.
func (e EvaluationResult) Validate() error {
	if err := checkPercent("score", e.Score); err != nil {
		return err
	}
	if err := checkPercent("skill_match", e.SkillMatch); err != nil {
		return err
	}
	return checkPercent("communication_score", e.CommunicationScore)
}

// NextActionDirective tells the caller how the interview should proceed.
type NextActionDirective struct {
	Action   Action `json:"action"`
	Question string `json:"question"`
}

// Validate rejects directives with an unknown action.
func (d NextActionDirective) Validate() error {
	if !d.Action.Valid() {
		return fmt.Errorf("unknown action %q", d.Action)
	}
	return nil
}

// FinalReport summarizes all turns of a session.
type FinalReport struct {
	OverallScore      float64 `json:"overall_score"`
	StrengthsSummary  string  `json:"strengths_summary"`
	WeaknessesSummary string  `json:"weaknesses_summary"`
	RoleFit           string  `json:"role_fit"`
	Recommendations   string  `json:"recommendations"`
}

// Validate checks the overall score range.
func (r FinalReport) Validate() error {
	return checkPercent("overall_score", r.OverallScore)
}

// Turn is one answered question together with its evaluation.
type Turn struct {
	ID            int64            `json:"id"`
	SessionID     string           `json:"session_id"`
	QuestionIndex int              `json:"question_index"`
	Question      string           `json:"question"`
	Answer        string           `json:"answer"`
	Evaluation    EvaluationResult `json:"evaluation"`
	CreatedAt     time.Time        `json:"created_at"`
}

// SessionView combines a session with its turns for display and export.
type SessionView struct {
	Session        Session      `json:"session"`
	State          SessionState `json:"state"`
	TotalQuestions int          `json:"total_questions"`
	Turns          []Turn       `json:"turns"`
}

func checkPercent(field string, v float64) error {
	if v < 0 || v > 100 {
		return fmt.Errorf("%s %v out of range 0..100", field, v)
	}
	return nil
}
