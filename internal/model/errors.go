package model

import (
	"errors"
	"fmt"
)

var (
	// ErrUnknownRole is returned when a role key is not in the question bank.
	ErrUnknownRole = errors.New("unknown role")
	// ErrInvalidSession is returned for unknown session ids.
	ErrInvalidSession = errors.New("invalid session")
	// ErrIndexOutOfRange means a question index is outside the role's catalog.
	ErrIndexOutOfRange = errors.New("question index out of range")
	// ErrNoData is returned when a session has no answered turns to report on.
	ErrNoData = errors.New("no evaluation data found")
	// ErrSessionFinished is returned when answering a finished interview.
	ErrSessionFinished = errors.New("interview already finished")
	// ErrStaleQuestion is returned when an answer targets a question that is no longer outstanding.
	ErrStaleQuestion = errors.New("question is not the outstanding question")
	// ErrEmptyAnswer is returned for blank answers.
	ErrEmptyAnswer = errors.New("answer cannot be empty")
	// ErrConflict means a conditional update lost against a concurrent writer.
	ErrConflict = errors.New("concurrent session update")
)

// JudgeContractError reports a judge response that could not be parsed
// or did not satisfy the expected record shape.
type JudgeContractError struct {
	Op  string
	Err error
}

func (e *JudgeContractError) Error() string {
	return fmt.Sprintf("judge %s: %v", e.Op, e.Err)
}

func (e *JudgeContractError) Unwrap() error {
	return e.Err
}

// JudgeCallError reports a judge call that failed before returning any
// text, such as a transport error or an expired deadline.
type JudgeCallError struct {
	Op  string
	Err error
}

func (e *JudgeCallError) Error() string {
	return fmt.Sprintf("judge %s call: %v", e.Op, e.Err)
}

func (e *JudgeCallError) Unwrap() error {
	return e.Err
}
