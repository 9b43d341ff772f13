package store

import (
	"context"
	"fmt"

	"github.com/pavelanni/interviewer/internal/model"
)

// SessionView loads a session together with its turns.
func (s *Store) SessionView(ctx context.Context, id string) (*model.SessionView, error) {
	sess, err := s.GetSession(ctx, id)
	if err != nil {
		return nil, err
	}
	turns, err := s.ListTurns(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("list turns: %w", err)
	}
	return &model.SessionView{
		Session: *sess,
		State:   sess.State(),
		Turns:   turns,
	}, nil
}

// ExportAllSessions builds export-ready views of all sessions.
// countQuestions may be nil; otherwise it fills in TotalQuestions per role.
func (s *Store) ExportAllSessions(ctx context.Context, countQuestions func(role string) (int, error)) ([]model.SessionView, error) {
	sessions, err := s.ListSessions(ctx)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}

	views := make([]model.SessionView, 0, len(sessions))
	for _, sess := range sessions {
		turns, err := s.ListTurns(ctx, sess.ID)
		if err != nil {
			return nil, fmt.Errorf("list turns of %s: %w", sess.ID, err)
		}
		view := model.SessionView{
			Session: sess,
			State:   sess.State(),
			Turns:   turns,
		}
		if countQuestions != nil {
			// A role removed from the bank still exports, just without a total.
			if n, err := countQuestions(sess.Role); err == nil {
				view.TotalQuestions = n
			}
		}
		views = append(views, view)
	}
	return views, nil
}
