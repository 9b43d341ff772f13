package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/manifoldco/promptui"
	"github.com/nicksnyder/go-i18n/v2/i18n"
	"github.com/spf13/cobra"

	appI18n "github.com/pavelanni/interviewer/internal/i18n"
	"github.com/pavelanni/interviewer/internal/interview"
	"github.com/pavelanni/interviewer/internal/model"
)

const maxFollowUps = 2

func practiceCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "practice",
		Short: "Run an interview in the terminal",
		RunE:  runPractice,
	}
	f := cmd.Flags()
	f.StringP("role", "r", "", "Role to practice (prompted when empty)")
	f.StringP("lang", "l", "en", "Language for terminal messages (en, ru)")
	addStoreFlags(f)
	addJudgeFlags(f)
	addLogFlags(f)
	return cmd
}

func runPractice(cmd *cobra.Command, _ []string) error {
	v := viperForCmd(cmd)
	setupLogging(v)
	ctx := cmd.Context()

	a, err := openApp(ctx, v)
	if err != nil {
		return err
	}
	defer a.Close()

	tr, err := appI18n.New(v.GetString("lang"))
	if err != nil {
		return fmt.Errorf("init i18n: %w", err)
	}

	p := &practice{
		engine: a.engine,
		loc:    tr.Localizer(v.GetString("lang")),
		out:    cmd.OutOrStdout(),
	}
	p.ask = p.promptAnswer

	role := v.GetString("role")
	if role == "" {
		sel := promptui.Select{
			Label: p.msg("ChooseRole", nil),
			Items: a.bank.Roles(),
		}
		if _, role, err = sel.Run(); err != nil {
			return err
		}
	}
	return p.run(ctx, role)
}

type practice struct {
	engine *interview.Engine
	loc    *i18n.Localizer
	out    io.Writer
	ask    func() (string, error)
}

func (p *practice) msg(id string, data map[string]any) string {
	return appI18n.Localize(p.loc, id, data)
}

func (p *practice) run(ctx context.Context, role string) error {
	sessionID, first, err := p.engine.Start(ctx, role)
	if err != nil {
		return err
	}
	question := first.Text
	// followUp is the judge's follow-up to the current bank question, if any.
	followUp := ""
	answered, followUps := 0, 0

	for {
		if followUp != "" {
			fmt.Fprintf(p.out, "\n%s: %s\n", p.msg("FollowUp", nil), followUp)
		} else {
			fmt.Fprintf(p.out, "\n%s\n", question)
		}

		answer, err := p.ask()
		if errors.Is(err, promptui.ErrInterrupt) || errors.Is(err, promptui.ErrEOF) {
			break
		}
		if err != nil {
			return err
		}

		eval, directive, err := p.engine.SubmitFollowUp(ctx, sessionID, followUp, answer)
		if err != nil {
			if msgID, ok := judgeMessage(err); ok {
				fmt.Fprintln(p.out, p.msg(msgID, nil))
				continue
			}
			return err
		}
		answered++

		fmt.Fprintln(p.out, p.msg("Score", map[string]any{"Score": eval.Score}))
		if eval.FinalFeedback != "" {
			fmt.Fprintln(p.out, eval.FinalFeedback)
		}

		if directive.Action != model.ActionNext && strings.TrimSpace(directive.Question) != "" && followUps < maxFollowUps {
			followUps++
			followUp = directive.Question
			continue
		}
		followUp, followUps = "", 0

		next, err := p.engine.NextQuestion(ctx, sessionID)
		if err != nil {
			return err
		}
		if next.Done {
			fmt.Fprintln(p.out, p.msg("InterviewComplete", nil))
			break
		}
		question = next.Text
	}

	if answered == 0 {
		return nil
	}
	return p.report(ctx, sessionID, answered)
}

// judgeMessage reports whether err is a judge failure the user can retry.
func judgeMessage(err error) (string, bool) {
	var (
		contractErr *model.JudgeContractError
		callErr     *model.JudgeCallError
	)
	switch {
	case errors.As(err, &contractErr):
		return "JudgeFailed", true
	case errors.As(err, &callErr):
		return "JudgeUnavailable", true
	}
	return "", false
}

func (p *practice) promptAnswer() (string, error) {
	prompt := promptui.Prompt{
		Label: p.msg("YourAnswer", nil),
		Validate: func(s string) error {
			if strings.TrimSpace(s) == "" {
				return errors.New(p.msg("EmptyAnswer", nil))
			}
			return nil
		},
	}
	return prompt.Run()
}

func (p *practice) report(ctx context.Context, sessionID string, answered int) error {
	report, err := p.engine.Finalize(ctx, sessionID)
	if err != nil {
		return fmt.Errorf("final report: %w", err)
	}

	count := appI18n.LocalizePlural(p.loc, "QuestionsAnswered", answered)
	fmt.Fprintf(p.out, "\n== %s ==\n%s\n", p.msg("FinalReport", nil), count)
	fmt.Fprintln(p.out, p.msg("Score", map[string]any{"Score": report.OverallScore}))
	for _, line := range []string{report.StrengthsSummary, report.WeaknessesSummary, report.RoleFit, report.Recommendations} {
		if line != "" {
			fmt.Fprintf(p.out, "- %s\n", line)
		}
	}
	return nil
}
