package prompts

import (
	"bytes"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"sync"
	"text/template"
	"unicode/utf8"

	"github.com/pavelanni/interviewer/internal/model"
)

//go:embed templates/*.txt
var templateFS embed.FS

var (
	studentAnswerRegex = regexp.MustCompile(`(?i)</?\s*student-answer\b[^>]*>`)
	evaluationRegex    = regexp.MustCompile(`(?i)</?\s*(evaluations?|question)\b[^>]*>`)
)

const maxAnswerRunes = 10000

// System prompts sent alongside each template.
const (
	EvaluateSystem = "You are a strict interview evaluator. Reply with JSON only."
	NextSystem     = "You are an adaptive interviewer. Reply with JSON only."
	SummarySystem  = "You are an interview summary generator. Reply with JSON only."
)

// PromptVariant represents an evaluation prompt variant.
type PromptVariant string

const (
	// PromptStrict holds answers to a senior bar.
	PromptStrict PromptVariant = "strict"
	// PromptStandard is the default evaluation variant.
	PromptStandard PromptVariant = "standard"
	// PromptLenient gives partial credit generously.
	PromptLenient PromptVariant = "lenient"
)

var validVariants = map[PromptVariant]bool{
	PromptStrict:   true,
	PromptStandard: true,
	PromptLenient:  true,
}

var (
	loadOnce     sync.Once
	loadErr      error
	evalTemplate map[PromptVariant]*template.Template
	nextTemplate *template.Template
	summaryTmpl  *template.Template
)

// IsValidVariant checks if a prompt variant name is valid.
func IsValidVariant(v string) bool {
	return validVariants[PromptVariant(v)]
}

// EvalData holds template data for evaluation prompts.
type EvalData struct {
	Role     string
	Question string
	Answer   string
}

// NextData holds template data for next-action prompts.
type NextData struct {
	Role       string
	Question   string
	Answer     string
	Evaluation string
}

// SummaryData holds template data for report prompts.
type SummaryData struct {
	Evaluations string
}

// Load parses the embedded templates. It is safe to call more than once.
func Load() error {
	loadOnce.Do(func() {
		evalTemplate = make(map[PromptVariant]*template.Template)
		for _, v := range []PromptVariant{PromptStrict, PromptStandard, PromptLenient} {
			t, err := parse("evaluate_" + string(v) + ".txt")
			if err != nil {
				loadErr = err
				return
			}
			evalTemplate[v] = t
		}
		if nextTemplate, loadErr = parse("next.txt"); loadErr != nil {
			return
		}
		summaryTmpl, loadErr = parse("summary.txt")
	})
	return loadErr
}

func parse(name string) (*template.Template, error) {
	content, err := templateFS.ReadFile("templates/" + name)
	if err != nil {
		return nil, fmt.Errorf("read prompt file %s: %w", name, err)
	}
	t, err := template.New(name).Parse(string(content))
	if err != nil {
		return nil, fmt.Errorf("parse prompt template %s: %w", name, err)
	}
	return t, nil
}

// BuildEvaluate builds the answer evaluation prompt.
func BuildEvaluate(variant PromptVariant, role, question, answer string) (string, error) {
	if err := Load(); err != nil {
		return "", err
	}
	tmpl, ok := evalTemplate[variant]
	if !ok {
		return "", errors.New("invalid prompt variant: " + string(variant))
	}
	return execute(tmpl, EvalData{
		Role:     displayRole(role),
		Question: question,
		Answer:   sanitizeAnswer(answer),
	})
}

// BuildNext builds the next-action prompt.
func BuildNext(role, question, answer string, eval model.EvaluationResult) (string, error) {
	if err := Load(); err != nil {
		return "", err
	}
	evalJSON, err := json.Marshal(eval)
	if err != nil {
		return "", fmt.Errorf("encode evaluation: %w", err)
	}
	return execute(nextTemplate, NextData{
		Role:       displayRole(role),
		Question:   question,
		Answer:     sanitizeAnswer(answer),
		Evaluation: stripTags(string(evalJSON)),
	})
}

// BuildSummary builds the final report prompt.
func BuildSummary(evals []model.EvaluationResult) (string, error) {
	if err := Load(); err != nil {
		return "", err
	}
	evalsJSON, err := json.MarshalIndent(evals, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encode evaluations: %w", err)
	}
	return execute(summaryTmpl, SummaryData{Evaluations: stripTags(string(evalsJSON))})
}

func execute(tmpl *template.Template, data any) (string, error) {
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

func displayRole(role string) string {
	return strings.ReplaceAll(role, "_", " ")
}

func stripTags(s string) string {
	s = studentAnswerRegex.ReplaceAllString(s, "")
	return evaluationRegex.ReplaceAllString(s, "")
}

func sanitizeAnswer(answer string) string {
	answer = strings.TrimSpace(stripTags(answer))

	if answer == "" {
		return "[No answer provided]"
	}

	if utf8.RuneCountInString(answer) > maxAnswerRunes {
		runes := []rune(answer)
		runes = runes[:maxAnswerRunes]
		answer = string(runes) + "\n\n[Answer truncated due to length]"
	}

	return answer
}
