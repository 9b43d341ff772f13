// Package bank holds the read-only catalog of interview questions grouped by role.
package bank

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/pavelanni/interviewer/internal/model"
)

// Bank is immutable after construction and safe for concurrent reads.
type Bank struct {
	roles   map[string][]model.BankEntry
	version string
}

type questionImport struct {
	Question string `json:"question" yaml:"question"`
}

// Load reads a question bank from a JSON or YAML file.
func Load(path string) (*Bank, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}

	var raw map[string][]questionImport
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &raw)
	default:
		err = json.Unmarshal(data, &raw)
	}
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}

	questions := make(map[string][]string, len(raw))
	for role, items := range raw {
		questions[role] = make([]string, 0, len(items))
		for i, it := range items {
			text := strings.TrimSpace(it.Question)
			if text == "" {
				return nil, fmt.Errorf("parse %s: role %q question %d is empty", path, role, i)
			}
			questions[role] = append(questions[role], text)
		}
	}

	b, err := build(questions)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	b.version = sha256sum(data)
	return b, nil
}

// New builds a bank from in-memory questions keyed by role.
func New(questions map[string][]string) (*Bank, error) {
	b, err := build(questions)
	if err != nil {
		return nil, err
	}
	data, _ := json.Marshal(b.roles)
	b.version = sha256sum(data)
	return b, nil
}

func build(questions map[string][]string) (*Bank, error) {
	roles := make(map[string][]model.BankEntry, len(questions))
	for role, texts := range questions {
		key := NormalizeRole(role)
		if key == "" {
			return nil, fmt.Errorf("empty role key")
		}
		if len(texts) == 0 {
			return nil, fmt.Errorf("role %q has no questions", key)
		}
		if _, dup := roles[key]; dup {
			return nil, fmt.Errorf("role %q defined twice", key)
		}
		entries := make([]model.BankEntry, 0, len(texts))
		for _, t := range texts {
			entries = append(entries, model.BankEntry{Role: key, Question: t})
		}
		roles[key] = entries
	}
	return &Bank{roles: roles}, nil
}

// NormalizeRole lower-cases a role name and replaces spaces with underscores.
func NormalizeRole(role string) string {
	return strings.ReplaceAll(strings.ToLower(strings.TrimSpace(role)), " ", "_")
}

// Version identifies the catalog contents.
func (b *Bank) Version() string {
	return b.version
}

// QuestionsForRole returns the ordered questions of a role.
// The returned slice must not be modified.
func (b *Bank) QuestionsForRole(role string) ([]model.BankEntry, error) {
	qs, ok := b.roles[NormalizeRole(role)]
	if !ok {
		return nil, fmt.Errorf("%w: %q", model.ErrUnknownRole, role)
	}
	return qs, nil
}

// QuestionAt returns the question at index for a role.
func (b *Bank) QuestionAt(role string, index int) (model.BankEntry, error) {
	qs, err := b.QuestionsForRole(role)
	if err != nil {
		return model.BankEntry{}, err
	}
	if index < 0 || index >= len(qs) {
		return model.BankEntry{}, fmt.Errorf("%w: %d not in [0, %d)", model.ErrIndexOutOfRange, index, len(qs))
	}
	return qs[index], nil
}

// Count returns the number of questions for a role.
func (b *Bank) Count(role string) (int, error) {
	qs, err := b.QuestionsForRole(role)
	if err != nil {
		return 0, err
	}
	return len(qs), nil
}

// Roles returns all role keys, sorted.
func (b *Bank) Roles() []string {
	roles := make([]string, 0, len(b.roles))
	for r := range b.roles {
		roles = append(roles, r)
	}
	sort.Strings(roles)
	return roles
}

func sha256sum(data []byte) string {
	h := sha256.Sum256(data)
	return hex.EncodeToString(h[:])
}
