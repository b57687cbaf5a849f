// Package draft persists in-progress source code per (course, problem,
// language) and the last language chosen per (course, problem).
package draft

import (
	"context"
	"errors"
	"fmt"

	"github.com/felixgeelhaar/codelab/internal/domain"
	"github.com/felixgeelhaar/codelab/internal/storage"
	"github.com/felixgeelhaar/codelab/internal/template"
)

// Store reads and writes drafts on durable client storage
type Store struct {
	kv storage.KV
}

// NewStore creates a draft store on kv
func NewStore(kv storage.KV) *Store {
	return &Store{kv: kv}
}

// LoadDraft returns the saved code for a language. ok is false when no draft
// was ever saved; an empty saved draft is returned with ok true.
func (s *Store) LoadDraft(ctx context.Context, courseID, problemID, languageID string) (string, bool, error) {
	return s.get(ctx, storage.CodeKey(courseID, problemID, domain.CanonicalLanguage(languageID)))
}

// SaveDraft overwrites the draft for a language
func (s *Store) SaveDraft(ctx context.Context, courseID, problemID, languageID, code string) error {
	key := storage.CodeKey(courseID, problemID, domain.CanonicalLanguage(languageID))
	if err := s.kv.Set(ctx, key, code); err != nil {
		return fmt.Errorf("save draft: %w", err)
	}
	return nil
}

// LoadLanguagePreference returns the last language used for a problem
func (s *Store) LoadLanguagePreference(ctx context.Context, courseID, problemID string) (string, bool, error) {
	lang, ok, err := s.get(ctx, storage.LanguageKey(courseID, problemID))
	if err != nil || !ok || lang == "" {
		return "", false, err
	}
	return lang, true, nil
}

// SaveLanguagePreference records the language used for a problem
func (s *Store) SaveLanguagePreference(ctx context.Context, courseID, problemID, languageID string) error {
	if err := s.kv.Set(ctx, storage.LanguageKey(courseID, problemID), domain.CanonicalLanguage(languageID)); err != nil {
		return fmt.Errorf("save language preference: %w", err)
	}
	return nil
}

func (s *Store) get(ctx context.Context, key string) (string, bool, error) {
	v, err := s.kv.Get(ctx, key)
	if errors.Is(err, storage.ErrNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("load %s: %w", key, err)
	}
	return v, true, nil
}

// Initial is the language and code an editor starts with
type Initial struct {
	Language     domain.LanguageOption
	Code         string
	FromDraft    bool
	TemplateOnly bool // no draft and the template did not resolve
}

// ResolveInitial picks the starting language and code for a problem.
// Language precedence: saved preference if still offered, then the problem's
// default, then the first option. Code is the saved draft for that language,
// else the resolved template.
func (s *Store) ResolveInitial(ctx context.Context, problem *domain.ProblemDefinition, options []domain.LanguageOption) (Initial, error) {
	if len(options) == 0 {
		return Initial{}, domain.ErrLanguageUnavailable
	}

	lang := options[0]
	pref, ok, err := s.LoadLanguagePreference(ctx, problem.CourseID, problem.ID)
	if err != nil {
		return Initial{}, err
	}
	if opt, found := domain.FindLanguage(options, pref); ok && found {
		lang = opt
	} else if opt, found := domain.FindLanguage(options, problem.DefaultLanguage); found {
		lang = opt
	}

	return s.CodeFor(ctx, problem, lang)
}

// CodeFor returns the draft for a language, or its template when none was
// saved. TemplateOnly is set when neither exists.
func (s *Store) CodeFor(ctx context.Context, problem *domain.ProblemDefinition, lang domain.LanguageOption) (Initial, error) {
	code, ok, err := s.LoadDraft(ctx, problem.CourseID, problem.ID, lang.ID)
	if err != nil {
		return Initial{}, err
	}
	if ok {
		return Initial{Language: lang, Code: code, FromDraft: true}, nil
	}

	tmpl := lang.Template
	if tmpl == "" {
		tmpl = template.Resolve(problem.TemplateCode, lang.ID)
	}
	return Initial{Language: lang, Code: tmpl, TemplateOnly: tmpl == ""}, nil
}
