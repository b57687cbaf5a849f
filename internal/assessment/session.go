// Package assessment orchestrates one coding-problem editing session: the
// editor buffer and its drafts, test-case runs, custom-input runs and
// cooldown-gated submissions against the remote judge.
package assessment

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/felixgeelhaar/codelab/internal/cooldown"
	"github.com/felixgeelhaar/codelab/internal/domain"
	"github.com/felixgeelhaar/codelab/internal/draft"
	"github.com/felixgeelhaar/codelab/internal/judge"
	"github.com/felixgeelhaar/codelab/internal/ledger"
	"github.com/felixgeelhaar/codelab/internal/storage"
	"github.com/felixgeelhaar/codelab/internal/template"
)

// Judge is the remote judge and content service
type Judge interface {
	Problem(ctx context.Context, key domain.ProblemKey) (*domain.ProblemDefinition, error)
	Run(ctx context.Context, key domain.ProblemKey, req judge.Request) ([]domain.CaseResult, error)
	RunCustom(ctx context.Context, key domain.ProblemKey, req judge.Request, input string) (*domain.CustomRunResult, error)
	Submit(ctx context.Context, key domain.ProblemKey, req judge.Request) (*domain.SubmitResult, error)
}

// Deps are the collaborators shared by every session
type Deps struct {
	Judge     Judge
	Store     storage.KV
	Publisher domain.EventPublisher
	Logger    *slog.Logger

	// Languages overrides entries of the judge language id table
	Languages map[string]int
	// Cooldown is the wait after each submission
	Cooldown time.Duration
	// Now is the clock used for cooldowns
	Now func() time.Time
	// TickInterval is the cooldown countdown period
	TickInterval time.Duration
}

// Session is the orchestrator for one (course, problem) pair. All methods
// are safe for concurrent use. Judge calls are made without holding the
// session lock, so views stay available while a run is in flight.
type Session struct {
	key        domain.ProblemKey
	judge      Judge
	drafts     *draft.Store
	kv         storage.KV
	publisher  domain.EventPublisher
	logger     *slog.Logger
	table      map[string]int
	limiterCfg cooldown.Config

	mu         sync.Mutex
	opened     bool
	problem    *domain.ProblemDefinition
	languages  []domain.LanguageOption
	language   domain.LanguageOption
	code       string
	// unresolved marks a buffer holding nothing but a template that did
	// not resolve. It is never written back as a draft.
	unresolved bool
	ledger     *ledger.Ledger
	custom     domain.CustomRun
	tab        ConsoleTab
	limiter    *cooldown.Limiter
	state      State
	message    string
	submission *domain.SubmitResult

	running       bool
	submitting    bool
	customRunning bool

	// Generations per request kind. A result is applied only when the
	// generation it was issued under is still current.
	runGen    uint64
	customGen uint64
	submitGen uint64

	pending []domain.Event
}

// NewSession creates an unopened session
func NewSession(key domain.ProblemKey, deps Deps) *Session {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Session{
		key:       key,
		judge:     deps.Judge,
		drafts:    draft.NewStore(deps.Store),
		kv:        deps.Store,
		publisher: deps.Publisher,
		logger:    logger.With("course", key.CourseID, "problem", key.ProblemID),
		table:     languageTable(deps.Languages),
		limiterCfg: cooldown.Config{
			Window:       deps.Cooldown,
			TickInterval: deps.TickInterval,
			Now:          deps.Now,
			Publisher:    deps.Publisher,
			Logger:       logger,
		},
		tab:   TabTestCases,
		state: StateIdle,
	}
}

// Key returns the problem this session edits
func (s *Session) Key() domain.ProblemKey {
	return s.key
}

// Open loads the problem, derives its languages, picks the initial language
// and code, builds the ledger and resumes any persisted cooldown. Opening an
// already open session reloads the problem.
func (s *Session) Open(ctx context.Context) error {
	if err := s.key.Validate(); err != nil {
		return err
	}

	problem, err := s.judge.Problem(ctx, s.key)
	if err != nil {
		return fmt.Errorf("load problem %s: %w", s.key, err)
	}
	p := *problem
	p.CourseID, p.ID = s.key.CourseID, s.key.ProblemID

	languages := template.LanguagesWithTable(p.TemplateCode, s.table)
	if len(languages) == 0 {
		languages = template.TableLanguages(s.table)
	}

	initial, err := s.drafts.ResolveInitial(ctx, &p, languages)
	if err != nil {
		return err
	}

	limiter := cooldown.New(s.kv, s.key, s.limiterCfg)
	if err := limiter.Resume(ctx); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.unlockAndPublish()

	if s.limiter != nil {
		s.limiter.Close()
	}
	s.problem = &p
	s.languages = languages
	s.language = initial.Language
	s.code = initial.Code
	s.unresolved = initial.TemplateOnly
	s.ledger = ledger.New(p.TestCases)
	s.custom = domain.CustomRun{}
	s.limiter = limiter
	s.submission = nil
	s.message = ""
	s.opened = true
	s.bumpAll()
	s.setState(StateIdle)

	s.logger.Info("session opened",
		"language", initial.Language.ID,
		"from_draft", initial.FromDraft,
		"test_cases", len(p.TestCases),
		"cooldown_remaining", limiter.RemainingSeconds())
	return nil
}

// Edit replaces the editor buffer and writes it through to the draft for
// the current language. Run results are left as they are.
func (s *Session) Edit(ctx context.Context, code string) error {
	s.mu.Lock()
	defer s.unlockAndPublish()

	if !s.opened {
		return domain.ErrSessionNotOpen
	}
	if err := s.drafts.SaveDraft(ctx, s.key.CourseID, s.key.ProblemID, s.language.ID, code); err != nil {
		return err
	}
	s.code = code
	s.unresolved = false
	return nil
}

// SwitchLanguage flushes the buffer to the outgoing language's draft, loads
// the incoming language's draft or template, resets run results and saves
// the preference.
func (s *Session) SwitchLanguage(ctx context.Context, lang string) error {
	s.mu.Lock()
	defer s.unlockAndPublish()

	if !s.opened {
		return domain.ErrSessionNotOpen
	}
	next, ok := domain.FindLanguage(s.languages, lang)
	if !ok {
		return fmt.Errorf("%w: %q", domain.ErrLanguageUnavailable, lang)
	}
	if next.ID == s.language.ID {
		return nil
	}

	if !s.unresolved {
		if err := s.drafts.SaveDraft(ctx, s.key.CourseID, s.key.ProblemID, s.language.ID, s.code); err != nil {
			return fmt.Errorf("flush draft: %w", err)
		}
	}
	loaded, err := s.drafts.CodeFor(ctx, s.problem, next)
	if err != nil {
		return err
	}
	if err := s.drafts.SaveLanguagePreference(ctx, s.key.CourseID, s.key.ProblemID, next.ID); err != nil {
		return err
	}

	s.logger.Debug("language switched", "from", s.language.ID, "to", next.ID)
	s.language = next
	s.code = loaded.Code
	s.unresolved = loaded.TemplateOnly
	s.resetResults()
	s.bumpAll()
	s.setState(StateIdle)
	return nil
}

// SetConsoleTab switches between the test-case and custom-input consoles.
// Results of runs still in flight are discarded when they arrive.
func (s *Session) SetConsoleTab(tab ConsoleTab) error {
	if _, err := ParseConsoleTab(string(tab)); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.unlockAndPublish()

	if !s.opened {
		return domain.ErrSessionNotOpen
	}
	if tab == s.tab {
		return nil
	}
	s.tab = tab
	s.resetResults()
	s.runGen++
	s.customGen++
	if !s.submitting {
		s.setState(StateIdle)
	}
	return nil
}

// SelectCase changes the displayed test case without running anything
func (s *Session) SelectCase(index int) error {
	s.mu.Lock()
	defer s.unlockAndPublish()

	if !s.opened {
		return domain.ErrSessionNotOpen
	}
	return s.ledger.SetActive(index)
}

// Run executes the buffer against every fixed test case and replaces the
// ledger with the response. Once dispatched the run completes even if ctx
// is cancelled; the judge client timeout bounds it.
func (s *Session) Run(ctx context.Context) (*View, error) {
	ctx = context.WithoutCancel(ctx)

	s.mu.Lock()
	if err := s.checkRunnable(); err != nil {
		s.unlockAndPublish()
		return nil, err
	}
	s.running = true
	gen, req, lang := s.beginRun()
	s.setState(StateRunning)
	s.unlockAndPublish()

	results, err := s.judge.Run(ctx, s.key, req)

	s.mu.Lock()
	defer s.unlockAndPublish()
	s.running = false

	if gen != s.runGen {
		s.logger.Debug("discarding superseded run", "language", lang)
		return s.viewLocked(), domain.ErrSuperseded
	}
	if err != nil {
		s.failRun(lang, msgRunError, err)
		return s.viewLocked(), err
	}
	if s.applyRun(lang, results) {
		s.setState(StateAllPassed)
	} else {
		s.setState(StateSomeFailed)
	}
	return s.viewLocked(), nil
}

// RunCustom executes the buffer against custom stdin. The result never
// touches the ledger. Empty input is rejected before any network call.
func (s *Session) RunCustom(ctx context.Context, stdin string) (*View, error) {
	if strings.TrimSpace(stdin) == "" {
		return nil, fmt.Errorf("%w: %w", domain.ErrValidation, domain.ErrEmptyInput)
	}
	ctx = context.WithoutCancel(ctx)

	s.mu.Lock()
	if !s.opened {
		s.unlockAndPublish()
		return nil, domain.ErrSessionNotOpen
	}
	if s.customRunning {
		s.unlockAndPublish()
		return nil, domain.ErrRunInProgress
	}
	if err := s.checkSource(); err != nil {
		s.unlockAndPublish()
		return nil, err
	}
	s.customRunning = true
	s.customGen++
	gen := s.customGen
	req := s.requestLocked()
	lang := s.language.ID
	s.custom = domain.CustomRun{Input: stdin, Status: domain.CaseRunning}
	s.unlockAndPublish()

	result, err := s.judge.RunCustom(ctx, s.key, req, stdin)

	s.mu.Lock()
	defer s.unlockAndPublish()
	s.customRunning = false

	if gen != s.customGen {
		s.logger.Debug("discarding superseded custom run", "language", lang)
		return s.viewLocked(), domain.ErrSuperseded
	}
	if err != nil {
		s.custom = domain.CustomRun{Input: stdin}
		s.message = msgRunError
		s.logger.Warn("custom run failed", "language", lang, "error", err)
		s.emit(domain.NewCustomRunCompletedEvent(s.key, lang, "", err.Error()))
		return s.viewLocked(), err
	}

	s.custom = customRun(stdin, result)
	s.message = ""
	s.emit(domain.NewCustomRunCompletedEvent(s.key, lang, result.Status, ""))
	return s.viewLocked(), nil
}

// Submit re-runs the fixed test cases and, only if they all still pass,
// sends the buffer for scoring. It requires every case to have passed and
// no active cooldown. The cooldown starts as soon as the submission is
// dispatched, whatever its outcome. A caller that goes away does not cancel
// the judge calls, so a consumed cooldown always has its verdict applied.
func (s *Session) Submit(ctx context.Context) (*View, error) {
	ctx = context.WithoutCancel(ctx)

	s.mu.Lock()
	if err := s.checkSubmittable(); err != nil {
		s.unlockAndPublish()
		return nil, err
	}
	s.submitting = true
	s.submitGen++
	submitGen := s.submitGen
	gen, req, lang := s.beginRun()
	s.submission = nil
	s.setState(StateSubmitting)
	s.unlockAndPublish()

	// Defensive re-run: the code may have changed since the last run
	results, err := s.judge.Run(ctx, s.key, req)

	s.mu.Lock()
	if gen != s.runGen {
		s.submitting = false
		if s.state == StateSubmitting {
			s.setState(StateIdle)
		}
		view := s.viewLocked()
		s.unlockAndPublish()
		return view, domain.ErrSuperseded
	}
	if err != nil {
		s.submitting = false
		s.failRun(lang, msgSubmitError, err)
		view := s.viewLocked()
		s.unlockAndPublish()
		return view, err
	}
	if !s.applyRun(lang, results) {
		s.submitting = false
		s.setState(StateSomeFailed)
		_, failed := s.ledger.Counts()
		s.message = fmt.Sprintf("Submission cancelled: %d test case(s) failing", failed)
		view := s.viewLocked()
		s.unlockAndPublish()
		return view, nil
	}

	if err := s.limiter.Start(ctx); err != nil {
		s.submitting = false
		s.message = msgSubmitError
		s.setState(StateIdle)
		view := s.viewLocked()
		s.unlockAndPublish()
		return view, err
	}
	s.unlockAndPublish()

	s.logger.Info("submitting", "language", lang)
	result, err := s.judge.Submit(ctx, s.key, req)

	s.mu.Lock()
	defer s.unlockAndPublish()
	s.submitting = false

	if err != nil {
		s.logger.Warn("submission failed", "language", lang, "error", err)
		s.emit(domain.NewSubmissionCompletedEvent(s.key, lang, domain.SubmitResult{}, err.Error()))
		if submitGen == s.submitGen {
			s.message = msgSubmitError
			s.setState(StateIdle)
		}
		return s.viewLocked(), err
	}

	s.logger.Info("submission scored",
		"language", lang,
		"status", result.Status,
		"passed", result.PassedCount,
		"failed", result.FailedCount,
		"total", result.TotalTestCases)
	s.emit(domain.NewSubmissionCompletedEvent(s.key, lang, *result, ""))

	if submitGen != s.submitGen {
		return s.viewLocked(), domain.ErrSuperseded
	}
	s.submission = result
	if result.FullyAccepted() {
		s.message = fmt.Sprintf("Accepted: %d/%d test cases passed", result.PassedCount, result.TotalTestCases)
		s.setState(StateAccepted)
	} else {
		s.message = fmt.Sprintf("Partially accepted: %d passed, %d failed", result.PassedCount, result.FailedCount)
		s.setState(StatePartiallyFailed)
	}
	return s.viewLocked(), nil
}

// View returns a snapshot of the session
func (s *Session) View() (*View, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.opened {
		return nil, domain.ErrSessionNotOpen
	}
	return s.viewLocked(), nil
}

// Close stops the cooldown ticker
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.limiter != nil {
		s.limiter.Close()
	}
}

func (s *Session) checkRunnable() error {
	switch {
	case !s.opened:
		return domain.ErrSessionNotOpen
	case s.running:
		return domain.ErrRunInProgress
	case s.submitting:
		return domain.ErrSubmitInProgress
	}
	return s.checkSource()
}

func (s *Session) checkSubmittable() error {
	switch {
	case !s.opened:
		return domain.ErrSessionNotOpen
	case s.submitting:
		return domain.ErrSubmitInProgress
	case s.running:
		return domain.ErrRunInProgress
	case s.unresolvedEmpty():
		return fmt.Errorf("%w: %w", domain.ErrValidation, domain.ErrTemplateNotReady)
	case !s.ledger.AllPassed():
		return domain.ErrNotAllPassed
	case s.limiter.Active():
		return fmt.Errorf("%w: %ds remaining", domain.ErrCooldownActive, s.limiter.RemainingSeconds())
	}
	return nil
}

// checkSource rejects an empty buffer whose template never resolved
func (s *Session) checkSource() error {
	if s.unresolvedEmpty() {
		return fmt.Errorf("%w: %w", domain.ErrValidation, domain.ErrTemplateNotReady)
	}
	return nil
}

// unresolvedEmpty reports a blank buffer with no template to fall back on
func (s *Session) unresolvedEmpty() bool {
	return strings.TrimSpace(s.code) == "" && s.language.Template == ""
}

// beginRun marks every case running under a fresh run generation
func (s *Session) beginRun() (uint64, judge.Request, string) {
	s.runGen++
	s.ledger.MarkAllRunning()
	s.message = ""
	return s.runGen, s.requestLocked(), s.language.ID
}

// applyRun replaces the ledger from a run response and reports whether
// every case passed
func (s *Session) applyRun(lang string, results []domain.CaseResult) bool {
	s.ledger.Replace(results)
	passed, failed := s.ledger.Counts()
	all := s.ledger.AllPassed()
	s.emit(domain.NewRunCompletedEvent(s.key, lang, s.ledger.Len(), passed, failed, all, ""))
	s.logger.Info("run completed", "language", lang, "passed", passed, "failed", failed)
	return all
}

// failRun leaves no case stuck in running and surfaces a generic message
func (s *Session) failRun(lang, msg string, err error) {
	s.ledger.RevertRunning()
	s.message = msg
	s.logger.Warn("run failed", "language", lang, "error", err)
	s.emit(domain.NewRunCompletedEvent(s.key, lang, s.ledger.Len(), 0, 0, false, err.Error()))
	s.setState(StateIdle)
}

func (s *Session) requestLocked() judge.Request {
	return judge.Request{SourceCode: s.code, LanguageID: s.language.JudgeLanguageID}
}

// resetResults clears run output after a context change
func (s *Session) resetResults() {
	s.ledger.ResetStatuses()
	s.custom = domain.CustomRun{Input: s.custom.Input}
	s.submission = nil
	s.message = ""
}

func (s *Session) bumpAll() {
	s.runGen++
	s.customGen++
	s.submitGen++
}

func (s *Session) setState(to State) {
	if s.state == to {
		return
	}
	from := s.state
	s.state = to
	s.emit(domain.NewStateChangedEvent(s.key, string(from), string(to)))
}

func (s *Session) emit(e domain.Event) {
	s.pending = append(s.pending, e)
}

// unlockAndPublish releases the lock and then publishes the events queued
// while it was held.
func (s *Session) unlockAndPublish() {
	events := s.pending
	s.pending = nil
	s.mu.Unlock()

	if s.publisher == nil {
		return
	}
	for _, e := range events {
		s.publisher.Publish(e)
	}
}

func customRun(stdin string, r *domain.CustomRunResult) domain.CustomRun {
	run := domain.CustomRun{
		Input:      stdin,
		Stdout:     domain.StringPtr(r.ActualOutput),
		UserOutput: domain.StringPtr(r.ActualOutput),
		MemoryKB:   r.MemoryKB,
	}
	if r.ElapsedTime != "" {
		run.ElapsedTime = domain.StringPtr(r.ElapsedTime)
	}
	if r.Stderr != "" {
		run.Stderr = domain.StringPtr(r.Stderr)
	}
	if r.CompileOutput != "" {
		run.CompileOutput = domain.StringPtr(r.CompileOutput)
	}
	_, verdict := judge.Classify(r.Status, r.Stderr, r.CompileOutput)
	run.Verdict = domain.StringPtr(verdict)
	if r.Passed() {
		run.Status = domain.CasePassed
	} else {
		run.Status = domain.CaseFailed
	}
	return run
}

// languageTable merges overrides onto the fixed judge id table
func languageTable(overrides map[string]int) map[string]int {
	table := make(map[string]int, len(domain.JudgeLanguageIDs)+len(overrides))
	for k, v := range domain.JudgeLanguageIDs {
		table[k] = v
	}
	for k, v := range overrides {
		if id := domain.CanonicalLanguage(k); id != "" && v > 0 {
			table[id] = v
		}
	}
	return table
}

// IsConflict reports whether err is a gating or in-flight rejection
func IsConflict(err error) bool {
	return errors.Is(err, domain.ErrRunInProgress) ||
		errors.Is(err, domain.ErrSubmitInProgress) ||
		errors.Is(err, domain.ErrNotAllPassed) ||
		errors.Is(err, domain.ErrCooldownActive) ||
		errors.Is(err, domain.ErrSuperseded)
}
