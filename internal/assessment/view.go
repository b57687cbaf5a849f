package assessment

import (
	"github.com/felixgeelhaar/codelab/internal/domain"
	"github.com/felixgeelhaar/codelab/internal/ledger"
)

// View is a read-only snapshot of a session
type View struct {
	Problem     domain.ProblemKey       `json:"problem"`
	Title       string                  `json:"title"`
	Difficulty  domain.Difficulty       `json:"difficulty,omitempty"`
	Statement   string                  `json:"statement,omitempty"`
	SampleInput string                  `json:"sampleInput,omitempty"`
	SampleOut   string                  `json:"sampleOutput,omitempty"`
	Languages   []domain.LanguageOption `json:"languages"`
	Language    string                  `json:"language"`
	Code        string                  `json:"code"`
	TemplateOK  bool                    `json:"templateReady"`
	Tab         ConsoleTab              `json:"tab"`
	State       State                   `json:"state"`
	Message     string                  `json:"message,omitempty"`
	Cases       []domain.TestCase       `json:"testCases"`
	ActiveCase  int                     `json:"activeCase"`
	Summary     ledger.Summary          `json:"summary"`
	AllPassed   bool                    `json:"allPassed"`
	CanSubmit   bool                    `json:"canSubmit"`
	Cooldown    int                     `json:"cooldownSeconds"`
	Custom      domain.CustomRun        `json:"custom"`
	Submission  *domain.SubmitResult    `json:"submission,omitempty"`
	InFlight    InFlight                `json:"inFlight"`
}

// InFlight lists the judge calls currently outstanding
type InFlight struct {
	Run       bool `json:"run"`
	CustomRun bool `json:"customRun"`
	Submit    bool `json:"submit"`
}

func (s *Session) viewLocked() *View {
	all := s.ledger.AllPassed()
	cooldown := s.limiter.RemainingSeconds()

	langs := make([]domain.LanguageOption, len(s.languages))
	copy(langs, s.languages)

	v := &View{
		Problem:     s.key,
		Title:       s.problem.Title,
		Difficulty:  s.problem.Difficulty,
		Statement:   s.problem.Statement,
		SampleInput: s.problem.SampleInput,
		SampleOut:   s.problem.SampleOutput,
		Languages:   langs,
		Language:    s.language.ID,
		Code:        s.code,
		TemplateOK:  !s.unresolvedEmpty(),
		Tab:         s.tab,
		State:       s.state,
		Message:     s.message,
		Cases:       s.ledger.Snapshot(),
		ActiveCase:  s.ledger.ActiveIndex(),
		Summary:     s.ledger.ActiveSummary(),
		AllPassed:   all,
		CanSubmit:   all && cooldown == 0 && !s.running && !s.submitting,
		Cooldown:    cooldown,
		Custom:      s.custom,
		InFlight: InFlight{
			Run:       s.running,
			CustomRun: s.customRunning,
			Submit:    s.submitting,
		},
	}
	if s.submission != nil {
		res := *s.submission
		v.Submission = &res
	}
	return v
}
