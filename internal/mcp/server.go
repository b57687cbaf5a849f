package mcp

import (
	"context"
	"fmt"
	"strings"

	mcp "github.com/felixgeelhaar/mcp-go"
	"github.com/felixgeelhaar/mcp-go/server"

	"github.com/felixgeelhaar/codelab/internal/assessment"
	"github.com/felixgeelhaar/codelab/internal/domain"
)

// Server wraps the MCP server with codelab functionality
type Server struct {
	mcpServer *server.Server
	manager   *assessment.Manager
}

// Config contains configuration for the MCP server
type Config struct {
	Manager *assessment.Manager
	Version string
}

// NewServer creates a new MCP server for codelab
func NewServer(cfg Config) *Server {
	s := &Server{manager: cfg.Manager}

	version := cfg.Version
	if version == "" {
		version = "dev"
	}

	s.mcpServer = server.New(server.Info{
		Name:    "codelab",
		Version: version,
	}, server.WithInstructions(`
codelab runs coding problems against a remote judge.

Available tools:
- codelab_open: Open a problem and load its starter code
- codelab_edit: Replace the code buffer (saved as a draft)
- codelab_language: Switch the programming language
- codelab_run: Run the code against the fixed test cases
- codelab_custom: Run the code against custom stdin
- codelab_submit: Submit for scoring (all test cases must pass first)
- codelab_status: Show the current state of a problem

Submissions are followed by a cooldown before the next one is accepted.
`))

	s.registerTools()

	return s
}

// registerTools registers all codelab MCP tools
func (s *Server) registerTools() {
	s.mcpServer.Tool("codelab_open").
		Description("Open a problem. Restores the saved draft and language when present.").
		Handler(s.handleOpen)

	s.mcpServer.Tool("codelab_edit").
		Description("Replace the code buffer. The draft is saved immediately.").
		Handler(s.handleEdit)

	s.mcpServer.Tool("codelab_language").
		Description("Switch the programming language. Results are reset.").
		Handler(s.handleLanguage)

	s.mcpServer.Tool("codelab_run").
		Description("Run the code against every fixed test case.").
		Handler(s.handleRun)

	s.mcpServer.Tool("codelab_custom").
		Description("Run the code against custom stdin. Does not affect test case results.").
		Handler(s.handleRunCustom)

	s.mcpServer.Tool("codelab_submit").
		Description("Submit the code for scoring. Re-runs the test cases first.").
		Handler(s.handleSubmit)

	s.mcpServer.Tool("codelab_status").
		Description("Get the current state of an open problem.").
		Handler(s.handleStatus)
}

// Input/Output types for tools

type ProblemInput struct {
	CourseID  string `json:"course_id" jsonschema:"description=Course identifier"`
	ProblemID string `json:"problem_id" jsonschema:"description=Problem identifier"`
}

type OpenInput struct {
	CourseID  string `json:"course_id" jsonschema:"description=Course identifier"`
	ProblemID string `json:"problem_id" jsonschema:"description=Problem identifier"`
	Reload    bool   `json:"reload,omitempty" jsonschema:"description=Reload the problem definition from the judge"`
}

type EditInput struct {
	CourseID  string `json:"course_id" jsonschema:"description=Course identifier"`
	ProblemID string `json:"problem_id" jsonschema:"description=Problem identifier"`
	Code      string `json:"code" jsonschema:"description=Full source code"`
}

type LanguageInput struct {
	CourseID  string `json:"course_id" jsonschema:"description=Course identifier"`
	ProblemID string `json:"problem_id" jsonschema:"description=Problem identifier"`
	Language  string `json:"language" jsonschema:"description=Language id such as python or cpp"`
}

type CustomInput struct {
	CourseID  string `json:"course_id" jsonschema:"description=Course identifier"`
	ProblemID string `json:"problem_id" jsonschema:"description=Problem identifier"`
	Input     string `json:"input" jsonschema:"description=Standard input for the program"`
}

func problemKey(courseID, problemID string) domain.ProblemKey {
	return domain.ProblemKey{CourseID: courseID, ProblemID: problemID}
}

// CaseOutput is one test case line
type CaseOutput struct {
	Index    int    `json:"index"`
	Status   string `json:"status"`
	Input    string `json:"input"`
	Expected string `json:"expected"`
	Output   string `json:"output,omitempty"`
	Verdict  string `json:"verdict,omitempty"`
}

// ViewOutput is the state returned by every tool
type ViewOutput struct {
	Problem         string       `json:"problem"`
	Title           string       `json:"title"`
	Language        string       `json:"language"`
	Languages       []string     `json:"languages"`
	State           string       `json:"state"`
	Message         string       `json:"message,omitempty"`
	Code            string       `json:"code,omitempty"`
	Cases           []CaseOutput `json:"cases,omitempty"`
	CustomOutput    string       `json:"custom_output,omitempty"`
	CanSubmit       bool         `json:"can_submit"`
	CooldownSeconds int          `json:"cooldown_seconds"`
	Summary         string       `json:"summary"`
}

// Tool handlers

func (s *Server) handleOpen(ctx context.Context, input OpenInput) (ViewOutput, error) {
	sess, err := s.manager.Open(ctx, problemKey(input.CourseID, input.ProblemID), input.Reload)
	if err != nil {
		return ViewOutput{}, fmt.Errorf("open problem: %w", err)
	}
	v, err := sess.View()
	if err != nil {
		return ViewOutput{}, err
	}
	return toOutput(v, true), nil
}

func (s *Server) handleEdit(ctx context.Context, input EditInput) (ViewOutput, error) {
	sess, err := s.manager.Get(problemKey(input.CourseID, input.ProblemID))
	if err != nil {
		return ViewOutput{}, err
	}
	if err := sess.Edit(ctx, input.Code); err != nil {
		return ViewOutput{}, fmt.Errorf("save draft: %w", err)
	}
	v, err := sess.View()
	if err != nil {
		return ViewOutput{}, err
	}
	return toOutput(v, false), nil
}

func (s *Server) handleLanguage(ctx context.Context, input LanguageInput) (ViewOutput, error) {
	sess, err := s.manager.Get(problemKey(input.CourseID, input.ProblemID))
	if err != nil {
		return ViewOutput{}, err
	}
	if err := sess.SwitchLanguage(ctx, input.Language); err != nil {
		return ViewOutput{}, err
	}
	v, err := sess.View()
	if err != nil {
		return ViewOutput{}, err
	}
	return toOutput(v, true), nil
}

func (s *Server) handleRun(ctx context.Context, input ProblemInput) (ViewOutput, error) {
	sess, err := s.manager.Get(problemKey(input.CourseID, input.ProblemID))
	if err != nil {
		return ViewOutput{}, err
	}
	v, err := sess.Run(ctx)
	if err != nil {
		return ViewOutput{}, fmt.Errorf("run failed: %w", err)
	}
	return toOutput(v, false), nil
}

func (s *Server) handleRunCustom(ctx context.Context, input CustomInput) (ViewOutput, error) {
	sess, err := s.manager.Get(problemKey(input.CourseID, input.ProblemID))
	if err != nil {
		return ViewOutput{}, err
	}
	v, err := sess.RunCustom(ctx, input.Input)
	if err != nil {
		return ViewOutput{}, fmt.Errorf("custom run failed: %w", err)
	}
	return toOutput(v, false), nil
}

func (s *Server) handleSubmit(ctx context.Context, input ProblemInput) (ViewOutput, error) {
	sess, err := s.manager.Get(problemKey(input.CourseID, input.ProblemID))
	if err != nil {
		return ViewOutput{}, err
	}
	v, err := sess.Submit(ctx)
	if err != nil {
		return ViewOutput{}, fmt.Errorf("submit failed: %w", err)
	}
	return toOutput(v, false), nil
}

func (s *Server) handleStatus(ctx context.Context, input ProblemInput) (ViewOutput, error) {
	sess, err := s.manager.Get(problemKey(input.CourseID, input.ProblemID))
	if err != nil {
		return ViewOutput{}, err
	}
	v, err := sess.View()
	if err != nil {
		return ViewOutput{}, err
	}
	return toOutput(v, false), nil
}

// toOutput flattens a view. The code is included only when asked for, to
// keep run results short.
func toOutput(v *assessment.View, withCode bool) ViewOutput {
	out := ViewOutput{
		Problem:         v.Problem.String(),
		Title:           v.Title,
		Language:        v.Language,
		State:           string(v.State),
		Message:         v.Message,
		CanSubmit:       v.CanSubmit,
		CooldownSeconds: v.Cooldown,
	}
	if withCode {
		out.Code = v.Code
	}
	for _, l := range v.Languages {
		out.Languages = append(out.Languages, l.ID)
	}

	passed := 0
	for _, c := range v.Cases {
		line := CaseOutput{
			Index:    c.Index,
			Status:   caseStatus(c.Status),
			Input:    c.Input,
			Expected: c.ExpectedOutput,
		}
		if c.UserOutput != nil {
			line.Output = *c.UserOutput
		}
		if c.Verdict != nil && c.Status == domain.CaseFailed {
			line.Verdict = *c.Verdict
		}
		if c.Status == domain.CasePassed {
			passed++
		}
		out.Cases = append(out.Cases, line)
	}

	if v.Custom.Stdout != nil {
		out.CustomOutput = *v.Custom.Stdout
	}

	var summary []string
	summary = append(summary, fmt.Sprintf("Tests: %d/%d passed", passed, len(v.Cases)))
	if v.Submission != nil {
		summary = append(summary, fmt.Sprintf("Submission: %d/%d", v.Submission.PassedCount, v.Submission.TotalTestCases))
	}
	if v.Cooldown > 0 {
		summary = append(summary, fmt.Sprintf("Cooldown: %ds", v.Cooldown))
	}
	out.Summary = strings.Join(summary, " | ")

	return out
}

func caseStatus(s domain.CaseStatus) string {
	if s == domain.CaseUnset {
		return "not run"
	}
	return string(s)
}

// ServeStdio starts the MCP server on stdio
func (s *Server) ServeStdio(ctx context.Context) error {
	return mcp.ServeStdio(ctx, s.mcpServer)
}

// ServeHTTP starts the MCP server on HTTP (alternative transport)
func (s *Server) ServeHTTP(ctx context.Context, addr string) error {
	return mcp.ServeHTTP(ctx, s.mcpServer, addr)
}

// GetMCPServer returns the underlying MCP server (for testing)
func (s *Server) GetMCPServer() *server.Server {
	return s.mcpServer
}
