package brief

import (
	"log/slog"
	"strings"
	"sync"

	"github.com/BradleyMatera/ShellCompany-sub002/agent"
	"github.com/BradleyMatera/ShellCompany-sub002/directive"
)

// Manager owns the brief lifecycle: analyze a directive into a brief with
// clarifying questions, collect responses, and finalize the brief into the
// input the planner consumes. Briefs live in memory only; they are
// short-lived working state, not durable records.
type Manager struct {
	mu       sync.RWMutex
	briefs   map[string]*Brief
	analyzer *Analyzer
	clock    directive.Clock
	logger   *slog.Logger
}

// NewManager creates a brief manager over the given agent roster.
func NewManager(agents *agent.Registry, clock directive.Clock, logger *slog.Logger) *Manager {
	if clock == nil {
		clock = directive.SystemClock{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		briefs:   make(map[string]*Brief),
		analyzer: NewAnalyzer(agents),
		clock:    clock,
		logger:   logger,
	}
}

// Analyze runs the intent analysis pass and returns a new brief awaiting
// responses.
func (m *Manager) Analyze(directiveText, submitter string) (*Brief, error) {
	if directiveText == "" {
		return nil, directive.Errorf(directive.KindInvalidInput, "directive must not be empty")
	}

	analysis := m.analyzer.Analyze(directiveText)
	now := m.clock.Now()

	b := &Brief{
		ID:                  directive.NewBriefID(),
		Directive:           directiveText,
		Submitter:           submitter,
		Status:              StatusAwaitingResponses,
		ProjectKind:         analysis.ProjectKind,
		KnownFacts:          analysis.KnownFacts,
		Assumptions:         analysis.Assumptions,
		Unknowns:            analysis.Unknowns,
		Questions:           analysis.Questions,
		Responses:           make(map[string]Response),
		SuggestedAgents:     analysis.SuggestedAgents,
		RequestedAgent:      analysis.RequestedAgent,
		EstimatedComplexity: analysis.EstimatedComplexity,
		CreatedAt:           now,
		UpdatedAt:           now,
	}
	b.keyFeatures = analysis.KeyFeatures

	m.mu.Lock()
	m.briefs[b.ID] = b
	m.mu.Unlock()

	m.logger.Info("brief created",
		"brief_id", b.ID,
		"project_kind", b.ProjectKind,
		"questions", len(b.Questions))
	return b.clone(), nil
}

// Get returns a copy of a brief.
func (m *Manager) Get(briefID string) (*Brief, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	b, ok := m.briefs[briefID]
	if !ok {
		return nil, directive.Errorf(directive.KindInvalidInput, "unknown brief %s", briefID)
	}
	return b.clone(), nil
}

// RecordResponse stores an answer against a brief. Answers to question IDs
// the brief never asked are stored but carry no weight at finalize time.
// Once every required question has an answer the brief moves to
// ready_for_approval.
func (m *Manager) RecordResponse(briefID, questionID, answer string) (*Brief, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	b, ok := m.briefs[briefID]
	if !ok {
		return nil, directive.Errorf(directive.KindInvalidInput, "unknown brief %s", briefID)
	}
	if b.Status == StatusApproved {
		return nil, directive.Errorf(directive.KindInvalidInput, "brief %s is already approved", briefID)
	}

	if b.Question(questionID) == nil {
		m.logger.Warn("response to unknown question ignored",
			"brief_id", briefID, "question_id", questionID)
	}
	b.Responses[questionID] = Response{Response: answer, Timestamp: m.clock.Now()}
	b.UpdatedAt = m.clock.Now()

	if len(b.UnansweredRequired()) == 0 && b.Status == StatusAwaitingResponses {
		b.Status = StatusReadyForApproval
	}
	return b.clone(), nil
}

// ApplyDefaults answers every open required question with its first
// suggested option, so a raw directive can proceed straight to planning.
// Explicit answers recorded earlier are kept.
func (m *Manager) ApplyDefaults(briefID string) (*Brief, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	b, ok := m.briefs[briefID]
	if !ok {
		return nil, directive.Errorf(directive.KindInvalidInput, "unknown brief %s", briefID)
	}
	if b.Status == StatusApproved {
		return nil, directive.Errorf(directive.KindInvalidInput, "brief %s is already approved", briefID)
	}

	now := m.clock.Now()
	for _, q := range b.UnansweredRequired() {
		answer := ""
		if len(q.Options) > 0 {
			answer = q.Options[0]
		}
		b.Responses[q.ID] = Response{Response: answer, Timestamp: now}
	}
	b.UpdatedAt = now
	if b.Status == StatusAwaitingResponses {
		b.Status = StatusReadyForApproval
	}

	m.logger.Info("brief defaults applied", "brief_id", briefID)
	return b.clone(), nil
}

// Finalize consumes the answered brief and produces the planner input. If a
// required question is still unanswered the error names it so callers can
// surface the exact blocker.
func (m *Manager) Finalize(briefID string) (*Finalized, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	b, ok := m.briefs[briefID]
	if !ok {
		return nil, directive.Errorf(directive.KindInvalidInput, "unknown brief %s", briefID)
	}

	if unanswered := b.UnansweredRequired(); len(unanswered) > 0 {
		q := unanswered[0]
		return nil, &directive.Error{
			Kind:       directive.KindUnresolved,
			Message:    "required question " + q.ID + " has no response",
			QuestionID: q.ID,
		}
	}

	f := &Finalized{
		Directive:       b.Directive,
		ProjectKind:     b.ProjectKind,
		Scope:           ScopeOptions[0],
		Timeline:        TimelineOptions[0],
		KeyFeatures:     append([]string(nil), b.keyFeatures...),
		SuggestedAgents: append([]string(nil), b.SuggestedAgents...),
		RequestedAgent:  b.RequestedAgent,
		AgentExplicit:   b.RequestedAgent != "",
	}

	if r, ok := b.Responses[QuestionScope]; ok && r.Response != "" {
		f.Scope = r.Response
	}
	if r, ok := b.Responses[QuestionTimeline]; ok && r.Response != "" {
		f.Timeline = r.Response
	}
	if r, ok := b.Responses[QuestionTargetUsers]; ok {
		f.TargetUsers = r.Response
	}
	if r, ok := b.Responses[QuestionKeyFeatures]; ok && r.Response != "" {
		f.KeyFeatures = mergeFeatures(f.KeyFeatures, r.Response)
	}
	if r, ok := b.Responses[QuestionAgentMismatch]; ok {
		f.RequestedAgent, f.AgentExplicit = ResolveAgentMismatch(r.Response, b.RequestedAgent)
	}

	b.Status = StatusApproved
	b.Finalized = f
	b.UpdatedAt = m.clock.Now()

	m.logger.Info("brief finalized",
		"brief_id", b.ID,
		"project_kind", f.ProjectKind,
		"scope", f.Scope,
		"requested_agent", f.RequestedAgent)
	return f, nil
}

// mergeFeatures folds comma-separated answer features into the detected
// set, deduplicated, preserving detection order.
func mergeFeatures(detected []string, answer string) []string {
	seen := make(map[string]bool, len(detected))
	out := append([]string(nil), detected...)
	for _, f := range detected {
		seen[f] = true
	}
	for _, part := range strings.Split(answer, ",") {
		part = strings.TrimSpace(part)
		if part != "" && !seen[part] {
			out = append(out, part)
			seen[part] = true
		}
	}
	return out
}
