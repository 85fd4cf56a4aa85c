package brief

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/BradleyMatera/ShellCompany-sub002/agent"
)

// Project kinds recognized by the analyzer.
const (
	KindWebsite    = "website"
	KindDashboard  = "dashboard"
	KindFullstack  = "fullstack"
	KindBrainstorm = "brainstorm"
	KindGeneric    = "generic"
)

// Stable clarifying-question IDs.
const (
	QuestionScope         = "scope"
	QuestionTimeline      = "timeline"
	QuestionTargetUsers   = "target_users"
	QuestionKeyFeatures   = "key_features"
	QuestionAgentMismatch = "agent_mismatch"
)

// Canonical scope answers. The first option is the assumed default.
var ScopeOptions = []string{
	"Basic prototype/MVP",
	"Full-featured",
	"Production-ready",
}

// Canonical timeline answers. The first option is the assumed default.
var TimelineOptions = []string{
	"No specific deadline",
	"This week",
	"ASAP",
}

// kindKeywords maps project kinds to directive keywords. Classification is
// checked in classificationOrder; the first kind with a matching keyword
// wins.
var kindKeywords = map[string][]string{
	KindBrainstorm: {"brainstorm", "idea", "ideas", "suggestions"},
	KindDashboard:  {"dashboard", "admin panel", "analytics", "metrics view"},
	KindFullstack:  {"full-stack", "fullstack", "application", "platform", "web app"},
	KindWebsite:    {"landing page", "website", "web site", "homepage", "site", "page"},
}

// classificationOrder fixes keyword precedence so classification is stable.
var classificationOrder = []string{KindBrainstorm, KindDashboard, KindFullstack, KindWebsite}

// kindRoles maps a project kind to the roles whose specializations fit it.
// An explicitly requested agent outside this set triggers the
// agent_mismatch clarifier.
var kindRoles = map[string][]string{
	KindWebsite:    {"manager", "designer", "frontend", "backend", "security"},
	KindDashboard:  {"manager", "frontend", "backend"},
	KindFullstack:  {"manager", "designer", "frontend", "backend", "security", "devops"},
	KindBrainstorm: {}, // any agent can contribute ideas
	KindGeneric:    {},
}

// featureKeywords maps directive keywords to canonical feature names.
var featureKeywords = map[string]string{
	"donation": "Donation system",
	"payment":  "Payment processing",
	"login":    "User accounts",
	"signup":   "User accounts",
	"search":   "Search",
	"contact":  "Contact form",
	"blog":     "Blog",
}

var (
	extensionPattern = regexp.MustCompile(`\b[\w./-]+\.(md|html|css|js|ts|json|txt|py|go|yaml|yml)\b`)
	deadlinePattern  = regexp.MustCompile(`(?i)\b(by|before|until)\s+(monday|tuesday|wednesday|thursday|friday|saturday|sunday|tomorrow|eod|end of (?:day|week|month))\b`)
)

// Analyzer performs the deterministic intent analysis pass over a directive.
type Analyzer struct {
	agents *agent.Registry
}

// NewAnalyzer creates an analyzer backed by the agent roster.
func NewAnalyzer(agents *agent.Registry) *Analyzer {
	return &Analyzer{agents: agents}
}

// Classify returns the project kind for a directive.
func (a *Analyzer) Classify(directiveText string) string {
	lower := strings.ToLower(directiveText)
	for _, kind := range classificationOrder {
		for _, kw := range kindKeywords[kind] {
			if strings.Contains(lower, kw) {
				return kind
			}
		}
	}
	return KindGeneric
}

// Analysis is the output of one analyzer pass.
type Analysis struct {
	ProjectKind         string
	KnownFacts          []string
	Assumptions         []string
	Unknowns            []string
	Questions           []Question
	KeyFeatures         []string
	SuggestedAgents     []string
	RequestedAgent      string
	EstimatedComplexity string
}

// Analyze runs the full deterministic pass: classification, fact
// extraction, assumptions, feature detection, agent mention detection, and
// clarifying-question synthesis.
func (a *Analyzer) Analyze(directiveText string) Analysis {
	kind := a.Classify(directiveText)
	lower := strings.ToLower(directiveText)

	out := Analysis{
		ProjectKind: kind,
		Assumptions: []string{
			fmt.Sprintf("scope defaults to %q until clarified", ScopeOptions[0]),
			fmt.Sprintf("timeline defaults to %q until clarified", TimelineOptions[0]),
		},
	}

	// Literal facts: file names, deadlines, named agents.
	for _, match := range extensionPattern.FindAllString(directiveText, -1) {
		out.KnownFacts = append(out.KnownFacts, fmt.Sprintf("mentions file %s", match))
	}
	if m := deadlinePattern.FindString(directiveText); m != "" {
		out.KnownFacts = append(out.KnownFacts, fmt.Sprintf("explicit deadline: %s", strings.ToLower(m)))
	}

	out.RequestedAgent = a.findAgentMention(lower)
	if out.RequestedAgent != "" {
		out.KnownFacts = append(out.KnownFacts, fmt.Sprintf("explicitly names agent %s", out.RequestedAgent))
	}

	// Feature detection from directive tokens, stable order.
	featureKeys := make([]string, 0, len(featureKeywords))
	for kw := range featureKeywords {
		featureKeys = append(featureKeys, kw)
	}
	sort.Strings(featureKeys)
	seen := map[string]bool{}
	for _, kw := range featureKeys {
		if strings.Contains(lower, kw) && !seen[featureKeywords[kw]] {
			out.KeyFeatures = append(out.KeyFeatures, featureKeywords[kw])
			seen[featureKeywords[kw]] = true
		}
	}

	out.SuggestedAgents = a.suggestAgents(kind)
	out.EstimatedComplexity = complexityFor(kind, out.KeyFeatures)
	out.Unknowns = []string{"delivery scope", "timeline expectations", "target users"}

	out.Questions = a.buildQuestions(kind, out.RequestedAgent)
	return out
}

// buildQuestions produces the clarifying questions in a fixed order.
// Identical directives yield identical question lists.
func (a *Analyzer) buildQuestions(kind, requestedAgent string) []Question {
	questions := []Question{
		{
			ID:       QuestionScope,
			Prompt:   "How complete should the first delivery be?",
			Required: true,
			Priority: "normal",
			Form:     "choice",
			Options:  ScopeOptions,
		},
		{
			ID:       QuestionTimeline,
			Prompt:   "Is there a deadline for this work?",
			Required: true,
			Priority: "normal",
			Form:     "choice",
			Options:  TimelineOptions,
		},
		{
			ID:       QuestionTargetUsers,
			Prompt:   "Who is the primary audience?",
			Required: false,
			Priority: "low",
			Form:     "text",
		},
		{
			ID:       QuestionKeyFeatures,
			Prompt:   "Any features that must be included?",
			Required: false,
			Priority: "low",
			Form:     "multi",
			Options:  []string{"Donation system", "User accounts", "Contact form", "Search", "Blog"},
		},
	}

	if mismatch := a.agentMismatch(kind, requestedAgent); mismatch != nil {
		questions = append(questions, *mismatch)
	}
	return questions
}

// agentMismatch returns the high-priority clarifier raised when the
// directive names an agent whose role does not fit the classified kind.
func (a *Analyzer) agentMismatch(kind, requestedAgent string) *Question {
	if requestedAgent == "" {
		return nil
	}
	roles := kindRoles[kind]
	if len(roles) == 0 {
		return nil
	}
	ag, ok := a.agents.Get(requestedAgent)
	if !ok {
		return nil
	}
	for _, role := range roles {
		if strings.EqualFold(ag.Role, role) {
			return nil
		}
	}
	return &Question{
		ID:       QuestionAgentMismatch,
		Prompt:   fmt.Sprintf("%s specializes in %s, which does not match a %s project. Keep %s, reassign, or clear the explicit request?", ag.Name, ag.Role, kind, ag.Name),
		Required: true,
		Priority: "high",
		Form:     "text",
	}
}

// findAgentMention returns the first roster agent named in the directive,
// scanning agents in name order for determinism.
func (a *Analyzer) findAgentMention(lowerDirective string) string {
	for _, ag := range a.agents.List() {
		if containsWord(lowerDirective, ag.Name) {
			return ag.Name
		}
	}
	return ""
}

func containsWord(text, word string) bool {
	idx := 0
	for {
		i := strings.Index(text[idx:], word)
		if i < 0 {
			return false
		}
		start := idx + i
		end := start + len(word)
		beforeOK := start == 0 || !isWordByte(text[start-1])
		afterOK := end == len(text) || !isWordByte(text[end])
		if beforeOK && afterOK {
			return true
		}
		idx = start + 1
	}
}

func isWordByte(b byte) bool {
	return b == '_' || (b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z') || (b >= '0' && b <= '9')
}

// suggestAgents returns the roster agents fitting the kind, manager first.
func (a *Analyzer) suggestAgents(kind string) []string {
	roles := kindRoles[kind]
	if len(roles) == 0 {
		return a.agents.Names()
	}
	var out []string
	for _, role := range roles {
		if ag, ok := a.agents.Resolve(role); ok {
			out = append(out, ag.Name)
		}
	}
	return out
}

func complexityFor(kind string, features []string) string {
	switch kind {
	case KindFullstack:
		return "high"
	case KindDashboard, KindWebsite:
		if len(features) > 1 {
			return "medium"
		}
		return "low"
	default:
		return "low"
	}
}

// ResolveAgentMismatch deterministically normalizes an agent_mismatch
// answer. Three forms are recognized:
//
//	"Keep ..."           → keep the originally requested agent
//	"Reassign to A, B"   → reassign to the first named candidate
//	anything else        → clear the explicit request
func ResolveAgentMismatch(answer, requestedAgent string) (resolvedAgent string, explicit bool) {
	trimmed := strings.TrimSpace(answer)
	lower := strings.ToLower(trimmed)

	switch {
	case strings.HasPrefix(lower, "keep"):
		return requestedAgent, requestedAgent != ""
	case strings.HasPrefix(lower, "reassign to "):
		rest := trimmed[len("reassign to "):]
		candidates := strings.FieldsFunc(rest, func(r rune) bool {
			return r == ',' || r == ' ' || r == ';'
		})
		if len(candidates) > 0 {
			return candidates[0], true
		}
		return "", false
	default:
		return "", false
	}
}
