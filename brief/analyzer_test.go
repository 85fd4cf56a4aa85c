package brief

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BradleyMatera/ShellCompany-sub002/agent"
)

func TestClassify(t *testing.T) {
	a := NewAnalyzer(agent.NewDefaultRegistry())

	tests := []struct {
		name      string
		directive string
		want      string
	}{
		{"landing page", "Build a landing page for our charity", KindWebsite},
		{"website", "Create a website for the bakery", KindWebsite},
		{"dashboard", "We need an analytics dashboard", KindDashboard},
		{"fullstack", "Build a web app platform for bookings", KindFullstack},
		{"brainstorm", "Brainstorm ideas for the launch", KindBrainstorm},
		{"brainstorm beats website", "Brainstorm ideas for the new website", KindBrainstorm},
		{"generic", "Summarize last quarter's results", KindGeneric},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, a.Classify(tt.directive))
		})
	}
}

func TestAnalyzeDeterministic(t *testing.T) {
	a := NewAnalyzer(agent.NewDefaultRegistry())
	text := "Build a landing page for a charity with a donation button"

	first := a.Analyze(text)
	second := a.Analyze(text)
	assert.Equal(t, first, second)
}

func TestAnalyzeWebsiteWithDonation(t *testing.T) {
	a := NewAnalyzer(agent.NewDefaultRegistry())
	out := a.Analyze("Build a landing page for a charity accepting donations")

	assert.Equal(t, KindWebsite, out.ProjectKind)
	assert.Contains(t, out.KeyFeatures, "Donation system")

	ids := make([]string, 0, len(out.Questions))
	for _, q := range out.Questions {
		ids = append(ids, q.ID)
	}
	assert.Equal(t, []string{QuestionScope, QuestionTimeline, QuestionTargetUsers, QuestionKeyFeatures}, ids)
}

func TestAnalyzeExtractsFacts(t *testing.T) {
	a := NewAnalyzer(agent.NewDefaultRegistry())
	out := a.Analyze("Create a website and write the copy into ABOUT.md by friday")

	assert.Contains(t, out.KnownFacts, "mentions file ABOUT.md")
	assert.Contains(t, out.KnownFacts, "explicit deadline: by friday")
}

func TestAgentMismatchQuestion(t *testing.T) {
	a := NewAnalyzer(agent.NewDefaultRegistry())

	// cipher is the security agent; a dashboard has no security role.
	out := a.Analyze("Have cipher build an analytics dashboard")
	require.Equal(t, KindDashboard, out.ProjectKind)
	assert.Equal(t, "cipher", out.RequestedAgent)

	q := findQuestion(out.Questions, QuestionAgentMismatch)
	require.NotNil(t, q)
	assert.True(t, q.Required)
	assert.Equal(t, "high", q.Priority)
}

func TestNoMismatchForFittingAgent(t *testing.T) {
	a := NewAnalyzer(agent.NewDefaultRegistry())

	out := a.Analyze("Have nova build the website")
	assert.Equal(t, "nova", out.RequestedAgent)
	assert.Nil(t, findQuestion(out.Questions, QuestionAgentMismatch))
}

func TestAgentMentionWordBoundary(t *testing.T) {
	a := NewAnalyzer(agent.NewDefaultRegistry())

	// "novation" must not read as a mention of nova.
	out := a.Analyze("Build a website about novation contracts")
	assert.Empty(t, out.RequestedAgent)
}

func TestResolveAgentMismatch(t *testing.T) {
	tests := []struct {
		name      string
		answer    string
		requested string
		wantAgent string
		wantSet   bool
	}{
		{"keep", "Keep cipher on it", "cipher", "cipher", true},
		{"reassign first wins", "Reassign to Alice, Bob", "cipher", "Alice", true},
		{"reassign single", "reassign to zephyr", "cipher", "zephyr", true},
		{"clear", "Clear the request", "cipher", "", false},
		{"no preference", "No preference really", "cipher", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, set := ResolveAgentMismatch(tt.answer, tt.requested)
			assert.Equal(t, tt.wantAgent, got)
			assert.Equal(t, tt.wantSet, set)
		})
	}
}

func findQuestion(questions []Question, id string) *Question {
	for i := range questions {
		if questions[i].ID == id {
			return &questions[i]
		}
	}
	return nil
}
