// Package approval implements the two-stage sign-off gate: a manager
// review task inside the workflow, then an executive approval request
// evaluated against a deterministic ruleset.
package approval

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/BradleyMatera/ShellCompany-sub002/directive"
)

// Ruleset drives the deterministic quality and risk evaluation attached to
// every approval request. Rulesets can be loaded from YAML so operators
// tune scoring without a rebuild.
type Ruleset struct {
	// BaseScore is the starting quality score.
	BaseScore int `yaml:"base_score"`

	// CompletionBonus is added when every work task completed.
	CompletionBonus int `yaml:"completion_bonus"`

	// ArtifactBonus is added when the workflow produced artifacts.
	ArtifactBonus int `yaml:"artifact_bonus"`

	// ReviewBonus is added when a manager review task ran.
	ReviewBonus int `yaml:"review_bonus"`

	// SecurityBonus is added when a security-owned task ran.
	SecurityBonus int `yaml:"security_bonus"`

	// FailurePenalty is subtracted per failed task.
	FailurePenalty int `yaml:"failure_penalty"`

	// HighRiskKeywords in the directive raise the risk level to high
	// unless a security task ran.
	HighRiskKeywords []string `yaml:"high_risk_keywords"`

	// MediumRiskKeywords raise the risk level to at least medium.
	MediumRiskKeywords []string `yaml:"medium_risk_keywords"`
}

// DefaultRuleset returns the built-in scoring rules.
func DefaultRuleset() *Ruleset {
	return &Ruleset{
		BaseScore:          60,
		CompletionBonus:    15,
		ArtifactBonus:      10,
		ReviewBonus:        10,
		SecurityBonus:      5,
		FailurePenalty:     20,
		HighRiskKeywords:   []string{"payment", "donation", "credential", "password", "auth"},
		MediumRiskKeywords: []string{"deploy", "production", "customer data", "email"},
	}
}

// LoadRuleset reads a YAML ruleset from disk. Unset fields fall back to
// the defaults.
func LoadRuleset(path string) (*Ruleset, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read ruleset: %w", err)
	}
	rules := DefaultRuleset()
	if err := yaml.Unmarshal(data, rules); err != nil {
		return nil, fmt.Errorf("parse ruleset %s: %w", path, err)
	}
	return rules, nil
}

// Evaluate computes the approval summary for a workflow. The same workflow
// state always yields the same summary.
func (r *Ruleset) Evaluate(wf *directive.Workflow, artifactCount int) directive.ApprovalSummary {
	var (
		workTasks    int
		completed    int
		failed       int
		hasReview    bool
		hasSecurity  bool
		reviewPassed bool
	)
	for _, t := range wf.Tasks {
		if t.Type == directive.TaskTypeManagerReview {
			hasReview = true
			reviewPassed = t.Status == directive.TaskStatusCompleted
			continue
		}
		workTasks++
		switch t.Status {
		case directive.TaskStatusCompleted:
			completed++
		case directive.TaskStatusFailed:
			failed++
		}
		if strings.EqualFold(t.Agent, "cipher") || strings.Contains(strings.ToLower(t.Title), "security") {
			hasSecurity = true
		}
	}

	allDone := workTasks > 0 && completed == workTasks

	score := r.BaseScore
	if allDone {
		score += r.CompletionBonus
	}
	if artifactCount > 0 {
		score += r.ArtifactBonus
	}
	if reviewPassed {
		score += r.ReviewBonus
	}
	if hasSecurity {
		score += r.SecurityBonus
	}
	score -= failed * r.FailurePenalty
	if score > 100 {
		score = 100
	}
	if score < 0 {
		score = 0
	}

	summary := directive.ApprovalSummary{
		QualityScore: score,
		RiskLevel:    r.riskLevel(wf.Directive, hasSecurity),
		Checks: []directive.ComplianceCheck{
			{
				Name:    "all_tasks_completed",
				Passed:  allDone,
				Details: fmt.Sprintf("%d of %d work tasks completed", completed, workTasks),
			},
			{
				Name:    "artifacts_produced",
				Passed:  artifactCount > 0,
				Details: fmt.Sprintf("%d artifacts recorded", artifactCount),
			},
			{
				Name:    "manager_review_completed",
				Passed:  hasReview && reviewPassed,
				Details: reviewDetails(hasReview, reviewPassed),
			},
			{
				Name:    "no_failed_tasks",
				Passed:  failed == 0,
				Details: fmt.Sprintf("%d failed tasks", failed),
			},
		},
	}
	return summary
}

func (r *Ruleset) riskLevel(directiveText string, hasSecurity bool) string {
	lower := strings.ToLower(directiveText)
	for _, kw := range r.HighRiskKeywords {
		if strings.Contains(lower, kw) {
			if hasSecurity {
				return "medium"
			}
			return "high"
		}
	}
	for _, kw := range r.MediumRiskKeywords {
		if strings.Contains(lower, kw) {
			return "medium"
		}
	}
	return "low"
}

func reviewDetails(hasReview, reviewPassed bool) string {
	switch {
	case !hasReview:
		return "no manager review task"
	case !reviewPassed:
		return "manager review not completed"
	default:
		return "manager review completed"
	}
}
