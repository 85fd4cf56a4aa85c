package approval

import (
	"fmt"
	"strings"

	"github.com/BradleyMatera/ShellCompany-sub002/directive"
)

// ReviewNotes renders the manager review document written into the manager
// workspace when a workflow's work tasks finish. The executive reads this
// file alongside the approval summary.
func ReviewNotes(wf *directive.Workflow, summary directive.ApprovalSummary, artifactCount int) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# Review: %s\n\n", wf.Directive)
	fmt.Fprintf(&b, "Workflow: %s\n", wf.ID)
	fmt.Fprintf(&b, "Quality score: %d/100\n", summary.QualityScore)
	fmt.Fprintf(&b, "Risk level: %s\n", summary.RiskLevel)
	fmt.Fprintf(&b, "Artifacts: %d\n\n", artifactCount)

	b.WriteString("## Tasks\n\n")
	for _, t := range wf.Tasks {
		if t.Type == directive.TaskTypeManagerReview {
			continue
		}
		fmt.Fprintf(&b, "- [%s] %s (%s)\n", t.Status, t.Title, t.Agent)
	}

	b.WriteString("\n## Checks\n\n")
	for _, c := range summary.Checks {
		mark := "FAIL"
		if c.Passed {
			mark = "PASS"
		}
		fmt.Fprintf(&b, "- %s %s: %s\n", mark, c.Name, c.Details)
	}
	return b.String()
}
