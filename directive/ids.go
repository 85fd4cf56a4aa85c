package directive

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/google/uuid"
)

// NewWorkflowID generates a short collision-resistant workflow identifier.
func NewWorkflowID() string {
	return fmt.Sprintf("wf-%s", uuid.New().String()[:8])
}

// NewApprovalID generates a short approval request identifier.
func NewApprovalID() string {
	return fmt.Sprintf("apr-%s", uuid.New().String()[:8])
}

// NewArtifactID generates a short artifact identifier.
func NewArtifactID() string {
	return fmt.Sprintf("art-%s", uuid.New().String()[:8])
}

// NewBriefID generates a short brief identifier.
func NewBriefID() string {
	return fmt.Sprintf("brief-%s", uuid.New().String()[:8])
}

// TaskID builds a deterministic task identifier from a directive slug and a
// 1-based sequence number. Deterministic IDs keep planner output stable for
// identical briefs.
func TaskID(slug string, sequence int) string {
	return fmt.Sprintf("task.%s.%d", slug, sequence)
}

var slugPattern = regexp.MustCompile(`[^a-z0-9]+`)

// Slugify converts free text into a bounded URL-friendly slug.
func Slugify(text string) string {
	s := strings.ToLower(strings.TrimSpace(text))
	s = slugPattern.ReplaceAllString(s, "-")
	s = strings.Trim(s, "-")
	if len(s) > 40 {
		s = s[:40]
		s = strings.Trim(s, "-")
	}
	if s == "" {
		s = "directive"
	}
	return s
}
