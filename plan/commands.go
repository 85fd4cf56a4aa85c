package plan

import (
	"fmt"
	"strings"

	"github.com/BradleyMatera/ShellCompany-sub002/brief"
)

// Command templates for the task graphs. Every template writes real files
// into the agent workspace so downstream artifact capture has something to
// record. All commands run under /bin/sh -c.

func planCommands(f *brief.Finalized) []string {
	return []string{
		fmt.Sprintf("printf '%%s\\n' '# Plan' 'Directive: %s' 'Scope: %s' 'Timeline: %s' > PLAN.md",
			shellSafe(f.Directive), shellSafe(f.Scope), shellSafe(f.Timeline)),
	}
}

func designCommands(f *brief.Finalized) []string {
	return []string{
		fmt.Sprintf("printf '%%s\\n' '# Design Notes' 'Kind: %s' 'Layout: single column, hero on top' 'Palette: warm neutrals' > DESIGN_NOTES.md",
			shellSafe(f.ProjectKind)),
	}
}

func websiteCommands(f *brief.Finalized) []string {
	title := shellSafe(f.Directive)
	cmds := []string{
		fmt.Sprintf("printf '%%s\\n' '<!DOCTYPE html>' '<html lang=\"en\">' '<head><meta charset=\"utf-8\"><title>%s</title><link rel=\"stylesheet\" href=\"styles.css\"></head>' '<body>' '<header><h1>%s</h1></header>' '<main><p>Welcome.</p></main>' '</body>' '</html>' > index.html",
			title, title),
		"printf '%s\\n' 'body { font-family: sans-serif; margin: 0; color: #222; }' 'header { padding: 2rem; background: #f5f2ea; }' 'main { padding: 2rem; }' > styles.css",
	}
	return cmds
}

func donationCommands() []string {
	return []string{
		"printf '%s\\n' '<form id=\"donate\" action=\"/donate\" method=\"post\">' '<label>Amount <input name=\"amount\" type=\"number\" min=\"1\"></label>' '<button type=\"submit\">Donate</button>' '</form>' > donate.html",
		"printf '%s\\n' '// donation endpoint stub' 'export function donate(amount) { return fetch(\"/donate\", { method: \"POST\", body: JSON.stringify({ amount }) }); }' > donate.js",
	}
}

func securityCommands() []string {
	return []string{
		"printf '%s\\n' '# Hardening Notes' '- set CSP headers at the edge' '- validate donation amounts server-side' '- no inline scripts found' > SECURITY.md",
	}
}

func dashboardDataCommands() []string {
	return []string{
		"printf '%s\\n' '{' '  \"visitors\": 1284,' '  \"conversions\": 37,' '  \"uptime\": \"99.98%\"' '}' > metrics.json",
	}
}

func dashboardPageCommands(f *brief.Finalized) []string {
	title := shellSafe(f.Directive)
	return []string{
		fmt.Sprintf("printf '%%s\\n' '<!DOCTYPE html>' '<html><head><title>%s</title><link rel=\"stylesheet\" href=\"styles.css\"></head>' '<body><h1>Dashboard</h1><div id=\"panels\" data-source=\"metrics.json\"></div></body></html>' > index.html", title),
		"printf '%s\\n' '#panels { display: grid; grid-template-columns: repeat(3, 1fr); gap: 1rem; }' > styles.css",
	}
}

func apiCommands() []string {
	return []string{
		"printf '%s\\n' '# API Sketch' 'GET  /api/items    list items' 'POST /api/items    create item' 'GET  /api/items/:id  fetch one' > API.md",
		"printf '%s\\n' '{ \"items\": [ { \"id\": 1, \"name\": \"sample\" } ] }' > sample-items.json",
	}
}

func deployCommands() []string {
	return []string{
		"printf '%s\\n' '# Runbook' '1. build the client bundle' '2. publish static assets' '3. roll the API behind the load balancer' > RUNBOOK.md",
	}
}

func ideaCommands(agentName string) []string {
	return []string{
		fmt.Sprintf("printf '%%s\\n' '# Ideas (%s)' '- idea one' '- idea two' '- idea three' > ideas-%s.md",
			agentName, agentName),
	}
}

func synthesisCommands() []string {
	return []string{
		"printf '%s\\n' '# Synthesis' '## Ranked ideas' '1. strongest contributed idea' '2. runner-up' '3. stretch option' > SYNTHESIS.md",
	}
}

func genericCommands(f *brief.Finalized) []string {
	return []string{
		fmt.Sprintf("printf '%%s\\n' '# Outcome' 'Directive: %s' 'Status: done' > OUTCOME.md", shellSafe(f.Directive)),
	}
}

// shellSafe neutralizes characters that would break out of the single
// quotes the templates use.
func shellSafe(s string) string {
	s = strings.ReplaceAll(s, "'", "")
	s = strings.ReplaceAll(s, "\n", " ")
	return s
}
