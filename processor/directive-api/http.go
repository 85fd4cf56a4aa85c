package directiveapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/BradleyMatera/ShellCompany-sub002/artifact"
	"github.com/BradleyMatera/ShellCompany-sub002/directive"
	"github.com/BradleyMatera/ShellCompany-sub002/orchestrator"
	"github.com/BradleyMatera/ShellCompany-sub002/storage"
)

// RegisterHTTPHandlers registers HTTP handlers for the directive-api
// component. The prefix includes the trailing slash (e.g., "/directive-api/").
func (c *Component) RegisterHTTPHandlers(prefix string, mux *http.ServeMux) {
	mux.HandleFunc(prefix+"briefs", c.instrument("briefs", c.handleBriefs))
	mux.HandleFunc(prefix+"briefs/", c.instrument("brief", c.handleBriefByID))
	mux.HandleFunc(prefix+"workflows", c.instrument("workflows", c.handleWorkflows))
	mux.HandleFunc(prefix+"workflows/", c.instrument("workflow", c.handleWorkflowByID))
	mux.HandleFunc(prefix+"artifacts", c.instrument("artifacts", c.handleArtifactSearch))
	mux.HandleFunc(prefix+"artifacts/", c.instrument("artifact", c.handleArtifactByID))
}

// instrument wraps a handler with request metrics.
func (c *Component) instrument(endpoint string, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next(sw, r)
		c.metrics.ObserveRequest(endpoint, statusClass(sw.status), time.Since(start))
	}
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}

func statusClass(status int) string {
	switch {
	case status >= 500:
		return "5xx"
	case status >= 400:
		return "4xx"
	default:
		return "2xx"
	}
}

// getEngine resolves the orchestration engine or reports 503.
func (c *Component) getEngine(w http.ResponseWriter) *orchestrator.Engine {
	engine := c.engine()
	if engine == nil {
		c.writeError(w, http.StatusServiceUnavailable, "orchestration engine not available")
		return nil
	}
	return engine
}

// handleBriefs handles POST /briefs (analyze a new directive).
func (c *Component) handleBriefs(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	engine := c.getEngine(w)
	if engine == nil {
		return
	}

	var req struct {
		Directive string `json:"directive"`
		Submitter string `json:"submitter"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		c.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	b, err := engine.Briefs().Analyze(req.Directive, req.Submitter)
	if err != nil {
		c.writeDomainError(w, err)
		return
	}
	c.writeJSON(w, http.StatusCreated, b)
}

// handleBriefByID handles:
//
//	GET  /briefs/{id}
//	POST /briefs/{id}/responses
//	POST /briefs/{id}/finalize
func (c *Component) handleBriefByID(w http.ResponseWriter, r *http.Request) {
	engine := c.getEngine(w)
	if engine == nil {
		return
	}
	id, endpoint := extractIDAndEndpoint(r.URL.Path, "/briefs/")
	if id == "" {
		c.writeError(w, http.StatusBadRequest, "brief id required")
		return
	}

	switch {
	case endpoint == "" && r.Method == http.MethodGet:
		b, err := engine.Briefs().Get(id)
		if err != nil {
			c.writeDomainError(w, err)
			return
		}
		c.writeJSON(w, http.StatusOK, b)

	case endpoint == "responses" && r.Method == http.MethodPost:
		var req struct {
			QuestionID string `json:"question_id"`
			Answer     string `json:"answer"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			c.writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		b, err := engine.Briefs().RecordResponse(id, req.QuestionID, req.Answer)
		if err != nil {
			c.writeDomainError(w, err)
			return
		}
		c.writeJSON(w, http.StatusOK, b)

	case endpoint == "finalize" && r.Method == http.MethodPost:
		f, err := engine.Briefs().Finalize(id)
		if err != nil {
			c.writeDomainError(w, err)
			return
		}
		c.writeJSON(w, http.StatusOK, f)

	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

// handleWorkflows handles POST /workflows (create) and GET /workflows (list).
func (c *Component) handleWorkflows(w http.ResponseWriter, r *http.Request) {
	engine := c.getEngine(w)
	if engine == nil {
		return
	}

	switch r.Method {
	case http.MethodPost:
		var req struct {
			BriefID   string `json:"brief_id"`
			Directive string `json:"directive"`
			Submitter string `json:"submitter"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			c.writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		briefID := req.BriefID
		if briefID == "" {
			// A raw directive skips clarification: the open required
			// questions take their default answers.
			b, err := engine.Briefs().Analyze(req.Directive, req.Submitter)
			if err != nil {
				c.writeDomainError(w, err)
				return
			}
			if _, err := engine.Briefs().ApplyDefaults(b.ID); err != nil {
				c.writeDomainError(w, err)
				return
			}
			briefID = b.ID
		}
		wf, err := engine.CreateWorkflow(r.Context(), briefID, req.Submitter)
		if err != nil {
			c.writeDomainError(w, err)
			return
		}
		c.writeJSON(w, http.StatusCreated, wf)

	case http.MethodGet:
		filter := storage.WorkflowFilter{Limit: c.config.DefaultListLimit}
		if s := r.URL.Query().Get("status"); s != "" {
			filter.Status = directive.Status(s)
		}
		if l := r.URL.Query().Get("limit"); l != "" {
			n, err := strconv.Atoi(l)
			if err != nil || n <= 0 {
				c.writeError(w, http.StatusBadRequest, "invalid limit")
				return
			}
			filter.Limit = n
		}
		list, err := engine.ListWorkflows(r.Context(), filter)
		if err != nil {
			c.writeDomainError(w, err)
			return
		}
		c.writeJSON(w, http.StatusOK, map[string]any{"workflows": list, "count": len(list)})

	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

// handleWorkflowByID handles:
//
//	GET  /workflows/{id}
//	GET  /workflows/{id}/artifacts
//	GET  /workflows/{id}/approval
//	POST /workflows/{id}/cancel
//	POST /workflows/{id}/decision
//	POST /workflows/{id}/emergency
func (c *Component) handleWorkflowByID(w http.ResponseWriter, r *http.Request) {
	engine := c.getEngine(w)
	if engine == nil {
		return
	}
	id, endpoint := extractIDAndEndpoint(r.URL.Path, "/workflows/")
	if id == "" {
		c.writeError(w, http.StatusBadRequest, "workflow id required")
		return
	}

	switch {
	case endpoint == "" && r.Method == http.MethodGet:
		wf, err := engine.GetWorkflow(r.Context(), id)
		if err != nil {
			c.writeDomainError(w, err)
			return
		}
		c.writeJSON(w, http.StatusOK, wf)

	case endpoint == "artifacts" && r.Method == http.MethodGet:
		list := engine.Artifacts().ForWorkflow(id)
		c.writeJSON(w, http.StatusOK, map[string]any{"artifacts": list, "count": len(list)})

	case endpoint == "approval" && r.Method == http.MethodGet:
		req, err := engine.Gate().ForWorkflow(id)
		if err != nil {
			c.writeDomainError(w, err)
			return
		}
		c.writeJSON(w, http.StatusOK, req)

	case endpoint == "cancel" && r.Method == http.MethodPost:
		var req struct {
			Reason string `json:"reason"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			c.writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		wf, err := engine.CancelWorkflow(r.Context(), id, req.Reason)
		if err != nil {
			c.writeDomainError(w, err)
			return
		}
		c.writeJSON(w, http.StatusOK, wf)

	case endpoint == "decision" && r.Method == http.MethodPost:
		var req struct {
			Decision string `json:"decision"`
			Approver string `json:"approver"`
			Comments string `json:"comments"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			c.writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		wf, err := engine.RecordApprovalDecision(r.Context(), id,
			directive.ApprovalStatus(req.Decision), req.Approver, req.Comments)
		if err != nil {
			c.writeDomainError(w, err)
			return
		}
		c.writeJSON(w, http.StatusOK, wf)

	case endpoint == "emergency" && r.Method == http.MethodPost:
		var req struct {
			Approver string `json:"approver"`
			Reason   string `json:"reason"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			c.writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		wf, err := engine.EmergencyUnblock(r.Context(), id, req.Approver, req.Reason)
		if err != nil {
			c.writeDomainError(w, err)
			return
		}
		c.writeJSON(w, http.StatusOK, wf)

	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

// handleArtifactSearch handles GET /artifacts with query parameters.
func (c *Component) handleArtifactSearch(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	engine := c.getEngine(w)
	if engine == nil {
		return
	}

	q := artifact.SearchQuery{
		WorkflowID:       r.URL.Query().Get("workflow_id"),
		Agent:            r.URL.Query().Get("agent"),
		Name:             r.URL.Query().Get("name"),
		Hash:             r.URL.Query().Get("hash"),
		ContentSubstring: r.URL.Query().Get("q"),
	}
	if l := r.URL.Query().Get("limit"); l != "" {
		n, err := strconv.Atoi(l)
		if err != nil || n <= 0 {
			c.writeError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		q.Limit = n
	}

	list := engine.Artifacts().Search(q)
	c.writeJSON(w, http.StatusOK, map[string]any{"artifacts": list, "count": len(list)})
}

// handleArtifactByID handles:
//
//	GET /artifacts/{id}
//	GET /artifacts/{id}/lineage
//	GET /artifacts/{id}/content
func (c *Component) handleArtifactByID(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	engine := c.getEngine(w)
	if engine == nil {
		return
	}
	id, endpoint := extractIDAndEndpoint(r.URL.Path, "/artifacts/")
	if id == "" {
		c.writeError(w, http.StatusBadRequest, "artifact id required")
		return
	}

	switch endpoint {
	case "":
		a, err := engine.Artifacts().Get(id)
		if err != nil {
			c.writeDomainError(w, err)
			return
		}
		c.writeJSON(w, http.StatusOK, a)

	case "lineage":
		lineage, err := engine.Artifacts().GetWithLineage(id)
		if err != nil {
			c.writeDomainError(w, err)
			return
		}
		c.writeJSON(w, http.StatusOK, lineage)

	case "content":
		data, err := engine.Artifacts().ReadContent(id)
		if err != nil {
			c.writeDomainError(w, err)
			return
		}
		if len(data) > c.config.MaxContentBytes {
			data = data[:c.config.MaxContentBytes]
		}
		w.Header().Set("Content-Type", "application/octet-stream")
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write(data); err != nil {
			c.logger.Warn("Failed to write artifact content", "error", err)
		}

	default:
		http.Error(w, "Unknown endpoint", http.StatusNotFound)
	}
}

// writeJSON writes a JSON response.
func (c *Component) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		c.logger.Warn("Failed to write response", "error", err)
	}
}

// writeError writes a JSON error body.
func (c *Component) writeError(w http.ResponseWriter, status int, message string) {
	c.writeJSON(w, status, map[string]string{"error": message})
}

// writeDomainError maps domain error kinds onto HTTP status codes.
func (c *Component) writeDomainError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	body := map[string]string{"error": err.Error()}

	var derr *directive.Error
	switch {
	case errors.Is(err, storage.ErrNotFound):
		status = http.StatusNotFound
	case errors.As(err, &derr):
		body["kind"] = string(derr.Kind)
		if derr.QuestionID != "" {
			body["question_id"] = derr.QuestionID
		}
		switch derr.Kind {
		case directive.KindInvalidInput, directive.KindWorkspaceViolation:
			status = http.StatusBadRequest
		case directive.KindUnresolved:
			status = http.StatusUnprocessableEntity
		case directive.KindApprovalBlocked:
			status = http.StatusConflict
		case directive.KindDependencyCycle:
			status = http.StatusUnprocessableEntity
		}
	}

	c.writeJSON(w, status, body)
}

// extractIDAndEndpoint extracts the ID and trailing endpoint from a path like
// /directive-api/workflows/{id}/cancel.
func extractIDAndEndpoint(path, segment string) (id, endpoint string) {
	idx := strings.Index(path, segment)
	if idx == -1 {
		return "", ""
	}
	remainder := path[idx+len(segment):]
	parts := strings.SplitN(remainder, "/", 2)
	if len(parts) == 0 {
		return "", ""
	}
	id = parts[0]
	if len(parts) > 1 {
		endpoint = strings.TrimSuffix(parts[1], "/")
	}
	return id, endpoint
}
