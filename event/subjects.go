// Typed NATS subject definitions for company lifecycle events.
//
// Subjects follow "company.events.<domain>.<action>" so consumers can route
// by wildcard (company.events.workflow.>, company.events.task.>) or bind a
// single event type.
package event

import "github.com/c360studio/semstreams/natsclient"

// Typed subject definitions for company domain events.
var (
	// Workflow lifecycle
	SubjectWorkflowCreated = natsclient.NewSubject[Event](
		"company.events.workflow.created")
	SubjectWorkflowProgress = natsclient.NewSubject[Event](
		"company.events.workflow.progress")
	SubjectWorkflowCancelled = natsclient.NewSubject[Event](
		"company.events.workflow.cancelled")
	SubjectWorkflowCompleted = natsclient.NewSubject[Event](
		"company.events.workflow.completed")
	SubjectWorkflowFailed = natsclient.NewSubject[Event](
		"company.events.workflow.failed")

	// Task lifecycle
	SubjectTaskQueued = natsclient.NewSubject[Event](
		"company.events.task.queued")
	SubjectTaskStarted = natsclient.NewSubject[Event](
		"company.events.task.started")
	SubjectTaskStepOutput = natsclient.NewSubject[Event](
		"company.events.task.step_output")
	SubjectTaskCompleted = natsclient.NewSubject[Event](
		"company.events.task.completed")
	SubjectTaskFailed = natsclient.NewSubject[Event](
		"company.events.task.failed")
	SubjectTaskCancelled = natsclient.NewSubject[Event](
		"company.events.task.cancelled")

	// Artifact lifecycle
	SubjectArtifactRecorded = natsclient.NewSubject[Event](
		"company.events.artifact.recorded")
	SubjectArtifactUpdated = natsclient.NewSubject[Event](
		"company.events.artifact.updated")

	// Approval lifecycle
	SubjectApprovalRequested = natsclient.NewSubject[Event](
		"company.events.approval.requested")
	SubjectApprovalDecision = natsclient.NewSubject[Event](
		"company.events.approval.decision")
	SubjectEmergencyUnblock = natsclient.NewSubject[Event](
		"company.events.approval.emergency_unblock")

	// Operational signals
	SubjectPersistenceDegraded = natsclient.NewSubject[Event](
		"company.events.system.persistence_degraded")
)

// subjectNames maps event types to their wire subjects.
var subjectNames = map[Type]string{
	WorkflowCreated:     "company.events.workflow.created",
	WorkflowProgress:    "company.events.workflow.progress",
	WorkflowCancelled:   "company.events.workflow.cancelled",
	WorkflowCompleted:   "company.events.workflow.completed",
	WorkflowFailed:      "company.events.workflow.failed",
	TaskQueued:          "company.events.task.queued",
	TaskStarted:         "company.events.task.started",
	TaskStepOutput:      "company.events.task.step_output",
	TaskCompleted:       "company.events.task.completed",
	TaskFailed:          "company.events.task.failed",
	TaskCancelled:       "company.events.task.cancelled",
	ArtifactRecorded:    "company.events.artifact.recorded",
	ArtifactUpdated:     "company.events.artifact.updated",
	ApprovalRequested:   "company.events.approval.requested",
	ApprovalDecision:    "company.events.approval.decision",
	EmergencyUnblock:    "company.events.approval.emergency_unblock",
	PersistenceDegraded: "company.events.system.persistence_degraded",
}

// SubjectFor returns the wire subject for an event type, or empty string
// for unknown types.
func SubjectFor(t Type) string {
	return subjectNames[t]
}
