package tracing

// Span attribute keys of caller-side spans.
const (
	WorkflowID  = "orderflow.workflow_id"
	ExecutionID = "orderflow.execution_id"
	Operation   = "orderflow.operation"
	SignalName  = "orderflow.signal"
	QueryName   = "orderflow.query"
)
