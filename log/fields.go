package log

const (
	NamespaceKey = "orderflow"

	OrderIDKey    = NamespaceKey + ".order.id"
	CustomerIDKey = NamespaceKey + ".order.customer_id"
	AmountKey     = NamespaceKey + ".order.amount"
	QuantityKey   = NamespaceKey + ".order.quantity"
	OrderStateKey = NamespaceKey + ".order.state"

	AuthorizationIDKey = NamespaceKey + ".payment.authorization_id"

	TargetIDKey      = NamespaceKey + ".polling.target_id"
	IterationKey     = NamespaceKey + ".polling.iteration"
	ContinuationsKey = NamespaceKey + ".polling.continuations"

	ApprovalStateKey = NamespaceKey + ".approval.state"

	ReportDateKey = NamespaceKey + ".report.date"
	ScheduleKey   = NamespaceKey + ".report.schedule"

	WorkflowIDKey  = NamespaceKey + ".workflow.id"
	ExecutionIDKey = NamespaceKey + ".workflow.execution_id"
	SignalNameKey  = NamespaceKey + ".signal.name"
	QueryNameKey   = NamespaceKey + ".query.name"

	StepKey        = NamespaceKey + ".step"
	AttemptKey     = NamespaceKey + ".attempt"
	FailureKindKey = NamespaceKey + ".failure.kind"
	DelayKey       = NamespaceKey + ".delay"

	CorrelationIDKey = NamespaceKey + ".correlation_id"
)
