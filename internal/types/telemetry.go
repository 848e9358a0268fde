package types

// Telemetry metric names for CloudWatch.
// All components MUST use these constants.
const (
	// Metric Names
	MetricReconcileRun       = "ReconcileRun"
	MetricReconcileDuration  = "ReconcileDuration"
	MetricRemindersScheduled = "RemindersScheduled"
	MetricDigestsScheduled   = "DigestsScheduled"
	MetricCandidatesSkipped  = "CandidatesSkipped"
	MetricSourceFetchFailure = "SourceFetchFailure"
	MetricExternalAPIFailure = "ExternalAPIFailure"
	MetricAPIRequestCount    = "APIRequestCount"
	MetricAPILatency         = "APILatency"

	// Dimension Keys
	DimResult   = "Result"
	DimReason   = "Reason"
	DimSource   = "Source"
	DimProvider = "Provider"
	DimEndpoint = "Endpoint"
	DimMethod   = "Method"
	DimStatus   = "Status"

	// Metric Namespace
	MetricNamespace = "Vigil"
)
