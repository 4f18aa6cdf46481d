package types

// Telemetry metric names for CloudWatch.
const (
	MetricWeatherFetch    = "WeatherFetch"
	MetricWeatherLatency  = "WeatherFetchLatency"
	MetricLocationAcquire = "LocationAcquire"
	MetricAPILatency      = "APILatency"
	MetricAPIRequestCount = "APIRequestCount"

	DimResult   = "Result"
	DimSource   = "Source"
	DimEndpoint = "Endpoint"
	DimMethod   = "Method"
	DimStatus   = "Status"

	// MetricNamespace is the default CloudWatch namespace.
	MetricNamespace = "SkyCast"
)

// Metric result dimension values.
const (
	ResultSuccess = "success"
	ResultFailure = "failure"
)
