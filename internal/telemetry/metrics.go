// Package telemetry publishes SkyCast operational metrics to CloudWatch.
// When metrics are disabled every call is a no-op.
package telemetry

import (
	"context"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	cwtypes "github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"

	"skycast/internal/config"
	"skycast/internal/types"
)

// CloudWatchClient abstracts the CloudWatch PutMetricData operation for testability.
type CloudWatchClient interface {
	PutMetricData(ctx context.Context, params *cloudwatch.PutMetricDataInput, optFns ...func(*cloudwatch.Options)) (*cloudwatch.PutMetricDataOutput, error)
}

// Recorder is the full metrics surface. Consumers depend on the narrower
// interfaces they declare.
type Recorder interface {
	RecordWeatherFetch(ctx context.Context, result string, duration time.Duration)
	RecordLocationAcquire(ctx context.Context, source types.FixSource, result string)
	RecordAPIRequest(ctx context.Context, method, endpoint string, status int, duration time.Duration)
}

// NoopRecorder discards all metrics.
type NoopRecorder struct{}

func (NoopRecorder) RecordWeatherFetch(context.Context, string, time.Duration) {}

func (NoopRecorder) RecordLocationAcquire(context.Context, types.FixSource, string) {}

func (NoopRecorder) RecordAPIRequest(context.Context, string, string, int, time.Duration) {}

// CloudWatchRecorder emits one PutMetricData call per observation.
//
// Metrics emitted:
//   - WeatherFetch: Dims {Result}
//   - WeatherFetchLatency: Dims {Result}, milliseconds
//   - LocationAcquire: Dims {Source, Result}
//   - APIRequestCount / APILatency: Dims {Method, Endpoint, Status}
type CloudWatchRecorder struct {
	client    CloudWatchClient
	namespace string
	logger    types.Logger
}

var (
	_ Recorder = (*CloudWatchRecorder)(nil)
	_ Recorder = NoopRecorder{}
)

// NewCloudWatchRecorder creates a recorder publishing under namespace.
// An empty namespace falls back to types.MetricNamespace.
func NewCloudWatchRecorder(client CloudWatchClient, namespace string, logger types.Logger) *CloudWatchRecorder {
	if namespace == "" {
		namespace = types.MetricNamespace
	}
	return &CloudWatchRecorder{client: client, namespace: namespace, logger: logger}
}

// New returns a CloudWatch-backed recorder when cfg.Enabled, otherwise a
// NoopRecorder. AWS credentials come from the default provider chain.
func New(ctx context.Context, cfg config.MetricsConfig, logger types.Logger) (Recorder, error) {
	if !cfg.Enabled {
		return NoopRecorder{}, nil
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.Region))
	if err != nil {
		return nil, err
	}

	client := cloudwatch.NewFromConfig(awsCfg, func(o *cloudwatch.Options) {
		if cfg.EndpointURL != "" {
			o.BaseEndpoint = aws.String(cfg.EndpointURL)
		}
	})

	return NewCloudWatchRecorder(client, cfg.Namespace, logger), nil
}

func (r *CloudWatchRecorder) RecordWeatherFetch(ctx context.Context, result string, duration time.Duration) {
	dims := []cwtypes.Dimension{dimension(types.DimResult, result)}
	r.put(ctx, types.MetricWeatherFetch,
		datum(types.MetricWeatherFetch, 1, cwtypes.StandardUnitCount, dims),
		datum(types.MetricWeatherLatency, float64(duration.Milliseconds()), cwtypes.StandardUnitMilliseconds, dims),
	)
}

func (r *CloudWatchRecorder) RecordLocationAcquire(ctx context.Context, source types.FixSource, result string) {
	r.put(ctx, types.MetricLocationAcquire,
		datum(types.MetricLocationAcquire, 1, cwtypes.StandardUnitCount, []cwtypes.Dimension{
			dimension(types.DimSource, string(source)),
			dimension(types.DimResult, result),
		}),
	)
}

func (r *CloudWatchRecorder) RecordAPIRequest(ctx context.Context, method, endpoint string, status int, duration time.Duration) {
	dims := []cwtypes.Dimension{
		dimension(types.DimMethod, method),
		dimension(types.DimEndpoint, endpoint),
		dimension(types.DimStatus, strconv.Itoa(status)),
	}
	r.put(ctx, types.MetricAPIRequestCount,
		datum(types.MetricAPIRequestCount, 1, cwtypes.StandardUnitCount, dims),
		datum(types.MetricAPILatency, float64(duration.Milliseconds()), cwtypes.StandardUnitMilliseconds, dims),
	)
}

func (r *CloudWatchRecorder) put(ctx context.Context, name string, data ...cwtypes.MetricDatum) {
	_, err := r.client.PutMetricData(ctx, &cloudwatch.PutMetricDataInput{
		Namespace:  aws.String(r.namespace),
		MetricData: data,
	})
	if err != nil {
		r.logger.Error("failed to publish metric", "metric", name, "error", err.Error())
	}
}

func datum(name string, value float64, unit cwtypes.StandardUnit, dims []cwtypes.Dimension) cwtypes.MetricDatum {
	return cwtypes.MetricDatum{
		MetricName: aws.String(name),
		Value:      aws.Float64(value),
		Unit:       unit,
		Dimensions: dims,
	}
}

func dimension(name, value string) cwtypes.Dimension {
	return cwtypes.Dimension{Name: aws.String(name), Value: aws.String(value)}
}
