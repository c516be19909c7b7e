package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	promexporter "go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
)

// MetricsConfig holds metrics configuration.
type MetricsConfig struct {
	ServiceName string
}

// InitMetrics initializes the Prometheus metrics exporter.
// Returns the MeterProvider and an HTTP handler for the /metrics endpoint.
func InitMetrics(_ MetricsConfig) (*sdkmetric.MeterProvider, http.Handler, error) {
	exporter, err := promexporter.New()
	if err != nil {
		return nil, nil, err
	}

	provider := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(exporter),
	)

	handler := promhttp.Handler()

	return provider, handler, nil
}

// PipelineMetrics holds the instruments the servicing core records on.
type PipelineMetrics struct {
	PaymentsPosted     metric.Int64Counter
	PaymentsDuplicate  metric.Int64Counter
	OutboxPublished    metric.Int64Counter
	OutboxFailed       metric.Int64Counter
	OutboxParked       metric.Int64Counter
	ConsumerOutcomes   metric.Int64Counter
	ServicingEvents    metric.Int64Counter
	ServicingExceptions metric.Int64Counter
}

// NewPipelineMetrics registers the pipeline instruments on the given meter.
func NewPipelineMetrics(meter metric.Meter) (*PipelineMetrics, error) {
	m := &PipelineMetrics{}
	var err error

	if m.PaymentsPosted, err = meter.Int64Counter("loanserve_payments_posted_total"); err != nil {
		return nil, err
	}
	if m.PaymentsDuplicate, err = meter.Int64Counter("loanserve_payments_duplicate_total"); err != nil {
		return nil, err
	}
	if m.OutboxPublished, err = meter.Int64Counter("loanserve_outbox_published_total"); err != nil {
		return nil, err
	}
	if m.OutboxFailed, err = meter.Int64Counter("loanserve_outbox_failed_total"); err != nil {
		return nil, err
	}
	if m.OutboxParked, err = meter.Int64Counter("loanserve_outbox_parked_total"); err != nil {
		return nil, err
	}
	if m.ConsumerOutcomes, err = meter.Int64Counter("loanserve_consumer_outcomes_total"); err != nil {
		return nil, err
	}
	if m.ServicingEvents, err = meter.Int64Counter("loanserve_servicing_events_total"); err != nil {
		return nil, err
	}
	if m.ServicingExceptions, err = meter.Int64Counter("loanserve_servicing_exceptions_total"); err != nil {
		return nil, err
	}

	return m, nil
}
