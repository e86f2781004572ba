package otelx

import "go.opentelemetry.io/otel/metric"

// Metrics holds the engine's metric instruments.
type Metrics struct {
	BytesExternalized metric.Int64Counter
	ReferencesCreated metric.Int64Counter
	StoreFailures     metric.Int64Counter
	MessagesPruned    metric.Int64Counter
	ReferenceLookups  metric.Int64Counter
	WindowTokens      metric.Int64Gauge
}

// NewMetrics creates all metric instruments from the given meter.
func NewMetrics(meter metric.Meter) (*Metrics, error) {
	m := &Metrics{}
	var err error

	m.BytesExternalized, err = meter.Int64Counter("recall.content.bytes_externalized",
		metric.WithDescription("Bytes moved out of the conversation into the content store"),
		metric.WithUnit("By"),
	)
	if err != nil {
		return nil, err
	}

	m.ReferencesCreated, err = meter.Int64Counter("recall.content.references_created",
		metric.WithDescription("Content references created by externalization"),
	)
	if err != nil {
		return nil, err
	}

	m.StoreFailures, err = meter.Int64Counter("recall.content.store_failures",
		metric.WithDescription("Externalization attempts the store declined"),
	)
	if err != nil {
		return nil, err
	}

	m.MessagesPruned, err = meter.Int64Counter("recall.memory.messages_pruned",
		metric.WithDescription("Messages evicted by window pruning"),
	)
	if err != nil {
		return nil, err
	}

	m.ReferenceLookups, err = meter.Int64Counter("recall.refs.lookups",
		metric.WithDescription("Most-recent-reference resolutions"),
	)
	if err != nil {
		return nil, err
	}

	m.WindowTokens, err = meter.Int64Gauge("recall.memory.window_tokens",
		metric.WithDescription("Current token occupancy of the conversation window"),
	)
	if err != nil {
		return nil, err
	}

	return m, nil
}
