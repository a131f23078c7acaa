/*
Package observability turns wizard lifecycle events into Prometheus metrics and
structured log lines.

Both are exposed as domain.LifecycleHooks so they can be merged and passed to
wizard.WithHooks:

	metrics := observability.NewMetrics(prometheus.DefaultRegisterer)
	hooks := metrics.Hooks().Merge(observability.LoggingHooks(logger))
*/
package observability
