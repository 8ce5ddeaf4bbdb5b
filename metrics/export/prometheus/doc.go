// Package prometheus renders authsession metrics in Prometheus text
// exposition format without depending on the Prometheus client library.
//
// [PrometheusExporter.Handler] serves the current
// [authsession.Manager.MetricsSnapshot] as a scrape endpoint.
package prometheus
