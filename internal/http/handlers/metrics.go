package handlers

import "net/http"

// MetricsHandler serves the Prometheus exposition of the job collector.
func (a *App) MetricsHandler(w http.ResponseWriter, r *http.Request) {
	if a.Metrics == nil {
		http.NotFound(w, r)
		return
	}
	a.Metrics.ServeHTTP(w, r)
}
