package guard

import "time"

// Metrics receives runtime observations. The Prometheus collector in
// pkg/telemetry/metrics implements it.
type Metrics interface {
	ObserveCheck(mode string, cached, passed bool, duration time.Duration)
	ObserveBudgetExceeded(mode string)
	ObserveRecheck(outcome string, duration time.Duration)
	ObserveJobDropped(kind string)
	ObserveJobFailed(kind, reason string)
}

type noopMetrics struct{}

func (noopMetrics) ObserveCheck(string, bool, bool, time.Duration) {}
func (noopMetrics) ObserveBudgetExceeded(string)                    {}
func (noopMetrics) ObserveRecheck(string, time.Duration)            {}
func (noopMetrics) ObserveJobDropped(string)                        {}
func (noopMetrics) ObserveJobFailed(string, string)                 {}
