package stage

import "context"

// Health is one capability's readiness as shown by the status endpoint.
type Health struct {
	Name   string `json:"name"`
	Ready  bool   `json:"ready"`
	Detail string `json:"detail,omitempty"`
}

// Checker is implemented by pipeline capabilities that can report whether
// their backing tool or service is usable before a job starts.
type Checker interface {
	HealthCheck(context.Context) Health
}

// Healthy reports name as ready.
func Healthy(name string) Health { return Health{Name: name, Ready: true} }

// Unhealthy reports name as unusable; detail says why.
func Unhealthy(name, detail string) Health { return Health{Name: name, Detail: detail} }
