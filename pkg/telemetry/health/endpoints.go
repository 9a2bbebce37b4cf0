package health

import (
	"encoding/json"
	"net/http"
	"runtime"
)

// VersionInfo contains build and version information.
type VersionInfo struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	BuildTime string `json:"build_time"`
	GoVersion string `json:"go_version"`
}

// LivenessHandler returns the handler for the liveness endpoint. It runs
// no component checks and answers 200 while the process can serve HTTP.
// HEAD requests get the status and headers only.
//
// Example response:
//
//	{
//	    "status": "ok",
//	    "timestamp": "2026-10-15T10:30:00Z"
//	}
func (c *Checker) LivenessHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, r, http.StatusOK, c.CheckLiveness(r.Context()))
	}
}

// ReadinessHandler returns the handler for the readiness endpoint. It runs
// every registered check concurrently.
//
// Returns:
//   - 200 OK: all checks passed
//   - 503 Service Unavailable: at least one check failed or timed out
//
// Example response (ready):
//
//	{
//	    "status": "ready",
//	    "checks": {
//	        "disk_budget": {"status": "ok", "duration_ms": 0.012},
//	        "log_dir": {"status": "ok", "duration_ms": 0.31},
//	        "writer_queue": {"status": "ok", "duration_ms": 0.004}
//	    },
//	    "timestamp": "2026-10-15T10:30:00Z"
//	}
//
// Example response (degraded):
//
//	{
//	    "status": "degraded",
//	    "checks": {
//	        "disk_budget": {"status": "unhealthy", "message": "disk budget exhausted: 1073741824 of 1073741824 bytes used", "duration_ms": 0.015},
//	        "log_dir": {"status": "ok", "duration_ms": 0.29},
//	        "writer_queue": {"status": "ok", "duration_ms": 0.004}
//	    },
//	    "timestamp": "2026-10-15T10:30:00Z"
//	}
func (c *Checker) ReadinessHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		status := c.CheckReadiness(r.Context())
		code := http.StatusOK
		if status.Status != StatusReady {
			code = http.StatusServiceUnavailable
		}
		writeJSON(w, r, code, status)
	}
}

// VersionHandler returns the handler for the version endpoint. The values
// are fixed when the handler is built; go_version is the runtime's.
//
// Example response:
//
//	{
//	    "version": "0.4.0",
//	    "commit": "9f2c1ab",
//	    "build_time": "2026-10-01T08:00:00Z",
//	    "go_version": "go1.23.2"
//	}
//
// Usage:
//
//	r.Get("/version", health.VersionHandler(version, commit, buildTime))
func VersionHandler(version, commit, buildTime string) http.HandlerFunc {
	info := VersionInfo{
		Version:   version,
		Commit:    commit,
		BuildTime: buildTime,
		GoVersion: runtime.Version(),
	}
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, r, http.StatusOK, info)
	}
}

func writeJSON(w http.ResponseWriter, r *http.Request, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if r.Method != http.MethodHead {
		_ = json.NewEncoder(w).Encode(v)
	}
}
