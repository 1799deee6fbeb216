package httpx

import (
	"io"
	"net/http"
)

// healthResponse is static: readiness here means "the ingest API is serving",
// not "every dependency is up". Queue and database health surface through the
// stats endpoints instead.
const healthResponse = `{"status":"ok","service":"ingest-api"}`

// healthHandler answers liveness and readiness probes.
func healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if r.Method == http.MethodHead {
		return
	}
	// A failed write means the prober hung up; nothing to recover.
	_, _ = io.WriteString(w, healthResponse)
}
