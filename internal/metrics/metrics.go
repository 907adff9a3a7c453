// Package metrics exposes prover and driver activity as Prometheus counters.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/gnolang/boundprove/internal/prover"
)

// Recorder counts facts, proofs and analyzed files. It implements
// prover.Observer and is safe for concurrent use.
type Recorder struct {
	Facts  *prometheus.CounterVec
	Proofs *prometheus.CounterVec
	Files  prometheus.Counter
}

var _ prover.Observer = (*Recorder)(nil)

// NewRecorder creates the counters and registers them with reg. A nil reg
// leaves them unregistered.
func NewRecorder(reg prometheus.Registerer) *Recorder {
	r := &Recorder{
		Facts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "boundprove_prover_facts_total",
			Help: "Facts recorded by the prover, by shape.",
		}, []string{"shape"}),
		Proofs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "boundprove_prover_proofs_total",
			Help: "Proof attempts, by result.",
		}, []string{"result"}),
		Files: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "boundprove_files_analyzed_total",
			Help: "Go files analyzed.",
		}),
	}
	if reg != nil {
		reg.MustRegister(r.Facts, r.Proofs, r.Files)
	}
	return r
}

// FactRecorded implements prover.Observer.
func (r *Recorder) FactRecorded(shape prover.Shape) {
	r.Facts.WithLabelValues(shape.String()).Inc()
}

// ProofAttempted implements prover.Observer.
func (r *Recorder) ProofAttempted(proven bool) {
	result := "unproven"
	if proven {
		result = "proven"
	}
	r.Proofs.WithLabelValues(result).Inc()
}

// FileAnalyzed counts one analyzed file.
func (r *Recorder) FileAnalyzed() {
	r.Files.Inc()
}
