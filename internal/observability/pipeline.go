package observability

import (
	"errors"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
)

// Pipeline counts pricelist documents, rows and oracle calls. A nil Pipeline
// records nothing.
type Pipeline struct {
	documents   *prometheus.CounterVec
	rows        *prometheus.CounterVec
	oracleCalls *prometheus.CounterVec
}

// NewPipeline registers the pipeline collectors on reg. Collectors that are
// already registered are reused.
func NewPipeline(reg prometheus.Registerer) (*Pipeline, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	p := &Pipeline{
		documents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "pricelist_documents_total",
			Help: "Uploaded documents by format and outcome.",
		}, []string{"format", "outcome"}),
		rows: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "pricelist_rows_total",
			Help: "Pricelist rows by outcome.",
		}, []string{"outcome"}),
		oracleCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "pricelist_oracle_calls_total",
			Help: "Language model calls by provider and outcome.",
		}, []string{"provider", "outcome"}),
	}
	for _, vec := range []**prometheus.CounterVec{&p.documents, &p.rows, &p.oracleCalls} {
		if err := reg.Register(*vec); err != nil {
			var already prometheus.AlreadyRegisteredError
			if !errors.As(err, &already) {
				return nil, err
			}
			existing, ok := already.ExistingCollector.(*prometheus.CounterVec)
			if !ok {
				return nil, fmt.Errorf("pipeline metrics: unexpected collector type %T", already.ExistingCollector)
			}
			*vec = existing
		}
	}
	return p, nil
}

func mustPipeline(reg prometheus.Registerer) *Pipeline {
	p, err := NewPipeline(reg)
	if err != nil {
		panic(err)
	}
	return p
}

// ObserveDocument counts one document outcome.
func (p *Pipeline) ObserveDocument(format, outcome string) {
	if p == nil {
		return
	}
	if format == "" {
		format = "unknown"
	}
	p.documents.WithLabelValues(format, outcome).Inc()
}

// ObserveRows adds n rows with the given outcome.
func (p *Pipeline) ObserveRows(outcome string, n int) {
	if p == nil || n <= 0 {
		return
	}
	p.rows.WithLabelValues(outcome).Add(float64(n))
}

// ObserveOracle counts one provider call.
func (p *Pipeline) ObserveOracle(provider string, err error) {
	if p == nil {
		return
	}
	outcome := "success"
	if err != nil {
		outcome = "failure"
	}
	p.oracleCalls.WithLabelValues(provider, outcome).Inc()
}
