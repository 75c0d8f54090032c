// Package metrics wires replica-local counters into a prometheus registry,
// modeled on the teacher's registry/gatherer split (api/metrics): one
// registry per replica process, handed to every component that needs to
// record an event.
package metrics

import "github.com/prometheus/client_golang/prometheus"

// Registry is the set of counters a replica exposes. A replica owns exactly
// one Registry and passes it by reference into the election, dos and
// encoder packages.
type Registry struct {
	reg *prometheus.Registry

	ElectionsWon       prometheus.Counter
	ElectionsLost      prometheus.Counter
	ElectionsDuplicate prometheus.Counter

	BroadcastsSent    prometheus.Counter
	BroadcastsApplied prometheus.Counter

	EncodeSuccess prometheus.Counter
	EncodeFailure prometheus.Counter
}

// New creates a Registry with all counters registered under the pixeldos_
// namespace.
func New() *Registry {
	reg := prometheus.NewRegistry()

	mk := func(name, help string) prometheus.Counter {
		c := prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "pixeldos",
			Name:      name,
			Help:      help,
		})
		reg.MustRegister(c)
		return c
	}

	return &Registry{
		reg:                reg,
		ElectionsWon:       mk("elections_won_total", "elections this replica committed to"),
		ElectionsLost:      mk("elections_lost_total", "elections this replica yielded"),
		ElectionsDuplicate: mk("elections_duplicate_total", "requests dropped as already handled"),
		BroadcastsSent:     mk("dos_broadcasts_sent_total", "directory files pushed to peers"),
		BroadcastsApplied:  mk("dos_broadcasts_applied_total", "directory files received and applied from peers"),
		EncodeSuccess:      mk("encode_success_total", "images successfully stego-encoded"),
		EncodeFailure:      mk("encode_failure_total", "stego encode/decode failures"),
	}
}

// Gatherer exposes the underlying prometheus.Gatherer for an HTTP /metrics
// handler.
func (r *Registry) Gatherer() prometheus.Gatherer { return r.reg }
