package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/tsswallet/tss-wallet/model/tss"
	"github.com/tsswallet/tss-wallet/module"
)

type TSSCollector struct {
	phasesStarted   *prometheus.CounterVec
	phasesCompleted *prometheus.CounterVec
	phasesAborted   *prometheus.CounterVec
	phasesSkipped   *prometheus.CounterVec
	phaseDuration   *prometheus.HistogramVec
	phaseRounds     *prometheus.HistogramVec
	messagesRouted  *prometheus.CounterVec
	healed          *prometheus.CounterVec
}

var _ module.TSSMetrics = (*TSSCollector)(nil)

func NewTSSCollector(registerer prometheus.Registerer) *TSSCollector {
	factory := promauto.With(registerer)

	return &TSSCollector{
		phasesStarted: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespaceWallet,
			Subsystem: subsystemPhases,
			Name:      "started_total",
			Help:      "number of phase runs started",
		}, []string{LabelPhase}),

		phasesCompleted: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespaceWallet,
			Subsystem: subsystemPhases,
			Name:      "completed_total",
			Help:      "number of phase runs that converged",
		}, []string{LabelPhase}),

		phasesAborted: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespaceWallet,
			Subsystem: subsystemPhases,
			Name:      "aborted_total",
			Help:      "number of phase runs that ended without output",
		}, []string{LabelPhase, LabelReason}),

		phasesSkipped: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespaceWallet,
			Subsystem: subsystemPhases,
			Name:      "skipped_total",
			Help:      "number of phases served from a completed checkpoint",
		}, []string{LabelPhase}),

		phaseDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespaceWallet,
			Subsystem: subsystemPhases,
			Name:      "duration_seconds",
			Help:      "duration of converged phase runs",
			Buckets:   []float64{.005, .01, .05, .1, .5, 1, 5, 10, 30, 60},
		}, []string{LabelPhase}),

		phaseRounds: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespaceWallet,
			Subsystem: subsystemRouter,
			Name:      "rounds",
			Help:      "number of message rounds of converged phase runs",
			Buckets:   []float64{1, 2, 3, 4, 5, 6, 8},
		}, []string{LabelPhase}),

		messagesRouted: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespaceWallet,
			Subsystem: subsystemRouter,
			Name:      "messages_delivered_total",
			Help:      "number of protocol messages delivered to participants",
		}, []string{LabelPhase}),

		healed: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespaceWallet,
			Subsystem: subsystemStore,
			Name:      "healed_total",
			Help:      "number of stale completion markers discarded",
		}, []string{LabelPhase}),
	}
}

func (tc *TSSCollector) PhaseStarted(phase tss.Phase) {
	tc.phasesStarted.WithLabelValues(phase.String()).Inc()
}

func (tc *TSSCollector) PhaseCompleted(phase tss.Phase, rounds int, duration time.Duration) {
	tc.phasesCompleted.WithLabelValues(phase.String()).Inc()
	tc.phaseDuration.WithLabelValues(phase.String()).Observe(duration.Seconds())
	tc.phaseRounds.WithLabelValues(phase.String()).Observe(float64(rounds))
}

func (tc *TSSCollector) PhaseAborted(phase tss.Phase, reason string) {
	tc.phasesAborted.WithLabelValues(phase.String(), reason).Inc()
}

func (tc *TSSCollector) PhaseSkipped(phase tss.Phase) {
	tc.phasesSkipped.WithLabelValues(phase.String()).Inc()
}

func (tc *TSSCollector) MessagesRouted(phase tss.Phase, count int) {
	tc.messagesRouted.WithLabelValues(phase.String()).Add(float64(count))
}

func (tc *TSSCollector) CheckpointHealed(phase tss.Phase) {
	tc.healed.WithLabelValues(phase.String()).Inc()
}
