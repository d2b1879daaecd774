package metrics

import (
	"time"

	"github.com/tsswallet/tss-wallet/model/tss"
	"github.com/tsswallet/tss-wallet/module"
)

type NoopCollector struct{}

var (
	_ module.TSSMetrics  = (*NoopCollector)(nil)
	_ module.RestMetrics = (*NoopCollector)(nil)
)

func NewNoopCollector() *NoopCollector {
	nc := &NoopCollector{}
	return nc
}

func (nc *NoopCollector) PhaseStarted(phase tss.Phase)                                       {}
func (nc *NoopCollector) PhaseCompleted(phase tss.Phase, rounds int, duration time.Duration) {}
func (nc *NoopCollector) PhaseAborted(phase tss.Phase, reason string)                        {}
func (nc *NoopCollector) PhaseSkipped(phase tss.Phase)                                       {}
func (nc *NoopCollector) MessagesRouted(phase tss.Phase, count int)                          {}
func (nc *NoopCollector) CheckpointHealed(phase tss.Phase)                                   {}
func (nc *NoopCollector) ObserveRequest(route string, code int, duration time.Duration)      {}
