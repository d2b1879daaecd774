package module

import (
	"time"

	"github.com/tsswallet/tss-wallet/model/tss"
)

// TSSMetrics encapsulates the metrics collectors for phase orchestration.
type TSSMetrics interface {
	// PhaseStarted tracks the number of phase runs handed to the router.
	PhaseStarted(phase tss.Phase)

	// PhaseCompleted tracks a converged phase run, the number of message
	// rounds it took and its duration.
	PhaseCompleted(phase tss.Phase, rounds int, duration time.Duration)

	// PhaseAborted tracks a phase run that ended without output.
	PhaseAborted(phase tss.Phase, reason string)

	// PhaseSkipped tracks a phase that was served from a checkpoint instead of being run.
	PhaseSkipped(phase tss.Phase)

	// MessagesRouted tracks the number of point-to-point deliveries made during a phase run.
	MessagesRouted(phase tss.Phase, count int)

	// CheckpointHealed tracks stale completion markers that were discarded.
	CheckpointHealed(phase tss.Phase)
}

// RestMetrics tracks the HTTP API.
type RestMetrics interface {
	// ObserveRequest records one served request.
	ObserveRequest(route string, code int, duration time.Duration)
}
