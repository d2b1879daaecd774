package metrics

const (
	LabelPhase  = "phase"
	LabelReason = "reason"
	LabelRoute  = "route"
	LabelCode   = "code"
)

const (
	namespaceWallet = "tss_wallet"
)

const (
	subsystemPhases = "phases"
	subsystemRouter = "router"
	subsystemStore  = "checkpoints"
	subsystemRest   = "rest"
)
