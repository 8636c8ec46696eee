package state

// Warning-count escalation thresholds. Read from configuration at
// evaluation time; these are the defaults when keys are absent.
type Thresholds struct {
	Warn int
	Mute int
	Ban  int
}

const (
	DefaultWarnThreshold = 3
	DefaultMuteThreshold = 5
	DefaultBanThreshold  = 10
)

func DefaultThresholds() Thresholds {
	return Thresholds{
		Warn: DefaultWarnThreshold,
		Mute: DefaultMuteThreshold,
		Ban:  DefaultBanThreshold,
	}
}

type EscalationLevel string

const (
	EscalateNone EscalationLevel = ""
	// formal notice only; no state change is bound to the warn threshold
	EscalateNotice EscalationLevel = "notice"
	EscalateMute   EscalationLevel = "mute"
	EscalateBan    EscalationLevel = "ban"
)

// Escalate computes the automatic consequence of reaching warnCount
// warnings. Evaluated after every warn increment, highest tier wins.
func Escalate(warnCount int, th Thresholds) EscalationLevel {
	switch {
	case th.Ban > 0 && warnCount >= th.Ban:
		return EscalateBan
	case th.Mute > 0 && warnCount >= th.Mute:
		return EscalateMute
	case th.Warn > 0 && warnCount >= th.Warn:
		return EscalateNotice
	default:
		return EscalateNone
	}
}

// DroppedBelowTrigger reports whether an unwarn moved the count out of
// the mute/ban trigger band. Escalation is one-directional: this only
// drives an advisory note, never an automatic unmute or unban.
func DroppedBelowTrigger(oldCount, newCount int, th Thresholds) bool {
	return oldCount >= th.Mute && newCount < th.Mute
}
