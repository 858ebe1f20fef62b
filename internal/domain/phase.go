package domain

type Phase string

const (
	PhaseIdle            Phase = "IDLE"
	PhaseAnalyzing       Phase = "ANALYZING"
	PhaseGeneratingVideo Phase = "GENERATING_VIDEO"
	PhaseCompleted       Phase = "COMPLETED"
	PhaseError           Phase = "ERROR"
)

func (p Phase) String() string {
	return string(p)
}

func (p Phase) IsValid() bool {
	switch p {
	case PhaseIdle, PhaseAnalyzing, PhaseGeneratingVideo, PhaseCompleted, PhaseError:
		return true
	default:
		return false
	}
}

// IsBusy reports whether a remote call is in flight.
func (p Phase) IsBusy() bool {
	return p == PhaseAnalyzing || p == PhaseGeneratingVideo
}
