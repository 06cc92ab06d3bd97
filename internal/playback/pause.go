package playback

import "sort"

// PauseReason identifies why playback is suspended
type PauseReason string

// Pause reasons
const (
	ReasonManual PauseReason = "manual" // user pressed pause
	ReasonHidden PauseReason = "hidden" // page or tab lost visibility
	ReasonBusy   PauseReason = "busy"   // an exclusive activity such as voice recording
)

// PauseController is the single source of truth for whether clocks may run.
// Playback is paused while any reason is held; each reason is cleared only
// by its own trigger.
type PauseController struct {
	reasons map[PauseReason]struct{}
}

// NewPauseController creates a controller with no reasons held
func NewPauseController() *PauseController {
	return &PauseController{reasons: make(map[PauseReason]struct{})}
}

// Hold adds a reason and reports whether playback went from running to paused
func (p *PauseController) Hold(reason PauseReason) bool {
	wasPaused := p.Paused()
	p.reasons[reason] = struct{}{}
	return !wasPaused
}

// Release removes a reason and reports whether playback may run again
func (p *PauseController) Release(reason PauseReason) bool {
	if _, ok := p.reasons[reason]; !ok {
		return false
	}
	delete(p.reasons, reason)
	return !p.Paused()
}

// Paused reports whether any reason is held
func (p *PauseController) Paused() bool {
	return len(p.reasons) > 0
}

// Holds reports whether a specific reason is held
func (p *PauseController) Holds(reason PauseReason) bool {
	_, ok := p.reasons[reason]
	return ok
}

// Reasons returns the held reasons in a stable order
func (p *PauseController) Reasons() []PauseReason {
	out := make([]PauseReason, 0, len(p.reasons))
	for r := range p.reasons {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
