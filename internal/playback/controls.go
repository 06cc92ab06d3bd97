package playback

import "time"

// Pause suspends playback on behalf of the user
func (s *Session) Pause() {
	s.do(func() { s.hold(ReasonManual) })
}

// Resume clears the user's pause. Playback restarts only if no other
// reason (hidden page, exclusive activity) is still held.
func (s *Session) Resume() {
	s.do(func() { s.release(ReasonManual) })
}

// TogglePause flips the user's pause and returns whether it is now held
func (s *Session) TogglePause() bool {
	var held bool
	s.do(func() {
		if s.pause.Holds(ReasonManual) {
			s.release(ReasonManual)
			return
		}
		s.hold(ReasonManual)
		held = true
	})
	return held
}

// SetVisible reports page visibility; losing it forces a pause that is
// lifted automatically when visibility returns
func (s *Session) SetVisible(visible bool) {
	s.do(func() {
		if visible {
			s.release(ReasonHidden)
			return
		}
		s.hold(ReasonHidden)
	})
}

// SetBusy reports an exclusive activity (such as voice recording) that
// forces a pause for as long as it lasts
func (s *Session) SetBusy(busy bool) {
	s.do(func() {
		if busy {
			s.hold(ReasonBusy)
			return
		}
		s.release(ReasonBusy)
	})
}

func (s *Session) hold(reason PauseReason) {
	if s.pause.Hold(reason) {
		s.stopClock()
		s.log.Debug().
			Str("reason", string(reason)).
			Msg("Playback paused")
	}
}

func (s *Session) release(reason PauseReason) {
	if s.pause.Release(reason) {
		s.startClock()
		s.log.Debug().
			Str("reason", string(reason)).
			Msg("Playback resumed")
	}
}

// Seek moves the active item to value percent (clamped to [0,100]).
// Media items seek their element; other items jump their stored progress.
// Seeking to 100 advances immediately. The watched flag is never cleared.
func (s *Session) Seek(value float64) error {
	var err error
	s.do(func() {
		if err = s.navigable(); err != nil {
			return
		}

		value = clampPercent(value)
		if value >= 100 {
			s.forceProgress(100)
			s.advance()
			return
		}

		if s.element != nil {
			if total := s.mediaTotal(); total > 0 {
				target := time.Duration(value / 100 * float64(total))
				if seekErr := s.element.Seek(target); seekErr != nil {
					s.log.Warn().
						Err(seekErr).
						Dur("target", target).
						Msg("Media element rejected seek")
				}
			}
		} else {
			s.played = time.Duration(value / 100 * float64(s.duration.Duration))
		}
		s.forceProgress(value)
	})
	return err
}
