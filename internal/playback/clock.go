package playback

// clockStrategy drives the progress of the active item.
// start is called with the session generation current at start time; every
// callback it installs must pass that generation to Session.guard so that
// callbacks outliving stop are discarded.
type clockStrategy interface {
	start(gen uint64)
	stop()
}

// wallClock ticks images and text on a fixed interval
type wallClock struct {
	s        *Session
	stopTick func()
}

func (c *wallClock) start(gen uint64) {
	c.stopTick = c.s.scheduler.Every(c.s.cfg.TickInterval, func() {
		c.s.guard(gen, c.s.onWallTick)
	})
}

func (c *wallClock) stop() {
	if c.stopTick != nil {
		c.stopTick()
		c.stopTick = nil
	}
}

// mediaClock follows the media element's own playback position. A parallel
// fixed-rate timer feeds the watch tracker, which must not depend on the
// playback rate.
type mediaClock struct {
	s           *Session
	element     MediaElement
	unsubscribe func()
	stopTrack   func()
}

func (c *mediaClock) start(gen uint64) {
	c.unsubscribe = c.element.OnTimeUpdate(func() {
		c.s.guard(gen, c.s.onMediaTimeUpdate)
	})
	c.stopTrack = c.s.scheduler.Every(c.s.cfg.TickInterval, func() {
		c.s.guard(gen, c.s.onMediaTrackTick)
	})
	if err := c.element.Play(); err != nil {
		c.s.log.Warn().
			Err(err).
			Msg("Media element refused to play")
	}
}

func (c *mediaClock) stop() {
	if err := c.element.Pause(); err != nil {
		c.s.log.Warn().
			Err(err).
			Msg("Media element refused to pause")
	}
	if c.unsubscribe != nil {
		c.unsubscribe()
		c.unsubscribe = nil
	}
	if c.stopTrack != nil {
		c.stopTrack()
		c.stopTrack = nil
	}
}
