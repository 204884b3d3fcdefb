package episode

// cursor owns the frame index and the policy for moving it: fixed
// background, rolling video, or looping video. One implementation per
// mode instead of branching scattered across the state machine.
type cursor interface {
	// reset rewinds to the starting frame and returns its index.
	reset() int

	// advance moves the cursor by one control interval. exhausted reports
	// that the video ran out (never true for fixed or looping cursors);
	// the returned index is then clamped to the last frame.
	advance() (index int, exhausted bool)

	// index returns the current frame index without advancing.
	index() int
}

// fixedCursor freezes the frame cursor at frame 0 for the whole episode.
type fixedCursor struct{}

func (fixedCursor) reset() int           { return 0 }
func (fixedCursor) advance() (int, bool) { return 0, false }
func (fixedCursor) index() int           { return 0 }

// rollingCursor advances through the video by a fixed number of source
// frames per control step, wrapping when looping is configured.
type rollingCursor struct {
	pos        int
	frameCount int
	perStep    int
	loop       bool
}

func (c *rollingCursor) reset() int {
	c.pos = 0
	return 0
}

func (c *rollingCursor) advance() (int, bool) {
	next := c.pos + c.perStep
	if next >= c.frameCount {
		if c.loop {
			c.pos = next % c.frameCount
			return c.pos, false
		}
		c.pos = c.frameCount - 1
		return c.pos, true
	}
	c.pos = next
	return c.pos, false
}

func (c *rollingCursor) index() int {
	return c.pos
}
