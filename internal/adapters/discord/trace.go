package discord

import "time"

func (r *Router) step(label string) func() {
	start := time.Now()
	return func() { r.log.WithField("dur", time.Since(start)).Debug("[trace] " + label) }
}
