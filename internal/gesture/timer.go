package gesture

// deadline is a cancelable one-shot timer expressed in event time.
type deadline struct {
	at    int64
	armed bool
}

// arm schedules the deadline, replacing any earlier schedule.
func (d *deadline) arm(at int64) {
	d.at = at
	d.armed = true
}

// cancel disarms the deadline. Safe to call repeatedly.
func (d *deadline) cancel() {
	d.armed = false
}

// due reports whether the deadline is armed and has elapsed at now.
func (d *deadline) due(now int64) bool {
	return d.armed && now >= d.at
}
