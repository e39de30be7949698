package event

import "fixloop/internal/logging"

// Classifier owns the lifetime seen set. A fingerprint admitted once is
// never re-emitted, even though logs are re-scanned from the start on
// every cycle.
type Classifier struct {
	seen map[string]struct{}
}

// NewClassifier creates an empty classifier.
func NewClassifier() *Classifier {
	return &Classifier{seen: make(map[string]struct{})}
}

// Classify admits candidates whose fingerprints have not been seen
// before. Each admitted fingerprint enters the seen set immediately, so
// duplicate candidates inside the same batch collapse to one event.
func (c *Classifier) Classify(candidates []Event, cycle int) []Event {
	var admitted []Event
	for _, cand := range candidates {
		if cand.Fingerprint == "" {
			logging.CycleDebug("dropping candidate without fingerprint (kind=%s)", cand.Kind)
			continue
		}
		if _, ok := c.seen[cand.Fingerprint]; ok {
			continue
		}
		c.seen[cand.Fingerprint] = struct{}{}
		cand.CreatedCycle = cycle
		admitted = append(admitted, cand)
	}
	return admitted
}

// Seen reports whether a fingerprint has ever been admitted.
func (c *Classifier) Seen(fingerprint string) bool {
	_, ok := c.seen[fingerprint]
	return ok
}

// SeenCount returns the lifetime number of distinct fingerprints.
func (c *Classifier) SeenCount() int {
	return len(c.seen)
}
