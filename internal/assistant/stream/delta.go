package stream

// DeltaTracker computes the newly arrived suffix of a field value across
// repeated extractions, tracking a high-water mark over the decoded bytes
// already handed to the client. The mark never decreases within a turn, so a
// re-parse that momentarily yields a shorter value can never surface as
// shrinking output.
type DeltaTracker struct {
	emitted int
}

// Next returns the suffix of extracted that has not been emitted yet, or ""
// when there is nothing new to say.
func (t *DeltaTracker) Next(extracted string) string {
	if len(extracted) <= t.emitted {
		return ""
	}
	delta := extracted[t.emitted:]
	t.emitted = len(extracted)
	return delta
}

// Emitted reports how many bytes have been handed out so far.
func (t *DeltaTracker) Emitted() int {
	return t.emitted
}
