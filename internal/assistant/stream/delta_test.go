package stream

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDeltaTrackerEmitsOnlyNewSuffix(t *testing.T) {
	var tr DeltaTracker

	assert.Equal(t, "Hel", tr.Next("Hel"))
	assert.Equal(t, "lo", tr.Next("Hello"))
	assert.Equal(t, "", tr.Next("Hello"))
}

func TestDeltaTrackerNeverSurfacesShrinkage(t *testing.T) {
	var tr DeltaTracker

	assert.Equal(t, "Hello", tr.Next("Hello"))
	// A re-parse yielding a shorter value emits nothing and keeps the mark.
	assert.Equal(t, "", tr.Next("Hel"))
	assert.Equal(t, " there", tr.Next("Hello there"))
	assert.Equal(t, 11, tr.Emitted())
}

func TestDeltaTrackerConcatenationReproducesValue(t *testing.T) {
	var tr DeltaTracker
	final := "The palette leans warm:\noak, brass, linen."

	var rebuilt string
	for i := 1; i <= len(final); i++ {
		rebuilt += tr.Next(final[:i])
	}
	assert.Equal(t, final, rebuilt)
}
