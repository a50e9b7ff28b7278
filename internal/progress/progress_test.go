package progress

import (
	"bytes"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
)

func TestLog_RateLimitsSnapshots(t *testing.T) {
	var buf bytes.Buffer
	sink := NewLog(zerolog.New(&buf), 1000)

	// The limiter starts with a burst of one; a flood right after must be
	// mostly dropped.
	for i := 0; i < 50; i++ {
		sink.Publish(Snapshot{Specialist: "generalist", TrialsDone: i})
	}

	lines := strings.Count(buf.String(), "\n")
	assert.GreaterOrEqual(t, lines, 1)
	assert.Less(t, lines, 50, "publishing must be bounded, not per-call")
	assert.Contains(t, buf.String(), `"specialist":"generalist"`)
}

func TestMulti_FansOut(t *testing.T) {
	var a, b int
	sinks := Multi{
		sinkFunc(func(Snapshot) { a++ }),
		sinkFunc(func(Snapshot) { b++ }),
	}
	sinks.Publish(Snapshot{})
	assert.Equal(t, 1, a)
	assert.Equal(t, 1, b)
}

type sinkFunc func(Snapshot)

func (f sinkFunc) Publish(s Snapshot) { f(s) }
