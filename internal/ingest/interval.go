package ingest

import (
	"math"
	"math/rand/v2"
	"time"
)

// MaxInterval caps the polling interval of active communities.
const MaxInterval = 5 * 24 * time.Hour

const (
	intervalBase   = 25.0
	intervalJitter = 0.2
	capBand        = 0.1
	day            = 24 * time.Hour
)

// CommentSample summarizes the comments seen in one ingestion cycle.
type CommentSample struct {
	Count  int
	Newest time.Time
	Oldest time.Time
}

// NextInterval computes a community's polling interval from its comment
// activity. Quiet communities are polled less often; a community with no
// comments at all gets an interval above the cap. r supplies the jitter.
func NextInterval(sample CommentSample, now time.Time, r *rand.Rand) time.Duration {
	maxSeconds := MaxInterval.Seconds()
	if sample.Count == 0 {
		return time.Duration((maxSeconds + r.Float64()*maxSeconds) * float64(time.Second))
	}

	age := math.Max(now.Sub(sample.Newest).Seconds(), 0)
	oldest := now.Sub(sample.Oldest)
	seconds := intervalBase * math.Sqrt(age)
	switch {
	case sample.Count < 5:
		seconds *= 10
	case sample.Count < 12 || oldest > 120*day:
		seconds *= 5
	case sample.Count < 25 || oldest > 20*day:
		seconds *= 2
	}

	seconds *= 1 + intervalJitter*(2*r.Float64()-1)
	if seconds >= maxSeconds {
		seconds = maxSeconds * (1 - capBand*r.Float64())
	}
	return time.Duration(seconds * float64(time.Second))
}

// newRand returns a generator seeded from the runtime source.
func newRand() *rand.Rand {
	return rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
}
