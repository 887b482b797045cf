// Package scoring computes the interaction score for rider profiles.
//
// The score was historically a database trigger; it is re-hosted here as a
// pure function so it can be tested and invoked explicitly after each
// qualifying write (login, message, post, friend accept).
package scoring

import (
	"math"
	"time"

	"peloton/internal/models"
)

// Signal weights. Posting and making friends count more than merely logging in.
const (
	weightLogin        = 1.0
	weightMessage      = 2.0
	weightPost         = 3.0
	weightFriendAccept = 2.5
)

// halfLife is the decay half-life applied to each activity timestamp.
const halfLife = 7 * 24 * time.Hour

// decayFactor ties the exponential to the half-life: exp(-decayFactor*age) == 0.5
// when age == halfLife.
var decayFactor = math.Ln2 / halfLife.Seconds()

// decay returns the decayed contribution of a single activity timestamp at
// the reference time. A nil timestamp contributes nothing; a timestamp in the
// future is clamped to full weight.
func decay(ts *time.Time, now time.Time, weight float64) float64 {
	if ts == nil {
		return 0
	}
	age := now.Sub(*ts).Seconds()
	if age < 0 {
		age = 0
	}
	return weight * math.Exp(-decayFactor*age)
}

// InteractionScore computes the profile's interaction score at the given
// reference time from its four tracked activity timestamps. The result is in
// [0, maximum weight sum] and strictly decreases as activity ages.
func InteractionScore(u *models.User, now time.Time) float64 {
	return decay(u.LastLoginAt, now, weightLogin) +
		decay(u.LastMessageAt, now, weightMessage) +
		decay(u.LastPostAt, now, weightPost) +
		decay(u.LastFriendAcceptedAt, now, weightFriendAccept)
}

// MaxScore is the score of a profile whose four activity timestamps are all
// "now". Useful for normalizing to a percentage in clients.
func MaxScore() float64 {
	return weightLogin + weightMessage + weightPost + weightFriendAccept
}
