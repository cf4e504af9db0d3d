package assembler

import (
	"fmt"
	"time"
)

// ContactBucket classifies the gap since the user's last contact.
type ContactBucket string

const (
	BucketJustNow      ContactBucket = "just_now"
	BucketWithinHour   ContactBucket = "within_hour"
	BucketEarlierToday ContactBucket = "earlier_today"
	BucketYesterday    ContactBucket = "yesterday"
	BucketDaysAgo      ContactBucket = "days_ago"
	BucketNoPrior      ContactBucket = "no_prior"
)

// greetingForHour buckets the local hour into a time-of-day greeting.
func greetingForHour(hour int) string {
	switch {
	case hour >= 5 && hour < 12:
		return "Good morning"
	case hour >= 12 && hour < 17:
		return "Good afternoon"
	case hour >= 17 && hour < 21:
		return "Good evening"
	default:
		return "It's late, hope you're getting some rest"
	}
}

// bucketFor picks the continuity bucket for a last-contact time. known is
// false when there is no usable prior timestamp (no history, no memory, or a
// malformed stored value).
func bucketFor(now, last time.Time, known bool) ContactBucket {
	if !known || last.IsZero() {
		return BucketNoPrior
	}
	gap := now.Sub(last)
	switch {
	case gap < 5*time.Minute:
		return BucketJustNow
	case gap < time.Hour:
		return BucketWithinHour
	case sameDay(now, last):
		return BucketEarlierToday
	case daysBetween(now, last) == 1:
		return BucketYesterday
	default:
		return BucketDaysAgo
	}
}

// continuityPhrase renders the deterministic conversation-starter template
// for a bucket. The ||| separators mark natural pauses for the client's
// bubble rendering, matching the generator's output convention.
func continuityPhrase(now, last time.Time, known bool) string {
	greeting := greetingForHour(now.Hour())

	switch bucketFor(now, last, known) {
	case BucketJustNow:
		return fmt.Sprintf("%s. ||| Just saw your message from a moment ago, what's on your mind?", greeting)
	case BucketWithinHour:
		mins := int(now.Sub(last).Minutes())
		return fmt.Sprintf("%s. ||| You were here just %d minutes ago, picking up where we left off?", greeting, mins)
	case BucketEarlierToday:
		return fmt.Sprintf("%s. ||| We talked earlier today at %s, what's up now?", greeting, last.Format("15:04"))
	case BucketYesterday:
		return fmt.Sprintf("%s. ||| It's been since yesterday at %s, how's it going?", greeting, last.Format("15:04"))
	case BucketDaysAgo:
		return fmt.Sprintf("%s. ||| It's been %d days since we last talked, what's new with you?", greeting, daysBetween(now, last))
	default:
		return fmt.Sprintf("%s. ||| I don't have a recent message from you, let's start fresh. What's on your mind?", greeting)
	}
}

func sameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}

// daysBetween counts calendar days from last to now, not 24h periods.
func daysBetween(now, last time.Time) int {
	nowDate := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	lastDate := time.Date(last.Year(), last.Month(), last.Day(), 0, 0, 0, 0, last.Location())
	return int(nowDate.Sub(lastDate).Hours() / 24)
}
