package clientdata

import "time"

// TTL constants for different data types.
// These are added to time.Now() when storing to calculate expires_at.
const (
	TTLDailyCloses = 12 * time.Hour   // history only grows by one close per session
	TTLBeta        = 24 * time.Hour   // regression over a year of closes barely moves intraday
	TTLLatestClose = 10 * time.Minute // refreshed by the price refresh job
)
