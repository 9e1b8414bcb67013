package service

import "time"

// InWindow reports whether an expiration at expiresAt is fresh as of now:
// 0 <= now-expiresAt < window. An expiration exactly one window old is stale.
func InWindow(now, expiresAt time.Time, window time.Duration) bool {
	elapsed := now.Sub(expiresAt)
	return elapsed >= 0 && elapsed < window
}
