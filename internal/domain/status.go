package domain

// Status is the user-visible health of the last refresh activity.
type Status string

const (
	// StatusStable means the last full pass completed without failures.
	StatusStable Status = "stable"
	// StatusRateLimited means the price source signalled throttling.
	StatusRateLimited Status = "rate_limited"
	// StatusSourceDown means the price source failed outright.
	StatusSourceDown Status = "source_down"
)
