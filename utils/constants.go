package utils

import (
	"time"
)

// Token and session time constants
const (
	// AccessTokenTTL is the time-to-live for access tokens (24 hours)
	AccessTokenTTL = 24 * time.Hour

	// AccessTokenTTLSeconds is the time-to-live for access tokens in seconds
	AccessTokenTTLSeconds = 86400
)

// Commission constants
const (
	// MaxTierDepth is the maximum number of upline ancestors that can earn
	// commission from a single payment.
	MaxTierDepth = 5

	// IDRCurrency is the ledger currency. All amounts are integer minor units.
	IDRCurrency = "IDR"
)

// Pagination constants
const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)

// Cache key constants
const (
	// UplineChainCacheKey is the redis key prefix for cached upline chains,
	// suffixed with the agent code.
	UplineChainCacheKey = "upline_chain"

	// UplineChainCacheTTL bounds staleness if an invalidation is ever missed.
	UplineChainCacheTTL = 6 * time.Hour
)
