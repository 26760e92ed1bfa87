package config

import "time"

// Database connection pool settings
const (
	DBMaxOpenConns    = 25
	DBMaxIdleConns    = 5
	DBConnMaxLifetime = 5 * time.Minute
)

// HTTP server timeouts
const (
	ServerRequestTimeout  = 60 * time.Second
	ServerReadTimeout     = 15 * time.Second
	ServerIdleTimeout     = 120 * time.Second
	ServerShutdownTimeout = 30 * time.Second
)

// Database ping timeout for health checks
const DBPingTimeout = 5 * time.Second

// Background job intervals
const CleanupJobInterval = 5 * time.Minute

// Scheduling limits
const (
	DefaultSessionDuration = 60
	MaxSlotRangeDays       = 90
	NextSlotWindowDays     = 30
	SlotLockTTL            = 10 * time.Second
)

// Magic link request throttling (per email)
const (
	MagicLinkRequestLimit  = 3
	MagicLinkRequestWindow = 5 * time.Minute
)

// Used magic links are kept this long before cleanup
const MagicLinkRetention = 24 * time.Hour

// API throttling (per user, or per IP when anonymous)
const (
	APIRateLimit       = 120
	APIRateWindow      = time.Minute
	BookingRateLimit   = 10
	BookingRateWindow  = time.Hour
	HealthCheckTimeout = 2 * time.Second
)
