package constants

import "time"

const (
	LockStaleTimeout = 5 * time.Minute
	RallyDebounce    = 200 * time.Millisecond
)

const (
	StoreTimeout       = 5 * time.Second
	LockReleaseTimeout = 5 * time.Second
	LiveStateTimeout   = 2 * time.Second
	RemoteAPITimeout   = 10 * time.Second
)

const (
	DBMaxOpenConns    = 10
	DBMaxIdleConns    = 4
	DBConnMaxLifetime = 1 * time.Hour
	DBMaxIdleTime     = 10 * time.Minute
)

const (
	ShutdownTimeout = 5 * time.Second
)

const (
	WatchBufferSize = 1
)
