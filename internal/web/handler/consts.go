package handler

const (
	// RootPath is the root path for building route prefixes.
	RootPath = "/"

	// RouterRootPath is the root path within a route group.
	RouterRootPath = "/"

	// APIPrefix is the prefix for the JSON API.
	APIPrefix = "/api/v1"

	// ErrNilACDFatalLogMsg is used if app or cfg or db var pointer is nil.
	ErrNilACDFatalLogMsg = "app, cfg or db is nil"
)
