package config

const (
	// Startup errors
	ErrInitializeDatabaseFmt = "Failed to initialize database: %v"
	ErrOpenDraftStoreFmt     = "Failed to open draft store: %v"
	ErrOpenPageStoreFmt      = "Failed to open page store: %v"

	// Auth errors
	ErrCreateProviderFmt      = "Failed to create provider: %v"
	ErrAuthHeaderRequired     = "Authorization header required"
	ErrInvalidSignatureFormat = "Invalid signature format"
	ErrInvalidSignature       = "Invalid signature"
	ErrInternalServerError    = "Internal server error"

	// Challenge errors
	ErrRefreshChallengeFmt = "Failed to refresh challenge"
)
