package config

const (
	HCType        = "Content-Type"
	HETag         = "ETag"
	HCacheControl = "Cache-Control"
	HRequestID    = "X-Request-Id"

	CTypeCSS  = "text/css"
	CTypeHTML = "text/html; charset=utf-8"
	CTypeJSON = "application/json"
)

const (
	HTTPErrMethodNotAllowed = "Method not allowed"
)

const (
	CookieSyntaxTheme = "syntax-theme"
	CookieAuthToken   = "auth_token"
)

// Form fields posted by the editor and its autosave script.
const (
	FormPage   = "page"
	FormMsg    = "msg"
	FormDigest = "digest"
	FormTicket = "ticket"
)

// Environment variables holding secrets.
const (
	EnvTicketSecret   = "DRAFT_TICKET_SECRET"
	EnvS3AccessKey    = "S3_ACCESS_KEY_ID"
	EnvS3AccessSecret = "S3_ACCESS_KEY_SECRET"
	EnvConfigPath     = "WIKIDRAFT_CONFIG"
	EnvEd25519PubKey  = "ED25519_PUBKEY"
	EnvClerkKey       = "CLERK_API"
)
