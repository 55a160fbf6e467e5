package constants

const (
	AlgSha256 = "sha256"

	// Ledger identifiers. Each configured chain gets its own
	// gateway credentials in the config file.
	ChainArbitrum = "arbitrum"
	ChainScroll   = "scroll"

	// Anchor statuses. Transitions are monotonic: Pending may move
	// to Confirmed or Failed, never backward.
	StatusPending   = "Pending"
	StatusConfirmed = "Confirmed"
	StatusFailed    = "Failed"

	// Session statuses.
	SessionActive = "Active"
	SessionClosed = "Closed"

	// Error kinds. See service.ProcessingError.
	ErrValidation = "ValidationError"
	ErrStorage    = "StorageError"
	ErrLedger     = "LedgerSubmissionError"
	ErrTimeout    = "TimeoutError"

	// NSQ topic for anchor finality confirmation. The evidence
	// server publishes record ids here; the anchor_confirmer
	// worker consumes them.
	TopicAnchorConfirm = "anchor_confirm_topic"

	// SessionIDPrefix is the prefix on every trip/session id.
	SessionIDPrefix = "trip_"

	// MinArtifactSize rejects empty or truncated uploads. Anything
	// under 1KB is not a playable video.
	MinArtifactSize = int64(1024)
)

// Chains lists the ledgers every evidence record is anchored to.
// Order here is the order anchors appear in assembled records.
var Chains = []string{
	ChainArbitrum,
	ChainScroll,
}

// AcceptedVideoTypes are the MIME types the upload boundary accepts.
var AcceptedVideoTypes = []string{
	"video/mp4",
	"video/webm",
	"video/ogg",
	"video/quicktime",
	"video/x-msvideo",
	"video/x-matroska",
	"video/mpeg",
	"video/x-flv",
	"video/3gpp",
	"video/3gpp2",
}
