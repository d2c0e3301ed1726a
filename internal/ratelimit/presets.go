package ratelimit

import "time"

// Preset tiers used by the gateway's endpoints. These are configuration
// values, not part of the algorithm.
var (
	// Expensive covers paid, metered upstream calls (voice tokens, AI chat
	// for anonymous callers).
	Expensive = Config{MaxRequests: 10, Window: time.Minute}

	// Standard covers ordinary API calls from authenticated users.
	Standard = Config{MaxRequests: 30, Window: time.Minute}

	// Lenient covers read operations.
	Lenient = Config{MaxRequests: 100, Window: time.Minute}

	// Auth covers login-adjacent operations.
	Auth = Config{MaxRequests: 5, Window: time.Minute}

	// Trial is the daily quota for trial callers. Trial keys are
	// caller-supplied ("trial-<timestamp>") and not session-bound, so a
	// caller minting a fresh key per request sidesteps this tier entirely.
	// Known gap, kept as-is; see DESIGN.md.
	Trial = Config{MaxRequests: 5, Window: 24 * time.Hour}
)
