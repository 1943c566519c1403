package subscription

// Record is the per-subscription state persisted in preferences, keyed by
// the subscription's unsecret URL. The secret key is deliberately absent;
// it lives in the keychain.
type Record struct {
	// UniqueID prefixes installed font file names so concurrently held
	// subscriptions never collide on disk.
	UniqueID string `json:"uniqueID"`

	Added int64 `json:"added,omitempty"` // unix seconds

	// CanonicalURL of the publisher endpoint, learned on first contact.
	CanonicalURL string `json:"canonicalURL,omitempty"`

	AcceptedTermsOfService bool `json:"acceptedTermsOfService,omitempty"`
	RevealIdentity         bool `json:"revealIdentity,omitempty"`

	// ServerTimestamp is the central server's content clock for this
	// subscription, as of the last update. Reconciliation refetches the
	// catalog when the server reports a strictly newer value.
	ServerTimestamp int64 `json:"serverTimestamp,omitempty"`

	// Protocol-owned state: cached endpoint and installable fonts
	// commands, serialized by the protocol implementation.
	Protocol map[string]string `json:"protocol,omitempty"`

	// InstalledFonts maps font uniqueID to install details. The files on
	// disk are the source of truth for what counts as installed; this map
	// only remembers when a font arrived, for duration-based expiries,
	// and survives losing an entry without losing the install.
	InstalledFonts map[string]InstalledFont `json:"installedFonts,omitempty"`
}

// InstalledFont describes one locally installed font file.
type InstalledFont struct {
	Version     string `json:"version"`
	InstalledAt int64  `json:"installedAt,omitempty"` // unix seconds
}
