package client

import (
	"context"
	"encoding/json"
	"strings"
)

// ReportCrash sends a crash payload to the central server together with a
// redacted snapshot of the preferences, for diagnosis. Best effort; a
// failed report is only logged.
func (c *Client) ReportCrash(ctx context.Context, payload string) {
	supplementary, err := c.diagnosticsSnapshot()
	if err != nil {
		c.log.Warnw("failed to build diagnostics snapshot", "error", err)
		supplementary = "{}"
	}

	if err := c.ms.HandleTraceback(ctx, c.session(), payload, supplementary); err != nil {
		c.log.Warnw("failed to report crash", "error", err)
		return
	}
	c.log.Infow("crash reported")
}

// diagnosticsSnapshot dumps the preferences minus bulky or sensitive
// entries. Secrets live in the keychain and never appear here; the
// resource cache is dropped for size.
func (c *Client) diagnosticsSnapshot() (string, error) {
	dump, err := c.prefs.Dump()
	if err != nil {
		return "", err
	}

	for key := range dump {
		lower := strings.ToLower(key)
		if key == "resources" ||
			strings.HasSuffix(lower, "key") ||
			strings.HasSuffix(lower, "secret") {
			delete(dump, key)
		}
	}

	raw, err := json.Marshal(dump)
	if err != nil {
		return "", err
	}
	return string(raw), nil
}
