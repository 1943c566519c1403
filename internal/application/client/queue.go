package client

import (
	"context"

	"github.com/typeworld/typeworld-go/internal/shared/errors"
)

// Deferred online commands. Unlink runs before link so that a quick
// account switch while offline settles in the right end state; list
// surgery (invitations) precedes the downloads that observe its results.
const (
	cmdUnlinkUser            = "unlinkUser"
	cmdLinkUser              = "linkUser"
	cmdSyncSubscriptions     = "syncSubscriptions"
	cmdUploadSubscriptions   = "uploadSubscriptions"
	cmdAcceptInvitation      = "acceptInvitation"
	cmdDeclineInvitation     = "declineInvitation"
	cmdDownloadSubscriptions = "downloadSubscriptions"
	cmdDownloadSettings      = "downloadSettings"
)

var commandOrder = []string{
	cmdUnlinkUser,
	cmdLinkUser,
	cmdSyncSubscriptions,
	cmdUploadSubscriptions,
	cmdAcceptInvitation,
	cmdDeclineInvitation,
	cmdDownloadSubscriptions,
	cmdDownloadSettings,
}

// appendCommand queues an online command. Parameterless commands collapse
// into a single pending entry; parameterized ones (invitations) queue
// once per distinct parameter.
func (c *Client) appendCommand(command string, params ...string) error {
	if len(params) == 0 {
		params = []string{""}
	}

	c.prefsMu.Lock()
	defer c.prefsMu.Unlock()

	queue := map[string][]string{}
	if _, err := c.prefs.Get(prefsPendingCommands, &queue); err != nil {
		return err
	}

	changed := false
	for _, param := range params {
		if !containsString(queue[command], param) {
			queue[command] = append(queue[command], param)
			changed = true
		}
	}
	if !changed {
		return nil
	}
	return c.prefs.Set(prefsPendingCommands, queue)
}

// PendingCommands returns a copy of the deferred command queue.
func (c *Client) PendingCommands() map[string][]string {
	queue := map[string][]string{}
	c.prefs.Get(prefsPendingCommands, &queue)
	return queue
}

// PerformCommands drains the deferred command queue in its fixed order.
// Offline, the queue is left untouched for a later drain. A command that
// fails with a network error stays queued and stops the drain. A command
// the server rejects also stays queued for the next drain; its error is
// surfaced after the rest of the drain completes. Only success clears a
// queue slot.
func (c *Client) PerformCommands(ctx context.Context) error {
	c.queueMu.Lock()
	defer c.queueMu.Unlock()

	if !c.Online() {
		c.log.Debugw("offline, deferred commands kept queued")
		return nil
	}

	c.maybeStillAlive(ctx)
	c.resetSyncProblems()

	var firstRejection error
	for _, command := range commandOrder {
		// Re-read every iteration: earlier commands may queue later ones
		// (linking queues the downloads).
		queue := c.PendingCommands()
		params := queue[command]
		if len(params) == 0 {
			continue
		}

		for _, param := range params {
			err := c.performCommand(ctx, command, param)
			if errors.IsResponse(err, errors.CodeServerNotReachable) {
				c.log.Infow("server unreachable, drain paused", "command", command)
				c.recordSyncProblem(err.Error())
				if firstRejection != nil {
					return firstRejection
				}
				return nil
			}

			if err != nil {
				c.log.Warnw("deferred command rejected, kept queued",
					"command", command,
					"error", err,
				)
				c.recordSyncProblem(err.Error())
				if firstRejection == nil {
					firstRejection = err
				}
				continue
			}

			c.removeCommand(command, param)
		}
	}
	return firstRejection
}

// SyncProblems lists the failures of the most recent drain, for display
// to the user. Empty after a clean drain.
func (c *Client) SyncProblems() []string {
	c.problemsMu.Lock()
	defer c.problemsMu.Unlock()
	out := make([]string, len(c.syncProblems))
	copy(out, c.syncProblems)
	return out
}

func (c *Client) resetSyncProblems() {
	c.problemsMu.Lock()
	c.syncProblems = nil
	c.problemsMu.Unlock()
}

func (c *Client) recordSyncProblem(problem string) {
	c.problemsMu.Lock()
	c.syncProblems = append(c.syncProblems, problem)
	c.problemsMu.Unlock()
}

func (c *Client) removeCommand(command, param string) {
	c.prefsMu.Lock()
	defer c.prefsMu.Unlock()

	queue := map[string][]string{}
	if found, err := c.prefs.Get(prefsPendingCommands, &queue); err != nil || !found {
		return
	}
	queue[command] = removeString(queue[command], param)
	if len(queue[command]) == 0 {
		delete(queue, command)
	}
	c.prefs.Set(prefsPendingCommands, queue)
}

func (c *Client) performCommand(ctx context.Context, command, param string) error {
	switch command {
	case cmdUnlinkUser:
		return c.performUnlinkUser(ctx)
	case cmdLinkUser:
		return c.performLinkUser(ctx)
	case cmdSyncSubscriptions:
		return c.performSyncSubscriptions(ctx)
	case cmdUploadSubscriptions:
		return c.performUploadSubscriptions(ctx)
	case cmdAcceptInvitation:
		return c.performAcceptInvitation(ctx, param)
	case cmdDeclineInvitation:
		return c.performDeclineInvitation(ctx, param)
	case cmdDownloadSubscriptions:
		return c.performDownloadSubscriptions(ctx)
	case cmdDownloadSettings:
		return c.performDownloadSettings(ctx)
	}
	c.log.Warnw("unknown deferred command dropped", "command", command)
	return nil
}
