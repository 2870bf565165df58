package engine

import (
	"context"
	"time"

	"outreach_backend/internal/outreach/domain"
)

// handleConversationTick advances open sessions whose timer edges have come
// due, then re-arms itself while any session remains open.
func (e *Engine) handleConversationTick(ctx context.Context, run domain.Run) error {
	now := time.Now().UTC()

	res, err := e.flow.TickTimers(ctx, run, now)
	if err != nil {
		return err
	}
	if res.Advanced > 0 {
		// Advancing scheduled new outbound turns; make sure a dispatcher is
		// coming for them.
		if err := e.enqueueOnce(ctx, run.ID, domain.JobDispatchMessages, now, nil); err != nil {
			return err
		}
	}

	open, err := e.repo.CountOpenSessions(ctx, run.ID)
	if err != nil {
		return err
	}
	if open == 0 {
		return nil
	}
	return e.enqueueOnce(ctx, run.ID, domain.JobConversationTick, now.Add(conversationTickInterval), nil)
}

// handleSyncReplies pulls new inbound replies from the account mailbox and
// re-arms with the advanced UID high-water mark.
func (e *Engine) handleSyncReplies(ctx context.Context, run domain.Run, payload *domain.SyncRepliesPayload) error {
	if e.replySync == nil {
		return nil
	}

	account, err := e.loadAccount(ctx, run)
	if err != nil {
		return err
	}

	newUID, err := e.replySync.Sync(ctx, run, account, payload.SinceUID)
	if err != nil {
		return err
	}
	if newUID > payload.SinceUID {
		e.log.WithRunID(run.ID.String()).Info("reply sync advanced", "sinceUid", payload.SinceUID, "newUid", newUID)
	} else {
		newUID = payload.SinceUID
	}

	return e.enqueueOnce(ctx, run.ID, domain.JobSyncReplies,
		time.Now().UTC().Add(replySyncInterval),
		domain.SyncRepliesPayload{SinceUID: newUID})
}
