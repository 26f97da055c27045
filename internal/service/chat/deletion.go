package chat

import (
	"context"
	"errors"

	"github.com/tokomaju/livechat/internal/logging"
	"github.com/tokomaju/livechat/internal/store"
)

// DefaultDeletePageSize bounds one drain page. It must stay within the
// store's atomic batch limit.
const DefaultDeletePageSize = 100

// DeleteResult is the tagged outcome of a session deletion. Callers branch
// on OK; Reason is human-readable text for the admin UI.
type DeleteResult struct {
	OK     bool   `json:"ok"`
	Reason string `json:"reason,omitempty"`
}

// Deleter removes a session and its entire message log without ever issuing
// one unbounded operation: the log is drained page by page in atomic
// batches, then the session document goes last.
type Deleter struct {
	store    store.Store
	pageSize int
	log      *logging.Logger
}

// NewDeleter wires the deleter. pageSize <= 0 selects the default.
func NewDeleter(st store.Store, pageSize int, logger *logging.Logger) *Deleter {
	if pageSize <= 0 {
		pageSize = DefaultDeletePageSize
	}
	return &Deleter{store: st, pageSize: pageSize, log: logger.Sub("chat.deleter")}
}

// Delete drains the message log in pages ordered by document identity, then
// removes the session record. An explicit loop keeps the stack flat no
// matter how long the log is.
//
// Only the final outcome is reported; per-page failures are logged here for
// operational visibility. Any failure aborts the whole run with OK=false and
// leaves the session plus the undrained remainder intact — the store may be
// left partially drained, which is a documented inconsistency window, and a
// retry is safe since already-deleted messages do not reappear in later
// pages. A session that was gone before the drain started is the idempotent
// success case; one that vanishes mid-run is a hard failure.
//
// Known race, not closed here: a message appended while deletion is in
// flight either lands in a later page and is deleted with the rest, or is
// written after the log was observed empty and survives as an orphan under
// the removed session.
func (d *Deleter) Delete(ctx context.Context, sessionID string) DeleteResult {
	if sessionID == "" {
		return DeleteResult{OK: false, Reason: "session id is required"}
	}

	if _, err := d.store.Get(ctx, SessionPath(sessionID)); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return DeleteResult{OK: true, Reason: "session already removed"}
		}
		d.log.Error().Err(err).Str("session", sessionID).Msg("deletion aborted: session read failed")
		return DeleteResult{OK: false, Reason: "could not read session"}
	}

	collection := MessagesCollection(sessionID)
	pages := 0
	for {
		page, err := d.store.Query(ctx, collection, store.QueryOptions{
			OrderBy: store.ByDocumentID,
			Limit:   d.pageSize,
		})
		if err != nil {
			d.log.Error().Err(err).Str("session", sessionID).Int("page", pages).Msg("deletion aborted: page query failed")
			return DeleteResult{OK: false, Reason: "failed to read chat history"}
		}
		if len(page) == 0 {
			break
		}

		batch := d.store.Batch()
		for _, doc := range page {
			batch.Delete(doc.Path)
		}
		if err := batch.Commit(ctx); err != nil {
			d.log.Error().Err(err).Str("session", sessionID).Int("page", pages).Msg("deletion aborted: page delete failed")
			return DeleteResult{OK: false, Reason: "failed to remove chat history"}
		}
		pages++
	}

	if err := d.store.Delete(ctx, SessionPath(sessionID)); err != nil {
		d.log.Error().Err(err).Str("session", sessionID).Msg("deletion aborted: session delete failed")
		if errors.Is(err, store.ErrNotFound) {
			return DeleteResult{OK: false, Reason: "session vanished during deletion"}
		}
		return DeleteResult{OK: false, Reason: "failed to remove session"}
	}

	d.log.Info().Str("session", sessionID).Int("pages", pages).Msg("session deleted")
	return DeleteResult{OK: true, Reason: "session and chat history removed"}
}
