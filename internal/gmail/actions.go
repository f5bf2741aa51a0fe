package gmail

import (
	"context"
	"time"

	"pitchlist/internal/model"
)

// Trash is the label Gmail uses for its trash folder.
const Trash = "TRASH"

// Archive moves the given messages to trash, one call per message with a
// pause in between. Per-message failures are reported, not returned.
func (m *Mailbox) Archive(ctx context.Context, uids []uint32) (model.ArchiveReport, error) {
	rep := model.ArchiveReport{Target: Trash}
	for i, uid := range uids {
		if ctx.Err() != nil {
			rep.Failed = append(rep.Failed, uids[i:]...)
			return rep, nil
		}
		id, ok := m.messageID(uid)
		if !ok {
			m.logger.Warn("unknown uid", "uid", uid)
			rep.Failed = append(rep.Failed, uid)
			continue
		}
		if m.opts.DryRun {
			m.logger.Info("dry run: would trash", "uid", uid, "id", id)
			continue
		}
		if _, err := m.svc.Users.Messages.Trash(user, id).Context(ctx).Do(); err != nil {
			m.logger.Warn("trash failed", "uid", uid, "id", id, "err", err)
			rep.Failed = append(rep.Failed, uid)
		} else {
			rep.Moved = append(rep.Moved, uid)
		}
		if m.opts.Pause > 0 && i < len(uids)-1 {
			select {
			case <-ctx.Done():
			case <-time.After(m.opts.Pause):
			}
		}
	}
	m.logger.Info("archive done", "moved", len(rep.Moved), "failed", len(rep.Failed))
	return rep, nil
}
