package lecture

import (
	"context"
	"errors"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/lectern/pkg/model"
	"github.com/m-mizutani/lectern/pkg/usecase/note"
	"github.com/m-mizutani/lectern/pkg/utils/logging"
	"github.com/m-mizutani/lectern/pkg/utils/retry"
)

var (
	// ErrPersistence is returned when the conversation or note could not be
	// saved. The session is retained and Save can be called again.
	ErrPersistence = goerr.New("failed to persist session")

	ErrNothingToSave = goerr.New("no stopped session to save")
)

// ConversationBlobKey is the object key of archived conversation entries
func ConversationBlobKey(id model.ConversationID) string {
	return "conversations/" + string(id) + ".json"
}

// pendingSave holds the records built when recording stopped, so that a
// failed save can be retried without rebuilding them
type pendingSave struct {
	conversation      *model.Conversation
	note              *model.NoteRecord
	conversationSaved bool
	noteSaved         bool
}

func (p *pendingSave) done() bool {
	return (p.conversation == nil || p.conversationSaved) && (p.note == nil || p.noteSaved)
}

func (p *pendingSave) conversationID() model.ConversationID {
	if p.conversation == nil {
		return ""
	}
	return p.conversation.ID
}

func (p *pendingSave) noteID() model.NoteID {
	if p.note == nil {
		return ""
	}
	return p.note.ID
}

func (r *Recorder) newPendingSave(ctx context.Context, lines []model.Line) *pendingSave {
	p := &pendingSave{}
	now := time.Now()

	if entries := r.session.Sequence().Snapshot(); len(entries) > 0 {
		p.conversation = &model.Conversation{
			ID:        model.NewConversationID(),
			UserID:    r.userID,
			Summary:   model.ConversationSummary(entries),
			CreatedAt: now,
			Entries:   entries,
		}
	}

	if n := r.session.Note(); n != nil {
		if r.userID == "" {
			logging.From(ctx).Warn("note is not saved without a user ID")
		} else {
			p.note = &model.NoteRecord{
				ID:               model.NewNoteID(),
				UserID:           r.userID,
				Note:             *n,
				RawTranscription: note.Transcript(lines),
				CreatedAt:        now,
			}
		}
	}

	return p
}

// SaveResult holds the IDs of the records saved so far
type SaveResult struct {
	ConversationID model.ConversationID
	NoteID         model.NoteID
}

// Save persists the records of the last stopped session. Records already
// saved by an earlier call are not written again.
func (r *Recorder) Save(ctx context.Context) (*SaveResult, error) {
	r.saveMu.Lock()
	defer r.saveMu.Unlock()

	p := r.pending
	if p == nil {
		return nil, goerr.Wrap(ErrNothingToSave, "cannot save")
	}

	logger := logging.From(ctx)
	var errs []error

	if p.conversation != nil && !p.conversationSaved {
		if err := r.putConversation(ctx, p.conversation); err != nil {
			logger.Error("failed to save conversation", "error", err, "conversation_id", p.conversation.ID)
			errs = append(errs, err)
		} else {
			p.conversationSaved = true
			logger.Info("conversation saved", "conversation_id", p.conversation.ID)
		}
	}

	if p.note != nil && !p.noteSaved {
		err := retry.Do(ctx, r.persistPolicy, "put_note", func(ctx context.Context) error {
			return r.repo.PutNote(ctx, p.note)
		})
		if err != nil {
			logger.Error("failed to save note", "error", err, "note_id", p.note.ID)
			errs = append(errs, err)
		} else {
			p.noteSaved = true
			logger.Info("note saved", "note_id", p.note.ID)
		}
	}

	result := &SaveResult{}
	if p.conversationSaved {
		result.ConversationID = p.conversation.ID
	}
	if p.noteSaved {
		result.NoteID = p.note.ID
	}

	if len(errs) > 0 {
		return result, goerr.Wrap(ErrPersistence, "failed to save session",
			goerr.V("cause", errors.Join(errs...).Error()),
			goerr.V("conversation_id", p.conversationID()),
			goerr.V("note_id", p.noteID()))
	}
	return result, nil
}

func (r *Recorder) putConversation(ctx context.Context, conv *model.Conversation) error {
	if conv.BlobKey == "" && conv.EntriesJSON == "" {
		data, err := model.MarshalEntries(conv.Entries)
		if err != nil {
			return goerr.Wrap(err, "failed to encode conversation entries", goerr.V("conversation_id", conv.ID))
		}

		if r.storage != nil {
			key := ConversationBlobKey(conv.ID)
			err := retry.Do(ctx, r.persistPolicy, "put_conversation_blob", func(ctx context.Context) error {
				return r.storage.Put(ctx, key, data)
			})
			if err != nil {
				return goerr.Wrap(err, "failed to archive conversation entries", goerr.V("key", key))
			}
			conv.BlobKey = key
		} else {
			conv.EntriesJSON = string(data)
		}
	}

	return retry.Do(ctx, r.persistPolicy, "put_conversation", func(ctx context.Context) error {
		return r.repo.PutConversation(ctx, conv)
	})
}
