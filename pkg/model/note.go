package model

import (
	"time"

	"github.com/google/uuid"
)

// Note is the structured study note synthesized from a whole transcript
type Note struct {
	Topic       string       `json:"topic"`
	KeyConcepts []string     `json:"key_concepts"`
	BulletNotes []string     `json:"bullet_notes"`
	Definitions []Definition `json:"definitions"`
	Questions   []string     `json:"questions"`
	Summary     string       `json:"summary"`
}

type Definition struct {
	Term string `json:"term"`
	Def  string `json:"def"`
}

type NoteID string

// NewNoteID generates a new unique NoteID
func NewNoteID() NoteID {
	return NoteID(uuid.New().String())
}

// NoteRecord is a persisted Note with the transcript it was generated from
type NoteRecord struct {
	ID               NoteID
	UserID           string
	Note             Note
	RawTranscription string
	CreatedAt        time.Time
}
