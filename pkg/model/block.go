package model

import (
	"encoding/json"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/m-mizutani/goerr/v2"
)

// Line is a single transcribed text line delivered by the line source
type Line struct {
	Text       string    `json:"text"`
	CapturedAt time.Time `json:"captured_at"`
}

// EntryKind identifies the variant of an Entry
type EntryKind string

const (
	EntryKindBlock      EntryKind = "block"
	EntryKindAnnotation EntryKind = "annotation"
)

// Entry is an element of a BlockSequence. It is implemented only by
// AnnotationBlock and Annotation.
type Entry interface {
	Kind() EntryKind
	sealed()
}

// AnnotationBlock is a fixed-capacity group of consecutive lines.
type AnnotationBlock struct {
	ID        int64     `json:"id"`
	Lines     []Line    `json:"lines"`
	CreatedAt time.Time `json:"created_at"`
}

func (AnnotationBlock) Kind() EntryKind { return EntryKindBlock }
func (AnnotationBlock) sealed()         {}

// Text joins line texts with a single space, in line order
func (b AnnotationBlock) Text() string {
	texts := make([]string, len(b.Lines))
	for i, l := range b.Lines {
		texts[i] = l.Text
	}
	return strings.Join(texts, " ")
}

// Annotation is the elaboration text of one AnnotationBlock
type Annotation struct {
	ForID int64  `json:"for_id"`
	Text  string `json:"text"`
}

func (Annotation) Kind() EntryKind { return EntryKindAnnotation }
func (Annotation) sealed()         {}

// BlockSequence is the ordered list of blocks and annotations of one session.
// Every mutation replaces the underlying slice, so a slice returned by
// Snapshot is never modified afterwards.
type BlockSequence struct {
	mu      sync.Mutex
	epoch   uint64
	entries []Entry
}

// NewBlockSequence creates an empty sequence bound to epoch
func NewBlockSequence(epoch uint64) *BlockSequence {
	return &BlockSequence{epoch: epoch}
}

// Epoch returns the session epoch the sequence currently belongs to
func (s *BlockSequence) Epoch() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.epoch
}

// Snapshot returns the current entries. Callers must not modify the result.
func (s *BlockSequence) Snapshot() []Entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.entries
}

// Update replaces entries with fn(entries) when epoch matches. It returns
// false without calling fn when the epoch is stale, and false when fn
// reports no change.
func (s *BlockSequence) Update(epoch uint64, fn func(entries []Entry) ([]Entry, bool)) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if epoch != s.epoch {
		return false
	}

	next, changed := fn(s.entries)
	if !changed {
		return false
	}
	s.entries = next
	return true
}

// Reset drops all entries and binds the sequence to a new epoch
func (s *BlockSequence) Reset(epoch uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.epoch = epoch
	s.entries = nil
}

// Blocks returns only the AnnotationBlock entries of a snapshot
func Blocks(entries []Entry) []AnnotationBlock {
	var blocks []AnnotationBlock
	for _, e := range entries {
		switch v := e.(type) {
		case AnnotationBlock:
			blocks = append(blocks, v)
		case Annotation:
		}
	}
	return blocks
}

// AnnotationFor returns the annotation referencing blockID, if any
func AnnotationFor(entries []Entry, blockID int64) (Annotation, bool) {
	for _, e := range entries {
		switch v := e.(type) {
		case Annotation:
			if v.ForID == blockID {
				return v, true
			}
		case AnnotationBlock:
		}
	}
	return Annotation{}, false
}

type wireEntry struct {
	Type  EntryKind `json:"type"`
	ID    int64     `json:"id,omitempty"`
	Lines []Line    `json:"lines,omitempty"`
	// CreatedAt is a pointer so annotations omit it
	CreatedAt *time.Time `json:"created_at,omitempty"`
	ForID     int64      `json:"for_id,omitempty"`
	Text      string     `json:"text,omitempty"`
}

// MarshalEntries encodes entries as a JSON array of tagged objects
func MarshalEntries(entries []Entry) ([]byte, error) {
	wire := make([]wireEntry, 0, len(entries))
	for _, e := range entries {
		switch v := e.(type) {
		case AnnotationBlock:
			createdAt := v.CreatedAt
			wire = append(wire, wireEntry{
				Type:      EntryKindBlock,
				ID:        v.ID,
				Lines:     v.Lines,
				CreatedAt: &createdAt,
			})
		case Annotation:
			wire = append(wire, wireEntry{
				Type:  EntryKindAnnotation,
				ForID: v.ForID,
				Text:  v.Text,
			})
		default:
			return nil, goerr.New("unknown entry type", goerr.V("entry", e))
		}
	}

	data, err := json.Marshal(wire)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to marshal entries")
	}
	return data, nil
}

// UnmarshalEntries decodes data produced by MarshalEntries
func UnmarshalEntries(data []byte) ([]Entry, error) {
	var wire []wireEntry
	if err := json.Unmarshal(data, &wire); err != nil {
		return nil, goerr.Wrap(err, "failed to unmarshal entries")
	}

	entries := make([]Entry, 0, len(wire))
	for i, w := range wire {
		switch w.Type {
		case EntryKindBlock:
			b := AnnotationBlock{ID: w.ID, Lines: slices.Clone(w.Lines)}
			if w.CreatedAt != nil {
				b.CreatedAt = *w.CreatedAt
			}
			entries = append(entries, b)
		case EntryKindAnnotation:
			entries = append(entries, Annotation{ForID: w.ForID, Text: w.Text})
		default:
			return nil, goerr.New("unknown entry type", goerr.V("type", w.Type), goerr.V("index", i))
		}
	}
	return entries, nil
}
