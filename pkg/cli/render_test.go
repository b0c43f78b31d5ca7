package cli

import (
	"bytes"
	"testing"

	"github.com/m-mizutani/gt"
	"github.com/m-mizutani/lectern/pkg/model"
	"github.com/m-mizutani/lectern/pkg/usecase/annotate"
	"github.com/m-mizutani/lectern/pkg/usecase/lecture"
)

func TestRenderEntries(t *testing.T) {
	var buf bytes.Buffer
	renderEntries(&buf, []model.Entry{
		model.AnnotationBlock{ID: 1, Lines: []model.Line{{Text: "stacks"}, {Text: "are LIFO"}}},
		model.Annotation{ForID: 1, Text: ""},
	})
	gt.S(t, buf.String()).Contains("[1] stacks are LIFO")
	gt.S(t, buf.String()).Contains("↳ ...")

	buf.Reset()
	renderEntries(&buf, nil)
	gt.S(t, buf.String()).Contains("no blocks yet")
}

func TestRenderNote(t *testing.T) {
	var buf bytes.Buffer
	renderNote(&buf, &model.Note{
		Topic:       "Queues",
		KeyConcepts: []string{"FIFO"},
		BulletNotes: []string{"enqueue at tail"},
		Definitions: []model.Definition{{Term: "deque", Def: "double ended queue"}, {Term: "ring"}},
		Questions:   []string{"when to use a deque?"},
		Summary:     "Queues preserve order.",
	})

	out := buf.String()
	gt.S(t, out).Contains("Queues")
	gt.S(t, out).Contains("→ deque: double ended queue")
	gt.S(t, out).Contains("→ ring\n")
	gt.S(t, out).Contains("❓ when to use a deque?")
	gt.S(t, out).Contains("Queues preserve order.")
}

func TestRenderStatus(t *testing.T) {
	var buf bytes.Buffer
	renderStatus(&buf, lecture.Status{
		Epoch:         2,
		Active:        true,
		Lines:         9,
		Blocks:        3,
		Queued:        1,
		Worker:        annotate.StateDraining,
		DrainingBlock: 2,
		NoteProcessed: 8,
		Unsaved:       true,
	})

	out := buf.String()
	gt.S(t, out).Contains("#2 (recording)")
	gt.S(t, out).Contains("draining block 2")
	gt.S(t, out).Contains("8 lines processed")
	gt.S(t, out).Contains("Unsaved")
}
