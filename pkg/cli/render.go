package cli

import (
	"fmt"
	"io"
	"time"

	"github.com/m-mizutani/lectern/pkg/model"
	"github.com/m-mizutani/lectern/pkg/usecase/lecture"
)

func renderEntries(w io.Writer, entries []model.Entry) {
	if len(entries) == 0 {
		fmt.Fprintf(w, "(no blocks yet)\n")
		return
	}

	for _, e := range entries {
		switch v := e.(type) {
		case model.AnnotationBlock:
			fmt.Fprintf(w, "\n[%d] %s\n", v.ID, v.Text())
		case model.Annotation:
			text := v.Text
			if text == "" {
				text = "..."
			}
			fmt.Fprintf(w, "    ↳ %s\n", text)
		}
	}
}

func renderNote(w io.Writer, n *model.Note) {
	if n == nil {
		fmt.Fprintf(w, "(no note yet)\n")
		return
	}

	fmt.Fprintf(w, "📘 %s\n\n", n.Topic)

	fmt.Fprintf(w, "Key Concepts:\n")
	for _, c := range n.KeyConcepts {
		fmt.Fprintf(w, "  💡 %s\n", c)
	}

	fmt.Fprintf(w, "\nBullet Notes:\n")
	for _, b := range n.BulletNotes {
		fmt.Fprintf(w, "  - %s\n", b)
	}

	fmt.Fprintf(w, "\nImportant Definitions:\n")
	for _, d := range n.Definitions {
		if d.Def == "" {
			fmt.Fprintf(w, "  → %s\n", d.Term)
			continue
		}
		fmt.Fprintf(w, "  → %s: %s\n", d.Term, d.Def)
	}

	fmt.Fprintf(w, "\nQuestions to Explore:\n")
	for _, q := range n.Questions {
		fmt.Fprintf(w, "  ❓ %s\n", q)
	}

	fmt.Fprintf(w, "\nSummary:\n  %s\n", n.Summary)
}

func renderStatus(w io.Writer, s lecture.Status) {
	state := "stopped"
	if s.Active {
		state = "recording"
	}
	fmt.Fprintf(w, "Session:  #%d (%s)\n", s.Epoch, state)
	if !s.StartedAt.IsZero() {
		fmt.Fprintf(w, "Started:  %s\n", s.StartedAt.Format(time.DateTime))
	}
	fmt.Fprintf(w, "Lines:    %d\n", s.Lines)
	fmt.Fprintf(w, "Blocks:   %d (%d queued)\n", s.Blocks, s.Queued)
	if s.DrainingBlock > 0 {
		fmt.Fprintf(w, "Worker:   %s block %d\n", s.Worker, s.DrainingBlock)
	} else {
		fmt.Fprintf(w, "Worker:   %s\n", s.Worker)
	}
	fmt.Fprintf(w, "Note:     %d lines processed, available=%t, generating=%t\n",
		s.NoteProcessed, s.HasNote, s.NoteInFlight)
	if s.Unsaved {
		fmt.Fprintf(w, "Unsaved:  yes (run 'save' to retry)\n")
	}
}
