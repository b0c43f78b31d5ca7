package cli

import (
	"bytes"
	"context"
	"iter"
	"sync"
	"testing"
	"time"

	"github.com/m-mizutani/gt"
	"github.com/m-mizutani/lectern/pkg/repository"
	"github.com/m-mizutani/lectern/pkg/usecase/annotate"
	"github.com/m-mizutani/lectern/pkg/usecase/lecture"
	"github.com/m-mizutani/lectern/pkg/usecase/note"
)

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

type echoGemini struct{}

func (echoGemini) GenerateStream(ctx context.Context, instruction, content string) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		if instruction == note.DefaultPrompt {
			yield("Lecture Topic:\nConsoles\n\nKey Concepts:\n- commands\n\nBullet Notes:\n- say injects lines\n\nImportant Definitions:\n→ REPL: read eval print loop\n\nQuestions to Explore:\n❓ why?\n\nSummary:\n"+content, nil)
			return
		}
		yield("explained: "+content, nil)
	}
}

type idleSource struct{}

func (idleSource) Start(ctx context.Context) error          { return nil }
func (idleSource) Stop(ctx context.Context) error           { return nil }
func (idleSource) Poll(ctx context.Context) (string, error) { return "", nil }

func newTestConsole(t *testing.T) (*console, *syncBuffer, repository.Repository) {
	out := &syncBuffer{}
	repo := repository.NewMemory()
	rec := lecture.New(echoGemini{}, idleSource{}, repo,
		lecture.WithUserID("student"),
		lecture.WithPollInterval(time.Hour),
		lecture.WithAnnotateOptions(annotate.WithOnComplete(printAnnotation(out))),
	)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go func() { _ = rec.Run(ctx) }()

	return &console{rec: rec, w: out}, out, repo
}

func TestConsoleRecordingFlow(t *testing.T) {
	ctx := context.Background()
	con, out, repo := newTestConsole(t)

	gt.False(t, con.exec(ctx, "start"))
	gt.S(t, out.String()).Contains("recording (session #1)")

	for _, text := range []string{"one", "two", "three", "four", "five"} {
		gt.False(t, con.exec(ctx, "say "+text))
	}

	gt.False(t, con.exec(ctx, "stop"))
	output := out.String()
	gt.S(t, output).Contains("[1] one two three four")
	gt.S(t, output).Contains("↳ explained: one two three four")
	gt.S(t, output).Contains("stopped (note: regenerate)")
	gt.S(t, output).Contains("💾 conversation")
	gt.S(t, output).Contains("💾 note")

	notes, err := repo.ListNotes(ctx, "student", 10)
	gt.NoError(t, err)
	gt.A(t, notes).Length(1)
	gt.Equal(t, notes[0].Note.Summary, "one two three four five")

	gt.False(t, con.exec(ctx, "note"))
	gt.S(t, out.String()).Contains("Consoles")
}

func TestConsoleCommands(t *testing.T) {
	ctx := context.Background()
	con, out, _ := newTestConsole(t)

	gt.False(t, con.exec(ctx, "say hello"))
	gt.S(t, out.String()).Contains("not recording")

	gt.False(t, con.exec(ctx, "stop"))
	gt.S(t, out.String()).Contains("recording is not active")

	gt.False(t, con.exec(ctx, "save"))
	gt.S(t, out.String()).Contains("no stopped session to save")

	gt.False(t, con.exec(ctx, "dance"))
	gt.S(t, out.String()).Contains("unknown command: dance")

	gt.False(t, con.exec(ctx, "help"))
	gt.S(t, out.String()).Contains("say <text>")

	gt.False(t, con.exec(ctx, "  "))
	gt.True(t, con.exec(ctx, "exit"))
	gt.True(t, con.exec(ctx, "quit"))
}
