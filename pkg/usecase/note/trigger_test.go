package note_test

import (
	"context"
	"testing"
	"time"

	"github.com/m-mizutani/gt"
	"github.com/m-mizutani/lectern/pkg/usecase/note"
)

func TestTriggerBatchThenStop(t *testing.T) {
	tr := note.NewTrigger()

	var regenerations []int
	for total := 1; total <= 8; total++ {
		if tk, ok := tr.Observe(total); ok {
			regenerations = append(regenerations, tk.UpTo)
			tr.Done(tk)
		}
	}
	gt.Equal(t, regenerations, []int{8})

	for total := 9; total <= 11; total++ {
		_, ok := tr.Observe(total)
		gt.False(t, ok)
	}

	action, tk := tr.Stop(11, true)
	gt.Equal(t, action, note.StopRegenerate)
	gt.Equal(t, tk.UpTo, 11)
	gt.Equal(t, tr.Processed(), 11)
	tr.Done(tk)
}

func TestTriggerStopWithoutNewLines(t *testing.T) {
	tr := note.NewTrigger()
	tk, ok := tr.Observe(8)
	gt.True(t, ok)
	tr.Done(tk)

	action, _ := tr.Stop(8, true)
	gt.Equal(t, action, note.StopFinalize)

	action, _ = tr.Stop(8, false)
	gt.Equal(t, action, note.StopNone)
}

func TestTriggerSuppressesWhileInFlight(t *testing.T) {
	tr := note.NewTrigger()

	first, ok := tr.Observe(8)
	gt.True(t, ok)
	gt.True(t, tr.InFlight())

	// Suppressed, and the processed count is not advanced
	_, ok = tr.Observe(16)
	gt.False(t, ok)
	gt.Equal(t, tr.Processed(), 8)

	tr.Done(first)
	gt.False(t, tr.InFlight())

	// The next check catches the accumulated lines
	second, ok := tr.Observe(17)
	gt.True(t, ok)
	gt.Equal(t, second.UpTo, 17)
}

func TestTriggerWait(t *testing.T) {
	tr := note.NewTrigger()
	gt.NoError(t, tr.Wait(context.Background()))

	tk, _ := tr.Observe(8)

	short, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	gt.Error(t, tr.Wait(short))

	go func() {
		time.Sleep(5 * time.Millisecond)
		tr.Done(tk)
	}()
	gt.NoError(t, tr.Wait(context.Background()))
}

func TestTriggerReset(t *testing.T) {
	tr := note.NewTrigger()
	stale, ok := tr.Observe(10)
	gt.True(t, ok)

	tr.Reset()
	gt.Equal(t, tr.Processed(), 0)
	gt.False(t, tr.InFlight())

	fresh, ok := tr.Observe(8)
	gt.True(t, ok)

	// A ticket from before the reset does not release the new slot
	tr.Done(stale)
	gt.True(t, tr.InFlight())

	tr.Done(fresh)
	gt.False(t, tr.InFlight())
}

func TestTriggerStopEmpty(t *testing.T) {
	tr := note.NewTrigger()
	action, _ := tr.Stop(0, false)
	gt.Equal(t, action, note.StopNone)
	gt.Equal(t, action.String(), "none")
}
