package annotate

import (
	"slices"
	"time"

	"github.com/m-mizutani/lectern/pkg/model"
)

// Capacity is the number of lines in a completed AnnotationBlock
const Capacity = 4

// Builder groups incoming lines into AnnotationBlocks. A Builder belongs to
// one session; block IDs start at 1 and are never reused by it.
type Builder struct {
	lastID int64
	now    func() time.Time
}

func NewBuilder() *Builder {
	return &Builder{now: time.Now}
}

// Ingest attaches line to the open block at the tail of seq, or opens a new
// block when the tail is absent, an Annotation, or a full block. It returns
// the block and true when this line completed it. Nothing is ingested when
// epoch is stale.
func (b *Builder) Ingest(seq *model.BlockSequence, epoch uint64, line model.Line) (model.AnnotationBlock, bool) {
	var (
		completed model.AnnotationBlock
		done      bool
	)

	seq.Update(epoch, func(entries []model.Entry) ([]model.Entry, bool) {
		open, ok := openBlock(entries)
		if !ok {
			b.lastID++
			blk := model.AnnotationBlock{
				ID:        b.lastID,
				Lines:     []model.Line{line},
				CreatedAt: b.now(),
			}
			completed, done = blk, len(blk.Lines) == Capacity
			return append(slices.Clip(entries), blk), true
		}

		// Copy the lines so earlier snapshots keep their length and content
		open.Lines = append(slices.Clone(open.Lines), line)
		next := slices.Clone(entries)
		next[len(next)-1] = open
		completed, done = open, len(open.Lines) == Capacity
		return next, true
	})

	return completed, done
}

// openBlock returns the tail block when it can still accept lines
func openBlock(entries []model.Entry) (model.AnnotationBlock, bool) {
	if len(entries) == 0 {
		return model.AnnotationBlock{}, false
	}

	switch last := entries[len(entries)-1].(type) {
	case model.AnnotationBlock:
		if len(last.Lines) >= Capacity {
			return model.AnnotationBlock{}, false
		}
		return last, true
	case model.Annotation:
		return model.AnnotationBlock{}, false
	default:
		return model.AnnotationBlock{}, false
	}
}
