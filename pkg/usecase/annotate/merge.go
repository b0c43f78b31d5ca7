package annotate

import (
	"github.com/m-mizutani/lectern/pkg/model"
)

// Merge publishes text as the annotation of blockID: the Annotation right
// after the block is replaced, or inserted when absent. It returns false
// when the block is not in entries. entries is never modified.
func Merge(entries []model.Entry, blockID int64, text string) ([]model.Entry, bool) {
	idx := -1
	for i, e := range entries {
		switch v := e.(type) {
		case model.AnnotationBlock:
			if v.ID == blockID {
				idx = i
			}
		case model.Annotation:
		}
		if idx >= 0 {
			break
		}
	}
	if idx < 0 {
		return entries, false
	}

	rest := entries[idx+1:]
	if len(rest) > 0 {
		switch v := rest[0].(type) {
		case model.Annotation:
			if v.ForID == blockID {
				rest = rest[1:]
			}
		case model.AnnotationBlock:
		}
	}

	next := make([]model.Entry, 0, idx+2+len(rest))
	next = append(next, entries[:idx+1]...)
	next = append(next, model.Annotation{ForID: blockID, Text: text})
	next = append(next, rest...)
	return next, true
}
