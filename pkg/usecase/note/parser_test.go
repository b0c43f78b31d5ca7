package note_test

import (
	"errors"
	"strings"
	"testing"

	"github.com/m-mizutani/gt"
	"github.com/m-mizutani/lectern/pkg/model"
	"github.com/m-mizutani/lectern/pkg/usecase/note"
)

const wellFormed = "Lecture Topic:\nX\n\nKey Concepts:\n- a\n- b\n\nBullet Notes:\n- c\n\nImportant Definitions:\n→ t1: d1\n\nQuestions to Explore:\n❓ q1\n\nSummary:\nS"

func TestParseWellFormed(t *testing.T) {
	n, err := note.Parse(wellFormed)
	gt.NoError(t, err)
	gt.Equal(t, *n, model.Note{
		Topic:       "X",
		KeyConcepts: []string{"a", "b"},
		BulletNotes: []string{"c"},
		Definitions: []model.Definition{{Term: "t1", Def: "d1"}},
		Questions:   []string{"q1"},
		Summary:     "S",
	})
}

func TestParseMissingSection(t *testing.T) {
	for _, sec := range note.Sections() {
		t.Run(sec.String(), func(t *testing.T) {
			var kept []string
			for _, part := range strings.Split(wellFormed, "\n\n") {
				if !strings.HasPrefix(part, sec.Header()) {
					kept = append(kept, part)
				}
			}
			gt.A(t, kept).Length(5)

			n, err := note.Parse(strings.Join(kept, "\n\n"))
			gt.Error(t, err)
			gt.True(t, errors.Is(err, note.ErrParseFailure))
			gt.True(t, n == nil)
		})
	}
}

func TestParseEmptySection(t *testing.T) {
	raw := strings.Replace(wellFormed, "Bullet Notes:\n- c", "Bullet Notes:\n", 1)
	n, err := note.Parse(raw)
	gt.True(t, errors.Is(err, note.ErrParseFailure))
	gt.True(t, n == nil)

	// Only markers, no item text
	raw = strings.Replace(wellFormed, "❓ q1", "❓", 1)
	_, err = note.Parse(raw)
	gt.True(t, errors.Is(err, note.ErrParseFailure))
}

func TestParseMarkdownHeaders(t *testing.T) {
	raw := `## Lecture Topic:
**Photosynthesis**

**Key Concepts:**
- Chlorophyll
- Light reactions

### Bullet Notes:
* Plants convert light to chemical energy
• Oxygen is released

**Important Definitions:**
→ **Stroma**: fluid inside the chloroplast
→ ATP: energy carrier: used by cells

__Questions to Explore:__
❓ Why are leaves green? ❓ What limits the rate?

**Summary:** Plants capture light.
It powers sugar production.`

	n, err := note.Parse(raw)
	gt.NoError(t, err)
	gt.Equal(t, n.Topic, "**Photosynthesis**")
	gt.Equal(t, n.KeyConcepts, []string{"Chlorophyll", "Light reactions"})
	gt.Equal(t, n.BulletNotes, []string{"Plants convert light to chemical energy", "Oxygen is released"})
	gt.Equal(t, n.Definitions, []model.Definition{
		{Term: "Stroma", Def: "fluid inside the chloroplast"},
		{Term: "ATP", Def: "energy carrier: used by cells"},
	})
	gt.Equal(t, n.Questions, []string{"Why are leaves green?", "What limits the rate?"})
	gt.Equal(t, n.Summary, "Plants capture light.\nIt powers sugar production.")
}

func TestParseInlineTopicAndBlankLines(t *testing.T) {
	raw := "Lecture Topic: Graph theory\n\nKey Concepts:\n\n- vertices\n- well-known edges\n\nBullet Notes:\n- paths\n\nImportant Definitions:\nDegree\n\nQuestions to Explore:\n❓ cycles?\n\nSummary:\n\nFirst.\n\nSecond."

	n, err := note.Parse(raw)
	gt.NoError(t, err)
	gt.Equal(t, n.Topic, "Graph theory")
	gt.Equal(t, n.KeyConcepts, []string{"vertices", "well-known edges"})
	gt.Equal(t, n.Definitions, []model.Definition{{Term: "Degree", Def: ""}})
	gt.Equal(t, n.Summary, "First.\n\nSecond.")
}

func TestParseSummaryRunsToEnd(t *testing.T) {
	raw := strings.Replace(wellFormed, "Summary:\nS", "Summary:\nFirst part.\nKey Concepts: were reviewed again.\nEnd.", 1)
	n, err := note.Parse(raw)
	gt.NoError(t, err)
	gt.Equal(t, n.KeyConcepts, []string{"a", "b"})
	gt.Equal(t, n.Summary, "First part.\nKey Concepts: were reviewed again.\nEnd.")

	raw = wellFormed + "\n\nKey Concepts:\n- duplicated"
	n, err = note.Parse(raw)
	gt.NoError(t, err)
	gt.Equal(t, n.KeyConcepts, []string{"a", "b"})
	gt.Equal(t, n.Summary, "S\n\nKey Concepts:\n- duplicated")
}

func TestParseHeaderLikeBodyLine(t *testing.T) {
	raw := strings.Replace(wellFormed, "Bullet Notes:\n- c", "Bullet Notes:\n- c\nSummary: the lecturer recapped last week", 1)
	n, err := note.Parse(raw)
	gt.NoError(t, err)
	gt.Equal(t, n.BulletNotes, []string{"c", "Summary: the lecturer recapped last week"})
	gt.Equal(t, n.Summary, "S")
}

func TestParseOutOfOrderSection(t *testing.T) {
	// Headers are only recognized in order, so a Summary placed before
	// Questions is never found
	raw := "Lecture Topic:\nX\n\nKey Concepts:\n- a\n\nBullet Notes:\n- c\n\nImportant Definitions:\n→ t1: d1\n\nSummary:\nS\n\nQuestions to Explore:\n❓ q1"
	n, err := note.Parse(raw)
	gt.True(t, errors.Is(err, note.ErrParseFailure))
	gt.True(t, n == nil)
}

func TestParseCRLF(t *testing.T) {
	n, err := note.Parse(strings.ReplaceAll(wellFormed, "\n", "\r\n"))
	gt.NoError(t, err)
	gt.Equal(t, n.KeyConcepts, []string{"a", "b"})
}

func TestSectionHeader(t *testing.T) {
	gt.Equal(t, note.SectionDefinitions.Header(), "Important Definitions:")
	gt.Equal(t, note.SectionSummary.String(), "summary")
	gt.A(t, note.Sections()).Length(6)
}
