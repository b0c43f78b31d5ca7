package note

import (
	"strings"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/lectern/pkg/model"
)

// ErrParseFailure is returned when a response lacks a section or a section
// body is empty. No partial Note is returned together with it.
var ErrParseFailure = goerr.New("failed to parse note response")

// Section is one of the six parts of a note response
type Section int

const (
	SectionTopic Section = iota
	SectionKeyConcepts
	SectionBulletNotes
	SectionDefinitions
	SectionQuestions
	SectionSummary

	numSections
)

var sectionHeaders = [numSections]string{
	SectionTopic:       "Lecture Topic",
	SectionKeyConcepts: "Key Concepts",
	SectionBulletNotes: "Bullet Notes",
	SectionDefinitions: "Important Definitions",
	SectionQuestions:   "Questions to Explore",
	SectionSummary:     "Summary",
}

var sectionNames = [numSections]string{
	SectionTopic:       "topic",
	SectionKeyConcepts: "key_concepts",
	SectionBulletNotes: "bullet_notes",
	SectionDefinitions: "definitions",
	SectionQuestions:   "questions",
	SectionSummary:     "summary",
}

// Header returns the anchor text, including the trailing colon
func (s Section) Header() string {
	if s < 0 || s >= numSections {
		return ""
	}
	return sectionHeaders[s] + ":"
}

func (s Section) String() string {
	if s < 0 || s >= numSections {
		return "unknown"
	}
	return sectionNames[s]
}

// Sections returns all sections in response order
func Sections() []Section {
	sections := make([]Section, numSections)
	for i := range sections {
		sections[i] = Section(i)
	}
	return sections
}

const noSection Section = -1

var (
	// Stripped from the start of a list item
	listMarkers = []string{"- ", "-", "* ", "•", "→", "❓"}
	// Also separate items inside a single line
	inlineMarkers = []string{"•", "→", "❓"}
)

// Parse converts a note response into a Note.
//
// A section starts at a line holding its header, optionally decorated with
// markdown ("## Summary:", "**Summary:**") and optionally followed by inline
// content. Headers are recognized only in section order, so a body line that
// happens to start with a header name stays in the body. Blank lines right
// after a header are skipped, then the body runs until the next blank line or
// the next section's header. The summary body runs to the end of text.
func Parse(raw string) (*model.Note, error) {
	bodies := splitSections(raw)

	for _, sec := range Sections() {
		if len(bodies[sec]) == 0 {
			return nil, goerr.Wrap(ErrParseFailure, "section is missing or empty",
				goerr.V("section", sec.String()))
		}
	}

	n := &model.Note{
		Topic:       strings.TrimSpace(bodies[SectionTopic][0]),
		KeyConcepts: listItems(bodies[SectionKeyConcepts]),
		BulletNotes: listItems(bodies[SectionBulletNotes]),
		Questions:   listItems(bodies[SectionQuestions]),
		Summary:     strings.TrimSpace(strings.Join(bodies[SectionSummary], "\n")),
	}
	for _, item := range listItems(bodies[SectionDefinitions]) {
		term, def, _ := strings.Cut(item, ":")
		n.Definitions = append(n.Definitions, model.Definition{
			Term: strings.TrimSpace(strings.Trim(strings.TrimSpace(term), "*")),
			Def:  strings.TrimSpace(def),
		})
	}

	lists := []struct {
		section Section
		count   int
	}{
		{SectionKeyConcepts, len(n.KeyConcepts)},
		{SectionBulletNotes, len(n.BulletNotes)},
		{SectionDefinitions, len(n.Definitions)},
		{SectionQuestions, len(n.Questions)},
	}
	for _, l := range lists {
		if l.count == 0 {
			return nil, goerr.Wrap(ErrParseFailure, "section has no items",
				goerr.V("section", l.section.String()))
		}
	}
	if n.Topic == "" || n.Summary == "" {
		return nil, goerr.Wrap(ErrParseFailure, "topic or summary is empty")
	}

	return n, nil
}

func splitSections(raw string) [numSections][]string {
	var (
		bodies [numSections][]string
		next   = SectionTopic
		cur    = noSection
	)

	raw = strings.ReplaceAll(raw, "\r\n", "\n")
	for _, line := range strings.Split(raw, "\n") {
		if sec, inline, ok := matchHeader(line); ok && sec == next {
			next++
			cur = sec
			if inline != "" {
				bodies[sec] = append(bodies[sec], inline)
			}
			continue
		}

		if cur == noSection {
			continue
		}

		if strings.TrimSpace(line) == "" {
			switch {
			case len(bodies[cur]) == 0:
				// leading blank lines
			case cur == SectionSummary:
				bodies[cur] = append(bodies[cur], "")
			default:
				cur = noSection
			}
			continue
		}
		bodies[cur] = append(bodies[cur], line)
	}

	return bodies
}

func matchHeader(line string) (Section, string, bool) {
	s := strings.TrimSpace(line)
	s = strings.TrimSpace(strings.TrimLeft(s, "#"))
	s = trimEmphasis(s)

	for _, sec := range Sections() {
		name := sectionHeaders[sec]
		if len(s) < len(name) || !strings.EqualFold(s[:len(name)], name) {
			continue
		}

		rest := trimEmphasis(s[len(name):])
		rest, ok := strings.CutPrefix(rest, ":")
		if !ok {
			continue
		}
		return sec, strings.TrimSpace(trimEmphasis(rest)), true
	}
	return noSection, "", false
}

func trimEmphasis(s string) string {
	for _, mark := range []string{"**", "__"} {
		s = strings.TrimPrefix(s, mark)
		s = strings.TrimSuffix(s, mark)
	}
	return s
}

func listItems(lines []string) []string {
	var items []string
	for _, line := range lines {
		for _, part := range splitInline(line) {
			item := strings.TrimSpace(trimMarker(strings.TrimSpace(part)))
			if item != "" {
				items = append(items, item)
			}
		}
	}
	return items
}

func splitInline(line string) []string {
	parts := []string{line}
	for _, marker := range inlineMarkers {
		var next []string
		for _, p := range parts {
			next = append(next, strings.Split(p, marker)...)
		}
		parts = next
	}
	return parts
}

func trimMarker(s string) string {
	for _, marker := range listMarkers {
		if rest, ok := strings.CutPrefix(s, marker); ok {
			return rest
		}
	}
	return s
}
