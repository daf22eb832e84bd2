package extract

import (
	"strings"

	"github.com/laguileracl/leychile-epub/pkg/norma"
)

// SegmentPolicy selects how article bodies become content items. Some
// corpora (instructivos) carry heavily enumerated articles worth splitting;
// others read better as plain paragraphs.
type SegmentPolicy int

const (
	// PolicyStructured splits the body into paragraphs, incisos and lettered
	// items on line-initial markers.
	PolicyStructured SegmentPolicy = iota

	// PolicySingleParagraph keeps the whole body as one paragraph item.
	PolicySingleParagraph
)

// Segmenter turns the buffered body lines of an article into ordered content
// items. Only line-initial markers open items; a "1)" in running prose never
// splits.
type Segmenter struct {
	policy SegmentPolicy
}

// NewSegmenter returns a segmenter with the given policy.
func NewSegmenter(policy SegmentPolicy) *Segmenter {
	return &Segmenter{policy: policy}
}

// Segment consumes the classified body lines of one article. Consecutive
// content lines accumulate in a buffer that flushes into the open item (or a
// plain paragraph) when a marker or blank line arrives.
func (s *Segmenter) Segment(body []Line) []norma.ContentItem {
	if s.policy == PolicySingleParagraph {
		text := joinBody(body)
		if text == "" {
			return nil
		}
		return []norma.ContentItem{{Kind: norma.ItemParagraph, Text: text}}
	}

	var items []norma.ContentItem
	var buffer []string

	// current is the open marker item; nil means the buffer belongs to a
	// plain paragraph.
	var current *norma.ContentItem

	flush := func() {
		text := strings.Join(buffer, " ")
		buffer = buffer[:0]
		if current != nil {
			current.Text = text
			items = append(items, *current)
			current = nil
			return
		}
		if text != "" {
			items = append(items, norma.ContentItem{Kind: norma.ItemParagraph, Text: text})
		}
	}

	for _, line := range body {
		switch line.Class {
		case LineMarker:
			flush()
			current = &norma.ContentItem{Kind: line.ItemKind, Number: line.MarkerNumber}
			if line.Rest != "" {
				buffer = append(buffer, line.Rest)
			}

		case LineBlank:
			flush()

		default:
			buffer = append(buffer, line.Text)
		}
	}
	flush()

	return items
}

// joinBody concatenates all non-blank body text with single spaces.
func joinBody(body []Line) string {
	var parts []string
	for _, line := range body {
		if line.Class == LineBlank || line.Text == "" {
			continue
		}
		parts = append(parts, line.Text)
	}
	return strings.Join(parts, " ")
}
