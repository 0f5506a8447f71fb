// Package preserve keeps hand-edited regions of a generated nginx
// configuration file across regenerations.
//
// A region starts at a line containing "ngxconf:ignored" and ends at the
// next marker. Everything between "ngxconf:managed" and the next marker is
// regenerated. "ngxconf:end" closes the last region.
package preserve

import (
	"strings"
)

// Marker texts, matched anywhere in a line.
const (
	MarkerManaged = "ngxconf:managed"
	MarkerIgnored = "ngxconf:ignored"
	MarkerEnd     = "ngxconf:end"
)

// CommentPrefix starts generated marker lines.
const CommentPrefix = "#"

// BlockType indicates the type of a block in a document.
type BlockType int

const (
	// BlockManaged indicates generated content.
	BlockManaged BlockType = iota
	// BlockIgnored indicates content kept from the current file.
	BlockIgnored
	// blockEnd is used internally when generating end markers.
	blockEnd BlockType = -1
)

// Block represents a section of the file.
type Block struct {
	Type       BlockType
	Lines      []string
	MarkerLine string // The original marker line (preserved for output)
}

// Document holds the blocks of a file.
type Document struct {
	Blocks        []Block
	TrailingLines []string // Lines after the last end marker
}

// Parse splits text into blocks. Content before the first marker forms an
// implicit ignored block without marker line.
//
// NOTE: Marker detection is substring-based. A directive value containing
// "ngxconf:ignored" is treated as a marker.
func Parse(text string) *Document {
	doc := &Document{}
	if text == "" {
		return doc
	}

	var current *Block
	afterEnd := false

	for _, line := range strings.Split(text, "\n") {
		switch detectMarker(line) {
		case BlockManaged, BlockIgnored:
			if current != nil {
				doc.Blocks = append(doc.Blocks, *current)
			}
			current = &Block{Type: detectMarker(line), MarkerLine: line}
			afterEnd = false

		case blockEnd:
			if current != nil {
				doc.Blocks = append(doc.Blocks, *current)
				current = nil
			}
			afterEnd = true

		default:
			switch {
			case afterEnd:
				doc.TrailingLines = append(doc.TrailingLines, line)
			case current != nil:
				current.Lines = append(current.Lines, line)
			default:
				current = &Block{Type: BlockIgnored, Lines: []string{line}}
			}
		}
	}

	if current != nil {
		doc.Blocks = append(doc.Blocks, *current)
	}
	return doc
}

// noMarker is returned by detectMarker for content lines.
const noMarker BlockType = -2

// detectMarker returns the type of the marker in line, or noMarker.
func detectMarker(line string) BlockType {
	switch {
	case strings.Contains(line, MarkerManaged):
		return BlockManaged
	case strings.Contains(line, MarkerIgnored):
		return BlockIgnored
	case strings.Contains(line, MarkerEnd):
		return blockEnd
	default:
		return noMarker
	}
}

// HasMarkers reports whether any block starts with a marker line.
func (d *Document) HasMarkers() bool {
	for _, block := range d.Blocks {
		if block.MarkerLine != "" {
			return true
		}
	}
	return false
}

// String writes the document back to text with a trailing newline. Blocks
// without marker line are written without one; an end marker follows the
// last block when any marker is present.
func (d *Document) String() string {
	var lines []string
	for _, block := range d.Blocks {
		if block.MarkerLine != "" {
			lines = append(lines, block.MarkerLine)
		}
		lines = append(lines, block.Lines...)
	}
	if d.HasMarkers() {
		lines = append(lines, marker(blockEnd))
	}
	lines = append(lines, d.TrailingLines...)

	// Remove empty trailing element caused by splitting input that ended with \n
	if len(lines) > 0 && lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}

	result := strings.Join(lines, "\n")
	if result != "" {
		result += "\n"
	}
	return result
}

// marker creates a marker line.
func marker(t BlockType) string {
	switch t {
	case BlockManaged:
		return CommentPrefix + " " + MarkerManaged
	case BlockIgnored:
		return CommentPrefix + " " + MarkerIgnored
	default:
		return CommentPrefix + " " + MarkerEnd
	}
}

// Merge combines freshly generated blocks with the current file.
//   - Managed blocks: content from generated
//   - Ignored blocks: content from current (if available), otherwise from generated
//
// Ignored blocks are matched by index (1st ignored in generated with 1st
// ignored in current).
func Merge(generated, current *Document) *Document {
	if generated == nil {
		return current
	}

	result := &Document{}
	currentIgnored := ignoredBlocks(current)

	ignoredIndex := 0
	for _, block := range generated.Blocks {
		out := Block{Type: block.Type, MarkerLine: block.MarkerLine, Lines: block.Lines}
		if block.Type == BlockIgnored && ignoredIndex < len(currentIgnored) {
			out.Lines = currentIgnored[ignoredIndex].Lines
			ignoredIndex++
		}
		result.Blocks = append(result.Blocks, out)
	}
	return result
}

// ignoredBlocks returns the ignored blocks of current. If current has no
// markers, all its content is combined into one block.
func ignoredBlocks(current *Document) []Block {
	if current == nil || len(current.Blocks) == 0 {
		return nil
	}

	if !current.HasMarkers() {
		var all []string
		for _, block := range current.Blocks {
			all = append(all, block.Lines...)
		}
		return []Block{{Type: BlockIgnored, Lines: all}}
	}

	var ignored []Block
	for _, block := range current.Blocks {
		if block.Type == BlockIgnored && block.MarkerLine != "" {
			ignored = append(ignored, block)
		}
	}
	return ignored
}

// Apply returns the text to write over a file holding current when the new
// content is generated.
//
// If generated has markers, its ignored regions take their content from
// current. Otherwise generated becomes one managed region followed by the
// marked ignored regions of current; when current has none, generated is
// returned unchanged.
func Apply(generated, current string) string {
	gen := Parse(generated)
	cur := Parse(current)

	if gen.HasMarkers() {
		return Merge(gen, cur).String()
	}

	if !cur.HasMarkers() {
		return generated
	}
	var kept []Block
	for _, block := range cur.Blocks {
		if block.Type == BlockIgnored && block.MarkerLine != "" {
			kept = append(kept, block)
		}
	}
	if len(kept) == 0 {
		return generated
	}

	lines := strings.Split(strings.TrimRight(generated, "\n"), "\n")
	result := &Document{Blocks: []Block{{Type: BlockManaged, MarkerLine: marker(BlockManaged), Lines: lines}}}
	result.Blocks = append(result.Blocks, kept...)
	return result.String()
}
