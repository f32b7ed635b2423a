package xliff

import (
	"fmt"
	"strings"

	"github.com/beevik/etree"
)

// ExtractedSegment is one trans-unit lifted out of the document, ready
// to become a stored segment.
type ExtractedSegment struct {
	Index       int
	UnitID      string
	UnitState   *string
	SourceText  string
	Translation *string
	Status      string
}

// FileMetadata carries the file-level attributes of the document.
type FileMetadata struct {
	SourceLang string
	TargetLang string
	Original   string
	Datatype   string
}

// Warning is a non-fatal extraction or injection defect tied to one
// unit. Callers log them; they never abort the run.
type Warning struct {
	UnitID string
	Reason string
}

// Extract parses the document and returns its translation units in
// document order. Units missing an id or source text are skipped with a
// warning rather than failing the file.
func Extract(data []byte, d Dialect) ([]ExtractedSegment, FileMetadata, []Warning, error) {
	doc := etree.NewDocument()
	if err := doc.ReadFromBytes(data); err != nil {
		return nil, FileMetadata{}, nil, fmt.Errorf("parse interchange document: %w", err)
	}

	meta := fileMetadata(doc, d)

	var segments []ExtractedSegment
	var warnings []Warning
	index := 0
	for _, unit := range collectUnits(doc.Root(), d) {
		id := strings.TrimSpace(unit.SelectAttrValue("id", ""))
		if id == "" {
			warnings = append(warnings, Warning{Reason: "trans-unit without id skipped"})
			continue
		}

		source := childElement(unit, "source", d)
		sourceText := ""
		if source != nil {
			sourceText = joinedText(source)
		}
		if strings.TrimSpace(sourceText) == "" {
			warnings = append(warnings, Warning{UnitID: id, Reason: "trans-unit without source text skipped"})
			continue
		}

		var translation *string
		hasTarget := false
		state := ""
		if target := childElement(unit, "target", d); target != nil {
			text := joinedText(target)
			if strings.TrimSpace(text) != "" {
				translation = &text
				hasTarget = true
			}
			state = target.SelectAttrValue(d.stateAttr, "")
		}
		if state != "" && !knownState(state) {
			warnings = append(warnings, Warning{UnitID: id, Reason: fmt.Sprintf("unrecognized state %q treated as pending", state)})
		}

		seg := ExtractedSegment{
			Index:      index,
			UnitID:     id,
			SourceText: sourceText,
			Status:     string(StatusFromState(state, hasTarget)),
		}
		if state != "" {
			stored := state
			seg.UnitState = &stored
		}
		seg.Translation = translation
		segments = append(segments, seg)
		index++
	}

	return segments, meta, warnings, nil
}

func fileMetadata(doc *etree.Document, d Dialect) FileMetadata {
	meta := FileMetadata{}
	root := doc.Root()
	if root == nil {
		return meta
	}
	file := childElement(root, "file", d)
	if file == nil {
		// Some exports nest file under a wrapper; fall back to the first
		// file element anywhere.
		for _, el := range descendants(root, "file", d) {
			file = el
			break
		}
	}
	if file == nil {
		return meta
	}
	meta.SourceLang = file.SelectAttrValue("source-language", "")
	meta.TargetLang = file.SelectAttrValue("target-language", "")
	meta.Original = file.SelectAttrValue("original", "")
	meta.Datatype = file.SelectAttrValue("datatype", "")
	return meta
}

// collectUnits walks the tree and returns trans-units in document order.
func collectUnits(root *etree.Element, d Dialect) []*etree.Element {
	if root == nil {
		return nil
	}
	return descendants(root, "trans-unit", d)
}

func descendants(el *etree.Element, tag string, d Dialect) []*etree.Element {
	var out []*etree.Element
	for _, child := range el.ChildElements() {
		if child.Tag == tag && child.Space == d.unitSpace {
			out = append(out, child)
		}
		out = append(out, descendants(child, tag, d)...)
	}
	return out
}

func childElement(el *etree.Element, tag string, d Dialect) *etree.Element {
	for _, child := range el.ChildElements() {
		if child.Tag == tag && child.Space == d.unitSpace {
			return child
		}
	}
	return nil
}

// joinedText concatenates every text node under the element, flattening
// inline markup the way a translator reads it.
func joinedText(el *etree.Element) string {
	var b strings.Builder
	var walk func(e *etree.Element)
	walk = func(e *etree.Element) {
		for _, child := range e.Child {
			switch node := child.(type) {
			case *etree.CharData:
				b.WriteString(node.Data)
			case *etree.Element:
				walk(node)
			}
		}
	}
	walk(el)
	return b.String()
}
