package xliff

import (
	"fmt"
	"strings"

	"github.com/beevik/etree"

	"horse.fit/verso/internal/db"
)

// Inject writes segment translations and derived state attributes back
// into the original document bytes. Segments whose unit id no longer
// exists are skipped with a warning; partial injection beats aborting
// the export. Running inject twice with the same inputs produces the
// same bytes.
func Inject(original []byte, segments []db.Segment, d Dialect) ([]byte, []Warning, error) {
	doc := etree.NewDocument()
	if err := doc.ReadFromBytes(original); err != nil {
		return nil, nil, fmt.Errorf("parse interchange document: %w", err)
	}

	units := make(map[string]*etree.Element)
	for _, unit := range collectUnits(doc.Root(), d) {
		id := strings.TrimSpace(unit.SelectAttrValue("id", ""))
		if id == "" {
			continue
		}
		if _, seen := units[id]; !seen {
			units[id] = unit
		}
	}

	var warnings []Warning
	for _, seg := range segments {
		unit, ok := units[seg.UnitID]
		if !ok {
			warnings = append(warnings, Warning{UnitID: seg.UnitID, Reason: "unit not found in original document"})
			continue
		}

		target := childElement(unit, "target", d)
		if target == nil {
			target = newTargetAfterSource(unit, d)
			if target == nil {
				warnings = append(warnings, Warning{UnitID: seg.UnitID, Reason: "unit has no source node to anchor a target"})
				continue
			}
		}

		if text, ok := exportText(seg); ok {
			target.Child = nil
			target.SetText(text)
		}
		target.CreateAttr(d.stateAttr, StateFromStatus(seg.Status, seg.UnitState))
	}

	out, err := doc.WriteToBytes()
	if err != nil {
		return nil, warnings, fmt.Errorf("serialize interchange document: %w", err)
	}
	return out, warnings, nil
}

// exportText picks the translation to write: a human-finalized value
// wins over the raw model output.
func exportText(seg db.Segment) (string, bool) {
	if seg.FinalTranslation != nil && strings.TrimSpace(*seg.FinalTranslation) != "" {
		return *seg.FinalTranslation, true
	}
	if seg.Translation != nil && strings.TrimSpace(*seg.Translation) != "" {
		return *seg.Translation, true
	}
	return "", false
}

// newTargetAfterSource creates a target element immediately following
// the unit's source node. Returns nil when the unit has no source.
func newTargetAfterSource(unit *etree.Element, d Dialect) *etree.Element {
	source := childElement(unit, "source", d)
	if source == nil {
		return nil
	}

	name := "target"
	if d.unitSpace != "" {
		name = d.unitSpace + ":target"
	}
	target := etree.NewElement(name)

	for i, token := range unit.Child {
		if token == etree.Token(source) {
			unit.InsertChildAt(i+1, target)
			return target
		}
	}
	unit.AddChild(target)
	return target
}
