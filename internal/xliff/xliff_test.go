package xliff

import (
	"bytes"
	"strings"
	"testing"

	"horse.fit/verso/internal/db"
)

const standardDoc = `<?xml version="1.0" encoding="UTF-8"?>
<xliff version="1.2">
  <file original="guide.docx" source-language="en" target-language="es" datatype="plaintext">
    <body>
      <trans-unit id="u1">
        <source>Hello</source>
        <target state="final">Hola</target>
      </trans-unit>
      <trans-unit id="u2">
        <source>Good morning</source>
      </trans-unit>
      <trans-unit id="u3">
        <source>Thank you</source>
        <target>Gracias</target>
      </trans-unit>
      <trans-unit id="u4">
        <source>Please</source>
        <target state="frobnicated">Por favor</target>
      </trans-unit>
      <trans-unit id="">
        <source>No id</source>
      </trans-unit>
      <trans-unit id="u5">
        <source>   </source>
      </trans-unit>
    </body>
  </file>
</xliff>`

func TestExtractStandard(t *testing.T) {
	t.Parallel()

	segments, meta, warnings, err := Extract([]byte(standardDoc), DialectStandard)
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}

	if got, want := meta.SourceLang, "en"; got != want {
		t.Fatalf("meta.SourceLang = %q, want %q", got, want)
	}
	if got, want := meta.TargetLang, "es"; got != want {
		t.Fatalf("meta.TargetLang = %q, want %q", got, want)
	}
	if got, want := meta.Original, "guide.docx"; got != want {
		t.Fatalf("meta.Original = %q, want %q", got, want)
	}

	if got, want := len(segments), 4; got != want {
		t.Fatalf("len(segments) = %d, want %d", got, want)
	}
	for i, seg := range segments {
		if seg.Index != i {
			t.Fatalf("segments[%d].Index = %d, want %d", i, seg.Index, i)
		}
	}

	final := segments[0]
	if got, want := final.Status, string(db.SegmentStatusCompleted); got != want {
		t.Fatalf("final-state segment status = %q, want %q", got, want)
	}
	if final.Translation == nil || *final.Translation != "Hola" {
		t.Fatalf("final-state segment translation = %v, want Hola", final.Translation)
	}

	if got, want := segments[1].Status, string(db.SegmentStatusPending); got != want {
		t.Fatalf("no-target segment status = %q, want %q", got, want)
	}
	if got, want := segments[2].Status, string(db.SegmentStatusTranslated); got != want {
		t.Fatalf("stateless-target segment status = %q, want %q", got, want)
	}
	if got, want := segments[3].Status, string(db.SegmentStatusPending); got != want {
		t.Fatalf("unknown-state segment status = %q, want %q", got, want)
	}

	if got, want := len(warnings), 3; got != want {
		t.Fatalf("len(warnings) = %d, want %d: %v", got, want, warnings)
	}
}

func TestExtractJoinsInlineMarkup(t *testing.T) {
	t.Parallel()

	doc := `<xliff version="1.2"><file source-language="en" target-language="de"><body>
<trans-unit id="u1"><source>Click <g id="1">here</g> now</source></trans-unit>
</body></file></xliff>`

	segments, _, _, err := Extract([]byte(doc), DialectStandard)
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}
	if got, want := len(segments), 1; got != want {
		t.Fatalf("len(segments) = %d, want %d", got, want)
	}
	if got, want := segments[0].SourceText, "Click here now"; got != want {
		t.Fatalf("SourceText = %q, want %q", got, want)
	}
}

func TestInjectWritesStateAndText(t *testing.T) {
	t.Parallel()

	translated := "Hola"
	finalized := "¡Hola!"
	segments := []db.Segment{
		{UnitID: "u1", Status: db.SegmentStatusReviewCompleted, Translation: &translated, FinalTranslation: &finalized},
		{UnitID: "u2", Status: db.SegmentStatusTranslated, Translation: &translated},
		{UnitID: "missing", Status: db.SegmentStatusTranslated, Translation: &translated},
	}

	out, warnings, err := Inject([]byte(standardDoc), segments, DialectStandard)
	if err != nil {
		t.Fatalf("Inject() error = %v", err)
	}

	text := string(out)
	if !strings.Contains(text, `state="reviewed"`) {
		t.Fatalf("output missing reviewed state:\n%s", text)
	}
	if !strings.Contains(text, "¡Hola!") {
		t.Fatalf("output did not prefer finalized translation:\n%s", text)
	}
	// u2 had no target; injection must create one after the source.
	if !strings.Contains(text, `state="translated"`) {
		t.Fatalf("output missing created target state:\n%s", text)
	}

	if got, want := len(warnings), 1; got != want {
		t.Fatalf("len(warnings) = %d, want %d: %v", got, want, warnings)
	}
	if warnings[0].UnitID != "missing" {
		t.Fatalf("warnings[0].UnitID = %q, want missing", warnings[0].UnitID)
	}
}

func TestInjectIsIdempotent(t *testing.T) {
	t.Parallel()

	translated := "Hola"
	segments := []db.Segment{
		{UnitID: "u1", Status: db.SegmentStatusCompleted, Translation: &translated},
	}

	first, _, err := Inject([]byte(standardDoc), segments, DialectStandard)
	if err != nil {
		t.Fatalf("first Inject() error = %v", err)
	}
	second, _, err := Inject(first, segments, DialectStandard)
	if err != nil {
		t.Fatalf("second Inject() error = %v", err)
	}
	if !bytes.Equal(first, second) {
		t.Fatalf("inject is not idempotent:\nfirst:\n%s\nsecond:\n%s", first, second)
	}
}

func TestInjectPreservesSignedOff(t *testing.T) {
	t.Parallel()

	translated := "Hola"
	signedOff := "signed-off"
	segments := []db.Segment{
		{UnitID: "u1", Status: db.SegmentStatusCompleted, Translation: &translated, UnitState: &signedOff},
	}

	out, _, err := Inject([]byte(standardDoc), segments, DialectStandard)
	if err != nil {
		t.Fatalf("Inject() error = %v", err)
	}
	if !strings.Contains(string(out), `state="signed-off"`) {
		t.Fatalf("signed-off import state was flattened:\n%s", out)
	}
}

func TestVendorDialectRoundTrip(t *testing.T) {
	t.Parallel()

	doc := `<xliff xmlns:v="urn:vendor:variant" version="1.2">
<file source-language="en" target-language="fr"><body>
<v:trans-unit id="u1"><v:source>Hello</v:source><v:target v:state="translated">Bonjour</v:target></v:trans-unit>
<v:trans-unit id="u2"><v:source>Bye</v:source></v:trans-unit>
</body></file></xliff>`

	segments, _, warnings, err := Extract([]byte(doc), DialectVendor)
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}
	if len(warnings) != 0 {
		t.Fatalf("unexpected warnings: %v", warnings)
	}
	if got, want := len(segments), 2; got != want {
		t.Fatalf("len(segments) = %d, want %d", got, want)
	}
	if got, want := segments[0].Status, string(db.SegmentStatusTranslated); got != want {
		t.Fatalf("segments[0].Status = %q, want %q", got, want)
	}

	adieu := "Au revoir"
	out, injectWarnings, err := Inject([]byte(doc), []db.Segment{
		{UnitID: "u2", Status: db.SegmentStatusTranslated, Translation: &adieu},
	}, DialectVendor)
	if err != nil {
		t.Fatalf("Inject() error = %v", err)
	}
	if len(injectWarnings) != 0 {
		t.Fatalf("unexpected inject warnings: %v", injectWarnings)
	}
	text := string(out)
	if !strings.Contains(text, "<v:target") || !strings.Contains(text, "Au revoir") {
		t.Fatalf("vendor target not created:\n%s", text)
	}
	if !strings.Contains(text, `v:state="translated"`) {
		t.Fatalf("vendor state attribute missing:\n%s", text)
	}
}

func TestStatusFromStateTable(t *testing.T) {
	t.Parallel()

	cases := []struct {
		state     string
		hasTarget bool
		want      db.SegmentStatus
	}{
		{"", true, db.SegmentStatusTranslated},
		{"", false, db.SegmentStatusPending},
		{"new", true, db.SegmentStatusPending},
		{"needs-translation", false, db.SegmentStatusPending},
		{"needs-adaptation", false, db.SegmentStatusPending},
		{"needs-l10n", false, db.SegmentStatusPending},
		{"translated", true, db.SegmentStatusTranslated},
		{"needs-review-translation", true, db.SegmentStatusTranslated},
		{"reviewed", true, db.SegmentStatusReviewCompleted},
		{"signed-off", true, db.SegmentStatusCompleted},
		{"final", true, db.SegmentStatusCompleted},
		{"garbage", true, db.SegmentStatusPending},
	}

	for _, tc := range cases {
		if got := StatusFromState(tc.state, tc.hasTarget); got != tc.want {
			t.Fatalf("StatusFromState(%q, %v) = %q, want %q", tc.state, tc.hasTarget, got, tc.want)
		}
	}
}
