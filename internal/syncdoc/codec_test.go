package syncdoc

import (
	"errors"
	"strings"
	"testing"

	"github.com/MarcoPoloResearchLab/yearsync/internal/preferences"
)

func TestDecodeSelectsShapeByVersion(t *testing.T) {
	legacy, err := Decode([]byte(`{"version":1,"updatedAt":5,"deviceId":"d","filters":[],"disabledCalendars":[],"disabledBuiltInCategories":["work"],"customCategories":[],"showTimedEvents":true}`))
	if err != nil {
		t.Fatalf("unexpected legacy decode error: %v", err)
	}
	legacyDoc, ok := legacy.(DocumentV1)
	if !ok {
		t.Fatalf("expected DocumentV1, got %T", legacy)
	}
	if legacyDoc.ShowTimedEvents == nil || !*legacyDoc.ShowTimedEvents {
		t.Fatalf("expected showTimedEvents true")
	}

	current, err := Decode([]byte(`{"version":2,"updatedAt":6,"deviceId":"d","filters":[{"id":"f","pattern":"gym","createdAt":1}],"disabledCalendars":["c"],"categories":[{"id":"x","label":"X","color":"#000000","keywords":["x"],"matchMode":"all","createdAt":1,"updatedAt":2}]}`))
	if err != nil {
		t.Fatalf("unexpected current decode error: %v", err)
	}
	if current.SchemaVersion() != VersionCurrent {
		t.Fatalf("expected version 2, got %d", current.SchemaVersion())
	}
	currentDoc := current.(DocumentV2)
	if len(currentDoc.Categories) != 1 || currentDoc.Categories[0].MatchMode != preferences.MatchModeAll {
		t.Fatalf("unexpected categories %#v", currentDoc.Categories)
	}
}

func TestDecodeRejectsMalformedDocuments(t *testing.T) {
	testCases := []struct {
		name    string
		payload string
		target  error
	}{
		{name: "not json", payload: `{`, target: ErrInvalidDocument},
		{name: "missing version", payload: `{"updatedAt":1}`, target: ErrInvalidDocument},
		{name: "unknown version", payload: `{"version":3}`, target: ErrUnsupportedVersion},
		{name: "filter without id", payload: `{"version":2,"filters":[{"pattern":"x"}]}`, target: ErrInvalidDocument},
		{name: "empty pattern", payload: `{"version":2,"filters":[{"id":"f","pattern":"  "}]}`, target: ErrInvalidDocument},
		{name: "bad match mode", payload: `{"version":2,"categories":[{"id":"a","label":"A","color":"#000000","matchMode":"some"}]}`, target: ErrInvalidDocument},
		{name: "duplicate category", payload: `{"version":2,"categories":[{"id":"a","label":"A","color":"#000000","matchMode":"any"},{"id":"a","label":"B","color":"#111111","matchMode":"any"}]}`, target: ErrInvalidDocument},
		{name: "negative hours", payload: `{"version":2,"timedEventMinHours":-2}`, target: ErrInvalidDocument},
		{name: "wrong field type", payload: `{"version":2,"filters":"gym"}`, target: ErrInvalidDocument},
	}

	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			_, err := Decode([]byte(testCase.payload))
			if !errors.Is(err, testCase.target) {
				t.Fatalf("expected %v, got %v", testCase.target, err)
			}
		})
	}
}

func TestEncodeWritesCurrentVersionAndEmptyLists(t *testing.T) {
	payload, err := Encode(DocumentV2{Version: VersionLegacy, DeviceID: "d"})
	if err != nil {
		t.Fatalf("unexpected encode error: %v", err)
	}
	encoded := string(payload)
	for _, fragment := range []string{`"version":2`, `"filters":[]`, `"disabledCalendars":[]`, `"categories":[]`} {
		if !strings.Contains(encoded, fragment) {
			t.Fatalf("expected %s in %s", fragment, encoded)
		}
	}
	if strings.Contains(encoded, "timedEventMinHours") {
		t.Fatalf("absent display fields must be omitted: %s", encoded)
	}

	decoded, err := Decode(payload)
	if err != nil {
		t.Fatalf("encoded document must decode: %v", err)
	}
	if decoded.SchemaVersion() != VersionCurrent {
		t.Fatalf("expected version 2 after round trip")
	}
}

func TestIsEmpty(t *testing.T) {
	stock := defaultsOnlyDocument("d", 1)
	if !IsEmpty(stock) {
		t.Fatalf("expected stock document to be empty")
	}

	edited := stock.Clone()
	edited.Categories[0].Color = "#000000"
	if IsEmpty(edited) {
		t.Fatalf("expected edited default category to count as customization")
	}

	missing := stock.Clone()
	missing.Categories = missing.Categories[1:]
	if IsEmpty(missing) {
		t.Fatalf("expected removed default category to count as customization")
	}

	withFilter := stock.Clone()
	withFilter.Filters = []preferences.Filter{{ID: "f", Pattern: "gym"}}
	if IsEmpty(withFilter) {
		t.Fatalf("expected filter to count as customization")
	}

	restamped := defaultsOnlyDocument("d", 99_999)
	if !IsEmpty(restamped) {
		t.Fatalf("expected timestamps to be ignored")
	}
}
