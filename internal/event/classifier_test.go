package event

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestClassifyDeduplicatesAcrossCycles(t *testing.T) {
	c := NewClassifier()

	cand := Event{
		Fingerprint: "missing:lodash",
		Kind:        KindMissingModule,
		Service:     "data-grid",
	}

	first := c.Classify([]Event{cand}, 1)
	if len(first) != 1 {
		t.Fatalf("expected 1 admitted event, got %d", len(first))
	}
	if first[0].CreatedCycle != 1 {
		t.Errorf("CreatedCycle = %d, want 1", first[0].CreatedCycle)
	}

	// Same candidate re-scanned next cycle: must not re-emit.
	second := c.Classify([]Event{cand}, 2)
	if len(second) != 0 {
		t.Errorf("expected 0 admitted events on second cycle, got %d", len(second))
	}
	if c.SeenCount() != 1 {
		t.Errorf("SeenCount = %d, want 1", c.SeenCount())
	}
}

func TestClassifyCollapsesIntraBatchDuplicates(t *testing.T) {
	c := NewClassifier()

	cands := []Event{
		{Fingerprint: "app/src/Foo.tsx:12:TS2307", Kind: TypeError("TS2307")},
		{Fingerprint: "app/src/Foo.tsx:12:TS2307", Kind: TypeError("TS2307")},
		{Fingerprint: "missing:lodash", Kind: KindMissingModule},
	}

	admitted := c.Classify(cands, 1)
	if len(admitted) != 2 {
		t.Fatalf("expected 2 admitted events, got %d", len(admitted))
	}

	want := []string{"app/src/Foo.tsx:12:TS2307", "missing:lodash"}
	got := []string{admitted[0].Fingerprint, admitted[1].Fingerprint}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("admitted fingerprints mismatch (-want +got):\n%s", diff)
	}
}

func TestClassifyDropsEmptyFingerprint(t *testing.T) {
	c := NewClassifier()
	admitted := c.Classify([]Event{{Kind: KindUnknown}}, 1)
	if len(admitted) != 0 {
		t.Errorf("expected empty-fingerprint candidate to be dropped")
	}
}

func TestKindHelpers(t *testing.T) {
	k := TypeError("TS7006")
	if !k.IsTypeError() {
		t.Error("TypeError kind should report IsTypeError")
	}
	if k.DiagnosticCode() != "TS7006" {
		t.Errorf("DiagnosticCode = %q, want TS7006", k.DiagnosticCode())
	}
	if KindRuntime.IsTypeError() {
		t.Error("runtime kind must not be a type error")
	}
	if KindRuntime.DiagnosticCode() != "" {
		t.Error("non type_error kinds have no diagnostic code")
	}
}

func TestRuntimeRecordClassify(t *testing.T) {
	cases := []struct {
		name string
		rec  RuntimeRecord
		want Kind
	}{
		{"complete record", RuntimeRecord{ID: "e1", Message: "boom", Type: "error"}, KindRuntime},
		{"network type", RuntimeRecord{ID: "e2", Message: "request refused", Type: "network"}, KindNetwork},
		{"fetch failure message", RuntimeRecord{ID: "e3", Message: "TypeError: Failed to fetch"}, KindNetwork},
		{"missing id", RuntimeRecord{Message: "boom"}, KindUnknown},
		{"missing message", RuntimeRecord{ID: "e4"}, KindUnknown},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.rec.Classify(); got != tc.want {
				t.Errorf("Classify() = %s, want %s", got, tc.want)
			}
		})
	}
}

func TestDecodeRuntimeRecords(t *testing.T) {
	raw := []byte(`[{"id":"err_1","type":"error","message":"Cannot read properties of undefined","source":"app.js"}]`)
	records, err := DecodeRuntimeRecords(raw)
	if err != nil {
		t.Fatalf("DecodeRuntimeRecords failed: %v", err)
	}
	if len(records) != 1 || records[0].ID != "err_1" {
		t.Fatalf("unexpected records: %+v", records)
	}

	if _, err := DecodeRuntimeRecords([]byte(`{not json`)); err == nil {
		t.Error("expected error for malformed payload")
	}
}

func TestConsoleFingerprintStable(t *testing.T) {
	a := ConsoleFingerprint("container", "Warning: deprecated prop")
	b := ConsoleFingerprint("container", "Warning: deprecated prop")
	if a != b {
		t.Error("same message must fingerprint identically")
	}
	if a == ConsoleFingerprint("container", "another message") {
		t.Error("distinct messages must fingerprint differently")
	}
}
