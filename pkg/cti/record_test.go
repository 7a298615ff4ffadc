package cti

import (
	"errors"
	"testing"
)

func validRecord() Record {
	return Record{
		UUID:           "u1",
		Timestamp:      "2023-10-01T12:00:00Z",
		SenderIdentity: "IntelligenceUnit",
		CID:            "bafkreia",
		VaultKey:       SecretName("u1"),
		SHA256Hash:     "00",
		AccessList:     []string{},
	}
}

func TestValidateAllowsEmptyDescription(t *testing.T) {
	r := validRecord()
	if err := r.Validate(); err != nil {
		t.Fatalf("Validate failed: %v", err)
	}
}

func TestValidateMissingFields(t *testing.T) {
	r := validRecord()
	r.CID = ""
	r.AccessList = nil
	err := r.Validate()
	if !errors.Is(err, ErrInvalidRecord) {
		t.Fatalf("Got [%v], wanted InvalidRecord", err)
	}
}

func TestParseRecordRequiresReferences(t *testing.T) {
	_, err := ParseRecord([]byte(`{"UUID":"u1","CID":"bafk"}`))
	if !errors.Is(err, ErrResponseFormat) {
		t.Fatalf("Got [%v], wanted ResponseFormatError", err)
	}

	_, err = ParseRecord([]byte(`not json`))
	if !errors.Is(err, ErrResponseFormat) {
		t.Fatalf("Got [%v], wanted ResponseFormatError", err)
	}

	r, err := ParseRecord([]byte(`{"UUID":"u1","CID":"bafk","VaultKey":"artifact-key-u1"}`))
	if err != nil {
		t.Fatalf("ParseRecord failed: %v", err)
	}
	if r.VaultKey != "artifact-key-u1" {
		t.Fatalf("Got [%s] for vault key, wanted [artifact-key-u1]", r.VaultKey)
	}
}

func TestPipelineErrorKeepsKind(t *testing.T) {
	err := error(&PipelineError{Step: StepOpen, Cause: E(KindAuthenticationFailure, "open", nil)})
	if !errors.Is(err, ErrAuthenticationFailure) {
		t.Fatalf("kind lost through PipelineError: %v", err)
	}
	if errors.Is(err, ErrIntegrityViolation) {
		t.Fatalf("matched the wrong kind: %v", err)
	}
	step, ok := StepOf(err)
	if !ok || step != StepOpen {
		t.Fatalf("Got [%s] for step, wanted [%s]", step, StepOpen)
	}
	if KindOf(err) != KindAuthenticationFailure {
		t.Fatalf("Got [%s] for kind, wanted [%s]", KindOf(err), KindAuthenticationFailure)
	}
}

func TestKindKnown(t *testing.T) {
	for _, k := range []Kind{KindNotFound, KindTransient, KindInvalidRecord, KindAuthenticationFailure} {
		if !k.Known() {
			t.Fatalf("Got [unknown]... wanted [%s] known", k)
		}
	}
	for _, k := range []Kind{"", "RecordGone", "notfound"} {
		if k.Known() {
			t.Fatalf("Got [known]... wanted [%q] unknown", k)
		}
	}
}
