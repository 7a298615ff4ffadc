package ledger

import (
	"errors"
	"testing"

	"github.com/opentdf/ctivault/pkg/cti"
)

func TestNormalizeByteMap(t *testing.T) {
	got, err := Normalize([]byte(`{"0":104,"1":105}`))
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != "hi" {
		t.Fatalf("Got [%s]... wanted [hi]", got)
	}
}

func TestNormalizeByteMapOutOfOrder(t *testing.T) {
	got, err := Normalize([]byte(`{"1":105,"0":104}`))
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != "hi" {
		t.Fatalf("Got [%s]... wanted [hi]", got)
	}
}

func TestNormalizeString(t *testing.T) {
	got, err := Normalize([]byte(`"{\"UUID\":\"u1\"}"`))
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != `{"UUID":"u1"}` {
		t.Fatalf("Got [%s]... wanted [%s]", got, `{"UUID":"u1"}`)
	}
}

func TestNormalizeRejects(t *testing.T) {
	for name, raw := range map[string]string{
		"empty":         ``,
		"number":        `42`,
		"array":         `[104,105]`,
		"gap":           `{"0":104,"2":105}`,
		"non index key": `{"0":104,"x":105}`,
		"too large":     `{"0":256}`,
		"negative":      `{"0":-1}`,
		"fraction":      `{"0":1.5}`,
		"string value":  `{"0":"h"}`,
	} {
		t.Run(name, func(t *testing.T) {
			_, err := Normalize([]byte(raw))
			if !errors.Is(err, cti.ErrResponseFormat) {
				t.Fatalf("Got [%v]... wanted ResponseFormatError", err)
			}
		})
	}
}

func TestResultMarshalByteMap(t *testing.T) {
	b, err := NewResult([]byte("hi"), EncodingByteMap).MarshalJSON()
	if err != nil {
		t.Fatal(err)
	}
	if string(b) != `{"0":104,"1":105}` {
		t.Fatalf("Got [%s]... wanted [%s]", b, `{"0":104,"1":105}`)
	}
	back, err := Normalize(b)
	if err != nil {
		t.Fatal(err)
	}
	if string(back) != "hi" {
		t.Fatalf("Got [%s]... wanted [hi]", back)
	}
}

func TestResultMarshalEmptyByteMap(t *testing.T) {
	b, err := NewResult(nil, EncodingByteMap).MarshalJSON()
	if err != nil {
		t.Fatal(err)
	}
	if string(b) != `{}` {
		t.Fatalf("Got [%s]... wanted [{}]", b)
	}
}

func TestParseEncoding(t *testing.T) {
	for in, want := range map[string]Encoding{"": EncodingString, "string": EncodingString, "bytemap": EncodingByteMap} {
		got, err := ParseEncoding(in)
		if err != nil {
			t.Fatal(err)
		}
		if got != want {
			t.Fatalf("Got [%s]... wanted [%s]", got, want)
		}
	}
	if _, err := ParseEncoding("base64"); err == nil {
		t.Fatal("expected error for unknown encoding")
	}
}
