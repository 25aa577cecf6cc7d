package arena

import (
	"strings"
	"testing"
)

type payload struct {
	Name string `json:"name"`
}

func TestCodec_RoundTrip(t *testing.T) {
	c := NewCodec[payload]("payload", 64)
	b := c.Encode(payload{Name: "x"})
	if got := c.Decode(b); got.Name != "x" {
		t.Fatalf("decoded %+v", got)
	}
}

func TestCodec_EncodePanicsOverBound(t *testing.T) {
	c := NewCodec[payload]("payload", 16)
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic for oversized value")
		}
	}()
	c.Encode(payload{Name: strings.Repeat("n", 64)})
}

func TestCodec_DecodePanicsOnMalformed(t *testing.T) {
	c := NewCodec[payload]("payload", 64)
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic for malformed record")
		}
	}()
	c.Decode([]byte("{not json"))
}

func TestCodec_DecodeLenient(t *testing.T) {
	c := NewCodec[payload]("payload", 64)

	v, err := c.DecodeLenient([]byte(`{"name":"ok"}`))
	if err != nil {
		t.Fatalf("lenient decode of valid record: %v", err)
	}
	if v.Name != "ok" {
		t.Fatalf("decoded %+v", v)
	}

	v, err = c.DecodeLenient([]byte("{not json"))
	if err == nil {
		t.Fatal("expected error for malformed record")
	}
	if v.Name != "" {
		t.Fatalf("expected zero value, got %+v", v)
	}
}
