package parser

import (
	"errors"
	"testing"

	"github.com/starford/specmon/internal/apperr"
)

func TestParseDescriptor_Basic(t *testing.T) {
	d, err := ParseDescriptor([]byte("4 2"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if d.Width != 4 || d.Height != 2 {
		t.Errorf("descriptor = %+v, want 4x2", d)
	}
}

func TestParseDescriptor_WhitespaceAndTrailingFields(t *testing.T) {
	d, err := ParseDescriptor([]byte("\n  512\t\t16  extra\r\n"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if d.Width != 512 || d.Height != 16 {
		t.Errorf("descriptor = %+v, want 512x16", d)
	}
}

func TestParseDescriptor_Malformed(t *testing.T) {
	cases := map[string]string{
		"empty":                  "",
		"one field":              "4",
		"non integer":            "4.0 2",
		"text":                   "wide tall",
		"zero width":             "0 2",
		"negative":               "4 -2",
		"zero height":            "4 0",
		"product wraps to zero":  "4294967296 4294967296",
		"product wraps to small": "3 6148914691236517206",
		"too many samples":       "65536 65536",
	}
	for name, in := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := ParseDescriptor([]byte(in))
			if !errors.Is(err, apperr.ErrMalformedDescriptor) {
				t.Fatalf("err = %v, want ErrMalformedDescriptor", err)
			}
			if !errors.Is(err, apperr.ErrNotAvailable) {
				t.Errorf("err = %v should also be ErrNotAvailable", err)
			}
		})
	}
}

func TestPayloadRoundTrip(t *testing.T) {
	in := []float32{1, 2.5, -3, 0, 1e-20, 3.4e38}
	out, err := DecodePayload(EncodePayload(in))
	if err != nil {
		t.Fatalf("DecodePayload: %v", err)
	}
	if len(out) != len(in) {
		t.Fatalf("len = %d, want %d", len(out), len(in))
	}
	for i := range in {
		if out[i] != in[i] {
			t.Errorf("out[%d] = %v, want %v", i, out[i], in[i])
		}
	}
}

func TestDecodePayload_LittleEndian(t *testing.T) {
	// 1.0f is 0x3f800000.
	out, err := DecodePayload([]byte{0x00, 0x00, 0x80, 0x3f})
	if err != nil {
		t.Fatal(err)
	}
	if out[0] != 1 {
		t.Errorf("decoded %v, want 1", out[0])
	}
}

func TestDecodePayload_PartialValue(t *testing.T) {
	_, err := DecodePayload([]byte{0, 0, 0, 0, 1, 2})
	if !errors.Is(err, apperr.ErrSizeMismatch) {
		t.Fatalf("err = %v, want ErrSizeMismatch", err)
	}
}

func TestEnvelopeRoundTrip(t *testing.T) {
	data := EncodeEnvelope(3, 2, []float32{1, 2, 3, 4, 5, 6})
	env, err := ParseEnvelope(data)
	if err != nil {
		t.Fatalf("ParseEnvelope: %v", err)
	}
	if env.Descriptor.Width != 3 || env.Descriptor.Height != 2 || env.Count != 6 {
		t.Errorf("envelope = %+v", env)
	}
	samples, err := DecodePayload(env.Payload)
	if err != nil {
		t.Fatal(err)
	}
	if samples[5] != 6 {
		t.Errorf("samples[5] = %v, want 6", samples[5])
	}
}

func TestParseEnvelope_Truncated(t *testing.T) {
	data := EncodeEnvelope(3, 2, []float32{1, 2, 3, 4, 5, 6})
	_, err := ParseEnvelope(data[:len(data)-4])
	if !errors.Is(err, apperr.ErrSizeMismatch) {
		t.Fatalf("err = %v, want ErrSizeMismatch", err)
	}
}

func TestParseEnvelope_BadMagic(t *testing.T) {
	_, err := ParseEnvelope([]byte("NOPE0000000000000000"))
	if !errors.Is(err, apperr.ErrMalformedDescriptor) {
		t.Fatalf("err = %v, want ErrMalformedDescriptor", err)
	}
}

func TestParseEnvelope_OversizedShape(t *testing.T) {
	data := EncodeEnvelope(1, 1, nil)
	// Rewrite the header to announce 65535x65535 with no payload.
	copy(data[len(EnvelopeMagic):], []byte{0xff, 0xff, 0, 0, 0xff, 0xff, 0, 0})
	_, err := ParseEnvelope(data)
	if !errors.Is(err, apperr.ErrMalformedDescriptor) {
		t.Fatalf("err = %v, want ErrMalformedDescriptor", err)
	}
}
