// Package parser decodes the FrameStore artifacts: the dimension descriptor
// text, the raw float32 payload, and the single-file envelope.
package parser

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"math"
	"strconv"

	"github.com/starford/specmon/internal/apperr"
	"github.com/starford/specmon/internal/models"
)

// EnvelopeMagic opens every envelope artifact.
const EnvelopeMagic = "SPMF"

// envelopeHeaderSize is magic + width + height + count.
const envelopeHeaderSize = len(EnvelopeMagic) + 3*4

// ParseDescriptor parses "<width> <height>" (any whitespace, UTF-8).
// Fields after the second are ignored; fewer than two is malformed.
func ParseDescriptor(data []byte) (models.DimensionDescriptor, error) {
	fields := bytes.Fields(data)
	if len(fields) < 2 {
		return models.DimensionDescriptor{}, fmt.Errorf("%w: want 2 fields, got %d",
			apperr.ErrMalformedDescriptor, len(fields))
	}

	width, err := parseDim(fields[0])
	if err != nil {
		return models.DimensionDescriptor{}, fmt.Errorf("%w: width: %v", apperr.ErrMalformedDescriptor, err)
	}
	height, err := parseDim(fields[1])
	if err != nil {
		return models.DimensionDescriptor{}, fmt.Errorf("%w: height: %v", apperr.ErrMalformedDescriptor, err)
	}
	if err := models.CheckShape(width, height); err != nil {
		return models.DimensionDescriptor{}, err
	}

	return models.DimensionDescriptor{Width: width, Height: height}, nil
}

func parseDim(field []byte) (int, error) {
	n, err := strconv.Atoi(string(field))
	if err != nil {
		return 0, err
	}
	if n <= 0 {
		return 0, fmt.Errorf("non-positive value %d", n)
	}
	return n, nil
}

// FormatDescriptor renders the descriptor text a producer writes.
func FormatDescriptor(width, height int) []byte {
	return []byte(fmt.Sprintf("%d %d\n", width, height))
}

// DecodePayload interprets data as little-endian IEEE-754 float32 values.
// A trailing partial value means the payload was caught mid-write.
func DecodePayload(data []byte) ([]float32, error) {
	if len(data)%4 != 0 {
		return nil, fmt.Errorf("%w: payload of %d bytes is not a whole number of float32",
			apperr.ErrSizeMismatch, len(data))
	}
	out := make([]float32, len(data)/4)
	for i := range out {
		out[i] = math.Float32frombits(binary.LittleEndian.Uint32(data[i*4:]))
	}
	return out, nil
}

// EncodePayload is the inverse of DecodePayload.
func EncodePayload(samples []float32) []byte {
	out := make([]byte, len(samples)*4)
	for i, v := range samples {
		binary.LittleEndian.PutUint32(out[i*4:], math.Float32bits(v))
	}
	return out
}

// Envelope is a decoded single-file frame artifact.
type Envelope struct {
	Descriptor models.DimensionDescriptor
	Count      int
	Payload    []byte
}

// ParseEnvelope splits an envelope into header fields and payload bytes.
// It checks framing only; the reader applies the usual size validation.
func ParseEnvelope(data []byte) (*Envelope, error) {
	if len(data) < envelopeHeaderSize || string(data[:len(EnvelopeMagic)]) != EnvelopeMagic {
		return nil, fmt.Errorf("%w: bad envelope header", apperr.ErrMalformedDescriptor)
	}
	h := data[len(EnvelopeMagic):]
	env := &Envelope{
		Descriptor: models.DimensionDescriptor{
			Width:  int(binary.LittleEndian.Uint32(h[0:])),
			Height: int(binary.LittleEndian.Uint32(h[4:])),
		},
		Count:   int(binary.LittleEndian.Uint32(h[8:])),
		Payload: data[envelopeHeaderSize:],
	}
	if err := models.CheckShape(env.Descriptor.Width, env.Descriptor.Height); err != nil {
		return nil, fmt.Errorf("envelope: %w", err)
	}
	if env.Count*4 != len(env.Payload) {
		return nil, fmt.Errorf("%w: envelope announces %d samples, carries %d bytes",
			apperr.ErrSizeMismatch, env.Count, len(env.Payload))
	}
	return env, nil
}

// EncodeEnvelope builds an envelope artifact.
func EncodeEnvelope(width, height int, samples []float32) []byte {
	out := make([]byte, envelopeHeaderSize, envelopeHeaderSize+len(samples)*4)
	copy(out, EnvelopeMagic)
	h := out[len(EnvelopeMagic):]
	binary.LittleEndian.PutUint32(h[0:], uint32(width))
	binary.LittleEndian.PutUint32(h[4:], uint32(height))
	binary.LittleEndian.PutUint32(h[8:], uint32(len(samples)))
	return append(out, EncodePayload(samples)...)
}
