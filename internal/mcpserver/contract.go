package mcpserver

import (
	"fmt"

	"github.com/starford/specmon/internal/parser"
	"github.com/starford/specmon/internal/storage"
)

// FrameFormatURI is the resource URI of the frame exchange contract.
const FrameFormatURI = "specmon://frame-format"

// FrameFormatContract describes the artifacts a producer writes so that
// LLM consumers (or people) can build a compatible one.
var FrameFormatContract = fmt.Sprintf(`# specmon Frame Exchange Format

A producer publishes one frame at a time; specmon polls for it every tick
(500 ms by default) and keeps showing the last good frame until a new valid
one appears.

## Pair layout (default)

Two files in the exchange directory, overwritten independently:

- `+"`%s`"+`: UTF-8 text, `+"`<width> <height>`"+` separated by whitespace.
  Both are positive integers. Extra trailing fields are ignored.
- `+"`%s`"+`: width*height little-endian IEEE-754 float32 values,
  row-major (row i holds elements [i*width, i*width+width)). No header.

The two files are not written atomically together. A read that sees a new
descriptor next to an old payload (or the reverse) fails the size check and
is simply retried on the next tick. Payloads are never truncated or padded.

## Envelope layout (optional)

A single file `+"`%s`"+`, replaced by rename:

| offset | size | content                         |
|--------|------|---------------------------------|
| 0      | 4    | magic `+"`%s`"+`                     |
| 4      | 4    | width, uint32 little-endian     |
| 8      | 4    | height, uint32 little-endian    |
| 12     | 4    | sample count, uint32 LE         |
| 16     | 4*n  | payload, as in the pair layout  |

The same validation applies: count must equal width*height and match the
payload length.

## Rendering

Heatmap mode: display = clip((log10(max(v, 1e-20))*gain + offset - p5) /
(p95 - p5), 0, 1)^0.5, where p5/p95 are percentiles over the whole frame.
A frame with p95 <= p5 renders all zeros. Trace mode plots the first rows
(20 by default) as raw magnitudes.
`, storage.DefaultDescriptorName, storage.DefaultPayloadName, storage.DefaultEnvelopeName, parser.EnvelopeMagic)
