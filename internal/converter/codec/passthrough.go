package codec

import (
	"context"
	"fmt"

	"github.com/romariotrain/ebook-converter/internal/converter/formats"
	"github.com/romariotrain/ebook-converter/internal/converter/models"
)

// Passthrough is the placeholder converter: the output is a byte-for-byte
// copy of the input for every format pair, including identical ones.
type Passthrough struct{}

func (Passthrough) Convert(ctx context.Context, data []byte, from, to string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if !formats.IsKnown(from) {
		return nil, fmt.Errorf("%w: %q", models.ErrUnknownFormat, from)
	}
	if !formats.IsKnown(to) {
		return nil, fmt.Errorf("%w: %q", models.ErrUnknownFormat, to)
	}

	out := make([]byte, len(data))
	copy(out, data)
	return out, nil
}
