// Package codec is the seam where format-specific encoders and decoders plug
// into the conversion workflow.
package codec

import "context"

// Converter turns the bytes of a book in one format into another format.
// Implementations must not retain data after returning.
type Converter interface {
	Convert(ctx context.Context, data []byte, from, to string) ([]byte, error)
}

// ConverterFunc adapts a plain function to Converter.
type ConverterFunc func(ctx context.Context, data []byte, from, to string) ([]byte, error)

func (f ConverterFunc) Convert(ctx context.Context, data []byte, from, to string) ([]byte, error) {
	return f(ctx, data, from, to)
}
