package writerchain

import "io"

// teeSink duplicates every write into inner and every side writer
// (typically a running SHA-256 hasher, a SigningContext's SignatureWriter,
// or both) before reporting success. Finalize is a no-op: tee buffers
// nothing of its own, so there is nothing to flush.
type teeSink struct {
	inner io.Writer
	sides []io.Writer
}

// Tee returns a Layer that duplicates all bytes written through it into
// sides, in addition to forwarding them to the layer beneath.
func Tee(sides ...io.Writer) Layer {
	return LayerFunc(func(inner io.Writer) (Sink, error) {
		return &teeSink{inner: inner, sides: sides}, nil
	})
}

func (t *teeSink) Write(p []byte) (int, error) {
	n, err := t.inner.Write(p)
	if err != nil {
		return n, err
	}
	for _, side := range t.sides {
		if _, err := side.Write(p[:n]); err != nil {
			return n, err
		}
	}
	return n, nil
}

func (t *teeSink) Finalize() error { return nil }
