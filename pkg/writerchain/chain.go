package writerchain

import "io"

// Sink is one installed layer of a chain: bytes written to it are
// transformed and forwarded to the inner writer it was built from.
// Finalize flushes any trailing bytes into that inner writer; it must
// never close or finalize the inner writer itself, since ordering across
// layers is the Chain's responsibility, not the layer's.
type Sink interface {
	io.Writer
	Finalize() error
}

// Layer builds a Sink wrapping inner.
type Layer interface {
	Make(inner io.Writer) (Sink, error)
}

// LayerFunc adapts a plain function to Layer.
type LayerFunc func(inner io.Writer) (Sink, error)

func (f LayerFunc) Make(inner io.Writer) (Sink, error) { return f(inner) }

// Chain is an ordered list of layers, innermost-installed first. The
// object store sink itself is not a Layer: it is supplied to Build as the
// chain's base writer.
type Chain struct {
	layers []Layer
}

// New builds a Chain installing layers in the given order (innermost to
// outermost): the first layer wraps the store sink directly, and each
// subsequent layer wraps the previous one.
func New(layers ...Layer) *Chain {
	return &Chain{layers: layers}
}

// Pipeline is the result of building a Chain against a concrete base sink.
type Pipeline struct {
	base  io.WriteCloser
	stack []Sink
	outer io.Writer
}

// Build installs every layer in order over base, returning the resulting
// Pipeline. base is typically an objectstore.WriteCloser; it is closed by
// Finalize only if every layer above it finalized successfully.
func (c *Chain) Build(base io.WriteCloser) (*Pipeline, error) {
	p := &Pipeline{base: base, outer: base}

	for _, layer := range c.layers {
		sink, err := layer.Make(p.outer)
		if err != nil {
			return nil, err
		}
		p.stack = append(p.stack, sink)
		p.outer = sink
	}

	return p, nil
}

// Writer returns the outermost writer: the one a caller should write
// plaintext input into.
func (p *Pipeline) Writer() io.Writer { return p.outer }

// Outer returns the outermost Sink for callers that need a concrete layer
// type (the archive layer's *tar.Writer, for instance) rather than the
// plain io.Writer view. It is nil if the chain installed no layers.
func (p *Pipeline) Outer() Sink {
	if len(p.stack) == 0 {
		return nil
	}
	return p.stack[len(p.stack)-1]
}

// Finalize closes every installed layer from outermost to innermost, then
// closes the base sink. If any layer's Finalize fails, the base sink is
// never closed, so the object store never publishes a partial artifact.
func (p *Pipeline) Finalize() error {
	for i := len(p.stack) - 1; i >= 0; i-- {
		if err := p.stack[i].Finalize(); err != nil {
			return err
		}
	}
	return p.base.Close()
}

// Abandon finalizes nothing and does not close the base sink; used when a
// create_backup or restore_backup call is cancelled mid-stream so no
// object is ever published.
func (p *Pipeline) Abandon() {}
