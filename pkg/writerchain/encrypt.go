package writerchain

import (
	"io"
	"time"

	"github.com/cuemby/sentryd/pkg/pgpcrypto"
)

// encryptSink wraps an OpenPGP encryption writer.
type encryptSink struct {
	w io.WriteCloser
}

// Encrypt returns the OpenPGP encryption Layer for ctx at policy time
// createdAt. ctx must not be nil; with encryption.enabled = false callers
// leave this layer out of the list, since Encrypt has no no-op mode.
func Encrypt(ctx *pgpcrypto.EncryptionContext, createdAt time.Time) Layer {
	return LayerFunc(func(inner io.Writer) (Sink, error) {
		w, err := ctx.Writer(inner, createdAt)
		if err != nil {
			return nil, err
		}
		return &encryptSink{w: w}, nil
	})
}

func (e *encryptSink) Write(p []byte) (int, error) { return e.w.Write(p) }

func (e *encryptSink) Finalize() error { return e.w.Close() }
