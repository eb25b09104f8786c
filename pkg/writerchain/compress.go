package writerchain

import (
	"io"

	"github.com/klauspost/compress/zstd"

	"github.com/cuemby/sentryd/pkg/apierr"
)

// compressSink wraps a zstd streaming encoder. level follows the
// configured zstd_compression_level verbatim, including the special value
// 0 (library default) and negative fast-mode levels.
type compressSink struct {
	enc *zstd.Encoder
}

// Compress returns the zstd compression Layer for level.
func Compress(level int32) Layer {
	return LayerFunc(func(inner io.Writer) (Sink, error) {
		opts := []zstd.EOption{}
		if level != 0 {
			opts = append(opts, zstd.WithEncoderLevel(zstd.EncoderLevelFromZstd(int(level))))
		}

		enc, err := zstd.NewWriter(inner, opts...)
		if err != nil {
			return nil, apierr.Wrap(apierr.CodeCannotCompress, "building zstd encoder", err)
		}
		return &compressSink{enc: enc}, nil
	})
}

func (c *compressSink) Write(p []byte) (int, error) { return c.enc.Write(p) }

func (c *compressSink) Finalize() error {
	if err := c.enc.Close(); err != nil {
		return apierr.Wrap(apierr.CodeCompressFailed, "flushing zstd encoder", err)
	}
	return nil
}
