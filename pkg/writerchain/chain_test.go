package writerchain

import (
	"bytes"
	"errors"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recordingSink appends to a shared log on Make/Write/Finalize so tests can
// assert installation and finalization order.
type recordingSink struct {
	name  string
	inner io.Writer
	log   *[]string
}

func recordingLayer(name string, log *[]string) Layer {
	return LayerFunc(func(inner io.Writer) (Sink, error) {
		*log = append(*log, "make:"+name)
		return &recordingSink{name: name, inner: inner, log: log}, nil
	})
}

func (s *recordingSink) Write(p []byte) (int, error) { return s.inner.Write(p) }

func (s *recordingSink) Finalize() error {
	*s.log = append(*s.log, "finalize:"+s.name)
	return nil
}

type nopCloser struct{ *bytes.Buffer }

func (n nopCloser) Close() error { return nil }

func TestFinalizationOrderIsReverseOfInstallation(t *testing.T) {
	var log []string
	chain := New(recordingLayer("a", &log), recordingLayer("b", &log), recordingLayer("c", &log))

	base := nopCloser{&bytes.Buffer{}}
	pipeline, err := chain.Build(base)
	require.NoError(t, err)
	require.NoError(t, pipeline.Finalize())

	assert.Equal(t, []string{
		"make:a", "make:b", "make:c",
		"finalize:c", "finalize:b", "finalize:a",
	}, log)
}

type failingSink struct{ inner io.Writer }

func (f *failingSink) Write(p []byte) (int, error) { return f.inner.Write(p) }
func (f *failingSink) Finalize() error              { return errors.New("boom") }

func TestFailedFinalizeDoesNotCloseBase(t *testing.T) {
	base := &trackingCloser{Buffer: &bytes.Buffer{}}
	chain := New(LayerFunc(func(inner io.Writer) (Sink, error) {
		return &failingSink{inner: inner}, nil
	}))

	pipeline, err := chain.Build(base)
	require.NoError(t, err)

	err = pipeline.Finalize()
	require.Error(t, err)
	assert.False(t, base.closed)
}

type trackingCloser struct {
	*bytes.Buffer
	closed bool
}

func (t *trackingCloser) Close() error {
	t.closed = true
	return nil
}

func TestWritesPassThroughAllLayersUntransformed(t *testing.T) {
	var log []string
	chain := New(recordingLayer("outer", &log))
	base := nopCloser{&bytes.Buffer{}}

	pipeline, err := chain.Build(base)
	require.NoError(t, err)

	_, err = pipeline.Writer().Write([]byte("hello"))
	require.NoError(t, err)
	require.NoError(t, pipeline.Finalize())

	assert.Equal(t, "hello", base.String())
}

func TestTeeDuplicatesWritesToSideWriters(t *testing.T) {
	base := nopCloser{&bytes.Buffer{}}
	var side bytes.Buffer

	chain := New(Tee(&side))
	pipeline, err := chain.Build(base)
	require.NoError(t, err)

	_, err = pipeline.Writer().Write([]byte("payload"))
	require.NoError(t, err)
	require.NoError(t, pipeline.Finalize())

	assert.Equal(t, "payload", base.String())
	assert.Equal(t, "payload", side.String())
}

func TestCompressRoundTrips(t *testing.T) {
	base := nopCloser{&bytes.Buffer{}}
	chain := New(Compress(3))

	pipeline, err := chain.Build(base)
	require.NoError(t, err)

	_, err = pipeline.Writer().Write([]byte("compress me, please"))
	require.NoError(t, err)
	require.NoError(t, pipeline.Finalize())

	assert.NotEmpty(t, base.Bytes())
	assert.NotEqual(t, "compress me, please", base.String())
}
