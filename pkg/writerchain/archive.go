package writerchain

import (
	"archive/tar"
	"io"
	"os"
	"path/filepath"

	"github.com/cuemby/sentryd/pkg/apierr"
)

// ArchivePath maps a local filesystem path to the name it is packed under
// inside the tar archive.
type ArchivePath struct {
	LocalPath   string
	ArchivePath string
}

// ArchiveSink wraps a tar.Writer. Finalize writes the two all-zero
// trailing blocks tar requires without closing inner.
type ArchiveSink struct {
	tw    *tar.Writer
	paths []ArchivePath
}

// Archive returns the tar-archiving Layer, outermost in the chain. It
// performs the pre-flight existence check spec.md §4.2 requires before any
// byte is written to the sink: a missing configured path fails the whole
// Build call with MISSING_FILE.
func Archive(paths []ArchivePath) Layer {
	return LayerFunc(func(inner io.Writer) (Sink, error) {
		for _, p := range paths {
			if _, err := os.Stat(p.LocalPath); err != nil {
				return nil, apierr.Wrap(apierr.CodeMissingFile, "archiving path does not exist: "+p.LocalPath, err)
			}
		}
		return &ArchiveSink{tw: tar.NewWriter(inner), paths: paths}, nil
	})
}

func (a *ArchiveSink) Write(p []byte) (int, error) { return a.tw.Write(p) }

func (a *ArchiveSink) Finalize() error {
	if err := a.tw.Close(); err != nil {
		return apierr.Wrap(apierr.CodeArchiveFailed, "closing tar archive", err)
	}
	return nil
}

// TarWriter exposes the underlying tar.Writer so callers can stream the
// frontend sub-archive's own entries through before appending local trees.
func (a *ArchiveSink) TarWriter() *tar.Writer { return a.tw }

// AppendTrees packs every configured local path into the archive under
// its configured archive path, matching the order paths were configured
// in. Must be called after any frontend sub-archive entries so the
// frontend's entries appear first in the tar, per spec.md §6.
func (a *ArchiveSink) AppendTrees() error {
	for _, p := range a.paths {
		if err := appendTree(a.tw, p.LocalPath, p.ArchivePath); err != nil {
			return apierr.Wrap(apierr.CodeCannotArchive, "archiving "+p.LocalPath, err)
		}
	}
	return nil
}

func appendTree(tw *tar.Writer, localPath, archivePath string) error {
	info, err := os.Stat(localPath)
	if err != nil {
		return err
	}

	if !info.IsDir() {
		return appendFile(tw, localPath, archivePath, info)
	}

	return filepath.Walk(localPath, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(localPath, path)
		if err != nil {
			return err
		}
		name := archivePath
		if rel != "." {
			name = filepath.Join(archivePath, rel)
		}
		if info.IsDir() {
			header, err := tar.FileInfoHeader(info, "")
			if err != nil {
				return err
			}
			header.Name = name + "/"
			return tw.WriteHeader(header)
		}
		return appendFile(tw, path, name, info)
	})
}

func appendFile(tw *tar.Writer, path, archiveName string, info os.FileInfo) error {
	header, err := tar.FileInfoHeader(info, "")
	if err != nil {
		return err
	}
	header.Name = archiveName

	if err := tw.WriteHeader(header); err != nil {
		return err
	}

	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	_, err = io.Copy(tw, f)
	return err
}

// ArchiveSinkFrom type-asserts the outermost Sink of a pipeline built with
// an Archive layer as its last layer.
func ArchiveSinkFrom(sink Sink) (*ArchiveSink, bool) {
	s, ok := sink.(*ArchiveSink)
	return s, ok
}
