package objectstore

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/cuemby/sentryd/pkg/apierr"
)

// uploadPartSize is the multipart part size used when writing objects.
const uploadPartSize = 8 * 1024 * 1024

// readChunkSize is the ranged-GET chunk size used when reading objects.
const readChunkSize = 8 * 1024 * 1024

// S3Store stores objects in an S3-compatible bucket via multipart upload
// and ranged reads.
type S3Store struct {
	client *s3.Client
	bucket string
}

// S3Config names the connection details for an S3-compatible endpoint.
type S3Config struct {
	Bucket          string
	Region          string
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
	ForcePathStyle  bool
}

// NewS3Store builds a Store backed by the named bucket.
func NewS3Store(ctx context.Context, cfg S3Config) (*S3Store, error) {
	var opts []func(*config.LoadOptions) error
	if cfg.Region != "" {
		opts = append(opts, config.WithRegion(cfg.Region))
	}
	if cfg.AccessKeyID != "" {
		opts = append(opts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}

	awsCfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, apierr.Wrap(apierr.CodeConfigError, "loading S3 client config", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		o.UsePathStyle = cfg.ForcePathStyle
	})

	return &S3Store{client: client, bucket: cfg.Bucket}, nil
}

func (s *S3Store) Writer(ctx context.Context, key string, overwrite bool) (WriteCloser, error) {
	if !overwrite {
		_, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{Bucket: &s.bucket, Key: &key})
		if err == nil {
			return nil, apierr.New(apierr.CodeConflict, fmt.Sprintf("object %q already exists", key))
		}
	}

	resp, err := s.client.CreateMultipartUpload(ctx, &s3.CreateMultipartUploadInput{
		Bucket: &s.bucket,
		Key:    &key,
	})
	if err != nil {
		return nil, apierr.Wrap(apierr.CodeCannotCreateSink, "creating S3 multipart upload", err)
	}

	return &s3Writer{
		ctx:      ctx,
		client:   s.client,
		bucket:   s.bucket,
		key:      key,
		uploadID: *resp.UploadId,
		buf:      make([]byte, 0, uploadPartSize),
		partNum:  1,
	}, nil
}

func (s *S3Store) Reader(ctx context.Context, key string) (ReadCloser, error) {
	_, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{Bucket: &s.bucket, Key: &key})
	if err != nil {
		var notFound *types.NotFound
		if errors.As(err, &notFound) {
			return nil, apierr.Wrap(apierr.CodeNotFound, fmt.Sprintf("object %q not found", key), err)
		}
		return nil, apierr.Wrap(apierr.CodeUnreadable, "checking S3 object", err)
	}
	return &s3Reader{ctx: ctx, client: s.client, bucket: s.bucket, key: key}, nil
}

func (s *S3Store) ListAll(ctx context.Context) ([]string, error) {
	return s.listMatching(ctx, func(string) bool { return true })
}

func (s *S3Store) ListAllAfter(ctx context.Context, prefix string) ([]string, error) {
	return s.listMatching(ctx, func(key string) bool { return key > prefix })
}

func (s *S3Store) Find(ctx context.Context, prefix string) ([]string, error) {
	return s.listMatching(ctx, func(key string) bool { return strings.HasPrefix(key, prefix) })
}

func (s *S3Store) listMatching(ctx context.Context, keep func(string) bool) ([]string, error) {
	var keys []string
	var token *string

	for {
		resp, err := s.client.ListObjectsV2(ctx, &s3.ListObjectsV2Input{
			Bucket:            &s.bucket,
			ContinuationToken: token,
		})
		if err != nil {
			return nil, apierr.Wrap(apierr.CodeUnreadable, "listing S3 objects", err)
		}

		for _, obj := range resp.Contents {
			if obj.Key != nil && keep(*obj.Key) {
				keys = append(keys, *obj.Key)
			}
		}

		if resp.IsTruncated != nil && *resp.IsTruncated {
			token = resp.NextContinuationToken
			continue
		}
		break
	}

	sort.Strings(keys)
	return keys, nil
}

func (s *S3Store) Metadata(ctx context.Context, key string) (Metadata, error) {
	resp, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{Bucket: &s.bucket, Key: &key})
	if err != nil {
		var notFound *types.NotFound
		if errors.As(err, &notFound) {
			return Metadata{}, apierr.Wrap(apierr.CodeNotFound, fmt.Sprintf("object %q not found", key), err)
		}
		return Metadata{}, apierr.Wrap(apierr.CodeUnreadable, "statting S3 object", err)
	}

	var size uint64
	if resp.ContentLength != nil {
		size = saturatingInt64ToUint64(*resp.ContentLength)
	}

	var createdAt = resp.LastModified
	if createdAt == nil {
		return Metadata{}, apierr.New(apierr.CodeUnreadable, "S3 object has no last_modified timestamp")
	}

	return Metadata{Key: key, Size: size, CreatedAt: *createdAt}, nil
}

func (s *S3Store) Delete(ctx context.Context, key string) error {
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{Bucket: &s.bucket, Key: &key})
	if err != nil {
		return apierr.Wrap(apierr.CodeUnreadable, "deleting S3 object", err)
	}
	return nil
}

// saturatingInt64ToUint64 clamps a negative int64 to 0, matching the
// numeric semantics spec.md requires for size_bytes.
func saturatingInt64ToUint64(v int64) uint64 {
	if v < 0 {
		return 0
	}
	return uint64(v)
}

var _ Store = (*S3Store)(nil)

// s3Writer buffers writes into uploadPartSize-sized parts and issues one
// UploadPart call per full buffer; Close flushes the remainder and commits
// the upload. An unclosed or failed writer never calls
// CompleteMultipartUpload, so the object never becomes visible.
type s3Writer struct {
	ctx      context.Context
	client   *s3.Client
	bucket   string
	key      string
	uploadID string
	buf      []byte
	parts    []types.CompletedPart
	partNum  int32
}

func (w *s3Writer) Write(p []byte) (int, error) {
	w.buf = append(w.buf, p...)
	if len(w.buf) >= uploadPartSize {
		if err := w.flushPart(); err != nil {
			return 0, err
		}
	}
	return len(p), nil
}

func (w *s3Writer) flushPart() error {
	if len(w.buf) == 0 {
		return nil
	}

	resp, err := w.client.UploadPart(w.ctx, &s3.UploadPartInput{
		Bucket:     &w.bucket,
		Key:        &w.key,
		UploadId:   &w.uploadID,
		PartNumber: aws.Int32(w.partNum),
		Body:       bytes.NewReader(w.buf),
	})
	if err != nil {
		return apierr.Wrap(apierr.CodeCannotCreateSink, "S3 multipart upload part failed", err)
	}

	w.parts = append(w.parts, types.CompletedPart{
		PartNumber: aws.Int32(w.partNum),
		ETag:       resp.ETag,
	})
	w.partNum++
	w.buf = w.buf[:0]
	return nil
}

func (w *s3Writer) Close() error {
	if err := w.flushPart(); err != nil {
		return err
	}

	_, err := w.client.CompleteMultipartUpload(w.ctx, &s3.CompleteMultipartUploadInput{
		Bucket:   &w.bucket,
		Key:      &w.key,
		UploadId: &w.uploadID,
		MultipartUpload: &types.CompletedMultipartUpload{
			Parts: w.parts,
		},
	})
	if err != nil {
		return apierr.Wrap(apierr.CodeCannotCreateSink, "S3 multipart upload complete failed", err)
	}
	return nil
}

// s3Reader serves sequential reads by issuing readChunkSize ranged GETs.
type s3Reader struct {
	ctx    context.Context
	client *s3.Client
	bucket string
	key    string
	buf    []byte
	pos    int
	offset int64
	eof    bool
}

func (r *s3Reader) Read(out []byte) (int, error) {
	if r.pos == len(r.buf) && !r.eof {
		if err := r.refill(); err != nil {
			return 0, err
		}
	}
	if r.pos == len(r.buf) {
		return 0, io.EOF
	}

	n := copy(out, r.buf[r.pos:])
	r.pos += n
	return n, nil
}

func (r *s3Reader) refill() error {
	rangeHeader := fmt.Sprintf("bytes=%d-%d", r.offset, r.offset+readChunkSize-1)

	resp, err := r.client.GetObject(r.ctx, &s3.GetObjectInput{
		Bucket: &r.bucket,
		Key:    &r.key,
		Range:  &rangeHeader,
	})
	if err != nil {
		return apierr.Wrap(apierr.CodeUnreadable, "S3 ranged GET failed", err)
	}
	defer resp.Body.Close()

	var buf bytes.Buffer
	if _, err := buf.ReadFrom(resp.Body); err != nil {
		return apierr.Wrap(apierr.CodeUnreadable, "reading S3 response body", err)
	}

	if buf.Len() == 0 {
		r.eof = true
		return nil
	}

	r.offset += int64(buf.Len())
	r.buf = buf.Bytes()
	r.pos = 0
	return nil
}

func (r *s3Reader) Close() error { return nil }
