package collision

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
)

// MaxMapSize bounds the bytes read from any source.
const MaxMapSize = 8 << 20

// BuiltinBar names the map compiled into the binary.
const BuiltinBar = "builtin:bar"

var (
	// ErrMapTooLarge is returned when a source exceeds MaxMapSize.
	ErrMapTooLarge = errors.New("collision: map exceeds size limit")

	// ErrMapNotFound is returned when a source has no object at its location.
	ErrMapNotFound = errors.New("collision: map not found")

	// ErrNoS3Client is returned when an s3:// location is given without a client.
	ErrNoS3Client = errors.New("collision: s3 location requires a client")
)

// Source yields raw Tiled JSON.
type Source interface {
	// Open returns a reader over the map bytes. The caller closes it.
	Open(ctx context.Context) (io.ReadCloser, error)
	// String describes the location for logs.
	String() string
}

// FileSource reads a map from the local filesystem.
type FileSource struct {
	Path string
}

// Open implements Source.
func (f FileSource) Open(ctx context.Context) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r, err := os.Open(f.Path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrMapNotFound, f.Path)
	}
	return r, err
}

func (f FileSource) String() string { return f.Path }

// GetObjectAPI is the subset of *s3.Client used by S3Source.
type GetObjectAPI interface {
	GetObject(ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// S3Source reads a map object from S3.
type S3Source struct {
	API    GetObjectAPI
	Bucket string
	Key    string
}

// Open implements Source.
func (s S3Source) Open(ctx context.Context) (io.ReadCloser, error) {
	if s.API == nil {
		return nil, ErrNoS3Client
	}
	out, err := s.API.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.Bucket),
		Key:    aws.String(s.Key),
	})
	if err != nil {
		var nsk *types.NoSuchKey
		if errors.As(err, &nsk) {
			return nil, fmt.Errorf("%w: %s", ErrMapNotFound, s)
		}
		return nil, fmt.Errorf("collision: get %s: %w", s, err)
	}
	if out.ContentLength != nil && *out.ContentLength > MaxMapSize {
		out.Body.Close()
		return nil, fmt.Errorf("%w: %s is %d bytes", ErrMapTooLarge, s, *out.ContentLength)
	}
	return out.Body, nil
}

func (s S3Source) String() string { return "s3://" + s.Bucket + "/" + s.Key }

type builtinSource struct{}

func (builtinSource) Open(context.Context) (io.ReadCloser, error) {
	data, err := json.Marshal(BarMap())
	if err != nil {
		return nil, err
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (builtinSource) String() string { return BuiltinBar }

// ParseSource resolves a location string. "s3://bucket/key" yields an
// S3Source using api, BuiltinBar yields the compiled-in map, and anything
// else is treated as a file path.
func ParseSource(location string, api GetObjectAPI) (Source, error) {
	switch {
	case location == BuiltinBar:
		return builtinSource{}, nil
	case strings.HasPrefix(location, "s3://"):
		rest := strings.TrimPrefix(location, "s3://")
		bucket, key, ok := strings.Cut(rest, "/")
		if !ok || bucket == "" || key == "" {
			return nil, fmt.Errorf("collision: invalid s3 location %q", location)
		}
		if api == nil {
			return nil, ErrNoS3Client
		}
		return S3Source{API: api, Bucket: bucket, Key: key}, nil
	case location == "":
		return nil, errors.New("collision: empty map location")
	default:
		return FileSource{Path: location}, nil
	}
}

// Load reads and parses a map from src.
func Load(ctx context.Context, src Source) (*Tilemap, error) {
	r, err := src.Open(ctx)
	if err != nil {
		return nil, err
	}
	defer r.Close()

	data, err := io.ReadAll(io.LimitReader(r, MaxMapSize+1))
	if err != nil {
		return nil, fmt.Errorf("collision: read %s: %w", src, err)
	}
	if len(data) > MaxMapSize {
		return nil, fmt.Errorf("%w: %s", ErrMapTooLarge, src)
	}
	m, err := ParseTiled(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", src, err)
	}
	return m, nil
}

// S3Options configures NewS3Client.
type S3Options struct {
	Region string
	// Endpoint overrides the service endpoint, e.g. for MinIO.
	Endpoint     string
	UsePathStyle bool
	// AccessKeyID and SecretAccessKey are static credentials. When empty,
	// requests are sent anonymously.
	AccessKeyID     string
	SecretAccessKey string
}

// NewS3Client builds an S3 client from explicit options.
func NewS3Client(opts S3Options) *s3.Client {
	o := s3.Options{
		Region:       opts.Region,
		UsePathStyle: opts.UsePathStyle,
		Credentials:  aws.AnonymousCredentials{},
	}
	if o.Region == "" {
		o.Region = "us-east-1"
	}
	if opts.Endpoint != "" {
		o.BaseEndpoint = aws.String(opts.Endpoint)
	}
	if opts.AccessKeyID != "" {
		key, secret := opts.AccessKeyID, opts.SecretAccessKey
		o.Credentials = aws.CredentialsProviderFunc(func(context.Context) (aws.Credentials, error) {
			return aws.Credentials{AccessKeyID: key, SecretAccessKey: secret, Source: "bar-config"}, nil
		})
	}
	return s3.New(o)
}
