package blob

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
)

// S3Client captures the subset of the AWS SDK client used by S3
type S3Client interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// S3 stores the object in an S3-compatible bucket
type S3 struct {
	client      S3Client
	bucket      string
	key         string
	contentType string
}

// NewS3 creates a blob for bucket/key
func NewS3(client S3Client, bucket, key string) *S3 {
	return &S3{client: client, bucket: bucket, key: key, contentType: contentTypeFor(key)}
}

func (s *S3) Read(ctx context.Context) ([]byte, error) {
	data, _, err := s.ReadVersion(ctx)
	return data, err
}

// ReadVersion returns the object and its ETag
func (s *S3) ReadVersion(ctx context.Context) ([]byte, Version, error) {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key),
	})
	if err != nil {
		var noKey *types.NoSuchKey
		if errors.As(err, &noKey) {
			return nil, "", ErrNotFound
		}
		return nil, "", fmt.Errorf("failed to get s3://%s/%s: %w", s.bucket, s.key, err)
	}
	defer out.Body.Close()

	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, "", fmt.Errorf("failed to read s3://%s/%s: %w", s.bucket, s.key, err)
	}
	return data, Version(aws.ToString(out.ETag)), nil
}

func (s *S3) Write(ctx context.Context, data []byte) error {
	_, err := s.put(ctx, data, nil)
	return err
}

// WriteIf uses a conditional PUT: If-Match on the ETag that was read, or
// If-None-Match: * when the object did not exist
func (s *S3) WriteIf(ctx context.Context, data []byte, v Version) (Version, error) {
	cond := func(in *s3.PutObjectInput) {
		if v == "" {
			in.IfNoneMatch = aws.String("*")
		} else {
			in.IfMatch = aws.String(string(v))
		}
	}
	return s.put(ctx, data, cond)
}

func (s *S3) put(ctx context.Context, data []byte, cond func(*s3.PutObjectInput)) (Version, error) {
	in := &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(s.key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String(s.contentType),
	}
	if cond != nil {
		cond(in)
	}

	out, err := s.client.PutObject(ctx, in)
	if err != nil {
		if cond != nil && preconditionFailed(err) {
			return "", ErrConflict
		}
		return "", fmt.Errorf("failed to put s3://%s/%s: %w", s.bucket, s.key, err)
	}
	return Version(aws.ToString(out.ETag)), nil
}

// preconditionFailed reports whether S3 rejected a conditional write because
// the object changed or was removed
func preconditionFailed(err error) bool {
	var noKey *types.NoSuchKey
	if errors.As(err, &noKey) {
		return true
	}
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "PreconditionFailed", "ConditionalRequestConflict", "NoSuchKey":
			return true
		}
	}
	return false
}

// NewS3Client builds a client for an AWS or S3-compatible endpoint
func NewS3Client(region, endpoint string, pathStyle bool, creds aws.CredentialsProvider) *s3.Client {
	return s3.New(s3.Options{
		Region:       region,
		BaseEndpoint: optional(endpoint),
		UsePathStyle: pathStyle,
		Credentials:  creds,
	})
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return aws.String(s)
}

func contentTypeFor(key string) string {
	if strings.HasSuffix(strings.ToLower(key), ".js") {
		return "application/javascript"
	}
	return "application/json"
}
