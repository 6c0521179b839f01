package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3iface"
	"github.com/sdko-org/imgpress/internal/config"
	"github.com/sdko-org/imgpress/internal/errdefs"
	"github.com/sirupsen/logrus"
)

// S3Storage keeps artifacts as objects under an optional key prefix. Only
// keys directly under the prefix belong to the namespace.
type S3Storage struct {
	client s3iface.S3API
	bucket string
	prefix string
	log    *logrus.Entry
}

func NewS3Storage(logger *logrus.Logger, cfg *config.Config) (*S3Storage, error) {
	awsConfig := &aws.Config{
		Region:           aws.String(cfg.S3Region),
		Credentials:      credentials.NewStaticCredentials(cfg.S3AccessKey, cfg.S3SecretKey, ""),
		S3ForcePathStyle: aws.Bool(true),
	}

	if cfg.S3Endpoint != "" {
		awsConfig.Endpoint = aws.String(cfg.S3Endpoint)
	}

	sess, err := session.NewSession(awsConfig)
	if err != nil {
		return nil, fmt.Errorf("create aws session: %w", err)
	}

	return NewS3StorageWithClient(logger, s3.New(sess), cfg.S3Bucket, cfg.S3Prefix), nil
}

func NewS3StorageWithClient(logger *logrus.Logger, client s3iface.S3API, bucket, prefix string) *S3Storage {
	if prefix != "" && !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}
	return &S3Storage{
		client: client,
		bucket: bucket,
		prefix: prefix,
		log: logger.WithFields(logrus.Fields{
			"component": "s3_storage",
			"bucket":    bucket,
		}),
	}
}

func (s *S3Storage) key(name string) string {
	return s.prefix + name
}

func (s *S3Storage) Location(name string) string {
	return fmt.Sprintf("s3://%s/%s", s.bucket, s.key(name))
}

// Put refuses existing keys. The existence check and the upload are two
// requests, which is fine because callers generate unique names.
func (s *S3Storage) Put(ctx context.Context, name string, content io.Reader) (int64, error) {
	if !ValidName(name) {
		return 0, errdefs.Wrap(errdefs.ErrIO, fmt.Errorf("invalid artifact name %q", name))
	}
	if _, err := s.Stat(ctx, name); err == nil {
		return 0, alreadyExists(name)
	} else if !errdefs.IsNotFound(err) {
		return 0, err
	}

	body, err := io.ReadAll(content)
	if err != nil {
		return 0, errdefs.Wrap(errdefs.ErrIO, fmt.Errorf("read %s: %w", name, err))
	}

	_, err = s.client.PutObjectWithContext(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(s.key(name)),
		Body:        bytes.NewReader(body),
		ContentType: aws.String(http.DetectContentType(body)),
	})
	if err != nil {
		return 0, errdefs.Wrap(errdefs.ErrIO, fmt.Errorf("s3 upload failed: %w", err))
	}

	s.log.WithFields(logrus.Fields{"key": s.key(name), "bytes": len(body)}).Debug("Stored artifact")
	return int64(len(body)), nil
}

func (s *S3Storage) List(ctx context.Context, prefix string) ([]string, error) {
	var names []string
	err := s.client.ListObjectsV2PagesWithContext(ctx, &s3.ListObjectsV2Input{
		Bucket: aws.String(s.bucket),
		Prefix: aws.String(s.prefix + prefix),
	}, func(page *s3.ListObjectsV2Output, lastPage bool) bool {
		for _, obj := range page.Contents {
			name := strings.TrimPrefix(aws.StringValue(obj.Key), s.prefix)
			if ValidName(name) {
				names = append(names, name)
			}
		}
		return true
	})
	if err != nil {
		return nil, errdefs.Wrap(errdefs.ErrIO, fmt.Errorf("s3 list failed: %w", err))
	}
	return names, nil
}

func (s *S3Storage) Stat(ctx context.Context, name string) (FileInfo, error) {
	if !ValidName(name) {
		return FileInfo{}, invalidName(name)
	}
	out, err := s.client.HeadObjectWithContext(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key(name)),
	})
	if err != nil {
		return FileInfo{}, mapS3Error(name, err)
	}
	return FileInfo{
		Name:      name,
		Size:      aws.Int64Value(out.ContentLength),
		CreatedAt: aws.TimeValue(out.LastModified),
	}, nil
}

func (s *S3Storage) Get(ctx context.Context, name string) (io.ReadCloser, error) {
	if !ValidName(name) {
		return nil, invalidName(name)
	}
	resp, err := s.client.GetObjectWithContext(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key(name)),
	})
	if err != nil {
		return nil, mapS3Error(name, err)
	}
	return resp.Body, nil
}

func (s *S3Storage) Delete(ctx context.Context, name string) error {
	if !ValidName(name) {
		return invalidName(name)
	}
	_, err := s.client.DeleteObjectWithContext(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key(name)),
	})
	if err != nil {
		return mapS3Error(name, err)
	}
	return nil
}

func mapS3Error(name string, err error) error {
	if isS3NotFound(err) {
		return errdefs.Wrap(errdefs.ErrNotFound, fmt.Errorf("%s: %w", name, err))
	}
	return errdefs.Wrap(errdefs.ErrIO, err)
}

func isS3NotFound(err error) bool {
	if reqErr, ok := err.(awserr.RequestFailure); ok && reqErr.StatusCode() == http.StatusNotFound {
		return true
	}
	if aerr, ok := err.(awserr.Error); ok {
		switch aerr.Code() {
		case s3.ErrCodeNoSuchKey, "NotFound":
			return true
		}
	}
	return false
}
