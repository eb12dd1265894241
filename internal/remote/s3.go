package remote

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"go.uber.org/zap"

	"github.com/MarcoPoloResearchLab/yearsync/internal/syncdoc"
)

const defaultS3Region = "us-east-1"

var errMissingBucket = errors.New("remote: s3 bucket is required")

// S3Config configures the bucket-backed provider. Prefix plays the role of the private folder.
type S3Config struct {
	Bucket          string
	Region          string
	Endpoint        string
	Prefix          string
	UsePathStyle    bool
	AccessKeyID     string
	SecretAccessKey string
	DocumentName    string
	Retry           RetryConfig
	Logger          *zap.Logger
}

type s3API interface {
	HeadObject(ctx context.Context, params *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	DeleteObject(ctx context.Context, params *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
}

// S3Client keeps the document as one object under a key prefix.
type S3Client struct {
	api     s3API
	bucket  string
	key     string
	retryer *Retryer
	logger  *zap.Logger
}

// NewS3Client loads the default AWS configuration, optionally with static credentials and a custom endpoint.
func NewS3Client(ctx context.Context, cfg S3Config) (*S3Client, error) {
	if strings.TrimSpace(cfg.Bucket) == "" {
		return nil, errMissingBucket
	}
	region := cfg.Region
	if region == "" {
		region = defaultS3Region
	}

	loadOptions := []func(*config.LoadOptions) error{config.WithRegion(region)}
	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		loadOptions = append(loadOptions, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}
	awsConfig, err := config.LoadDefaultConfig(ctx, loadOptions...)
	if err != nil {
		return nil, fmt.Errorf("remote: load aws config: %w", err)
	}

	api := s3.NewFromConfig(awsConfig, func(options *s3.Options) {
		// Retries are owned by Retryer so that only 429 and 5xx are retried.
		options.Retryer = aws.NopRetryer{}
		if cfg.Endpoint != "" {
			options.BaseEndpoint = aws.String(cfg.Endpoint)
			options.UsePathStyle = cfg.UsePathStyle
		}
	})
	return newS3Client(api, cfg), nil
}

func newS3Client(api s3API, cfg S3Config) *S3Client {
	documentName := strings.TrimSpace(cfg.DocumentName)
	if documentName == "" {
		documentName = DefaultDocumentName
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	retry := cfg.Retry
	if retry.OnRetry == nil {
		retry.OnRetry = func(attempt int, err error) {
			logger.Warn("s3 request failed, retrying", zap.Int("attempt", attempt), zap.Error(err))
		}
	}
	return &S3Client{
		api:     api,
		bucket:  cfg.Bucket,
		key:     cfg.Prefix + documentName,
		retryer: NewRetryer(retry),
		logger:  logger,
	}
}

// Find heads the document key. The object key doubles as the file id.
func (c *S3Client) Find(ctx context.Context) (string, bool, error) {
	err := c.retryer.Do(ctx, func() error {
		_, err := c.api.HeadObject(ctx, &s3.HeadObjectInput{
			Bucket: aws.String(c.bucket),
			Key:    aws.String(c.key),
		})
		return classifyS3(err)
	})
	if err == nil {
		return c.key, true, nil
	}
	if StatusOf(err) == http.StatusNotFound {
		return "", false, nil
	}
	return "", false, err
}

// Read downloads and decodes the object.
func (c *S3Client) Read(ctx context.Context, fileID string) (syncdoc.Document, error) {
	payload, err := doWithResult(ctx, c.retryer, func() ([]byte, error) {
		output, err := c.api.GetObject(ctx, &s3.GetObjectInput{
			Bucket: aws.String(c.bucket),
			Key:    aws.String(c.objectKey(fileID)),
		})
		if err != nil {
			return nil, classifyS3(err)
		}
		defer output.Body.Close()
		payload, err := io.ReadAll(io.LimitReader(output.Body, maxDocumentBytes))
		if err != nil {
			return nil, classify(err)
		}
		return payload, nil
	})
	if err != nil {
		return nil, err
	}
	return decodeDocument(payload)
}

// Write puts the full document. Create and replace are the same call.
func (c *S3Client) Write(ctx context.Context, fileID string, doc syncdoc.DocumentV2) (string, error) {
	payload, err := syncdoc.Encode(doc)
	if err != nil {
		return "", invalidDocument(err)
	}
	key := c.objectKey(fileID)
	err = c.retryer.Do(ctx, func() error {
		_, err := c.api.PutObject(ctx, &s3.PutObjectInput{
			Bucket:      aws.String(c.bucket),
			Key:         aws.String(key),
			Body:        bytes.NewReader(payload),
			ContentType: aws.String("application/json"),
		})
		return classifyS3(err)
	})
	if err != nil {
		return "", err
	}
	return key, nil
}

// Delete removes the object. S3 reports success for missing keys, and a 404 is accepted too.
func (c *S3Client) Delete(ctx context.Context, fileID string) error {
	err := c.retryer.Do(ctx, func() error {
		_, err := c.api.DeleteObject(ctx, &s3.DeleteObjectInput{
			Bucket: aws.String(c.bucket),
			Key:    aws.String(c.objectKey(fileID)),
		})
		return classifyS3(err)
	})
	if StatusOf(err) == http.StatusNotFound {
		return nil
	}
	return err
}

func (c *S3Client) objectKey(fileID string) string {
	if fileID == "" {
		return c.key
	}
	return fileID
}

func classifyS3(err error) error {
	if err == nil {
		return nil
	}
	var noSuchKey *s3types.NoSuchKey
	if errors.As(err, &noSuchKey) {
		return &Error{Code: http.StatusNotFound, Message: err.Error(), err: err}
	}
	var notFound *s3types.NotFound
	if errors.As(err, &notFound) {
		return &Error{Code: http.StatusNotFound, Message: err.Error(), err: err}
	}
	return classify(err)
}
