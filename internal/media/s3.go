package media

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awscfg "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/sony/gobreaker"

	"messenger-service/internal/models"
)

// Uploader is the part of manager.Uploader the store needs.
type Uploader interface {
	Upload(ctx context.Context, input *s3.PutObjectInput, opts ...func(*manager.Uploader)) (*manager.UploadOutput, error)
}

// S3Config selects the bucket and how public URLs are built.
type S3Config struct {
	Bucket        string
	Region        string
	Endpoint      string
	PublicBaseURL string
}

// NewS3Uploader builds a multipart uploader from the default AWS credential chain.
// A custom endpoint (MinIO, localstack) switches to path-style addressing.
func NewS3Uploader(ctx context.Context, cfg S3Config) (*manager.Uploader, error) {
	awsCfg, err := awscfg.LoadDefaultConfig(ctx, awscfg.WithRegion(cfg.Region))
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})
	return manager.NewUploader(client), nil
}

// S3Store uploads media through a circuit breaker, adds JPEG thumbnails for
// images and records metadata.
type S3Store struct {
	uploader Uploader
	cfg      S3Config
	breaker  *gobreaker.CircuitBreaker
	recorder Recorder
	log      logrus.FieldLogger
	now      func() time.Time
}

// NewS3Store constructs an S3Store. A nil recorder disables metadata records.
func NewS3Store(uploader Uploader, cfg S3Config, recorder Recorder, logger logrus.FieldLogger) *S3Store {
	log := logger.WithField("component", "media")
	if recorder == nil {
		recorder = NopRecorder{}
	}
	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "s3-upload",
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			log.WithFields(logrus.Fields{"breaker": name, "from": from.String(), "to": to.String()}).Warn("circuit breaker state")
		},
	})
	return &S3Store{uploader: uploader, cfg: cfg, breaker: breaker, recorder: recorder, log: log, now: time.Now}
}

// Store uploads obj. Any failure of the blob store is wrapped in ErrUpload.
func (s *S3Store) Store(ctx context.Context, obj Object) (Stored, error) {
	data, err := io.ReadAll(obj.Body)
	if err != nil {
		return Stored{}, fmt.Errorf("read upload: %w", err)
	}

	id := uuid.NewString()
	key := obj.ChatID + "/" + id + "_" + cleanFilename(obj.Filename)
	stored := Stored{Key: key, URL: s.publicURL(key), Type: TypeFor(obj.ContentType)}

	if err := s.put(ctx, key, obj.ContentType, data); err != nil {
		return Stored{}, err
	}

	if stored.Type == models.MessageImage {
		thumbKey := key + "_thumb.jpg"
		thumb, err := Thumbnail(data)
		if err != nil {
			s.log.WithError(err).WithField("key", key).Debug("thumbnail skipped")
		} else if err := s.put(ctx, thumbKey, "image/jpeg", thumb); err != nil {
			s.log.WithError(err).WithField("key", thumbKey).Warn("thumbnail upload failed")
		} else {
			stored.ThumbnailURL = s.publicURL(thumbKey)
		}
	}

	rec := Record{
		ID:           id,
		OwnerID:      obj.OwnerID,
		ChatID:       obj.ChatID,
		Key:          key,
		URL:          stored.URL,
		ThumbnailURL: stored.ThumbnailURL,
		Type:         string(stored.Type),
		ContentType:  obj.ContentType,
		Size:         int64(len(data)),
		CreatedAt:    s.now().UTC(),
	}
	if err := s.recorder.Record(ctx, rec); err != nil {
		s.log.WithError(err).WithField("key", key).Warn("media metadata not recorded")
	}
	return stored, nil
}

func (s *S3Store) put(ctx context.Context, key, contentType string, data []byte) error {
	_, err := s.breaker.Execute(func() (interface{}, error) {
		return s.uploader.Upload(ctx, &s3.PutObjectInput{
			Bucket:      aws.String(s.cfg.Bucket),
			Key:         aws.String(key),
			Body:        bytes.NewReader(data),
			ContentType: aws.String(contentType),
		})
	})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUpload, err)
	}
	return nil
}

func (s *S3Store) publicURL(key string) string {
	escaped := (&url.URL{Path: key}).EscapedPath()
	if s.cfg.PublicBaseURL != "" {
		return strings.TrimRight(s.cfg.PublicBaseURL, "/") + "/" + escaped
	}
	return fmt.Sprintf("https://%s.s3.%s.amazonaws.com/%s", s.cfg.Bucket, s.cfg.Region, escaped)
}

func cleanFilename(name string) string {
	name = path.Base(strings.ReplaceAll(name, "\\", "/"))
	if name == "." || name == "/" || name == "" {
		return "upload"
	}
	return strings.ReplaceAll(name, " ", "_")
}
