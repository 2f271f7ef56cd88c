package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"strconv"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"racebot-stats/config"
	"racebot-stats/models"
	"racebot-stats/temperrors"
)

// s3API is the part of the S3 client the store needs.
type s3API interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	ListObjectsV2(ctx context.Context, params *s3.ListObjectsV2Input, optFns ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
}

// S3Store keeps snapshots in an S3-compatible bucket (AWS, R2, MinIO). A
// single PutObject replaces the object atomically.
type S3Store struct {
	client s3API
	bucket string
	prefix string
	codec  Codec
	locks  seasonLocks
	log    *slog.Logger
}

func NewS3Store(ctx context.Context, conf config.S3Config, log *slog.Logger) (*S3Store, error) {
	if conf.Bucket == "" {
		return nil, fmt.Errorf("%w: s3 bucket is required", temperrors.ErrInvalidConfig)
	}

	region := conf.Region
	if region == "" {
		region = "auto"
	}
	opts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(region)}
	if conf.AccessKey != "" && conf.SecretKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(conf.AccessKey, conf.SecretKey, "")))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if conf.Endpoint != "" {
			o.BaseEndpoint = aws.String(conf.Endpoint)
			o.UsePathStyle = true
		}
	})

	return newS3Store(client, conf.Bucket, conf.Prefix, log), nil
}

func newS3Store(client s3API, bucket, prefix string, log *slog.Logger) *S3Store {
	if log == nil {
		log = slog.Default()
	}
	return &S3Store{
		client: client,
		bucket: bucket,
		prefix: prefix,
		codec:  JSONCodec{},
		log:    log.With(slog.String("component", "s3store")),
	}
}

func (s *S3Store) key(season int) string {
	return s.prefix + strconv.Itoa(season) + s.codec.Ext()
}

func (s *S3Store) Save(ctx context.Context, season int, snap *models.Snapshot) error {
	if err := checkSnapshot(season, snap); err != nil {
		return err
	}

	unlock := s.locks.lock(season)
	defer unlock()
	return s.write(ctx, season, snap)
}

func (s *S3Store) Update(ctx context.Context, season int, fn UpdateFunc) (*models.Snapshot, error) {
	unlock := s.locks.lock(season)
	defer unlock()
	return update(ctx, season, s.Load, s.write, fn)
}

func (s *S3Store) write(ctx context.Context, season int, snap *models.Snapshot) error {
	data, err := s.codec.Encode(snap)
	if err != nil {
		return fmt.Errorf("error encoding snapshot %d: %w", season, err)
	}

	_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(s.key(season)),
		Body:        bytes.NewReader(data),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return fmt.Errorf("failed to upload snapshot %d: %w", season, err)
	}

	s.log.Debug("Snapshot uploaded", slog.Int("season", season), slog.String("key", s.key(season)), slog.Int("bytes", len(data)))
	return nil
}

func (s *S3Store) Load(ctx context.Context, season int) (*models.Snapshot, error) {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key(season)),
	})
	if err != nil {
		var nsk *types.NoSuchKey
		if errors.As(err, &nsk) {
			return nil, fmt.Errorf("season %d: %w", season, temperrors.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to download snapshot %d: %w", season, err)
	}
	defer out.Body.Close()

	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read snapshot %d: %w", season, err)
	}

	snap, err := s.codec.Decode(data)
	if err != nil {
		return nil, fmt.Errorf("error decoding snapshot %d: %w", season, err)
	}
	return snap, nil
}

func (s *S3Store) Seasons(ctx context.Context) ([]int, error) {
	var seasons []int
	input := &s3.ListObjectsV2Input{
		Bucket: aws.String(s.bucket),
		Prefix: aws.String(s.prefix),
	}

	for {
		out, err := s.client.ListObjectsV2(ctx, input)
		if err != nil {
			return nil, fmt.Errorf("failed to list snapshots: %w", err)
		}
		for _, obj := range out.Contents {
			name := strings.TrimPrefix(aws.ToString(obj.Key), s.prefix)
			season, err := strconv.Atoi(strings.TrimSuffix(name, s.codec.Ext()))
			if err != nil || !strings.HasSuffix(name, s.codec.Ext()) {
				continue
			}
			seasons = append(seasons, season)
		}
		if !aws.ToBool(out.IsTruncated) || out.NextContinuationToken == nil {
			break
		}
		input.ContinuationToken = out.NextContinuationToken
	}

	sort.Ints(seasons)
	return seasons, nil
}

func (s *S3Store) Close() error { return nil }
