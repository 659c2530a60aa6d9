// Package archive uploads the history of finished matches to S3.
package archive

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/krishanu7/battleship-engine/internal/game"
	"github.com/krishanu7/battleship-engine/pkg/logging"
	"go.uber.org/zap"
)

type Config struct {
	Bucket          string
	Region          string
	Endpoint        string // S3 compatible endpoint, empty for AWS
	AccessKeyID     string
	SecretAccessKey string
}

// ObjectPutter is the part of the S3 client the archiver uses.
type ObjectPutter interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// HistorySource builds the history document of a match.
type HistorySource interface {
	History(ctx context.Context, matchID string) (*game.History, error)
}

type S3Archiver struct {
	client  ObjectPutter
	bucket  string
	history HistorySource
}

// NewS3Client loads the default AWS config, using static credentials when
// they are configured.
func NewS3Client(ctx context.Context, cfg Config) (*s3.Client, error) {
	opts := []func(*config.LoadOptions) error{config.WithRegion(cfg.Region)}
	if cfg.AccessKeyID != "" {
		opts = append(opts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}
	awsCfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load aws config: %w", err)
	}
	return s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	}), nil
}

func NewS3Archiver(client ObjectPutter, bucket string, history HistorySource) *S3Archiver {
	return &S3Archiver{client: client, bucket: bucket, history: history}
}

func Key(matchID string) string {
	return "matches/" + matchID + ".json"
}

// Archive uploads the match history. Its signature fits a finish hook.
func (a *S3Archiver) Archive(ctx context.Context, m game.Match) {
	if err := a.Upload(ctx, m.ID); err != nil {
		logging.Error("failed to archive match", zap.String("match_id", m.ID), zap.Error(err))
		return
	}
	logging.Info("match archived", zap.String("match_id", m.ID), zap.String("bucket", a.bucket))
}

func (a *S3Archiver) Upload(ctx context.Context, matchID string) error {
	h, err := a.history.History(ctx, matchID)
	if err != nil {
		return fmt.Errorf("failed to load history: %w", err)
	}
	body, err := json.Marshal(h)
	if err != nil {
		return err
	}
	_, err = a.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(a.bucket),
		Key:         aws.String(Key(matchID)),
		Body:        bytes.NewReader(body),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return fmt.Errorf("failed to upload to s3: %w", err)
	}
	return nil
}
