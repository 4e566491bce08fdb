// Package mlops runs the offline model lifecycle: artifact storage, the
// local model cache, active-model loading, and the scheduled training and
// promotion pipeline.
package mlops

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"go.uber.org/zap"
)

// ArtifactStore keeps serialized model artifacts in S3-compatible object
// storage, keyed by version. The registry row only ever references an
// artifact that finished uploading.
type ArtifactStore struct {
	client *s3.Client
	bucket string
	logger *zap.Logger
}

// ArtifactConfig configures the object storage connection.
type ArtifactConfig struct {
	Endpoint  string
	Region    string
	Bucket    string
	AccessKey string
	SecretKey string
}

// NewArtifactStore creates an artifact store against S3-compatible storage.
func NewArtifactStore(cfg ArtifactConfig, logger *zap.Logger) (*ArtifactStore, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(context.Background(),
		awsconfig.WithRegion(cfg.Region),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, "")),
	)
	if err != nil {
		return nil, fmt.Errorf("load object storage config: %w", err)
	}

	if cfg.Endpoint != "" {
		awsCfg.BaseEndpoint = aws.String(cfg.Endpoint)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.UsePathStyle = true
		}
	})

	return &ArtifactStore{
		client: client,
		bucket: cfg.Bucket,
		logger: logger.With(zap.String("component", "artifact-store")),
	}, nil
}

// artifactKey builds the object key for a model version.
func artifactKey(version string) string {
	return fmt.Sprintf("models/%s.json", version)
}

// Upload stores one serialized model artifact and returns its checksum.
func (a *ArtifactStore) Upload(ctx context.Context, version string, artifact []byte) (string, error) {
	hash := sha256.Sum256(artifact)
	checksum := hex.EncodeToString(hash[:])
	key := artifactKey(version)

	_, err := a.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(a.bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(artifact),
		ContentType:   aws.String("application/json"),
		ContentLength: aws.Int64(int64(len(artifact))),
		Metadata: map[string]string{
			"checksum": checksum,
			"version":  version,
		},
	})
	if err != nil {
		return "", fmt.Errorf("upload model artifact %s: %w", version, err)
	}

	a.logger.Info("model artifact uploaded",
		zap.String("version", version),
		zap.String("key", key),
		zap.String("checksum", checksum),
		zap.Int("size_bytes", len(artifact)),
	)
	return checksum, nil
}

// Download fetches the artifact for a model version.
func (a *ArtifactStore) Download(ctx context.Context, version string) ([]byte, error) {
	out, err := a.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(a.bucket),
		Key:    aws.String(artifactKey(version)),
	})
	if err != nil {
		return nil, fmt.Errorf("download model artifact %s: %w", version, err)
	}
	defer out.Body.Close()

	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, fmt.Errorf("read model artifact %s: %w", version, err)
	}
	return data, nil
}

// Delete removes an artifact, used to clean up after a failed promotion.
func (a *ArtifactStore) Delete(ctx context.Context, version string) error {
	_, err := a.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(a.bucket),
		Key:    aws.String(artifactKey(version)),
	})
	if err != nil {
		return fmt.Errorf("delete model artifact %s: %w", version, err)
	}
	return nil
}
