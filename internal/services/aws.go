package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/charmbracelet/log"

	"github.com/desertthunder/voxup/internal/models"
	"github.com/desertthunder/voxup/internal/shared"
)

// batchGetLimit is the DynamoDB BatchGetItem key limit.
const batchGetLimit = 100

// ObjectStore is the subset of the S3 client used by [S3Transport].
type ObjectStore interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// UploadTable is the subset of the DynamoDB client used by [DynamoOracle] and [S3Transport].
type UploadTable interface {
	BatchGetItem(ctx context.Context, in *dynamodb.BatchGetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.BatchGetItemOutput, error)
	GetItem(ctx context.Context, in *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	PutItem(ctx context.Context, in *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
}

// uploadKey is the uploads table primary key.
type uploadKey struct {
	UserID   string `dynamodbav:"userId"`
	FileHash string `dynamodbav:"fileHash"`
}

// uploadRecord is one row of the uploads table.
type uploadRecord struct {
	UserID     string   `dynamodbav:"userId"`
	FileHash   string   `dynamodbav:"fileHash"`
	AudioID    string   `dynamodbav:"audioId"`
	FileName   string   `dynamodbav:"fileName"`
	UploadedAt string   `dynamodbav:"uploadedAt"`
	Metadata   Metadata `dynamodbav:"metadata"`
}

// NewAWSClients builds S3 and DynamoDB clients from cfg.
//
// Static credentials are used when both keys are set, otherwise the default chain applies.
// A custom endpoint (MinIO, LocalStack) switches S3 to path-style addressing.
func NewAWSClients(ctx context.Context, cfg shared.AWSConfig) (*s3.Client, *dynamodb.Client, error) {
	opts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(cfg.Region)}
	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: load aws config: %v", shared.ErrMissingCredentials, err)
	}

	s3Client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})
	dynamoClient := dynamodb.NewFromConfig(awsCfg, func(o *dynamodb.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
	})
	return s3Client, dynamoClient, nil
}

// DynamoOracle answers dedup checks directly from the uploads table.
type DynamoOracle struct {
	table  UploadTable
	name   string
	logger *log.Logger
}

// NewDynamoOracle creates an oracle over the named table.
func NewDynamoOracle(table UploadTable, name string, logger *log.Logger) *DynamoOracle {
	return &DynamoOracle{table: table, name: name, logger: logger}
}

// CheckRemoteStatus implements [Oracle]. Chunks that fail are logged and skipped.
func (o *DynamoOracle) CheckRemoteStatus(ctx context.Context, ownerID string, hashes []string) map[string]struct{} {
	stored := make(map[string]struct{})

	for _, batch := range chunk(hashes, batchGetLimit) {
		keys := make([]map[string]types.AttributeValue, 0, len(batch))
		for _, h := range batch {
			key, err := attributevalue.MarshalMap(uploadKey{UserID: ownerID, FileHash: h})
			if err != nil {
				o.logger.Warn("failed to marshal upload key", "hash", h, "error", err)
				continue
			}
			keys = append(keys, key)
		}
		if len(keys) == 0 {
			continue
		}

		out, err := o.table.BatchGetItem(ctx, &dynamodb.BatchGetItemInput{
			RequestItems: map[string]types.KeysAndAttributes{
				o.name: {Keys: keys},
			},
		})
		if err != nil {
			o.logger.Warn("dedup batch failed", "size", len(keys), "error", err)
			continue
		}

		var records []uploadKey
		if err := attributevalue.UnmarshalListOfMaps(out.Responses[o.name], &records); err != nil {
			o.logger.Warn("failed to decode dedup batch", "error", err)
			continue
		}
		for _, r := range records {
			if r.FileHash != "" {
				stored[r.FileHash] = struct{}{}
			}
		}
		if n := len(out.UnprocessedKeys[o.name].Keys); n > 0 {
			o.logger.Debug("dedup batch left keys unprocessed", "count", n)
		}
	}

	return stored
}

// S3Transport writes audio and metadata to S3 and records the upload in DynamoDB.
type S3Transport struct {
	objects ObjectStore
	table   UploadTable
	bucket  string
	name    string
	prefix  string
	logger  *log.Logger
	now     func() time.Time
}

// NewS3Transport creates a transport writing objects under prefix in bucket and rows to the named table.
func NewS3Transport(objects ObjectStore, table UploadTable, cfg shared.AWSConfig, logger *log.Logger) *S3Transport {
	return &S3Transport{
		objects: objects,
		table:   table,
		bucket:  cfg.Bucket,
		name:    cfg.Table,
		prefix:  cfg.Prefix,
		logger:  logger,
		now:     time.Now,
	}
}

// Upload implements [Transport].
//
// An existing (owner, hash) row short-circuits with success. The table row is written last so
// a partial failure never marks the hash as stored.
func (t *S3Transport) Upload(ctx context.Context, req models.UploadRequest) (bool, error) {
	key, err := attributevalue.MarshalMap(uploadKey{UserID: req.OwnerID, FileHash: req.Hash})
	if err != nil {
		return false, err
	}

	existing, err := t.table.GetItem(ctx, &dynamodb.GetItemInput{TableName: aws.String(t.name), Key: key})
	if err != nil {
		return false, fmt.Errorf("%w: lookup upload: %v", shared.ErrAPIRequest, err)
	}
	if len(existing.Item) > 0 {
		t.logger.Info("file already uploaded on server", "key", req.Key)
		return true, nil
	}

	now := t.now()
	audioID := shared.GenerateAttemptID(now)
	md := NewMetadata(req, now)
	ext := models.Item{Name: req.Name}.Ext()
	if ext == "" {
		ext = "opus"
	}
	objectKey := path.Join(t.prefix, req.OwnerID, audioID+"."+ext)

	f, err := os.Open(req.Key)
	if err != nil {
		return false, fmt.Errorf("failed to open %s: %w", req.Key, err)
	}
	defer f.Close()

	if _, err := t.objects.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(t.bucket),
		Key:         aws.String(objectKey),
		Body:        f,
		ContentType: aws.String(ContentType(req.Name)),
		Metadata: map[string]string{
			"userid":   req.OwnerID,
			"filehash": req.Hash,
		},
	}); err != nil {
		return false, fmt.Errorf("%w: put audio: %v", shared.ErrAPIRequest, err)
	}

	mdJSON, err := json.MarshalIndent(struct {
		Metadata
		UserID string `json:"userId"`
	}{md, req.OwnerID}, "", "  ")
	if err != nil {
		return false, err
	}
	if _, err := t.objects.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(t.bucket),
		Key:         aws.String(objectKey + ".metadata.json"),
		Body:        bytes.NewReader(mdJSON),
		ContentType: aws.String("application/json"),
	}); err != nil {
		return false, fmt.Errorf("%w: put metadata: %v", shared.ErrAPIRequest, err)
	}

	item, err := attributevalue.MarshalMap(uploadRecord{
		UserID:     req.OwnerID,
		FileHash:   req.Hash,
		AudioID:    audioID,
		FileName:   req.Name,
		UploadedAt: md.UploadedAt,
		Metadata:   md,
	})
	if err != nil {
		return false, err
	}
	if _, err := t.table.PutItem(ctx, &dynamodb.PutItemInput{TableName: aws.String(t.name), Item: item}); err != nil {
		return false, fmt.Errorf("%w: record upload: %v", shared.ErrAPIRequest, err)
	}

	t.logger.Debug("uploaded to s3", "key", req.Key, "object", objectKey)
	return true, nil
}
