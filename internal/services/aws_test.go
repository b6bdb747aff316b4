package services

import (
	"context"
	"errors"
	"io"
	"strconv"
	"strings"
	"sync"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/desertthunder/voxup/internal/shared"
	tu "github.com/desertthunder/voxup/internal/testing"
)

type fakeTable struct {
	mu        sync.Mutex
	rows      map[string]map[string]types.AttributeValue // hash -> item
	batchSize []int
	failBatch int // 1-based batch index that fails; 0 disables
	failPut   bool
}

func (f *fakeTable) BatchGetItem(_ context.Context, in *dynamodb.BatchGetItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.BatchGetItemOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.batchSize = append(f.batchSize, 0)
	idx := len(f.batchSize)
	out := &dynamodb.BatchGetItemOutput{Responses: map[string][]map[string]types.AttributeValue{}}

	for table, ka := range in.RequestItems {
		f.batchSize[idx-1] = len(ka.Keys)
		if idx == f.failBatch {
			return nil, errors.New("throttled")
		}
		for _, key := range ka.Keys {
			var k uploadKey
			if err := attributevalue.UnmarshalMap(key, &k); err != nil {
				return nil, err
			}
			if row, ok := f.rows[k.FileHash]; ok {
				out.Responses[table] = append(out.Responses[table], row)
			}
		}
	}
	return out, nil
}

func (f *fakeTable) GetItem(_ context.Context, in *dynamodb.GetItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var k uploadKey
	if err := attributevalue.UnmarshalMap(in.Key, &k); err != nil {
		return nil, err
	}
	return &dynamodb.GetItemOutput{Item: f.rows[k.FileHash]}, nil
}

func (f *fakeTable) PutItem(_ context.Context, in *dynamodb.PutItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.failPut {
		return nil, errors.New("conditional check failed")
	}
	var rec uploadRecord
	if err := attributevalue.UnmarshalMap(in.Item, &rec); err != nil {
		return nil, err
	}
	if f.rows == nil {
		f.rows = make(map[string]map[string]types.AttributeValue)
	}
	f.rows[rec.FileHash] = in.Item
	return &dynamodb.PutItemOutput{}, nil
}

func (f *fakeTable) stored(hashes ...string) {
	if f.rows == nil {
		f.rows = make(map[string]map[string]types.AttributeValue)
	}
	for _, h := range hashes {
		item, _ := attributevalue.MarshalMap(uploadKey{UserID: "owner", FileHash: h})
		f.rows[h] = item
	}
}

type fakeObjects struct {
	mu      sync.Mutex
	objects map[string]string
	types   map[string]string
}

func (f *fakeObjects) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	body, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.objects == nil {
		f.objects = make(map[string]string)
		f.types = make(map[string]string)
	}
	f.objects[aws.ToString(in.Key)] = string(body)
	f.types[aws.ToString(in.Key)] = aws.ToString(in.ContentType)
	return &s3.PutObjectOutput{}, nil
}

func TestDynamoOracle(t *testing.T) {
	t.Run("Chunks Of One Hundred", func(t *testing.T) {
		table := &fakeTable{}
		table.stored("h0", "h150")

		hashes := make([]string, 250)
		for i := range hashes {
			hashes[i] = "h" + strconv.Itoa(i)
		}

		got := NewDynamoOracle(table, "uploads", tu.NopLogger()).CheckRemoteStatus(context.Background(), "owner", hashes)

		if len(table.batchSize) != 3 || table.batchSize[0] != 100 || table.batchSize[2] != 50 {
			t.Errorf("unexpected batches %v", table.batchSize)
		}
		if len(got) != 2 {
			t.Errorf("expected 2 stored hashes, got %v", got)
		}
	})

	t.Run("Failed Chunk Is Skipped", func(t *testing.T) {
		table := &fakeTable{failBatch: 1}
		table.stored("h0", "h150")

		hashes := make([]string, 200)
		for i := range hashes {
			hashes[i] = "h" + strconv.Itoa(i)
		}

		got := NewDynamoOracle(table, "uploads", tu.NopLogger()).CheckRemoteStatus(context.Background(), "owner", hashes)
		if _, ok := got["h150"]; !ok || len(got) != 1 {
			t.Errorf("expected only second chunk results, got %v", got)
		}
	})

	t.Run("No Hashes", func(t *testing.T) {
		table := &fakeTable{}
		got := NewDynamoOracle(table, "uploads", tu.NopLogger()).CheckRemoteStatus(context.Background(), "owner", nil)
		if len(got) != 0 || len(table.batchSize) != 0 {
			t.Errorf("expected no calls, got %v batches", table.batchSize)
		}
	})
}

func TestS3Transport(t *testing.T) {
	cfg := shared.AWSConfig{Bucket: "notes", Table: "uploads", Prefix: "voice-notes"}

	t.Run("Uploads Audio Metadata And Record", func(t *testing.T) {
		table := &fakeTable{}
		objects := &fakeObjects{}
		transport := NewS3Transport(objects, table, cfg, tu.NopLogger())

		ok, err := transport.Upload(context.Background(), sampleRequest(t))
		if err != nil || !ok {
			t.Fatalf("expected success, got ok=%v err=%v", ok, err)
		}

		if len(objects.objects) != 2 {
			t.Fatalf("expected audio and metadata objects, got %v", objects.objects)
		}
		var audioKey string
		for k := range objects.objects {
			if !strings.HasSuffix(k, ".metadata.json") {
				audioKey = k
			}
		}
		if !strings.HasPrefix(audioKey, "voice-notes/owner/") || !strings.HasSuffix(audioKey, ".m4a") {
			t.Errorf("unexpected audio key %s", audioKey)
		}
		if objects.objects[audioKey] != "voice" || objects.types[audioKey] != "audio/mp4" {
			t.Errorf("unexpected audio object %q (%s)", objects.objects[audioKey], objects.types[audioKey])
		}
		if !strings.Contains(objects.objects[audioKey+".metadata.json"], `"fileHash": "abc123"`) {
			t.Errorf("unexpected metadata %s", objects.objects[audioKey+".metadata.json"])
		}
		if _, ok := table.rows["abc123"]; !ok {
			t.Error("expected upload record in table")
		}
	})

	t.Run("Existing Record Short Circuits", func(t *testing.T) {
		table := &fakeTable{}
		table.stored("abc123")
		objects := &fakeObjects{}

		ok, err := NewS3Transport(objects, table, cfg, tu.NopLogger()).Upload(context.Background(), sampleRequest(t))
		if err != nil || !ok {
			t.Fatalf("expected success, got ok=%v err=%v", ok, err)
		}
		if len(objects.objects) != 0 {
			t.Errorf("expected no objects written, got %v", objects.objects)
		}
	})

	t.Run("Record Failure Fails Attempt", func(t *testing.T) {
		table := &fakeTable{failPut: true}

		ok, err := NewS3Transport(&fakeObjects{}, table, cfg, tu.NopLogger()).Upload(context.Background(), sampleRequest(t))
		if ok || !errors.Is(err, shared.ErrAPIRequest) {
			t.Errorf("expected ErrAPIRequest, got ok=%v err=%v", ok, err)
		}
	})
}
