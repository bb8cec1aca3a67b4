package s3

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/hupe1980/segkv/blobstore"
)

// MetaBlobName is the blob whose writes are committed through DynamoDB.
const MetaBlobName = "meta"

// inlineLimit is the largest metatable stored directly in the DynamoDB item.
// Larger tables are written to S3 and referenced by key.
const inlineLimit = 350 * 1024

// ErrConcurrentModification is returned when another writer committed the
// metatable since this store last read or wrote it.
var ErrConcurrentModification = errors.New("concurrent modification detected")

// DDBClient is the subset of the DynamoDB API the commit store uses.
type DDBClient interface {
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	Query(ctx context.Context, params *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
}

// DDBCommitStore implements blobstore.BlobStore backed by S3, with the
// metatable committed through DynamoDB conditional writes. Every other blob
// goes straight to S3.
//
// Each metatable write is a new version. A write only succeeds if no
// version newer than the one this store last observed exists, which fences
// off a second writer on the same prefix.
//
// Table schema:
//   - Partition key: base_uri (string) - the S3 bucket and prefix
//   - Sort key: version (number) - monotonically increasing version
//
// Create table with:
//
//	aws dynamodb create-table \
//	  --table-name segkv-commits \
//	  --attribute-definitions AttributeName=base_uri,AttributeType=S AttributeName=version,AttributeType=N \
//	  --key-schema AttributeName=base_uri,KeyType=HASH AttributeName=version,KeyType=RANGE \
//	  --billing-mode PAY_PER_REQUEST
type DDBCommitStore struct {
	s3Store   *Store
	ddbClient DDBClient
	tableName string
	baseURI   string

	mu       sync.Mutex
	observed uint64
	loaded   bool
}

// NewDDBCommitStore creates a commit store over s3Store.
func NewDDBCommitStore(s3Store *Store, ddbClient DDBClient, tableName string) *DDBCommitStore {
	return &DDBCommitStore{
		s3Store:   s3Store,
		ddbClient: ddbClient,
		tableName: tableName,
		baseURI:   "s3://" + s3Store.bucket + "/" + s3Store.prefix,
	}
}

// BaseURI returns the partition key used for commits.
func (s *DDBCommitStore) BaseURI() string { return s.baseURI }

// Version returns the metatable version this store last observed.
func (s *DDBCommitStore) Version() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.observed
}

func versionBlobName(version uint64) string {
	return fmt.Sprintf("%s.v%020d", MetaBlobName, version)
}

func isVersionBlob(name string) bool {
	return strings.HasPrefix(name, MetaBlobName+".v")
}

// Open opens a blob for reading. The metatable is read at its latest version.
func (s *DDBCommitStore) Open(ctx context.Context, name string) (blobstore.Blob, error) {
	if name != MetaBlobName {
		return s.s3Store.Open(ctx, name)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	c, err := s.latest(ctx)
	if err != nil {
		return nil, err
	}
	s.observed, s.loaded = c.version, true

	switch {
	case c.version == 0:
		return nil, fmt.Errorf("%s: %w", name, blobstore.ErrNotFound)
	case c.blob != "":
		return s.s3Store.Open(ctx, c.blob)
	default:
		return &inlineBlob{data: c.data}, nil
	}
}

// Put writes a blob. The metatable is committed as a new version.
func (s *DDBCommitStore) Put(ctx context.Context, name string, data []byte) error {
	if name == MetaBlobName {
		return s.commit(ctx, data)
	}
	return s.s3Store.Put(ctx, name, data)
}

// Create creates a writable blob. Metatable writes are buffered and
// committed on Close.
func (s *DDBCommitStore) Create(ctx context.Context, name string) (blobstore.WritableBlob, error) {
	if name == MetaBlobName {
		return &commitBlob{ctx: ctx, store: s}, nil
	}
	return s.s3Store.Create(ctx, name)
}

// Delete deletes a blob. The metatable cannot be deleted.
func (s *DDBCommitStore) Delete(ctx context.Context, name string) error {
	if name == MetaBlobName {
		return fmt.Errorf("delete %s: %w", name, errors.ErrUnsupported)
	}
	return s.s3Store.Delete(ctx, name)
}

// List lists blobs with prefix. Metatable versions appear as a single
// metatable blob.
func (s *DDBCommitStore) List(ctx context.Context, prefix string) ([]string, error) {
	names, err := s.s3Store.List(ctx, prefix)
	if err != nil {
		return nil, err
	}

	out := names[:0]
	for _, name := range names {
		if !isVersionBlob(name) {
			out = append(out, name)
		}
	}

	if strings.HasPrefix(MetaBlobName, prefix) {
		c, err := s.latest(ctx)
		if err != nil {
			return nil, err
		}
		if c.version > 0 {
			out = append(out, MetaBlobName)
			sort.Strings(out)
		}
	}
	return out, nil
}

type commitRecord struct {
	version uint64
	data    []byte
	blob    string
}

// latest queries DynamoDB for the newest committed version.
func (s *DDBCommitStore) latest(ctx context.Context) (commitRecord, error) {
	resp, err := s.ddbClient.Query(ctx, &dynamodb.QueryInput{
		TableName:              aws.String(s.tableName),
		KeyConditionExpression: aws.String("base_uri = :uri"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":uri": &types.AttributeValueMemberS{Value: s.baseURI},
		},
		ScanIndexForward: aws.Bool(false),
		Limit:            aws.Int32(1),
		ConsistentRead:   aws.Bool(true),
	})
	if err != nil {
		return commitRecord{}, fmt.Errorf("query commits: %w", err)
	}
	if len(resp.Items) == 0 {
		return commitRecord{}, nil
	}

	item := resp.Items[0]
	versionAttr, ok := item["version"].(*types.AttributeValueMemberN)
	if !ok {
		return commitRecord{}, errors.New("invalid version attribute in DynamoDB")
	}
	version, err := strconv.ParseUint(versionAttr.Value, 10, 64)
	if err != nil {
		return commitRecord{}, fmt.Errorf("parse version: %w", err)
	}

	c := commitRecord{version: version}
	switch v := item["data"].(type) {
	case *types.AttributeValueMemberB:
		c.data = v.Value
	case nil:
	default:
		return commitRecord{}, errors.New("invalid data attribute in DynamoDB")
	}
	if v, ok := item["blob"].(*types.AttributeValueMemberS); ok {
		c.blob = v.Value
	}
	return c, nil
}

// commit writes data as the version after the observed one.
func (s *DDBCommitStore) commit(ctx context.Context, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.loaded {
		c, err := s.latest(ctx)
		if err != nil {
			return err
		}
		s.observed, s.loaded = c.version, true
	}
	next := s.observed + 1

	item := map[string]types.AttributeValue{
		"base_uri": &types.AttributeValueMemberS{Value: s.baseURI},
		"version":  &types.AttributeValueMemberN{Value: strconv.FormatUint(next, 10)},
	}
	var external string
	if len(data) > inlineLimit {
		external = versionBlobName(next)
		if err := s.s3Store.Put(ctx, external, data); err != nil {
			return fmt.Errorf("upload %s: %w", external, err)
		}
		item["blob"] = &types.AttributeValueMemberS{Value: external}
	} else {
		item["data"] = &types.AttributeValueMemberB{Value: data}
	}

	_, err := s.ddbClient.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           aws.String(s.tableName),
		Item:                item,
		ConditionExpression: aws.String("attribute_not_exists(version)"),
	})
	if err != nil {
		if external != "" {
			_ = s.s3Store.Delete(ctx, external)
		}
		var condErr *types.ConditionalCheckFailedException
		if errors.As(err, &condErr) {
			return fmt.Errorf("commit version %d: %w", next, ErrConcurrentModification)
		}
		return fmt.Errorf("commit version %d: %w", next, err)
	}

	s.observed = next
	return nil
}

// inlineBlob serves a metatable stored in the DynamoDB item.
type inlineBlob struct {
	data []byte
}

func (b *inlineBlob) Close() error { return nil }

func (b *inlineBlob) Size() int64 { return int64(len(b.data)) }

func (b *inlineBlob) ReadAt(_ context.Context, p []byte, off int64) (int, error) {
	if off >= int64(len(b.data)) {
		return 0, io.EOF
	}
	n := copy(p, b.data[off:])
	if n < len(p) {
		return n, io.EOF
	}
	return n, nil
}

func (b *inlineBlob) ReadRange(_ context.Context, off, length int64) (io.ReadCloser, error) {
	size := int64(len(b.data))
	if off >= size || length <= 0 {
		return io.NopCloser(bytes.NewReader(nil)), nil
	}
	end := min(off+length, size)
	return io.NopCloser(bytes.NewReader(b.data[off:end])), nil
}

func (b *inlineBlob) Bytes() ([]byte, error) { return b.data, nil }

// commitBlob buffers a metatable write until Close.
type commitBlob struct {
	ctx   context.Context
	store *DDBCommitStore
	buf   bytes.Buffer
	done  bool
}

func (b *commitBlob) Write(p []byte) (int, error) {
	if b.done {
		return 0, io.ErrClosedPipe
	}
	return b.buf.Write(p)
}

func (b *commitBlob) Sync() error { return nil }

func (b *commitBlob) Close() error {
	if b.done {
		return io.ErrClosedPipe
	}
	b.done = true
	return b.store.commit(b.ctx, b.buf.Bytes())
}

func (b *commitBlob) Abort() error {
	b.done = true
	b.buf.Reset()
	return nil
}
