package store

import (
	"context"
	"encoding/json"
	"io"
	"slices"
	"strings"
	"time"

	"gocloud.dev/blob"
	"gocloud.dev/gcerrors"

	_ "gocloud.dev/blob/azureblob"
	_ "gocloud.dev/blob/fileblob"
	_ "gocloud.dev/blob/gcsblob"
	_ "gocloud.dev/blob/memblob"
	_ "gocloud.dev/blob/s3blob"
)

// BlobStore keeps items in a gocloud.dev blob bucket, supporting S3, GCS,
// Azure Blob Storage, local files, and in-memory buckets through one URL
// scheme. Bucket listings come back sorted, so List needs no extra work
type BlobStore struct {
	bucket *blob.Bucket
	prefix string
}

const blobSeparator = "/"

// NewBlobStore opens a bucket by URL (e.g. s3://bucket, mem://) with an
// optional key prefix
func NewBlobStore(
	ctx context.Context, bucketURL, prefix string,
) (*BlobStore, error) {
	bucket, err := blob.OpenBucket(ctx, bucketURL)
	if err != nil {
		return nil, err
	}
	if prefix != "" && !strings.HasSuffix(prefix, blobSeparator) {
		prefix += blobSeparator
	}
	return &BlobStore{bucket: bucket, prefix: prefix}, nil
}

// Close releases the bucket handle
func (s *BlobStore) Close() error {
	return s.bucket.Close()
}

func (s *BlobStore) Get(
	ctx context.Context, ns []string, key string,
) (*Item, error) {
	if err := ValidateRef(ns, key); err != nil {
		return nil, err
	}

	data, err := s.bucket.ReadAll(ctx, s.itemKey(ns, key))
	if err != nil {
		if gcerrors.Code(err) == gcerrors.NotFound {
			return nil, nil
		}
		return nil, err
	}

	var item Item
	if err := json.Unmarshal(data, &item); err != nil {
		return nil, err
	}
	return &item, nil
}

func (s *BlobStore) Put(
	ctx context.Context, ns []string, key string, value json.RawMessage,
) error {
	if err := ValidateRef(ns, key); err != nil {
		return err
	}

	now := time.Now().UTC()
	item := &Item{
		Namespace: slices.Clone(ns),
		Key:       key,
		Value:     value,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if existing, err := s.Get(ctx, ns, key); err == nil && existing != nil {
		item.CreatedAt = existing.CreatedAt
	}

	data, err := json.Marshal(item)
	if err != nil {
		return err
	}
	return s.bucket.WriteAll(ctx, s.itemKey(ns, key), data, nil)
}

func (s *BlobStore) Delete(
	ctx context.Context, ns []string, key string,
) error {
	if err := ValidateRef(ns, key); err != nil {
		return err
	}
	err := s.bucket.Delete(ctx, s.itemKey(ns, key))
	if err != nil && gcerrors.Code(err) != gcerrors.NotFound {
		return err
	}
	return nil
}

func (s *BlobStore) List(ctx context.Context, ns []string) ([]*Item, error) {
	if len(ns) == 0 {
		return nil, ErrEmptyNamespace
	}

	var items []*Item
	iter := s.bucket.List(&blob.ListOptions{
		Prefix: s.namespacePrefix(ns),
	})
	for {
		obj, err := iter.Next(ctx)
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		if obj.IsDir || !strings.HasSuffix(obj.Key, fileExt) {
			continue
		}
		data, err := s.bucket.ReadAll(ctx, obj.Key)
		if err != nil {
			return nil, err
		}
		var item Item
		if err := json.Unmarshal(data, &item); err != nil {
			return nil, err
		}
		items = append(items, &item)
	}
	return items, nil
}

func (s *BlobStore) itemKey(ns []string, key string) string {
	return s.namespacePrefix(ns) + key + fileExt
}

func (s *BlobStore) namespacePrefix(ns []string) string {
	return s.prefix + joinNamespace(ns, blobSeparator) + blobSeparator
}
