package store_test

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"

	"github.com/dnw3/synapse/store"
)

func TestValidateRef(t *testing.T) {
	tests := []struct {
		name    string
		ns      []string
		key     string
		wantErr error
	}{
		{
			name: "valid",
			ns:   []string{"checkpoints", "thread-1"},
			key:  "0001",
		},
		{
			name: "valid_with_dots",
			ns:   []string{"a.b", "c_d"},
			key:  "k+1",
		},
		{
			name:    "empty_namespace",
			ns:      nil,
			key:     "k",
			wantErr: store.ErrEmptyNamespace,
		},
		{
			name:    "bad_segment",
			ns:      []string{"a/b"},
			key:     "k",
			wantErr: store.ErrInvalidKey,
		},
		{
			name:    "bad_key",
			ns:      []string{"a"},
			key:     "k 1",
			wantErr: store.ErrInvalidKey,
		},
		{
			name:    "empty_key",
			ns:      []string{"a"},
			key:     "",
			wantErr: store.ErrInvalidKey,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := store.ValidateRef(tt.ns, tt.key)
			if tt.wantErr == nil {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, tt.wantErr)
			}
		})
	}
}

// testStoreContract exercises the behavior every backend must share
func testStoreContract(t *testing.T, s store.Store) {
	t.Helper()
	as := assert.New(t)
	ctx := context.Background()
	ns := []string{"checkpoints", "thread-1"}

	t.Run("get_absent_returns_nil", func(t *testing.T) {
		item, err := s.Get(ctx, ns, "missing")
		as.NoError(err)
		as.Nil(item)
	})

	t.Run("put_then_get", func(t *testing.T) {
		value := json.RawMessage(`{"n":1}`)
		as.NoError(s.Put(ctx, ns, "cp-1", value))

		item, err := s.Get(ctx, ns, "cp-1")
		as.NoError(err)
		as.NotNil(item)
		as.Equal("cp-1", item.Key)
		as.JSONEq(`{"n":1}`, string(item.Value))
		as.False(item.CreatedAt.IsZero())
	})

	t.Run("put_overwrites", func(t *testing.T) {
		as.NoError(s.Put(ctx, ns, "cp-1", json.RawMessage(`{"n":2}`)))

		item, err := s.Get(ctx, ns, "cp-1")
		as.NoError(err)
		as.JSONEq(`{"n":2}`, string(item.Value))
	})

	t.Run("list_sorted_by_key", func(t *testing.T) {
		as.NoError(s.Put(ctx, ns, "cp-3", json.RawMessage(`3`)))
		as.NoError(s.Put(ctx, ns, "cp-2", json.RawMessage(`2`)))

		items, err := s.List(ctx, ns)
		as.NoError(err)
		as.Len(items, 3)
		as.Equal("cp-1", items[0].Key)
		as.Equal("cp-2", items[1].Key)
		as.Equal("cp-3", items[2].Key)
	})

	t.Run("namespaces_are_isolated", func(t *testing.T) {
		other := []string{"checkpoints", "thread-2"}
		items, err := s.List(ctx, other)
		as.NoError(err)
		as.Empty(items)

		as.NoError(s.Put(ctx, other, "cp-1", json.RawMessage(`true`)))
		item, err := s.Get(ctx, ns, "cp-1")
		as.NoError(err)
		as.JSONEq(`{"n":2}`, string(item.Value))
	})

	t.Run("delete", func(t *testing.T) {
		as.NoError(s.Delete(ctx, ns, "cp-2"))

		item, err := s.Get(ctx, ns, "cp-2")
		as.NoError(err)
		as.Nil(item)

		// deleting an absent key is not an error
		as.NoError(s.Delete(ctx, ns, "cp-2"))
	})

	t.Run("rejects_invalid_refs", func(t *testing.T) {
		err := s.Put(ctx, nil, "k", json.RawMessage(`1`))
		as.ErrorIs(err, store.ErrEmptyNamespace)

		_, err = s.Get(ctx, []string{"a"}, "bad key")
		as.ErrorIs(err, store.ErrInvalidKey)
	})
}

func TestMemoryStore(t *testing.T) {
	testStoreContract(t, store.NewMemoryStore())
}

func TestFileStore(t *testing.T) {
	s, err := store.NewFileStore(t.TempDir())
	assert.NoError(t, err)
	testStoreContract(t, s)
}

func TestFileStoreDepthLimit(t *testing.T) {
	as := assert.New(t)
	s, err := store.NewFileStore(t.TempDir())
	as.NoError(err)

	deep := make([]string, 20)
	for i := range deep {
		deep[i] = "ns"
	}
	err = s.Put(
		context.Background(), deep, "k", json.RawMessage(`1`),
	)
	as.ErrorIs(err, store.ErrNamespaceTooDeep)
}

func TestRedisStore(t *testing.T) {
	mr := miniredis.RunT(t)

	s, err := store.NewRedisStore(context.Background(), store.RedisConfig{
		Addr: mr.Addr(),
	})
	assert.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	testStoreContract(t, s)
}

func TestRedisStoreConnectFailure(t *testing.T) {
	_, err := store.NewRedisStore(context.Background(), store.RedisConfig{
		Addr: "127.0.0.1:0",
	})
	assert.Error(t, err)
}

func TestBlobStore(t *testing.T) {
	s, err := store.NewBlobStore(context.Background(), "mem://", "test")
	assert.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	testStoreContract(t, s)
}
