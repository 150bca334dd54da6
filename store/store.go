// Package store provides namespaced key-value backends used for checkpoint
// persistence. Every implementation keeps keys within a namespace in
// lexicographic order, which is all the checkpointer layer requires
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"
)

type (
	// Item is a stored value together with its namespace, key, and
	// bookkeeping timestamps
	Item struct {
		Namespace []string        `json:"namespace"`
		Key       string          `json:"key"`
		Value     json.RawMessage `json:"value"`
		CreatedAt time.Time       `json:"created_at"`
		UpdatedAt time.Time       `json:"updated_at"`
	}

	// Store is a namespaced key-value contract. Get returns nil for an
	// absent key; List returns a namespace's items sorted ascending by
	// key. Implementations must tolerate concurrent use
	Store interface {
		Get(ctx context.Context, ns []string, key string) (*Item, error)
		Put(
			ctx context.Context, ns []string, key string,
			value json.RawMessage,
		) error
		Delete(ctx context.Context, ns []string, key string) error
		List(ctx context.Context, ns []string) ([]*Item, error)
	}
)

var (
	ErrEmptyNamespace = errors.New("namespace must not be empty")
	ErrInvalidKey     = errors.New("invalid key")
)

// validSegment matches the characters permitted in namespace segments and
// keys, keeping them safe for every backend's key syntax
var validSegment = regexp.MustCompile(`^[a-zA-Z0-9_.\-+]+$`)

// ValidateRef checks a namespace and key for use with any backend
func ValidateRef(ns []string, key string) error {
	if len(ns) == 0 {
		return ErrEmptyNamespace
	}
	for _, segment := range ns {
		if !validSegment.MatchString(segment) {
			return fmt.Errorf(
				"%w: namespace segment %q", ErrInvalidKey, segment,
			)
		}
	}
	if !validSegment.MatchString(key) {
		return fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}
	return nil
}

func joinNamespace(ns []string, sep string) string {
	return strings.Join(ns, sep)
}
