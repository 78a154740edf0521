package storage

import "context"

// KeyValue is the persistence port behind the scenario store. Read returns
// ok=false, with no error, when the key has never been written.
type KeyValue interface {
	Read(ctx context.Context, key string) (value []byte, ok bool, err error)
	Write(ctx context.Context, key string, value []byte) error
}
