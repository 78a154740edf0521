package scenario

import (
	"strconv"
	"time"

	"github.com/google/uuid"
)

// IDGenerator produces scenario ids.
type IDGenerator interface {
	Next() string
}

// IDGeneratorFunc adapts a function to IDGenerator.
type IDGeneratorFunc func() string

func (f IDGeneratorFunc) Next() string { return f() }

// UUIDGenerator returns random UUIDs, or the current Unix time in
// milliseconds when the random source fails.
type UUIDGenerator struct {
	now func() time.Time
}

func (g UUIDGenerator) Next() string {
	id, err := uuid.NewRandom()
	if err == nil {
		return id.String()
	}
	now := time.Now
	if g.now != nil {
		now = g.now
	}
	return strconv.FormatInt(now().UnixMilli(), 10)
}
