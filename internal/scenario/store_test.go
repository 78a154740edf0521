package scenario

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"invoicemix/internal/amqp"
	"invoicemix/internal/core"
	ierr "invoicemix/internal/errors"
	"invoicemix/internal/storage/memory"

	"github.com/samber/lo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingPublisher struct {
	mu     sync.Mutex
	events []*amqp.ScenarioEvent
	err    error
}

func (p *recordingPublisher) PublishScenarioEvent(_ context.Context, e *amqp.ScenarioEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
	return p.err
}

type failingKV struct {
	readErr  error
	writeErr error
}

func (f failingKV) Read(context.Context, string) ([]byte, bool, error) { return nil, false, f.readErr }
func (f failingKV) Write(context.Context, string, []byte) error      { return f.writeErr }

func sequentialIDs() IDGenerator {
	n := 0
	return IDGeneratorFunc(func() string {
		n++
		return "id-" + string(rune('0'+n))
	})
}

func answer(name string) NamePrompt {
	return func(context.Context, string) (string, bool) { return name, true }
}

func record() *core.LastRequestRecord {
	return core.RequestSnapshot{
		Target:             "2500.00",
		Invoices:           []core.InvoiceEntry{{ID: "INV-1", Amount: "1000"}, {ID: "INV-2", Amount: "1500"}},
		MinInvoices:        lo.ToPtr(1),
		RequiredInvoiceIDs: []string{"INV-1"},
	}.Record(core.SourceManual)
}

func TestSaveWithoutRecord(t *testing.T) {
	s := NewStore(memory.New())
	called := false

	sc, err := s.Save(context.Background(), nil, func(context.Context, string) (string, bool) {
		called = true
		return "x", true
	})

	require.Error(t, err)
	assert.True(t, ierr.Is(err, ierr.ErrRunSearchBeforeSave))
	assert.True(t, ierr.IsPrecondition(err))
	assert.Nil(t, sc)
	assert.False(t, called, "prompt must not be shown without a record")
}

func TestSavePromptsWithDefaultName(t *testing.T) {
	ctx := context.Background()
	kv := memory.New()
	s := NewStore(kv, WithIDGenerator(sequentialIDs()))

	var offered []string
	prompt := func(_ context.Context, def string) (string, bool) {
		offered = append(offered, def)
		return "  " + def + "  ", true
	}

	first, err := s.Save(ctx, record(), prompt)
	require.NoError(t, err)
	second, err := s.Save(ctx, record(), prompt)
	require.NoError(t, err)

	assert.Equal(t, []string{"Scenario 1", "Scenario 2"}, offered)
	assert.Equal(t, "Scenario 1", first.Name)
	assert.Equal(t, "id-1", first.ID)
	assert.Equal(t, "id-2", second.ID)

	data, ok, err := kv.Read(ctx, StorageKey)
	require.NoError(t, err)
	require.True(t, ok)
	var stored []core.SavedScenario
	require.NoError(t, json.Unmarshal(data, &stored))
	assert.Len(t, stored, 2)
	assert.Equal(t, "2500.00", stored[0].Target)
	assert.Equal(t, []string{"INV-1"}, stored[0].RequiredInvoiceIDs)
}

func TestSaveCancelledOrBlankIsNoop(t *testing.T) {
	ctx := context.Background()
	kv := memory.New()
	s := NewStore(kv)

	sc, err := s.Save(ctx, record(), func(context.Context, string) (string, bool) { return "", false })
	require.NoError(t, err)
	assert.Nil(t, sc)

	sc, err = s.Save(ctx, record(), answer("   "))
	require.NoError(t, err)
	assert.Nil(t, sc)

	assert.Empty(t, s.List(ctx))
	_, ok, _ := kv.Read(ctx, StorageKey)
	assert.False(t, ok, "nothing should be persisted")
}

func TestSaveCopiesRecord(t *testing.T) {
	ctx := context.Background()
	s := NewStore(memory.New())
	last := record()

	sc, err := s.Save(ctx, last, answer("Copy"))
	require.NoError(t, err)

	last.Invoices[0].Amount = "9999"
	*last.MinInvoices = 7

	stored, ok := s.Get(ctx, sc.ID)
	require.True(t, ok)
	assert.Equal(t, "1000", stored.Invoices[0].Amount)
	assert.Equal(t, 1, *stored.MinInvoices)
}

func TestSaveWriteFailureKeepsCollection(t *testing.T) {
	ctx := context.Background()
	s := NewStore(failingKV{writeErr: errors.New("disk full")})

	sc, err := s.Save(ctx, record(), answer("Lost"))
	require.Error(t, err)
	assert.Nil(t, sc)
	assert.Empty(t, s.List(ctx))
}

func TestDelete(t *testing.T) {
	ctx := context.Background()
	pub := &recordingPublisher{}
	s := NewStore(memory.New(), WithIDGenerator(sequentialIDs()), WithPublisher(pub))

	a, err := s.Save(ctx, record(), answer("A"))
	require.NoError(t, err)
	b, err := s.Save(ctx, record(), answer("B"))
	require.NoError(t, err)

	removed, err := s.Delete(ctx, a.ID)
	require.NoError(t, err)
	assert.True(t, removed)

	removed, err = s.Delete(ctx, "missing")
	require.NoError(t, err)
	assert.False(t, removed)

	list := s.List(ctx)
	require.Len(t, list, 1)
	assert.Equal(t, b.ID, list[0].ID)

	require.Len(t, pub.events, 3)
	assert.Equal(t, amqp.EventScenarioSaved, pub.events[0].Type)
	assert.Equal(t, amqp.EventScenarioDeleted, pub.events[2].Type)
	assert.Equal(t, a.ID, pub.events[2].ScenarioID)
}

func TestPublishFailureDoesNotFailSave(t *testing.T) {
	ctx := context.Background()
	pub := &recordingPublisher{err: errors.New("broker down")}
	s := NewStore(memory.New(), WithPublisher(pub))

	sc, err := s.Save(ctx, record(), answer("Still saved"))
	require.NoError(t, err)
	require.NotNil(t, sc)
	assert.Len(t, s.List(ctx), 1)
}

func TestInitializationCoercesStoredData(t *testing.T) {
	tests := []struct {
		name  string
		data  string
		check func(t *testing.T, list []core.SavedScenario)
	}{
		{
			name:  "not json",
			data:  `{{{`,
			check: func(t *testing.T, list []core.SavedScenario) { assert.Empty(t, list) },
		},
		{
			name:  "not an array",
			data:  `{"id":"a"}`,
			check: func(t *testing.T, list []core.SavedScenario) { assert.Empty(t, list) },
		},
		{
			name: "missing lists become empty",
			data: `[{"id":"a","name":"A","target":"10"}]`,
			check: func(t *testing.T, list []core.SavedScenario) {
				require.Len(t, list, 1)
				assert.NotNil(t, list[0].Invoices)
				assert.Empty(t, list[0].Invoices)
				assert.NotNil(t, list[0].RequiredInvoiceIDs)
				assert.Nil(t, list[0].MinInvoices)
			},
		},
		{
			name: "non object items skipped and numbers kept as text",
			data: `[42, "x", {"id":"b","name":"B","target":12.5,"invoices":[{"id":"I","amount":3}],"maxInvoices":2,"requiredInvoiceIds":["I",""]}]`,
			check: func(t *testing.T, list []core.SavedScenario) {
				require.Len(t, list, 1)
				assert.Equal(t, "12.5", list[0].Target)
				assert.Equal(t, []core.InvoiceEntry{{ID: "I", Amount: "3"}}, list[0].Invoices)
				require.NotNil(t, list[0].MaxInvoices)
				assert.Equal(t, 2, *list[0].MaxInvoices)
				assert.Equal(t, []string{"I"}, list[0].RequiredInvoiceIDs)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			kv := memory.NewWithData(map[string][]byte{StorageKey: []byte(tt.data)})
			tt.check(t, NewStore(kv).List(context.Background()))
		})
	}
}

func TestReadFailureStartsEmpty(t *testing.T) {
	s := NewStore(failingKV{readErr: errors.New("permission denied")})
	assert.Empty(t, s.List(context.Background()))
	assert.Equal(t, "Scenario 1", s.DefaultName(context.Background()))
}

func TestReloadPicksUpExternalWrites(t *testing.T) {
	ctx := context.Background()
	kv := memory.New()
	writer := NewStore(kv)
	reader := NewStore(kv)

	assert.Empty(t, reader.List(ctx))
	_, err := writer.Save(ctx, record(), answer("Shared"))
	require.NoError(t, err)

	assert.Empty(t, reader.List(ctx))
	reader.Reload(ctx)
	assert.Len(t, reader.List(ctx), 1)
}

func TestUUIDGenerator(t *testing.T) {
	g := UUIDGenerator{}
	a, b := g.Next(), g.Next()
	assert.Len(t, a, 36)
	assert.NotEqual(t, a, b)
}
