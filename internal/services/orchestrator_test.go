package services

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"invoicemix/internal/core"
	ierr "invoicemix/internal/errors"
	"invoicemix/internal/scenario"
	"invoicemix/internal/session"
	"invoicemix/internal/storage/memory"
	"invoicemix/internal/validation"

	"github.com/samber/lo"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// fakeService records calls and returns canned answers.
type fakeService struct {
	mu       sync.Mutex
	searches []core.CombinationRequest
	uploads  []core.UploadRequest
	exports  []core.CombinationRequest
	result   *core.CombinationResult
	csv      []byte
	err      error
	observe  func()
}

func (f *fakeService) Search(_ context.Context, req core.CombinationRequest) (*core.CombinationResult, error) {
	f.mu.Lock()
	f.searches = append(f.searches, req)
	f.mu.Unlock()
	if f.observe != nil {
		f.observe()
	}
	if f.err != nil {
		return nil, f.err
	}
	return f.result.Clone(), nil
}

func (f *fakeService) SearchUpload(_ context.Context, req core.UploadRequest) (*core.CombinationResult, error) {
	f.mu.Lock()
	f.uploads = append(f.uploads, req)
	f.mu.Unlock()
	if f.observe != nil {
		f.observe()
	}
	if f.err != nil {
		return nil, f.err
	}
	return f.result.Clone(), nil
}

func (f *fakeService) Export(_ context.Context, req core.CombinationRequest) ([]byte, error) {
	f.mu.Lock()
	f.exports = append(f.exports, req)
	f.mu.Unlock()
	if f.observe != nil {
		f.observe()
	}
	if f.err != nil {
		return nil, f.err
	}
	return f.csv, nil
}

func (f *fakeService) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.searches) + len(f.uploads) + len(f.exports)
}

type memorySink struct {
	name string
	data []byte
	err  error
}

func (s *memorySink) Deliver(_ context.Context, name string, data []byte) (string, error) {
	if s.err != nil {
		return "", s.err
	}
	s.name, s.data = name, append([]byte(nil), data...)
	return "mem://" + name, nil
}

func oneCombination() *core.CombinationResult {
	return &core.CombinationResult{
		Combinations:     [][]string{{"INV-1", "INV-2"}},
		CombinationCount: 1,
		InvoiceAmounts: map[string]decimal.Decimal{
			"INV-1": decimal.NewFromInt(1000),
			"INV-2": decimal.NewFromInt(1500),
		},
	}
}

type fixture struct {
	svc       *fakeService
	state     *session.State
	scenarios *scenario.Store
	sink      *memorySink
	orch      *Orchestrator
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		svc:   &fakeService{result: oneCombination(), csv: []byte("a,b\n")},
		state: session.New(),
		sink:  &memorySink{},
	}
	n := 0
	f.scenarios = scenario.NewStore(memory.New(), scenario.WithIDGenerator(scenario.IDGeneratorFunc(func() string {
		n++
		return "sc-" + decimal.NewFromInt(int64(n)).String()
	})))
	f.orch = NewOrchestrator(f.svc, f.state, f.scenarios, f.sink, nil)
	return f
}

func manualForm() validation.ManualForm {
	return validation.ManualForm{
		Target: "2500.00",
		Invoices: []core.InvoiceEntry{
			{ID: "INV-1", Amount: "1000"},
			{ID: "INV-2", Amount: "1500"},
		},
	}
}

func named(name string) scenario.NamePrompt {
	return func(context.Context, string) (string, bool) { return name, true }
}

func TestSubmitManualSuccess(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.state.SetManualForm(manualForm())

	res, err := f.orch.SubmitManual(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, res.CombinationCount)

	snap := f.state.Snapshot()
	require.NotNil(t, snap.LastRequest)
	assert.Equal(t, core.SourceManual, snap.LastRequest.Source)
	assert.Equal(t, "2500.00", snap.LastRequest.Target)
	assert.True(t, session.CanExport(snap, core.SourceManual))
	assert.False(t, session.CanExport(snap, core.SourceUpload))
	assert.False(t, snap.Flow(core.SourceManual).Searching)
	assert.Empty(t, snap.Flow(core.SourceManual).Error)

	require.Len(t, f.svc.searches, 1)
	assert.True(t, f.svc.searches[0].Target.Equal(decimal.NewFromInt(2500)))
}

func TestSubmitManualSetsFlagDuringCall(t *testing.T) {
	f := newFixture(t)
	f.state.SetManualForm(manualForm())
	var during bool
	f.svc.observe = func() { during = f.state.Snapshot().Flow(core.SourceManual).Searching }

	_, err := f.orch.SubmitManual(context.Background())
	require.NoError(t, err)
	assert.True(t, during)
	assert.False(t, f.state.Snapshot().Flow(core.SourceManual).Searching)
}

func TestSubmitManualValidationFailureMakesNoCall(t *testing.T) {
	f := newFixture(t)
	form := manualForm()
	form.Invoices = append(form.Invoices, core.InvoiceEntry{ID: "INV-1", Amount: "5"})
	f.state.SetManualForm(form)

	_, err := f.orch.SubmitManual(context.Background())
	require.Error(t, err)
	assert.True(t, ierr.IsValidation(err))
	id, ok := ierr.DuplicateID(err)
	assert.True(t, ok)
	assert.Equal(t, "INV-1", id)

	assert.Zero(t, f.svc.calls())
	snap := f.state.Snapshot()
	assert.Nil(t, snap.LastRequest)
	assert.Equal(t, `Invoice id "INV-1" is duplicated. Use unique ids.`, snap.Flow(core.SourceManual).Error)
}

func TestSubmitManualMaxLessThanMin(t *testing.T) {
	f := newFixture(t)
	form := manualForm()
	form.Target = "-1"
	form.MinInvoices = "3"
	form.MaxInvoices = "2"
	f.state.SetManualForm(form)

	_, err := f.orch.SubmitManual(context.Background())
	assert.True(t, ierr.Is(err, ierr.ErrMaxLessThanMin))
	assert.Zero(t, f.svc.calls())
}

func TestSubmitManualServiceFailure(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.state.SetManualForm(manualForm())
	_, err := f.orch.SubmitManual(ctx)
	require.NoError(t, err)

	f.svc.err = ierr.Service("search combinations", errors.New("status 400"), "Validation failed")
	_, err = f.orch.SubmitManual(ctx)
	require.Error(t, err)

	snap := f.state.Snapshot()
	assert.Equal(t, "Validation failed", snap.Flow(core.SourceManual).Error)
	assert.Nil(t, snap.Flow(core.SourceManual).Results)
	assert.False(t, snap.Flow(core.SourceManual).Searching)
	assert.False(t, session.CanExport(snap, core.SourceManual))
	assert.Equal(t, "2500.00", f.state.ManualForm().Target, "form untouched")
	require.NotNil(t, snap.LastRequest, "attempted request is recorded")

	f.svc.err = ierr.Service("search combinations", errors.New("connection refused"), "")
	_, err = f.orch.SubmitManual(ctx)
	require.Error(t, err)
	assert.Equal(t, ierr.FallbackSearch, f.state.Error(core.SourceManual))
}

func TestSubmitUpload(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	t.Run("file required", func(t *testing.T) {
		f.state.SetUploadForm(validation.UploadForm{Target: "2500"})
		_, err := f.orch.SubmitUpload(ctx)
		assert.True(t, ierr.Is(err, ierr.ErrFileRequired))
		assert.Zero(t, f.svc.calls())
	})

	t.Run("success rebuilds invoices from amounts", func(t *testing.T) {
		f.state.SetUploadForm(validation.UploadForm{
			Target:      "2,500",
			RequiredIDs: "INV-2",
			File:        &core.UploadFile{Name: "book.xlsx", Content: []byte("PK")},
		})
		f.state.SetManualForm(manualForm())
		_, err := f.orch.SubmitUpload(ctx)
		require.Error(t, err, "comma grouped target is not a number")

		f.state.SetUploadForm(validation.UploadForm{
			Target:      "2500",
			RequiredIDs: "INV-2",
			File:        &core.UploadFile{Name: "book.xlsx", Content: []byte("PK")},
		})
		res, err := f.orch.SubmitUpload(ctx)
		require.NoError(t, err)
		assert.Equal(t, 1, res.CombinationCount)

		require.Len(t, f.svc.uploads, 1)
		assert.Equal(t, "2500", f.svc.uploads[0].TargetText)
		assert.Equal(t, []string{"INV-2"}, f.svc.uploads[0].RequiredInvoiceIDs)

		snap := f.state.Snapshot()
		require.NotNil(t, snap.LastRequest)
		assert.Equal(t, core.SourceUpload, snap.LastRequest.Source)
		assert.Equal(t, []core.InvoiceEntry{{ID: "INV-1", Amount: "1000"}, {ID: "INV-2", Amount: "1500"}}, snap.LastRequest.Invoices)
		assert.True(t, session.CanExport(snap, core.SourceUpload))
		assert.False(t, session.CanExport(snap, core.SourceManual))
	})

	t.Run("failure uses upload fallback", func(t *testing.T) {
		f.svc.err = ierr.Service("upload combinations", errors.New("eof"), "")
		_, err := f.orch.SubmitUpload(ctx)
		require.Error(t, err)
		assert.Equal(t, ierr.FallbackUpload, f.state.Error(core.SourceUpload))
		assert.False(t, f.state.Snapshot().Flow(core.SourceUpload).Searching)
	})
}

func TestExportPreconditions(t *testing.T) {
	ctx := context.Background()

	t.Run("no prior search", func(t *testing.T) {
		f := newFixture(t)
		_, err := f.orch.Export(ctx, core.SourceManual)
		assert.True(t, ierr.Is(err, ierr.ErrRunSearchBeforeExport))
		assert.Zero(t, f.svc.calls())
	})

	t.Run("record from other flow", func(t *testing.T) {
		f := newFixture(t)
		f.state.SetManualForm(manualForm())
		_, err := f.orch.SubmitManual(ctx)
		require.NoError(t, err)

		_, err = f.orch.Export(ctx, core.SourceUpload)
		assert.True(t, ierr.Is(err, ierr.ErrRunSearchBeforeExport))
		assert.Equal(t, 1, f.svc.calls())
	})

	t.Run("invalid target", func(t *testing.T) {
		f := newFixture(t)
		f.state.SetLastRequest(core.RequestSnapshot{Target: "abc", Invoices: []core.InvoiceEntry{{ID: "A", Amount: "1"}}}.Record(core.SourceManual))
		_, err := f.orch.Export(ctx, core.SourceManual)
		assert.True(t, ierr.Is(err, ierr.ErrInvalidLastTarget))
		assert.Zero(t, f.svc.calls())
	})

	t.Run("no valid invoices", func(t *testing.T) {
		f := newFixture(t)
		f.state.SetLastRequest(core.RequestSnapshot{Target: "10", Invoices: []core.InvoiceEntry{{ID: "A", Amount: "0"}}}.Record(core.SourceManual))
		_, err := f.orch.Export(ctx, core.SourceManual)
		assert.True(t, ierr.Is(err, ierr.ErrNoValidInvoices))
		assert.Equal(t, "Unable to export because no valid invoices were found in the last request.", f.state.Error(core.SourceManual))
		assert.Zero(t, f.svc.calls())
	})
}

func TestExportDelivers(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.state.SetManualForm(manualForm())
	_, err := f.orch.SubmitManual(ctx)
	require.NoError(t, err)

	var during bool
	f.svc.observe = func() { during = f.state.Snapshot().Flow(core.SourceManual).Exporting }

	path, err := f.orch.Export(ctx, core.SourceManual)
	require.NoError(t, err)
	assert.Equal(t, "mem://"+ExportFileName, path)
	assert.Equal(t, []byte("a,b\n"), f.sink.data)
	assert.True(t, during)
	assert.False(t, f.state.Snapshot().Flow(core.SourceManual).Exporting)
	require.Len(t, f.svc.exports, 1)
	assert.Len(t, f.svc.exports[0].Invoices, 2)
}

func TestExportFailureKeepsResults(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.state.SetManualForm(manualForm())
	_, err := f.orch.SubmitManual(ctx)
	require.NoError(t, err)

	f.svc.err = ierr.Service("export combinations", errors.New("status 500"), "")
	_, err = f.orch.Export(ctx, core.SourceManual)
	require.Error(t, err)
	assert.Equal(t, ierr.FallbackExport, f.state.Error(core.SourceManual))
	assert.False(t, f.state.Snapshot().Flow(core.SourceManual).Exporting)
	assert.NotNil(t, f.state.Results(core.SourceManual))

	f.svc.err = nil
	f.sink.err = errors.New("disk full")
	_, err = f.orch.Export(ctx, core.SourceManual)
	require.Error(t, err)
	assert.Equal(t, ierr.FallbackExport, f.state.Error(core.SourceManual))
	assert.False(t, f.state.Snapshot().Flow(core.SourceManual).Exporting)
}

func TestSaveScenario(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	_, err := f.orch.SaveScenario(ctx, core.SourceManual, named("x"))
	assert.True(t, ierr.Is(err, ierr.ErrRunSearchBeforeSave))
	assert.Equal(t, "Run a search before saving a scenario.", f.state.Error(core.SourceManual))

	f.state.SetManualForm(manualForm())
	_, err = f.orch.SubmitManual(ctx)
	require.NoError(t, err)

	sc, err := f.orch.SaveScenario(ctx, core.SourceManual, named("Quarter close"))
	require.NoError(t, err)
	require.NotNil(t, sc)
	assert.Equal(t, "Quarter close", sc.Name)
	assert.Empty(t, f.state.Error(core.SourceManual))
}

func TestLoadThenSaveIsIdempotent(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	form := manualForm()
	form.MinInvoices = "1"
	form.MaxInvoices = "2"
	form.RequiredIDs = "INV-1"
	f.state.SetManualForm(form)
	_, err := f.orch.SubmitManual(ctx)
	require.NoError(t, err)

	original, err := f.orch.SaveScenario(ctx, core.SourceManual, named("First"))
	require.NoError(t, err)

	f.state.SetManualForm(validation.ManualForm{})
	_, err = f.orch.LoadScenario(ctx, original.ID)
	require.NoError(t, err)
	assert.Equal(t, original.ID, f.state.ActiveScenario())
	assert.Equal(t, "2500.00", f.state.ManualForm().Target)
	assert.Equal(t, "INV-1", f.state.ManualForm().RequiredIDs)

	again, err := f.orch.SaveScenario(ctx, core.SourceManual, named("Second"))
	require.NoError(t, err)
	assert.Equal(t, original.RequestSnapshot, again.RequestSnapshot)
	assert.Len(t, f.svc.searches, 2, "load issues a fresh search")
}

func TestLoadFromUploadForcesManual(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.state.SetUploadForm(validation.UploadForm{Target: "2500", File: &core.UploadFile{Name: "b.xlsx", Content: []byte("PK")}})
	_, err := f.orch.SubmitUpload(ctx)
	require.NoError(t, err)

	sc, err := f.orch.SaveScenario(ctx, core.SourceUpload, named("From upload"))
	require.NoError(t, err)

	_, err = f.orch.LoadScenario(ctx, sc.ID)
	require.NoError(t, err)
	snap := f.state.Snapshot()
	assert.Equal(t, core.SourceManual, snap.LastRequest.Source)
	assert.True(t, session.CanExport(snap, core.SourceManual))
	assert.False(t, session.CanExport(snap, core.SourceUpload))
}

func TestLoadInvalidScenarioStopsBeforeCall(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	kv := memory.NewWithData(map[string][]byte{
		scenario.StorageKey: []byte(`[
			{"id":"bad-target","name":"A","target":"0","invoices":[{"id":"X","amount":"1"}],"requiredInvoiceIds":[]},
			{"id":"no-invoices","name":"B","target":"10","invoices":[{"id":"","amount":"5"},{"id":"Y","amount":"-1"}],"requiredInvoiceIds":[]},
			{"id":"partial","name":"C","target":"10","invoices":[{"id":"","amount":"5"},{"id":"Z","amount":"10"}],"requiredInvoiceIds":[]}
		]`),
	})
	f.scenarios = scenario.NewStore(kv)
	f.orch = NewOrchestrator(f.svc, f.state, f.scenarios, f.sink, nil)

	_, err := f.orch.LoadScenario(ctx, "bad-target")
	assert.True(t, ierr.Is(err, ierr.ErrTargetNotPositive))
	assert.Equal(t, "0", f.state.ManualForm().Target, "fields repopulated")
	assert.Equal(t, "bad-target", f.state.ActiveScenario())

	_, err = f.orch.LoadScenario(ctx, "no-invoices")
	assert.True(t, ierr.Is(err, ierr.ErrNoInvoicesProvided))
	assert.Zero(t, f.svc.calls())

	_, err = f.orch.LoadScenario(ctx, "partial")
	require.NoError(t, err)
	require.Len(t, f.svc.searches, 1)
	assert.Equal(t, []string{"Z"}, f.svc.searches[0].InvoiceIDs())

	_, err = f.orch.LoadScenario(ctx, "missing")
	assert.True(t, ierr.Is(err, ierr.ErrScenarioNotFound))
}

func TestDeleteScenarioClearsActive(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.state.SetManualForm(manualForm())
	_, err := f.orch.SubmitManual(ctx)
	require.NoError(t, err)
	sc, err := f.orch.SaveScenario(ctx, core.SourceManual, named("Temp"))
	require.NoError(t, err)
	_, err = f.orch.LoadScenario(ctx, sc.ID)
	require.NoError(t, err)

	removed, err := f.orch.DeleteScenario(ctx, sc.ID)
	require.NoError(t, err)
	assert.True(t, removed)
	assert.Empty(t, f.state.ActiveScenario())
	assert.Empty(t, f.scenarios.List(ctx))
}

func TestSubmitManualClearsActiveScenario(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.state.SetActiveScenario("old")
	f.state.SetManualForm(manualForm())

	_, err := f.orch.SubmitManual(ctx)
	require.NoError(t, err)
	assert.Empty(t, f.state.ActiveScenario())
}

func TestFileSink(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "exports")
	sink := NewFileSink(dir)

	path, err := sink.Deliver(context.Background(), ExportFileName, []byte("x,y\n"))
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, ExportFileName), path)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "x,y\n", string(data))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1, "no temporary files left behind")
	assert.Equal(t, ExportFileName, entries[0].Name())

	path, err = sink.Deliver(context.Background(), "../escape.csv", []byte("z"))
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "escape.csv"), path)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = sink.Deliver(ctx, ExportFileName, []byte("z"))
	assert.ErrorIs(t, err, context.Canceled)

	names := lo.Map(mustReadDir(t, dir), func(e os.DirEntry, _ int) string { return e.Name() })
	assert.ElementsMatch(t, []string{ExportFileName, "escape.csv"}, names)
}

func mustReadDir(t *testing.T, dir string) []os.DirEntry {
	t.Helper()
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	return entries
}
