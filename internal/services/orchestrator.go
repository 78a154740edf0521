// Package services drives the combination workflows: it validates the
// session's forms, calls the Combination Service, and records results,
// flags and messages on the session.
package services

import (
	"context"
	"sort"

	"invoicemix/internal/core"
	ierr "invoicemix/internal/errors"
	"invoicemix/internal/log"
	"invoicemix/internal/scenario"
	"invoicemix/internal/session"
	"invoicemix/internal/validation"

	"github.com/samber/lo"
)

// CombinationService is the remote service the orchestrator calls.
type CombinationService interface {
	Search(ctx context.Context, req core.CombinationRequest) (*core.CombinationResult, error)
	SearchUpload(ctx context.Context, req core.UploadRequest) (*core.CombinationResult, error)
	Export(ctx context.Context, req core.CombinationRequest) ([]byte, error)
}

// Orchestrator runs every user-triggered operation against one session.
// Each operation is a single attempt. Errors are recorded on the session as
// the flow's message and also returned.
type Orchestrator struct {
	svc       CombinationService
	state     *session.State
	scenarios *scenario.Store
	sink      ExportSink
	logger    *log.Logger
}

func NewOrchestrator(svc CombinationService, state *session.State, scenarios *scenario.Store, sink ExportSink, logger *log.Logger) *Orchestrator {
	if logger == nil {
		logger = log.Discard()
	}
	return &Orchestrator{
		svc:       svc,
		state:     state,
		scenarios: scenarios,
		sink:      sink,
		logger:    logger.WithComponent(log.ComponentOrchestrator),
	}
}

// State returns the session the orchestrator writes to.
func (o *Orchestrator) State() *session.State {
	return o.state
}

func fallbackFor(flow core.Source) string {
	if flow == core.SourceUpload {
		return ierr.FallbackUpload
	}
	return ierr.FallbackSearch
}

func errorType(err error) string {
	switch {
	case ierr.IsValidation(err):
		return log.ErrorTypeValidation
	case ierr.IsPrecondition(err):
		return log.ErrorTypePrecondition
	case ierr.IsService(err):
		return log.ErrorTypeService
	default:
		return log.ErrorTypeInternal
	}
}

// reject records a local failure. Results and the last request record are
// left as they are.
func (o *Orchestrator) reject(ctx context.Context, flow core.Source, op string, err error, fallback string) error {
	o.state.SetError(flow, ierr.UserMessage(err, fallback))
	o.logger.WarnContext(ctx, "Request rejected",
		log.NewFields().
			WithFlow(flow.String()).
			WithOperation(op).
			WithErrorType(errorType(err)).
			WithError(err).ToSlice()...)
	return err
}

// SubmitManual validates the manual form and searches with it.
func (o *Orchestrator) SubmitManual(ctx context.Context) (*core.CombinationResult, error) {
	form := o.state.ManualForm()
	req, err := validation.ValidateManual(form)
	if err != nil {
		return nil, o.reject(ctx, core.SourceManual, log.OpValidate, err, ierr.FallbackSearch)
	}

	res, err := o.SubmitSearch(ctx, req, form.Snapshot(req), core.SourceManual)
	if err == nil {
		o.state.SetActiveScenario("")
	}
	return res, err
}

// SubmitSearch sends an already validated request. snapshot is what gets
// recorded as the last request, tagged with source.
func (o *Orchestrator) SubmitSearch(ctx context.Context, req core.CombinationRequest, snapshot core.RequestSnapshot, source core.Source) (*core.CombinationResult, error) {
	o.state.SetLastRequest(snapshot.Record(source))

	release := o.state.BeginSearch(source)
	defer release()
	o.state.Clear(source)

	fields := log.NewFields().WithFlow(source.String()).WithRequest(req.Target.String(), len(req.Invoices))
	res, err := o.svc.Search(ctx, req)
	if err != nil {
		o.state.Fail(source, ierr.UserMessage(err, fallbackFor(source)))
		o.logger.LogError(ctx, "Combination search failed", err, errorType(err), log.OpSearch, fields)
		return nil, err
	}

	o.state.Succeed(source, res)
	o.state.SetLastRequest(snapshot.Record(source))
	fields[log.FieldComboCount] = res.CombinationCount
	o.logger.InfoContext(ctx, "Combination search completed", fields.ToSlice()...)
	return res.Clone(), nil
}

// SubmitUpload validates the upload form and searches with the file.
func (o *Orchestrator) SubmitUpload(ctx context.Context) (*core.CombinationResult, error) {
	form := o.state.UploadForm()
	req, err := validation.ValidateUpload(form)
	if err != nil {
		return nil, o.reject(ctx, core.SourceUpload, log.OpValidate, err, ierr.FallbackUpload)
	}

	snapshot := form.Snapshot(req)
	o.state.SetLastRequest(snapshot.Record(core.SourceUpload))

	release := o.state.BeginSearch(core.SourceUpload)
	defer release()
	o.state.Clear(core.SourceUpload)

	fields := log.NewFields().WithFlow(core.SourceUpload.String()).WithOperation(log.OpUpload)
	fields[log.FieldFileName] = req.File.Name
	fields[log.FieldBytes] = len(req.File.Content)

	res, err := o.svc.SearchUpload(ctx, req)
	if err != nil {
		o.state.Fail(core.SourceUpload, ierr.UserMessage(err, ierr.FallbackUpload))
		o.logger.LogError(ctx, "Upload search failed", err, errorType(err), log.OpUpload, fields)
		return nil, err
	}

	o.state.Succeed(core.SourceUpload, res)
	snapshot.Invoices = invoicesFromAmounts(res)
	o.state.SetLastRequest(snapshot.Record(core.SourceUpload))
	fields[log.FieldComboCount] = res.CombinationCount
	fields[log.FieldInvoiceCount] = len(snapshot.Invoices)
	o.logger.InfoContext(ctx, "Upload search completed", fields.ToSlice()...)
	return res.Clone(), nil
}

// invoicesFromAmounts lists the invoices the service parsed from the file,
// ordered by id.
func invoicesFromAmounts(res *core.CombinationResult) []core.InvoiceEntry {
	ids := lo.Keys(res.InvoiceAmounts)
	sort.Strings(ids)
	return lo.Map(ids, func(id string, _ int) core.InvoiceEntry {
		return core.InvoiceEntry{ID: id, Amount: res.InvoiceAmounts[id].String()}
	})
}

// exportRequest checks the export preconditions for flow and builds the
// request from the last record.
func exportRequest(last *core.LastRequestRecord, flow core.Source) (core.CombinationRequest, error) {
	if last == nil || last.Source != flow {
		return core.CombinationRequest{}, ierr.Precondition(ierr.ErrRunSearchBeforeExport)
	}
	target, ok := last.ParseTarget()
	if !ok {
		return core.CombinationRequest{}, ierr.Precondition(ierr.ErrInvalidLastTarget)
	}
	invoices := lo.FilterMap(last.Invoices, func(inv core.InvoiceEntry, _ int) (core.InvoiceLineItem, bool) {
		amount, ok := core.ParsePositive(inv.Amount)
		return core.InvoiceLineItem{ID: inv.ID, Amount: amount}, ok
	})
	if len(invoices) == 0 {
		return core.CombinationRequest{}, ierr.Precondition(ierr.ErrNoValidInvoices)
	}
	return last.Request(target, invoices), nil
}

// Export sends the last request of flow to the export endpoint and hands
// the CSV to the sink. It returns where the file was delivered.
func (o *Orchestrator) Export(ctx context.Context, flow core.Source) (string, error) {
	req, err := exportRequest(o.state.LastRequest(), flow)
	if err != nil {
		return "", o.reject(ctx, flow, log.OpExport, err, ierr.FallbackExport)
	}

	release := o.state.BeginExport(flow)
	defer release()
	o.state.SetError(flow, "")

	fields := log.NewFields().WithFlow(flow.String()).WithRequest(req.Target.String(), len(req.Invoices))
	data, err := o.svc.Export(ctx, req)
	if err != nil {
		o.state.SetError(flow, ierr.UserMessage(err, ierr.FallbackExport))
		o.logger.LogError(ctx, "Export failed", err, errorType(err), log.OpExport, fields)
		return "", err
	}

	path, err := o.sink.Deliver(ctx, ExportFileName, data)
	if err != nil {
		o.state.SetError(flow, ierr.FallbackExport)
		o.logger.LogError(ctx, "Export delivery failed", err, log.ErrorTypeStorage, log.OpExport, fields)
		return "", err
	}

	fields[log.FieldBytes] = len(data)
	o.logger.InfoContext(ctx, "Export delivered", append(fields.ToSlice(), "path", path)...)
	return path, nil
}

// SaveScenario stores the last request under a name from prompt. A
// cancelled or blank name returns (nil, nil).
func (o *Orchestrator) SaveScenario(ctx context.Context, flow core.Source, prompt scenario.NamePrompt) (*core.SavedScenario, error) {
	o.state.SetError(flow, "")
	sc, err := o.scenarios.Save(ctx, o.state.LastRequest(), prompt)
	if err != nil {
		return nil, o.reject(ctx, flow, log.OpSave, err, ierr.FallbackScenario)
	}
	return sc, nil
}

// LoadScenario puts a saved scenario back into the manual form and runs a
// fresh search with it. Invalid stored data stops after the form is
// repopulated.
func (o *Orchestrator) LoadScenario(ctx context.Context, id string) (*core.CombinationResult, error) {
	sc, ok := o.scenarios.Get(ctx, id)
	if !ok {
		return nil, o.reject(ctx, core.SourceManual, log.OpLoad, ierr.Precondition(ierr.ErrScenarioNotFound), ierr.FallbackScenario)
	}

	snapshot := sc.RequestSnapshot
	o.state.SetManualForm(validation.FormFromSnapshot(snapshot))
	o.state.SetActiveScenario(sc.ID)
	o.state.SetLastRequest(snapshot.Record(core.SourceManual))

	target, ok := snapshot.ParseTarget()
	if !ok {
		return nil, o.reject(ctx, core.SourceManual, log.OpLoad, ierr.Validation(ierr.ErrTargetNotPositive), ierr.FallbackSearch)
	}
	invoices := snapshot.ValidInvoices()
	if len(invoices) == 0 {
		return nil, o.reject(ctx, core.SourceManual, log.OpLoad, ierr.Validation(ierr.ErrNoInvoicesProvided), ierr.FallbackSearch)
	}

	o.logger.InfoContext(ctx, "Scenario loaded", log.NewFields().WithScenario(sc.ID, sc.Name).ToSlice()...)
	return o.SubmitSearch(ctx, snapshot.Request(target, invoices), snapshot, core.SourceManual)
}

// DeleteScenario removes a saved scenario and clears the active marker
// when it pointed at it.
func (o *Orchestrator) DeleteScenario(ctx context.Context, id string) (bool, error) {
	removed, err := o.scenarios.Delete(ctx, id)
	if err != nil {
		return false, o.reject(ctx, core.SourceManual, log.OpDelete, err, ierr.FallbackScenario)
	}
	o.state.ClearActiveScenario(id)
	return removed, nil
}
