// Package session holds the live state of one user session: the last
// request record, per-flow results, flags and messages, the form fields and
// the active scenario. The pure functions in display.go derive everything
// presentation needs from a Snapshot.
package session

import (
	"sync"

	"invoicemix/internal/core"
	"invoicemix/internal/validation"
)

// Flows lists the intake flows in display order.
var Flows = []core.Source{core.SourceManual, core.SourceUpload}

type flowState struct {
	results   *core.CombinationResult
	searching bool
	exporting bool
	errMsg    string
}

// State is the single session object. Its mutex guards memory only;
// operations are not serialized by it.
type State struct {
	mu sync.Mutex

	last           *core.LastRequestRecord
	manualForm     validation.ManualForm
	uploadForm     validation.UploadForm
	flows          map[core.Source]*flowState
	activeScenario string
}

func New() *State {
	return &State{
		flows: map[core.Source]*flowState{
			core.SourceManual: {},
			core.SourceUpload: {},
		},
	}
}

func (s *State) flow(f core.Source) *flowState {
	fs, ok := s.flows[f]
	if !ok {
		fs = &flowState{}
		s.flows[f] = fs
	}
	return fs
}

func (s *State) ManualForm() validation.ManualForm {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.manualForm.Clone()
}

func (s *State) SetManualForm(f validation.ManualForm) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.manualForm = f.Clone()
}

func (s *State) UploadForm() validation.UploadForm {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.uploadForm
}

func (s *State) SetUploadForm(f validation.UploadForm) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.uploadForm = f
}

// LastRequest returns a copy of the last request record, or nil.
func (s *State) LastRequest() *core.LastRequestRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.last.Clone()
}

// SetLastRequest replaces the record wholesale.
func (s *State) SetLastRequest(rec *core.LastRequestRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.last = rec.Clone()
}

// Results returns a copy of the flow's current results, or nil.
func (s *State) Results(f core.Source) *core.CombinationResult {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.flow(f).results.Clone()
}

// Succeed stores results for the flow and clears its error message.
func (s *State) Succeed(f core.Source, res *core.CombinationResult) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fs := s.flow(f)
	fs.results = res.Clone()
	fs.errMsg = ""
}

// Clear drops the flow's results and message before a new attempt.
func (s *State) Clear(f core.Source) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fs := s.flow(f)
	fs.results = nil
	fs.errMsg = ""
}

// Fail clears the flow's results and stores msg.
func (s *State) Fail(f core.Source, msg string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fs := s.flow(f)
	fs.results = nil
	fs.errMsg = msg
}

// SetError stores msg without touching results.
func (s *State) SetError(f core.Source, msg string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.flow(f).errMsg = msg
}

func (s *State) Error(f core.Source) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.flow(f).errMsg
}

// BeginSearch raises the flow's searching flag. The returned release must
// be deferred by the caller.
func (s *State) BeginSearch(f core.Source) (release func()) {
	return s.begin(f, func(fs *flowState) *bool { return &fs.searching })
}

// BeginExport raises the flow's exporting flag. The returned release must
// be deferred by the caller.
func (s *State) BeginExport(f core.Source) (release func()) {
	return s.begin(f, func(fs *flowState) *bool { return &fs.exporting })
}

func (s *State) begin(f core.Source, flag func(*flowState) *bool) func() {
	s.mu.Lock()
	*flag(s.flow(f)) = true
	s.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			*flag(s.flow(f)) = false
			s.mu.Unlock()
		})
	}
}

func (s *State) ActiveScenario() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.activeScenario
}

func (s *State) SetActiveScenario(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.activeScenario = id
}

// ClearActiveScenario unsets the active marker if it references id.
func (s *State) ClearActiveScenario(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.activeScenario == id {
		s.activeScenario = ""
	}
}

// FlowSnapshot is the copied state of one flow.
type FlowSnapshot struct {
	Results   *core.CombinationResult
	Searching bool
	Exporting bool
	Error     string
}

// Snapshot is an immutable copy of the session.
type Snapshot struct {
	LastRequest      *core.LastRequestRecord
	Flows            map[core.Source]FlowSnapshot
	ActiveScenarioID string
	ManualForm       validation.ManualForm
	UploadForm       validation.UploadForm
}

// Flow returns the snapshot of f; unknown flows are empty.
func (s Snapshot) Flow(f core.Source) FlowSnapshot {
	return s.Flows[f]
}

func (s *State) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap := Snapshot{
		LastRequest:      s.last.Clone(),
		Flows:            make(map[core.Source]FlowSnapshot, len(s.flows)),
		ActiveScenarioID: s.activeScenario,
		ManualForm:       s.manualForm.Clone(),
		UploadForm:       s.uploadForm,
	}
	for f, fs := range s.flows {
		snap.Flows[f] = FlowSnapshot{
			Results:   fs.results.Clone(),
			Searching: fs.searching,
			Exporting: fs.exporting,
			Error:     fs.errMsg,
		}
	}
	return snap
}
