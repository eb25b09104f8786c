package lifecycle

import (
	"encoding/json"
	"fmt"
	"io"
	"sync/atomic"

	"github.com/hashicorp/raft"
)

// transitionCommand is the single Raft log entry shape this FSM applies:
// the already-computed next state, published atomically once committed.
type transitionCommand struct {
	NewState AppState `json:"new_state"`
}

// stateFSM is the Raft finite state machine backing the lifecycle
// supervisor: every Apply call replaces the published AppState wholesale,
// mirroring the teacher's WarrenFSM shape but with a single atomic pointer
// in place of a full store, since a lifecycle snapshot is just one value.
type stateFSM struct {
	current atomic.Pointer[AppState]
}

func newStateFSM(initial AppState) *stateFSM {
	f := &stateFSM{}
	f.current.Store(&initial)
	return f
}

func marshalTransition(next AppState) ([]byte, error) {
	return json.Marshal(transitionCommand{NewState: next})
}

func (f *stateFSM) Apply(log *raft.Log) interface{} {
	var cmd transitionCommand
	if err := json.Unmarshal(log.Data, &cmd); err != nil {
		return fmt.Errorf("unmarshaling lifecycle transition: %w", err)
	}
	f.current.Store(&cmd.NewState)
	return nil
}

func (f *stateFSM) Snapshot() (raft.FSMSnapshot, error) {
	return &stateSnapshot{state: *f.current.Load()}, nil
}

func (f *stateFSM) Restore(rc io.ReadCloser) error {
	defer rc.Close()
	var s AppState
	if err := json.NewDecoder(rc).Decode(&s); err != nil {
		return fmt.Errorf("decoding lifecycle snapshot: %w", err)
	}
	f.current.Store(&s)
	return nil
}

type stateSnapshot struct{ state AppState }

func (s *stateSnapshot) Persist(sink raft.SnapshotSink) error {
	err := func() error {
		if err := json.NewEncoder(sink).Encode(s.state); err != nil {
			return err
		}
		return sink.Close()
	}()
	if err != nil {
		sink.Cancel()
	}
	return err
}

func (s *stateSnapshot) Release() {}
