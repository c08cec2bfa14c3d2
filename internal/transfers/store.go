package transfers

import "sync"

// Store holds the transfer state. It changes only through the submission
// lifecycle (pending/fulfilled/rejected) and the two clear reducers.
//
// Events is a single slot. The submission that entered pending last owns it;
// completions of older submissions leave it alone.
type Store struct {
	mu          sync.Mutex
	state       State
	eventsOwner string
}

func NewStore() *Store {
	return &Store{}
}

// Snapshot returns a deep copy of the current state.
func (s *Store) Snapshot() State {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := State{
		IsTransferSubmitting:    s.state.IsTransferSubmitting,
		IsIbcTransferSubmitting: s.state.IsIbcTransferSubmitting,
	}
	if len(s.state.Transactions) > 0 {
		out.Transactions = make([]Transaction, len(s.state.Transactions))
		copy(out.Transactions, s.state.Transactions)
	}
	if s.state.TransferError != nil {
		msg := *s.state.TransferError
		out.TransferError = &msg
	}
	if s.state.Events != nil {
		ev := *s.state.Events
		out.Events = &ev
	}
	return out
}

func (s *Store) ClearEvents() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.state.Events = nil
	s.state.IsTransferSubmitting = false
}

func (s *Store) ClearErrors() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.state.TransferError = nil
}

func (s *Store) transferPending(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.state.IsTransferSubmitting = true
	s.beginLocked(id)
}

func (s *Store) transferFulfilled(id string, tx Transaction, faucet bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.state.Transactions = append(s.state.Transactions, tx)
	s.state.IsTransferSubmitting = false
	// faucet drips are not surfaced as confirmations
	if !faucet {
		s.setEventsLocked(id, tx)
	}
}

func (s *Store) transferRejected(id, msg string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.state.IsTransferSubmitting = false
	s.state.TransferError = &msg
	if s.eventsOwner == id {
		s.state.Events = nil
	}
}

func (s *Store) ibcPending(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.state.IsIbcTransferSubmitting = true
	s.beginLocked(id)
}

func (s *Store) ibcFulfilled(id string, tx Transaction) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.state.Transactions = append(s.state.Transactions, tx)
	s.state.IsIbcTransferSubmitting = false
	s.setEventsLocked(id, tx)
}

func (s *Store) ibcRejected(msg string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.state.IsIbcTransferSubmitting = false
	s.state.TransferError = &msg
}

func (s *Store) beginLocked(id string) {
	s.state.TransferError = nil
	s.state.Events = nil
	s.eventsOwner = id
}

func (s *Store) setEventsLocked(id string, tx Transaction) {
	if s.eventsOwner != id {
		return
	}
	s.state.Events = &Events{
		Gas:          tx.Gas,
		AppliedHash:  tx.AppliedHash,
		SubmissionID: id,
	}
}
