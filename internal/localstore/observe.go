package localstore

// Observe subscribes to change notifications for an owner's records. The
// returned channel receives a non-blocking signal after any write touching
// that owner; consumers re-read the store on each signal. Call cancel to
// unsubscribe.
//
// This is the explicit subscription boundary between the sync core and its
// UI consumer: no payloads travel on the channel, only "something changed".
func (s *Store) Observe(ownerID string) (<-chan struct{}, func()) {
	ch := make(chan struct{}, 1)

	s.mu.Lock()
	s.observers[ownerID] = append(s.observers[ownerID], ch)
	s.mu.Unlock()

	cancel := func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		subs := s.observers[ownerID]
		for i, sub := range subs {
			if sub == ch {
				s.observers[ownerID] = append(subs[:i], subs[i+1:]...)
				break
			}
		}
	}
	return ch, cancel
}

// notify signals all observers of the owner. Signals are coalesced: a
// subscriber that has not drained its channel yet gets no extra signal.
func (s *Store) notify(ownerID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, ch := range s.observers[ownerID] {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}
