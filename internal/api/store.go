package api

import "sync"

// DefaultStoreCapacity bounds how many samples a SampleStore retains.
const DefaultStoreCapacity = 256

// SampleStore keeps the most recent samples so they can be fetched by id.
// The oldest sample is evicted once capacity is reached.
type SampleStore struct {
	mu       sync.Mutex
	capacity int
	order    []string
	samples  map[string]SampleResponse
}

func NewSampleStore(capacity int) *SampleStore {
	if capacity <= 0 {
		capacity = DefaultStoreCapacity
	}
	return &SampleStore{
		capacity: capacity,
		samples:  make(map[string]SampleResponse),
	}
}

func (s *SampleStore) Save(resp SampleResponse) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.samples[resp.ID]; !ok {
		s.order = append(s.order, resp.ID)
	}
	s.samples[resp.ID] = resp
	for len(s.order) > s.capacity {
		delete(s.samples, s.order[0])
		s.order = s.order[1:]
	}
}

func (s *SampleStore) Get(id string) (SampleResponse, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	resp, ok := s.samples[id]
	return resp, ok
}

func (s *SampleStore) Delete(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.samples[id]; !ok {
		return false
	}
	delete(s.samples, id)
	for i, v := range s.order {
		if v == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	return true
}

// List returns the retained samples, newest first.
func (s *SampleStore) List() []SampleResponse {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]SampleResponse, 0, len(s.order))
	for i := len(s.order) - 1; i >= 0; i-- {
		out = append(out, s.samples[s.order[i]])
	}
	return out
}
