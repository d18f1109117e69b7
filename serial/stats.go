package serial

import "sync"

// StatsProber wraps a Prober to track statistics
type StatsProber struct {
	prober    Prober
	probes    int64
	bytesRead int64
	errors    int64
	mu        sync.RWMutex
}

// NewStatsProber creates a new StatsProber
func NewStatsProber(prober Prober) *StatsProber {
	return &StatsProber{
		prober: prober,
	}
}

// Probe implements Prober and records the outcome
func (s *StatsProber) Probe(portName string, req ProbeRequest) ([]byte, error) {
	data, err := s.prober.Probe(portName, req)

	s.mu.Lock()
	s.probes++
	s.bytesRead += int64(len(data))
	if err != nil {
		s.errors++
	}
	s.mu.Unlock()

	return data, err
}

// Stats returns current statistics
func (s *StatsProber) Stats() (probes, bytesRead, errors int64) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.probes, s.bytesRead, s.errors
}

// ResetStats resets all statistics
func (s *StatsProber) ResetStats() {
	s.mu.Lock()
	s.probes = 0
	s.bytesRead = 0
	s.errors = 0
	s.mu.Unlock()
}
