package metrics

// NopSink discards all observations. Used in tests and as the default when
// no registry is wired.
type NopSink struct{}

var _ Sink = NopSink{}

func (NopSink) Increment(string, Labels)          {}
func (NopSink) Histogram(string, float64, Labels) {}

// RecordingSink captures observations in memory for assertions.
type RecordingSink struct {
	Counts       map[string]int
	Observations map[string][]float64
	LastLabels   map[string]Labels
}

var _ Sink = (*RecordingSink)(nil)

// NewRecordingSink returns an empty in-memory sink. Not safe for concurrent
// use; intended for single-goroutine tests.
func NewRecordingSink() *RecordingSink {
	return &RecordingSink{
		Counts:       make(map[string]int),
		Observations: make(map[string][]float64),
		LastLabels:   make(map[string]Labels),
	}
}

func (s *RecordingSink) Increment(name string, labels Labels) {
	s.Counts[name]++
	s.LastLabels[name] = labels
}

func (s *RecordingSink) Histogram(name string, value float64, labels Labels) {
	s.Observations[name] = append(s.Observations[name], value)
	s.LastLabels[name] = labels
}
