package datastore

// SequenceSchema describes one auto-increment allocator attached to a
// table column.
type SequenceSchema struct {
	ID        uint32
	Column    string
	Start     int64
	MinValue  int64
	MaxValue  int64
	Increment int64
	// Allocated is the crash-safety checkpoint: the value the sequence
	// would resume from if process memory were lost. It only ever
	// advances in batches (set_allocation), never per gen_next_value.
	Allocated int64
}

// Sequence is a running auto-increment allocator with wrap-around
// arithmetic, including negative increments.
type Sequence struct {
	schema SequenceSchema
	value  int64
}

// NewSequence starts a sequence at its schema's configured start value.
func NewSequence(schema SequenceSchema) *Sequence {
	return &Sequence{schema: schema, value: schema.Start}
}

// nextInSequence computes value+increment, wrapping into [min,max] when it
// overflows past max (for a positive increment) or underflows past min
// (for a negative one).
func nextInSequence(min, max, increment, value int64) int64 {
	next := value + increment
	span := max - min + 1
	if increment > 0 {
		if next > max {
			next = min + (next-max-1)%span
		}
	} else if next < min {
		next = max - (min-next-1)%span
	}
	return next
}

// GenNextValue returns the current value and advances, or ok=false if the
// sequence has hit its allocation watermark: current == allocated means
// handing out another value without first recording a new allocation could
// repeat a value already emitted before a crash.
func (s *Sequence) GenNextValue() (value int64, ok bool) {
	if s.NeedsAllocation() {
		return 0, false
	}
	value = s.value
	s.value = s.NextValue()
	return value, true
}

// Allocated reports the current crash-safety checkpoint.
func (s *Sequence) Allocated() int64 { return s.schema.Allocated }

// NextValue previews the value GenNextValue would advance to, without
// mutating the sequence.
func (s *Sequence) NextValue() int64 { return s.NthValue(1) }

// NthValue previews the value n steps ahead of the current one.
func (s *Sequence) NthValue(n int) int64 {
	v := s.value
	for i := 0; i < n; i++ {
		v = nextInSequence(s.schema.MinValue, s.schema.MaxValue, s.schema.Increment, v)
	}
	return v
}

// NeedsAllocation reports whether the current value has reached the
// allocation watermark and a new allocation checkpoint must be recorded
// (and made durable) before another value can be safely handed out.
func (s *Sequence) NeedsAllocation() bool {
	return s.value == s.schema.Allocated
}

// SetAllocation records a new crash-safety checkpoint while the sequence
// keeps running live: value continues advancing one step at a time from
// where it already was, only the watermark moves. Used mid-operation when
// GenNextValue hits the current watermark and needs a further batch.
func (s *Sequence) SetAllocation(allocated int64) {
	s.schema.Allocated = allocated
}

// RestoreFromCheckpoint reinitializes the sequence from a durable
// checkpoint after a crash or snapshot load: both the watermark and the
// running value jump to allocated, sacrificing whatever unused tail of the
// previous batch was never durably recorded; the only safe choice, since
// nothing durable says which of those values were already handed out.
func (s *Sequence) RestoreFromCheckpoint(allocated int64) {
	s.schema.Allocated = allocated
	s.value = allocated
}

// SequencesState maps a sequence id to its running Sequence.
type SequencesState struct {
	sequences map[uint32]*Sequence
}

// NewSequencesState returns an empty sequence table.
func NewSequencesState() *SequencesState {
	return &SequencesState{sequences: make(map[uint32]*Sequence)}
}

func (s *SequencesState) Get(id uint32) (*Sequence, bool) {
	seq, ok := s.sequences[id]
	return seq, ok
}

func (s *SequencesState) Insert(id uint32, seq *Sequence) {
	s.sequences[id] = seq
}

func (s *SequencesState) Remove(id uint32) {
	delete(s.sequences, id)
}
