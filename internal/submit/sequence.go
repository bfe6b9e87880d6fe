package submit

import "sync/atomic"

// Sequence issues client order ids. Ids start at 1 and are unique per pipeline.
type Sequence struct {
	n uint64
}

// Next returns the next client order id.
func (s *Sequence) Next() uint64 {
	return atomic.AddUint64(&s.n, 1)
}
