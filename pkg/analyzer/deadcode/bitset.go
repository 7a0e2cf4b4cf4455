package deadcode

import "github.com/RoaringBitmap/roaring/v2"

// indexSet is a set of dense symbol indexes below a fixed size. It belongs
// to one analysis run and is not safe for concurrent use.
type indexSet struct {
	bits *roaring.Bitmap
	size uint32
}

func newIndexSet(size int) *indexSet {
	return &indexSet{bits: roaring.New(), size: uint32(size)}
}

func (s *indexSet) add(i uint32) { s.bits.Add(i) }

// mark adds i and reports whether it was absent.
func (s *indexSet) mark(i uint32) bool { return s.bits.CheckedAdd(i) }

func (s *indexSet) has(i uint32) bool { return s.bits.Contains(i) }

func (s *indexSet) len() int { return int(s.bits.GetCardinality()) }

// missing returns, in order, every index below size that neither s nor
// any of others contains.
func (s *indexSet) missing(others ...*indexSet) []uint32 {
	covered := s.bits.Clone()
	for _, o := range others {
		covered.Or(o.bits)
	}
	rest := roaring.New()
	rest.AddRange(0, uint64(s.size))
	rest.AndNot(covered)
	return rest.ToArray()
}
