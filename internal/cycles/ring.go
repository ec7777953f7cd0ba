package cycles

// ring is a fixed-capacity buffer that keeps the most recent values.
type ring[T any] struct {
	data []T
	pos  int
	full bool
}

func newRing[T any](capacity int) *ring[T] {
	return &ring[T]{data: make([]T, capacity)}
}

func (r *ring[T]) push(v T) {
	r.data[r.pos] = v
	r.pos++
	if r.pos >= len(r.data) {
		r.pos = 0
		r.full = true
	}
}

func (r *ring[T]) len() int {
	if r.full {
		return len(r.data)
	}
	return r.pos
}

// slice returns the contents oldest first.
func (r *ring[T]) slice() []T {
	out := make([]T, r.len())
	if r.full {
		copy(out, r.data[r.pos:])
		copy(out[len(r.data)-r.pos:], r.data[:r.pos])
	} else {
		copy(out, r.data[:r.pos])
	}
	return out
}

// last returns up to n of the most recent values, oldest first.
func (r *ring[T]) last(n int) []T {
	all := r.slice()
	if n < len(all) {
		return all[len(all)-n:]
	}
	return all
}

func (r *ring[T]) reset() {
	var zero T
	for i := range r.data {
		r.data[i] = zero
	}
	r.pos = 0
	r.full = false
}
