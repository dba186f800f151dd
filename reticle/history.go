package reticle

// history is a fixed-capacity FIFO; pushing onto a full history evicts the
// oldest entry.
type history[T any] struct {
	buf   []T
	start int
	size  int
}

func newHistory[T any](capacity int) *history[T] {
	if capacity < 1 {
		capacity = 1
	}
	return &history[T]{buf: make([]T, capacity)}
}

func (h *history[T]) push(v T) {
	if h.size < len(h.buf) {
		h.buf[(h.start+h.size)%len(h.buf)] = v
		h.size++
		return
	}
	h.buf[h.start] = v
	h.start = (h.start + 1) % len(h.buf)
}

func (h *history[T]) len() int { return h.size }

func (h *history[T]) capacity() int { return len(h.buf) }

// each visits entries oldest first
func (h *history[T]) each(fn func(T)) {
	for i := 0; i < h.size; i++ {
		fn(h.buf[(h.start+i)%len(h.buf)])
	}
}

// newest returns the most recently pushed entry
func (h *history[T]) newest() (T, bool) {
	var zero T
	if h.size == 0 {
		return zero, false
	}
	return h.buf[(h.start+h.size-1)%len(h.buf)], true
}

func (h *history[T]) slice() []T {
	out := make([]T, 0, h.size)
	h.each(func(v T) { out = append(out, v) })
	return out
}
