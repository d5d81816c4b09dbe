package record

// HistoryCap is the maximum number of points kept per record.
const HistoryCap = 4

// History is a bounded, most-recent-first sequence of observed positions.
type History []Point

// Prepend inserts p at the front and drops entries from the tail until the
// length is at most HistoryCap. A nil history is treated as empty.
func (h History) Prepend(p Point) History {
	n := len(h) + 1
	if n > HistoryCap {
		n = HistoryCap
	}
	out := make(History, n)
	out[0] = p
	copy(out[1:], h)
	return out
}

// Latest returns the most recently prepended point.
func (h History) Latest() (Point, bool) {
	if len(h) == 0 {
		return Point{}, false
	}
	return h[0], true
}

// trim bounds h to HistoryCap, keeping the newest entries.
func (h History) trim() History {
	if h == nil {
		return History{}
	}
	if len(h) > HistoryCap {
		return h[:HistoryCap]
	}
	return h
}
