package game

// Counters tracks named counters on a card. Values never go below zero:
// a negative delta that would undershoot clamps to zero, and entries at
// zero are removed.
type Counters map[string]int

// Add applies delta to the named counter and returns the resulting value.
func (cs Counters) Add(name string, delta int) int {
	value := cs[name] + delta
	if value <= 0 {
		delete(cs, name)
		return 0
	}
	cs[name] = value
	return value
}

// Count returns the current value of the named counter.
func (cs Counters) Count(name string) int {
	return cs[name]
}

// Total returns the sum of all counter values.
func (cs Counters) Total() int {
	total := 0
	for _, v := range cs {
		total += v
	}
	return total
}

// Copy returns an independent copy.
func (cs Counters) Copy() Counters {
	out := make(Counters, len(cs))
	for name, v := range cs {
		out[name] = v
	}
	return out
}
