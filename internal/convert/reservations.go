package convert

import "sort"

// reservation records that revision dependent will (or may) request a
// snapshot of revision source. Prescan collects one per observed copy-from
// edge; the apply pass pops them as the stream moves past both ends.
type reservation struct {
	dependent int
	source    int
}

type reservationSet struct {
	items []reservation
}

// add appends a reservation, deduplicating against the immediate tail; a
// directory copy expands to many nodes with the same edge.
func (s *reservationSet) add(dependent, source int) bool {
	if n := len(s.items); n > 0 {
		tail := s.items[n-1]
		if tail.dependent == dependent && tail.source == source {
			return false
		}
	}
	s.items = append(s.items, reservation{dependent: dependent, source: source})
	return true
}

// sortBySource orders reservations by source revision ascending, the order
// the apply pass pops them in.
func (s *reservationSet) sortBySource() {
	sort.SliceStable(s.items, func(i, j int) bool {
		return s.items[i].source < s.items[j].source
	})
}

// popThrough pops every reservation the stream has moved past: rev is beyond
// both the dependent and the source. It returns the greatest popped source,
// or -1 when nothing was popped.
func (s *reservationSet) popThrough(rev int, onPop func(reservation)) int {
	popped := -1
	for len(s.items) > 0 && rev > s.items[0].dependent && rev > s.items[0].source {
		if onPop != nil {
			onPop(s.items[0])
		}
		popped = s.items[0].source
		s.items = s.items[1:]
	}
	return popped
}

func (s *reservationSet) len() int {
	return len(s.items)
}
