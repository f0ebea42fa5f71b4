package sim

import (
	"fmt"
	"sort"
)

// MoteID identifies a mote. The core never interprets it beyond equality.
type MoteID int

// Direction is the use of a cell by its owner.
type Direction int

const (
	DirTX Direction = iota + 1
	DirRX
	DirShared
)

func (d Direction) String() string {
	switch d {
	case DirTX:
		return "TX"
	case DirRX:
		return "RX"
	case DirShared:
		return "SHARED"
	default:
		return fmt.Sprintf("Direction(%d)", int(d))
	}
}

// CellKey is the (timeslot, channel offset) position of a cell in a slotframe.
type CellKey struct {
	Timeslot int
	Channel  int
}

func (k CellKey) String() string {
	return fmt.Sprintf("(ts=%d,ch=%d)", k.Timeslot, k.Channel)
}

func (k CellKey) less(o CellKey) bool {
	if k.Timeslot != o.Timeslot {
		return k.Timeslot < o.Timeslot
	}
	return k.Channel < o.Channel
}

// Cell is one entry of a mote's schedule. Neighbor names the peer mote; it is
// a relation only and carries no ownership.
type Cell struct {
	Key       CellKey
	Direction Direction
	Neighbor  MoteID
}

// Schedule is a mote's cell table. It holds at most one cell per
// (timeslot, channel). The zero value is not usable; call NewSchedule.
type Schedule struct {
	cells map[CellKey]Cell
}

// NewSchedule returns an empty schedule.
func NewSchedule() *Schedule {
	return &Schedule{cells: make(map[CellKey]Cell)}
}

// Add inserts c, failing with ErrCellOccupied if its key is taken.
func (s *Schedule) Add(c Cell) error {
	if _, ok := s.cells[c.Key]; ok {
		return fmt.Errorf("add %s %s: %w", c.Direction, c.Key, ErrCellOccupied)
	}
	s.cells[c.Key] = c
	return nil
}

// Remove deletes and returns the cell at key.
func (s *Schedule) Remove(key CellKey) (Cell, error) {
	c, ok := s.cells[key]
	if !ok {
		return Cell{}, fmt.Errorf("remove %s: %w", key, ErrCellNotFound)
	}
	delete(s.cells, key)
	return c, nil
}

// Get returns the cell at key.
func (s *Schedule) Get(key CellKey) (Cell, bool) {
	c, ok := s.cells[key]
	return c, ok
}

// IsFree reports whether no cell occupies key.
func (s *Schedule) IsFree(key CellKey) bool {
	_, ok := s.cells[key]
	return !ok
}

// HasTimeslot reports whether any cell uses timeslot ts, on any channel.
func (s *Schedule) HasTimeslot(ts int) bool {
	for k := range s.cells {
		if k.Timeslot == ts {
			return true
		}
	}
	return false
}

// CellsAt returns the cells at timeslot ts, ordered by channel.
func (s *Schedule) CellsAt(ts int) []Cell {
	out := make([]Cell, 0, 1)
	for k, c := range s.cells {
		if k.Timeslot == ts {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key.Channel < out[j].Key.Channel })
	return out
}

// Len returns the number of cells.
func (s *Schedule) Len() int { return len(s.cells) }

// Cells returns a snapshot of all cells sorted by (timeslot, channel).
func (s *Schedule) Cells() []Cell {
	out := make([]Cell, 0, len(s.cells))
	for _, c := range s.cells {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key.less(out[j].Key) })
	return out
}

// CountDirection returns the number of cells used in direction d.
func (s *Schedule) CountDirection(d Direction) int {
	n := 0
	for _, c := range s.cells {
		if c.Direction == d {
			n++
		}
	}
	return n
}
