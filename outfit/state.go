package outfit

import (
	"errors"
	"fmt"
	"strings"

	"github.com/kasuganosora/magicwardrobe/catalog"
	"github.com/kasuganosora/magicwardrobe/model"
)

var (
	ErrUnknownSlot   = errors.New("outfit: unknown slot")
	ErrSlotLocked    = errors.New("outfit: slot is locked")
	ErrWrongCategory = errors.New("outfit: garment does not fit slot")
	ErrBusy          = errors.New("outfit: generation or confirm in progress")
)

// Outcome is the result of a generation pass.
type Outcome int

const (
	OutcomeGenerated Outcome = iota
	// OutcomeNoAnchor: nothing locked and no Bottoms or Tops to build on.
	OutcomeNoAnchor
	// OutcomeBusy: another generate or confirm was already running.
	OutcomeBusy
	// OutcomeFailed: a collaborator failed; no state was changed.
	OutcomeFailed
)

func (o Outcome) String() string {
	switch o {
	case OutcomeGenerated:
		return "generated"
	case OutcomeNoAnchor:
		return "no_anchor"
	case OutcomeBusy:
		return "busy"
	case OutcomeFailed:
		return "failed"
	}
	return fmt.Sprintf("outcome(%d)", int(o))
}

// Direction selects the neighbour when cycling a slot.
type Direction int

const (
	Next Direction = iota
	Prev
)

// ParseDirection accepts "next" and "prev" (case-insensitive).
func ParseDirection(s string) (Direction, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "next", "":
		return Next, nil
	case "prev", "previous":
		return Prev, nil
	}
	return Next, fmt.Errorf("outfit: unknown direction %q", s)
}

// SlotState is a read-only view of one slot.
type SlotState struct {
	Item       *model.Garment `json:"item"`
	Locked     bool           `json:"locked"`
	Candidates int            `json:"candidates"`
	Index      int            `json:"index"`
}

// Snapshot is a consistent read-only copy of an engine's session state.
type Snapshot struct {
	Slots   map[catalog.Category]SlotState `json:"slots"`
	Loading bool                           `json:"loading"`
	Weather string                         `json:"weather"`
}

// CanCycle reports whether the slot has alternatives to step through.
func (s Snapshot) CanCycle(slot catalog.Category) bool {
	st := s.Slots[slot]
	return !st.Locked && st.Candidates > 1
}

// session is the mutable per-slot state guarded by Engine.mu.
type session struct {
	slots      map[catalog.Category]*model.Garment
	locked     map[catalog.Category]bool
	candidates map[catalog.Category][]*model.Garment
	index      map[catalog.Category]int
}

func newSession() session {
	return session{
		slots:      make(map[catalog.Category]*model.Garment, 5),
		locked:     make(map[catalog.Category]bool, 5),
		candidates: make(map[catalog.Category][]*model.Garment, 5),
		index:      make(map[catalog.Category]int, 5),
	}
}

// clone copies the maps; garments are shared and treated as immutable.
func (s session) clone() session {
	c := newSession()
	for _, slot := range catalog.Slots() {
		c.slots[slot] = s.slots[slot]
		c.locked[slot] = s.locked[slot]
		c.candidates[slot] = s.candidates[slot]
		c.index[slot] = s.index[slot]
	}
	return c
}

func (s session) anyLocked() bool {
	for _, v := range s.locked {
		if v {
			return true
		}
	}
	return false
}

// slotResult is the outcome of resolving one slot during generation.
type slotResult struct {
	changed    bool
	item       *model.Garment
	candidates []*model.Garment
	index      int
}

func unchanged() slotResult { return slotResult{} }

func garmentPtrs(gs []model.Garment) []*model.Garment {
	out := make([]*model.Garment, len(gs))
	for i := range gs {
		out[i] = &gs[i]
	}
	return out
}
