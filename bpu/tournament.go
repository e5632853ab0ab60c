package bpu

// Tournament combines a local per-PC history table with a global GShare
// component, selecting between them per-PC via a 2-bit chooser that
// updates only when the two components disagreed.
type Tournament struct {
	local    []saturating2Bit
	localHist []uint16
	localMask uint64
	global   *GShare
	chooser  []saturating2Bit
}

// NewTournament returns a Tournament predictor sized by tableBits (local
// and chooser table size) and histBits (global history width, shared
// with the internal GShare component).
func NewTournament(tableBits, histBits uint) *Tournament {
	size := uint64(1) << tableBits
	return &Tournament{
		local:     make([]saturating2Bit, size),
		localHist: make([]uint16, size),
		localMask: size - 1,
		global:    NewGShare(tableBits, histBits),
		chooser:   make([]saturating2Bit, size),
	}
}

func (t *Tournament) localIdx(pc uint64) uint64 { return pc & t.localMask }

func (t *Tournament) localPredict(pc uint64) bool {
	h := t.localHist[t.localIdx(pc)]
	return t.local[h&uint16(len(t.local)-1)].taken()
}

// Predict returns the chosen component's prediction: the chooser counter
// selects local when >=2, global otherwise.
func (t *Tournament) Predict(pc uint64) bool {
	if t.chooser[t.localIdx(pc)].taken() {
		return t.localPredict(pc)
	}
	return t.global.Predict(pc)
}

// Update trains both components and the chooser, advancing chooser state
// only on disagreement, per spec.
func (t *Tournament) Update(pc uint64, taken bool) {
	idx := t.localIdx(pc)
	h := t.localHist[idx]
	localEntry := h & uint16(len(t.local)-1)

	localPred := t.local[localEntry].taken()
	globalPred := t.global.Predict(pc)

	t.local[localEntry].update(taken)
	t.localHist[idx] = h<<1 | boolBit16(taken)

	if localPred != globalPred {
		if localPred == taken {
			t.chooser[idx].update(true)
		} else {
			t.chooser[idx].update(false)
		}
	}

	t.global.Update(pc, taken)
}

func boolBit16(b bool) uint16 {
	if b {
		return 1
	}
	return 0
}
