package businessflow

import (
	"math"

	"github.com/amirphl/lead-distributor/models"
	"github.com/amirphl/lead-distributor/utils"
	"github.com/google/uuid"
)

// weightPrecision quantizes weights to the four decimals the registry stores
const weightPrecision = 10000

// RotationSequence is the expanded weighted rotation of a tenant's eligible vendors.
// Each vendor owns a number of slots proportional to its weight and the slots are
// interleaved so that heavy vendors are spread across the cycle instead of clustered.
type RotationSequence struct {
	vendors []*models.VendorRotation // canonical order
	slots   []int                    // index into vendors, one entry per slot
}

// BuildRotationSequence expands vendors into a rotation sequence of at most maxSlots
// slots (unless there are more eligible vendors than maxSlots, in which case every
// vendor gets exactly one slot). Vendors that do not participate or carry no positive
// finite weight are dropped even if the caller passed them in.
func BuildRotationSequence(vendors []*models.VendorRotation, maxSlots int) *RotationSequence {
	if maxSlots < 1 {
		maxSlots = utils.DefaultMaxRotationSlots
	}

	eligible := make([]*models.VendorRotation, 0, len(vendors))
	for _, v := range vendors {
		if v == nil || !v.Participates || !isUsableWeight(v.Weight) {
			continue
		}
		eligible = append(eligible, v)
	}
	models.SortVendorRotations(eligible)

	seq := &RotationSequence{vendors: eligible}
	if len(eligible) == 0 {
		return seq
	}

	weights := normalizeWeights(eligible, maxSlots)
	seq.slots = interleaveSlots(weights)
	return seq
}

func isUsableWeight(w float64) bool {
	return w > 0 && !math.IsInf(w, 0) && !math.IsNaN(w)
}

// normalizeWeights turns float weights into small integer slot counts
func normalizeWeights(vendors []*models.VendorRotation, maxSlots int) []int64 {
	weights := make([]int64, len(vendors))
	for i, v := range vendors {
		q := int64(math.Round(v.Weight * weightPrecision))
		if q < 1 {
			q = 1
		}
		weights[i] = q
	}
	reduceByGCD(weights)

	if len(weights) >= maxSlots {
		for i := range weights {
			weights[i] = 1
		}
		return weights
	}

	var total int64
	for _, w := range weights {
		total += w
	}
	if total <= int64(maxSlots) {
		return weights
	}

	// Scale down proportionally, every vendor keeps at least one slot
	for i, w := range weights {
		scaled := int64(math.Round(float64(w) * float64(maxSlots) / float64(total)))
		if scaled < 1 {
			scaled = 1
		}
		weights[i] = scaled
	}
	reduceByGCD(weights)
	return weights
}

func reduceByGCD(weights []int64) {
	var g int64
	for _, w := range weights {
		g = gcd(g, w)
	}
	if g <= 1 {
		return
	}
	for i := range weights {
		weights[i] /= g
	}
}

func gcd(a, b int64) int64 {
	for b != 0 {
		a, b = b, a%b
	}
	return a
}

// interleaveSlots runs one full cycle of smooth weighted round-robin.
// Ties go to the vendor that comes first in canonical order.
func interleaveSlots(weights []int64) []int {
	var total int64
	for _, w := range weights {
		total += w
	}

	current := make([]int64, len(weights))
	slots := make([]int, 0, total)
	for k := int64(0); k < total; k++ {
		best := 0
		for i, w := range weights {
			current[i] += w
			if current[i] > current[best] {
				best = i
			}
		}
		current[best] -= total
		slots = append(slots, best)
	}
	return slots
}

// Len returns the number of slots in one rotation cycle
func (s *RotationSequence) Len() int {
	return len(s.slots)
}

// IsEmpty reports whether no vendor is eligible
func (s *RotationSequence) IsEmpty() bool {
	return len(s.slots) == 0
}

// Vendors returns the eligible vendors in canonical order
func (s *RotationSequence) Vendors() []*models.VendorRotation {
	return s.vendors
}

// VendorAt returns the vendor owning slot
func (s *RotationSequence) VendorAt(slot int) *models.VendorRotation {
	if slot < 0 || slot >= len(s.slots) {
		return nil
	}
	return s.vendors[s.slots[slot]]
}

// Position returns the 1-based position of vendorID in canonical order, or 0
func (s *RotationSequence) Position(vendorID uuid.UUID) int {
	for i, v := range s.vendors {
		if v.VendorID == vendorID {
			return i + 1
		}
	}
	return 0
}

// NextSlot returns the slot that follows the cursor, or -1 when the sequence is empty.
//
// A missing cursor, or one whose vendor is no longer part of the sequence, restarts
// at slot 0. The slot hint is trusted only while it still points at the last vendor;
// otherwise the walk resumes after the last occurrence of that vendor.
func (s *RotationSequence) NextSlot(lastVendorID *uuid.UUID, lastSlot *int) int {
	n := len(s.slots)
	if n == 0 {
		return -1
	}
	if lastVendorID == nil {
		return 0
	}
	if lastSlot != nil && *lastSlot >= 0 && *lastSlot < n && s.vendors[s.slots[*lastSlot]].VendorID == *lastVendorID {
		return (*lastSlot + 1) % n
	}
	for i := n - 1; i >= 0; i-- {
		if s.vendors[s.slots[i]].VendorID == *lastVendorID {
			return (i + 1) % n
		}
	}
	return 0
}

// NextForState is NextSlot for a stored cursor; a nil state means a cold start
func (s *RotationSequence) NextForState(state *models.DistributionState) int {
	if state == nil {
		return s.NextSlot(nil, nil)
	}
	return s.NextSlot(state.LastVendorID, state.LastSlot)
}

// Walk returns the next n slots starting at slot, wrapping around the cycle
func (s *RotationSequence) Walk(slot, n int) []int {
	if len(s.slots) == 0 || slot < 0 || n <= 0 {
		return nil
	}
	out := make([]int, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, (slot+i)%len(s.slots))
	}
	return out
}
