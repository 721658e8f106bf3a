package simulation

// BedType distinguishes the two isolation beds (positions 1 and N) from the
// standard pool.
type BedType string

const (
	BedStandard  BedType = "standard"
	BedIsolation BedType = "isolation"
)

// Bed is an engine-owned resource. Identity is the stable integer 1..N
// position within the pool; there are no back-pointers into Patient.
type Bed struct {
	ID          int
	Type        BedType
	Occupied    bool
	Cleaning    bool
	PatientID   int // 0 when unoccupied; patient ids are assigned starting at 1
	AvailableAt float64
}

// BedPool owns the fixed-size bed slice and the FIFO wait queue of patients
// requesting a bed. Isolation beds sit at positions 1 and N.
type BedPool struct {
	beds     []*Bed
	waitFIFO []int
}

// NewBedPool builds an N-bed pool with isolation beds at the first and last
// position (a pool of size 1 has its single bed be isolation).
func NewBedPool(n int) *BedPool {
	beds := make([]*Bed, n)
	for i := 0; i < n; i++ {
		t := BedStandard
		if i == 0 || i == n-1 {
			t = BedIsolation
		}
		beds[i] = &Bed{ID: i + 1, Type: t}
	}
	return &BedPool{beds: beds}
}

func (p *BedPool) bed(id int) *Bed {
	return p.beds[id-1]
}

// FindAvailable scans for a bed that can seat a patient right now. When
// isolation is requested it prefers the two isolation beds; if neither is
// free it falls back to scanning every bed in id order, same as a
// non-isolation request. It does not mutate pool state.
func (p *BedPool) FindAvailable(now float64, isolation bool) (int, bool) {
	isFree := func(b *Bed) bool {
		return !b.Occupied && !b.Cleaning && b.AvailableAt <= now
	}
	if isolation {
		for _, idx := range []int{0, len(p.beds) - 1} {
			if idx < 0 || idx >= len(p.beds) {
				continue
			}
			if b := p.beds[idx]; b.Type == BedIsolation && isFree(b) {
				return b.ID, true
			}
		}
	}
	for _, b := range p.beds {
		if isFree(b) {
			return b.ID, true
		}
	}
	return 0, false
}

// Occupy marks a bed as occupied by patientID. Caller (the admission
// sequence) is responsible for having confirmed availability via
// FindAvailable at the same virtual time.
func (p *BedPool) Occupy(bedID, patientID int) {
	b := p.bed(bedID)
	b.Occupied = true
	b.Cleaning = false
	b.PatientID = patientID
}

// StartCleaning vacates the bed and marks it cleaning, with availableAt as
// its expected ready time. FindAvailable skips it until FinishCleaning
// clears the cleaning flag.
func (p *BedPool) StartCleaning(bedID int, availableAt float64) {
	b := p.bed(bedID)
	b.Occupied = false
	b.Cleaning = true
	b.PatientID = 0
	b.AvailableAt = availableAt
}

// FinishCleaning releases the cleaning hold.
func (p *BedPool) FinishCleaning(bedID int, now float64) {
	b := p.bed(bedID)
	b.Cleaning = false
	b.AvailableAt = now
}

// Enqueue appends a patient to the bed-wait FIFO; order of calls is order
// of the queue, matching the spec's "ties broken by request order".
func (p *BedPool) Enqueue(patientID int) {
	p.waitFIFO = append(p.waitFIFO, patientID)
}

// Dequeue pops the longest-waiting patient, if any.
func (p *BedPool) Dequeue() (int, bool) {
	if len(p.waitFIFO) == 0 {
		return 0, false
	}
	id := p.waitFIFO[0]
	p.waitFIFO = p.waitFIFO[1:]
	return id, true
}

func (p *BedPool) WaitLen() int { return len(p.waitFIFO) }

func (p *BedPool) Occupancy() (occupied, total int) {
	for _, b := range p.beds {
		if b.Occupied {
			occupied++
		}
	}
	return occupied, len(p.beds)
}

func (p *BedPool) Beds() []*Bed { return p.beds }

// Nurse is an engine-owned staffing resource.
type Nurse struct {
	ID          int
	MaxPatients int
	Assigned    map[int]bool // patient ids
}

// NursePool holds the day-shift roster the engine assigns against.
type NursePool struct {
	nurses []*Nurse
}

// NewNursePool builds an M-nurse pool, each capped at maxPatients (the
// spec's default of 4).
func NewNursePool(m, maxPatients int) *NursePool {
	nurses := make([]*Nurse, m)
	for i := 0; i < m; i++ {
		nurses[i] = &Nurse{ID: i + 1, MaxPatients: maxPatients, Assigned: make(map[int]bool)}
	}
	return &NursePool{nurses: nurses}
}

// Assign picks the nurse with the lowest current load that still has
// capacity, ties broken by nurse id (the pool is already in id order). It
// returns ok=false, logging the caller's responsibility to record a
// nurse_staffing bottleneck, when every nurse is at capacity.
func (p *NursePool) Assign(patientID int) (int, bool) {
	var best *Nurse
	for _, n := range p.nurses {
		if len(n.Assigned) >= n.MaxPatients {
			continue
		}
		if best == nil || len(n.Assigned) < len(best.Assigned) {
			best = n
		}
	}
	if best == nil {
		return 0, false
	}
	best.Assigned[patientID] = true
	return best.ID, true
}

// Release removes a patient from a nurse's assignment set.
func (p *NursePool) Release(nurseID, patientID int) {
	if nurseID <= 0 || nurseID > len(p.nurses) {
		return
	}
	delete(p.nurses[nurseID-1].Assigned, patientID)
}

// MeanLoad is the average assigned-patient count across nurses, used for
// the sampled nurse_load time series point.
func (p *NursePool) MeanLoad() float64 {
	if len(p.nurses) == 0 {
		return 0
	}
	var total int
	for _, n := range p.nurses {
		total += len(n.Assigned)
	}
	return float64(total) / float64(len(p.nurses))
}

// SlotPool models a homogeneous counted resource (imaging, transport,
// consult): a fixed capacity of concurrent slots plus a FIFO of waiting
// patient ids.
type SlotPool struct {
	capacity int
	inUse    int
	waiting  []int
}

func NewSlotPool(capacity int) *SlotPool {
	return &SlotPool{capacity: capacity}
}

// Acquire takes a slot if one is free.
func (s *SlotPool) Acquire() bool {
	if s.inUse < s.capacity {
		s.inUse++
		return true
	}
	return false
}

// Enqueue appends a patient to the FIFO wait list for this resource.
func (s *SlotPool) Enqueue(patientID int) {
	s.waiting = append(s.waiting, patientID)
}

// Release frees a slot and, if a waiter exists, immediately reassigns it to
// the head of the FIFO: the waiter is dequeued and returned already holding
// the slot, so inUse is unchanged and the caller does not Acquire again.
func (s *SlotPool) Release() (int, bool) {
	if s.inUse > 0 {
		s.inUse--
	}
	if len(s.waiting) == 0 {
		return 0, false
	}
	next := s.waiting[0]
	s.waiting = s.waiting[1:]
	s.inUse++
	return next, true
}

func (s *SlotPool) QueueLen() int { return len(s.waiting) }
