// Package correlation maps transaction IDs of forwarded queries back to the clients that
// sent them. The table is a fixed ring: new entries overwrite old ones in write order and
// nothing is ever deleted explicitly, so under load an answer may find its slot reused
// and is then dropped.
package correlation

import "github.com/haukened/rr-dnsfilter/internal/dns/domain"

// Capacity is the number of slots in the table.
const Capacity = 32

// wrapAt is the cursor value that sends the next write back to slot 0. It is one short of
// Capacity, so the last slot is never written.
const wrapAt = Capacity - 1

// Entry is one recorded (transaction ID, client) pair.
type Entry struct {
	ID     uint16
	Client domain.Endpoint
	used   bool
}

// Table is the ring of correlation entries. It is not safe for concurrent use; the proxy
// event loop is its only owner.
type Table struct {
	slots  [Capacity]Entry
	cursor int
}

// New returns an empty table.
func New() *Table {
	return &Table{}
}

// Record stores the client for id at the cursor and advances the cursor. It returns the
// slot that was written.
func (t *Table) Record(id uint16, client domain.Endpoint) int {
	slot := t.cursor
	t.slots[slot] = Entry{ID: id, Client: client, used: true}
	t.cursor++
	if t.cursor == wrapAt {
		t.cursor = 0
	}
	return slot
}

// Resolve scans the slots in index order and returns the client of the first entry
// recorded under id. Slots that were never written do not match.
func (t *Table) Resolve(id uint16) (domain.Endpoint, bool) {
	for i := range t.slots {
		if t.slots[i].used && t.slots[i].ID == id {
			return t.slots[i].Client, true
		}
	}
	return domain.Endpoint{}, false
}

// Cursor returns the slot the next Record will write.
func (t *Table) Cursor() int { return t.cursor }

// Len returns the number of slots holding an entry.
func (t *Table) Len() int {
	n := 0
	for i := range t.slots {
		if t.slots[i].used {
			n++
		}
	}
	return n
}
