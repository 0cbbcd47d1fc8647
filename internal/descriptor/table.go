// Package descriptor provides a generic slot allocator used to implement
// file descriptor tables and similar dense integer-keyed registries.
//
// Grounded on tetratelabs/wazero's internal/descriptor package (only its
// table_test.go survived retrieval; this is a from-scratch implementation
// satisfying the same bitset-based allocation contract that test exercises:
// Insert/InsertAt grow a []uint64 mask in 64-slot pages, Masks/Items sizes
// stay in lockstep, and slots are reused by Delete).
package descriptor

// Table is a dense mapping of non-negative integer keys of type K to values
// of type V, backed by a growable bitset tracking which slots are occupied.
//
// The zero value is an empty, ready-to-use Table.
type Table[K ~int32 | ~uint32, V any] struct {
	masks []uint64
	items []V
}

const slotBits = 64

// Len returns the number of items currently held in the table.
func (t *Table[K, V]) Len() (n int) {
	for _, mask := range t.masks {
		n += popcount(mask)
	}
	return
}

// Insert adds item to the table and returns the key it was assigned, which
// is the lowest unoccupied slot.
func (t *Table[K, V]) Insert(item V) K {
	key := t.nextKey()
	t.InsertAt(item, key)
	return key
}

// InsertAt adds item to the table at the specified key, growing the table
// if necessary. Any previous value at key is overwritten.
func (t *Table[K, V]) InsertAt(item V, key K) {
	k := int(key)
	t.ensure(k)
	t.items[k] = item
	t.masks[k/slotBits] |= 1 << (uint(k) % slotBits)
}

// Lookup returns the item at key and whether it was present.
func (t *Table[K, V]) Lookup(key K) (item V, ok bool) {
	k := int(key)
	if k < 0 || k/slotBits >= len(t.masks) {
		return item, false
	}
	if t.masks[k/slotBits]&(1<<(uint(k)%slotBits)) == 0 {
		return item, false
	}
	return t.items[k], true
}

// Delete removes the item at key, if any.
func (t *Table[K, V]) Delete(key K) {
	k := int(key)
	if k < 0 || k/slotBits >= len(t.masks) {
		return
	}
	var zero V
	t.masks[k/slotBits] &^= 1 << (uint(k) % slotBits)
	t.items[k] = zero
}

// Range calls f for every occupied key/value pair in ascending key order,
// stopping early if f returns false.
func (t *Table[K, V]) Range(f func(K, V) bool) {
	for page, mask := range t.masks {
		if mask == 0 {
			continue
		}
		for bit := 0; bit < slotBits; bit++ {
			if mask&(1<<uint(bit)) == 0 {
				continue
			}
			k := page*slotBits + bit
			if !f(K(k), t.items[k]) {
				return
			}
		}
	}
}

// nextKey finds the lowest unoccupied slot without allocating.
func (t *Table[K, V]) nextKey() K {
	for page, mask := range t.masks {
		if mask == ^uint64(0) {
			continue
		}
		for bit := 0; bit < slotBits; bit++ {
			if mask&(1<<uint(bit)) == 0 {
				return K(page*slotBits + bit)
			}
		}
	}
	return K(len(t.masks) * slotBits)
}

// ensure grows masks/items so that index k is addressable.
func (t *Table[K, V]) ensure(k int) {
	needPages := k/slotBits + 1
	for len(t.masks) < needPages {
		t.masks = append(t.masks, 0)
		var zero [slotBits]V
		t.items = append(t.items, zero[:]...)
	}
}

func popcount(v uint64) (n int) {
	for v != 0 {
		v &= v - 1
		n++
	}
	return
}
