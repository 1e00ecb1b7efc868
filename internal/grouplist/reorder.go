// Package grouplist owns the ordered video list of one group: a pure
// reorder function plus an optimistic store that commits moves locally
// before the backend confirms them.
package grouplist

// Reorder returns a copy of ids with the element at from removed and
// reinserted so that it lands exactly at index to. The relative order of
// all other elements is preserved and no id is lost or duplicated.
//
// A move is a no-op when from equals to, when either index is out of
// range, or when the list has fewer than two elements; Reorder then
// returns the input unchanged with ok=false so callers can skip the
// network round-trip.
func Reorder(ids []string, from, to int) (out []string, ok bool) {
	if len(ids) < 2 || from == to {
		return ids, false
	}
	if from < 0 || from >= len(ids) || to < 0 || to >= len(ids) {
		return ids, false
	}

	out = make([]string, len(ids))
	copy(out, ids)

	moved := out[from]
	out = append(out[:from], out[from+1:]...)
	out = append(out, "")
	copy(out[to+1:], out[to:])
	out[to] = moved
	return out, true
}
