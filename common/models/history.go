package models

import (
	"sort"
	"strconv"
	"time"
)

// RenameHistory maps a rename timestamp (decimal-string epoch milliseconds)
// to the name that was superseded at that instant. The same name may appear
// under many timestamps. Entries are never removed, so any name an entity
// ever held stays resolvable through it.
//
// JSON objects carry no order, so chronological access sorts the keys
// numerically (O(n log n) per call); histories are capped by the rename
// throttle, which keeps n small.
type RenameHistory map[string]string

// Count returns the number of recorded renames.
func (h RenameHistory) Count() int {
	return len(h)
}

// Record adds an entry {now: previous}. A millisecond collision bumps the
// timestamp forward until the slot is free, preserving one entry per rename.
func (h RenameHistory) Record(now time.Time, previous string) {
	ms := now.UnixMilli()
	for {
		key := strconv.FormatInt(ms, 10)
		if _, taken := h[key]; !taken {
			h[key] = previous
			return
		}
		ms++
	}
}

// Contains reports whether name appears anywhere in the history.
func (h RenameHistory) Contains(name string) bool {
	for _, previous := range h {
		if previous == name {
			return true
		}
	}
	return false
}

// LastRename returns the most recent rename time, or false when no rename
// has happened.
func (h RenameHistory) LastRename() (time.Time, bool) {
	var latest int64
	found := false
	for key := range h {
		ms, err := strconv.ParseInt(key, 10, 64)
		if err != nil {
			continue
		}
		if !found || ms > latest {
			latest = ms
			found = true
		}
	}
	if !found {
		return time.Time{}, false
	}
	return time.UnixMilli(latest), true
}

// Timestamps returns the rename instants in chronological order.
func (h RenameHistory) Timestamps() []time.Time {
	ms := make([]int64, 0, len(h))
	for key := range h {
		if v, err := strconv.ParseInt(key, 10, 64); err == nil {
			ms = append(ms, v)
		}
	}
	sort.Slice(ms, func(i, j int) bool { return ms[i] < ms[j] })
	out := make([]time.Time, len(ms))
	for i, v := range ms {
		out[i] = time.UnixMilli(v)
	}
	return out
}
