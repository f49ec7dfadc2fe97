package internaldefs

import (
	"strings"
	"testing"
)

func TestDefsAreUniqueAndPrefixed(t *testing.T) {
	seenID := map[uint16]bool{}
	seenName := map[string]bool{}
	for _, d := range CounterDefs {
		if seenID[uint16(d.ID)] || seenName[d.Name] {
			t.Fatalf("duplicate counter def %+v", d)
		}
		seenID[uint16(d.ID)] = true
		seenName[d.Name] = true
		if !strings.HasPrefix(d.Name, "linkauth_") || !strings.HasSuffix(d.Name, "_total") {
			t.Fatalf("counter %q must be linkauth_*_total", d.Name)
		}
	}
	for _, d := range HistogramDefs {
		if seenID[uint16(d.ID)] {
			t.Fatalf("histogram id %d reused by a counter", d.ID)
		}
	}
}

func TestBuckets(t *testing.T) {
	n := NormalizeBuckets([]uint64{1, 2, 3})
	if n != [8]uint64{1, 2, 3} {
		t.Fatalf("NormalizeBuckets = %v", n)
	}
	if c := CumulativeBuckets(n); c != [8]uint64{1, 3, 6, 6, 6, 6, 6, 6} {
		t.Fatalf("CumulativeBuckets = %v", c)
	}
	long := NormalizeBuckets([]uint64{1, 1, 1, 1, 1, 1, 1, 1, 9})
	if long[7] != 1 {
		t.Fatalf("extra buckets must be dropped, got %v", long)
	}
}
