package dispatch

import (
	"fmt"

	"voyago/core-api/internal/modules/dlc/entity"
)

// bucketKey computes the Step C grouping tuple of spec.md §4.4:
// `(group_id, status, start, end)`. A header with no group_id never merges
// with another — it gets a key derived from its own correlation id so it
// always lands in a singleton bucket.
func bucketKey(h *entity.RequestHeader) string {
	if h.GroupID == nil || *h.GroupID == "" {
		return "singleton:" + h.CorrelationID
	}
	return fmt.Sprintf("%s|%s|%d|%d", *h.GroupID, h.OverrideValue, h.RequestStart.Unix(), h.RequestEnd.Unix())
}

// GroupByWindow implements Step C: partition normalized, still-RECEIVED
// headers by `(group_id, status, start, end)`. Returned buckets preserve
// input order within each bucket; bucket iteration order is not significant
// since every downstream step operates bucket-by-bucket independently.
func GroupByWindow(headers []*entity.RequestHeader) map[string][]*entity.RequestHeader {
	buckets := make(map[string][]*entity.RequestHeader)
	for _, h := range headers {
		key := bucketKey(h)
		buckets[key] = append(buckets[key], h)
	}
	return buckets
}

// classifiedMember pairs a Member with the contiguity classification found
// for it during Step D, ahead of the Step D bucket-by-class split.
type classifiedMember struct {
	member        Member
	class         entity.PolicyClass
	terminalStart int64 // unix seconds; meaningful only for contiguousExtension
}

// splitByClass implements the back half of Step D: members of one
// `(group_id, status, start, end)` bucket that were probed against the
// Contiguity Resolver and found to fall into more than one policy class are
// re-partitioned into one dispatch unit per class. A bucket whose members
// are all the same class stays a single unit.
func splitByClass(classified []classifiedMember) map[entity.PolicyClass][]classifiedMember {
	byClass := make(map[entity.PolicyClass][]classifiedMember)
	for _, c := range classified {
		byClass[c.class] = append(byClass[c.class], c)
	}
	return byClass
}

// chunk implements Step E: split members into chunks of at most max, folding
// a trailing chunk smaller than half the cap into the preceding one (so a
// final chunk may grow up to max + max/2), avoiding runt trailing units.
func chunk(members []Member, max int) [][]Member {
	if max <= 0 || len(members) <= max {
		if len(members) == 0 {
			return nil
		}
		return [][]Member{members}
	}

	var chunks [][]Member
	for i := 0; i < len(members); i += max {
		end := i + max
		if end > len(members) {
			end = len(members)
		}
		chunks = append(chunks, members[i:end])
	}

	if len(chunks) >= 2 {
		last := chunks[len(chunks)-1]
		if len(last) < max/2 {
			prev := chunks[len(chunks)-2]
			merged := append(append([]Member{}, prev...), last...)
			chunks = chunks[:len(chunks)-2]
			chunks = append(chunks, merged)
		}
	}

	return chunks
}
