package sink

import (
	"sort"

	"github.com/poiesic/convoflow/core"
)

// Pack repacks a burst of conversations into size-balanced bins bounded in
// count by target. Individual conversations vary in length by orders of
// magnitude, so fixed-size chunking would produce wildly uneven upsert
// payloads; instead conversations are sorted longest-first and each is
// placed greedily into the bin with the smallest accumulated text length
// (longest-processing-time-first balancing).
//
// The number of bins is ceil(len(convs) / target), so every bin receives at
// most target conversations on average and at least one overall.
func Pack(convs []*core.Conversation, target int) [][]*core.Conversation {
	if len(convs) == 0 {
		return nil
	}
	if target < 1 {
		target = 1
	}

	sorted := make([]*core.Conversation, len(convs))
	copy(sorted, convs)
	sort.SliceStable(sorted, func(i, j int) bool {
		return len(sorted[i].Texts) > len(sorted[j].Texts)
	})

	numBins := (len(convs) + target - 1) / target
	bins := make([][]*core.Conversation, numBins)
	lengths := make([]int, numBins)

	for _, conv := range sorted {
		min := 0
		for i := 1; i < numBins; i++ {
			if lengths[i] < lengths[min] {
				min = i
			}
		}
		bins[min] = append(bins[min], conv)
		lengths[min] += len(conv.Texts)
	}

	// With more bins than items some bins stay empty; drop them.
	packed := bins[:0]
	for _, bin := range bins {
		if len(bin) > 0 {
			packed = append(packed, bin)
		}
	}
	return packed
}
