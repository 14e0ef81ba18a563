package diamondclub

import (
	"sort"

	"github.com/lithammer/fuzzysearch/fuzzy"
)

// FilterChannels returns the channels whose title fuzzy-matches query, best
// match first. An empty query returns channels unchanged.
func FilterChannels(channels []Channel, query string) []Channel {
	if query == "" {
		return channels
	}

	titles := make([]string, len(channels))
	for i, c := range channels {
		titles[i] = c.Title
	}

	ranks := fuzzy.RankFindFold(query, titles)
	sort.Stable(ranks)

	filtered := make([]Channel, 0, len(ranks))
	for _, r := range ranks {
		filtered = append(filtered, channels[r.OriginalIndex])
	}

	return filtered
}
