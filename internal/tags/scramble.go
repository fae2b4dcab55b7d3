package tags

import "math/rand/v2"

// keywordLeadChance is how often the keyword stays in front when a list is
// fully randomized
const keywordLeadChance = 0.7

// ScrambleTags returns a shuffled copy of tags.
//
// With preserveFirst the keyword (when present) or else the current first
// tag stays in front and only the rest is shuffled. Without it the whole
// list is shuffled, but a present keyword still leads 70% of the time.
// A nil rng uses the global source.
func ScrambleTags(tags []string, keyword string, preserveFirst bool, rng *rand.Rand) []string {
	out := append([]string(nil), tags...)
	if len(out) <= 1 {
		return out
	}

	shuffle := rand.Shuffle
	chance := rand.Float64
	if rng != nil {
		shuffle = rng.Shuffle
		chance = rng.Float64
	}
	swap := func(list []string) func(i, j int) {
		return func(i, j int) { list[i], list[j] = list[j], list[i] }
	}

	hasKeyword := keyword != "" && contains(out, keyword)

	if preserveFirst {
		first := out[0]
		rest := out[1:]
		if hasKeyword {
			first = keyword
			rest = without(out, keyword)
		}
		rest = append([]string(nil), rest...)
		shuffle(len(rest), swap(rest))
		return append([]string{first}, rest...)
	}

	if hasKeyword {
		others := without(out, keyword)
		shuffle(len(others), swap(others))
		if chance() < keywordLeadChance {
			return append([]string{keyword}, others...)
		}
		out = append(others, keyword)
	}
	shuffle(len(out), swap(out))
	return out
}

// Scramble shuffles the tag list of filename in place and returns the new
// order. Lists with fewer than two tags are left untouched.
func (s *Store) Scramble(filename string, preserveFirst bool, rng *rand.Rand) ([]string, bool) {
	list := s.TagsFor(filename)
	if len(list) < 2 {
		return list, false
	}
	scrambled := ScrambleTags(list, s.keyword, preserveFirst, rng)
	s.imageTags[filename] = scrambled
	return s.TagsFor(filename), true
}
