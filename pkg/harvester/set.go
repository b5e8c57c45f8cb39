package harvester

// HarvestSet is an insertion-ordered set of candidate URLs. Uniqueness is
// exact string equality and the set never shrinks.
type HarvestSet struct {
	order []string
	index map[string]struct{}
}

// NewHarvestSet returns an empty set
func NewHarvestSet() *HarvestSet {
	return &HarvestSet{index: make(map[string]struct{})}
}

// Add inserts url and reports whether it was new
func (s *HarvestSet) Add(url string) bool {
	if _, ok := s.index[url]; ok {
		return false
	}
	s.index[url] = struct{}{}
	s.order = append(s.order, url)
	return true
}

// Merge adds every url and returns how many were new
func (s *HarvestSet) Merge(urls []string) int {
	added := 0
	for _, u := range urls {
		if s.Add(u) {
			added++
		}
	}
	return added
}

func (s *HarvestSet) Len() int { return len(s.order) }

// URLs returns a copy of the members in discovery order
func (s *HarvestSet) URLs() []string {
	out := make([]string, len(s.order))
	copy(out, s.order)
	return out
}
