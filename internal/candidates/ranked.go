package candidates

// Ranked is a shortlisted candidate in final order.
type Ranked struct {
	Position      int      `json:"position"`
	Record        *Record  `json:"record"`
	Justification string   `json:"justification,omitempty"`
	Score         *float64 `json:"score,omitempty"`
	Distance      float64  `json:"distance"`
}

// FromMatches ranks matches in their similarity order without justification.
func FromMatches(m *Matches) []Ranked {
	ranked := make([]Ranked, 0, m.Len())
	for i, match := range m.Items {
		ranked = append(ranked, Ranked{
			Position: i + 1,
			Record:   match.Record,
			Distance: match.Distance,
		})
	}
	return ranked
}

// ToMatches turns a final ranking back into a match collection, keeping its order.
func ToMatches(ranked []Ranked) *Matches {
	m := &Matches{Items: make([]*Match, 0, len(ranked))}
	for _, r := range ranked {
		m.Items = append(m.Items, &Match{Record: r.Record, Distance: r.Distance})
	}
	return m
}
