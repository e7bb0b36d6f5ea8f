package marketing

// ReaderPersona is a synthetic target reader.
type ReaderPersona struct {
	ID               string         `json:"id"`
	Name             string         `json:"name" validate:"required"`
	Summary          string         `json:"summary"`
	Demographics     Demographics   `json:"demographics"`
	ReadingHabits    ReadingHabits  `json:"reading_habits"`
	Psychographics   Psychographics `json:"psychographics"`
	ConnectionPoints []string       `json:"connection_points" validate:"min=1"`
}

type Demographics struct {
	AgeRange   string `json:"age_range"`
	Gender     string `json:"gender"`
	Location   string `json:"location"`
	Occupation string `json:"occupation"`
	Education  string `json:"education"`
	Income     string `json:"income"`
}

type ReadingHabits struct {
	BooksPerYear      int      `json:"books_per_year" validate:"min=0"`
	Formats           []string `json:"formats"`
	DiscoveryChannels []string `json:"discovery_channels"`
	FavoriteGenres    []string `json:"favorite_genres"`
}

type Psychographics struct {
	Values      []string `json:"values"`
	Interests   []string `json:"interests"`
	Motivations []string `json:"motivations"`
	PainPoints  []string `json:"pain_points"`
}

// PersonaSet is the audience record.
type PersonaSet struct {
	Personas []ReaderPersona `json:"personas" validate:"min=1,dive"`
}

// IDs returns persona ids in insertion order.
func (s PersonaSet) IDs() []string {
	ids := make([]string, 0, len(s.Personas))
	for _, p := range s.Personas {
		ids = append(ids, p.ID)
	}
	return ids
}

// PersonaReferrer is implemented by records that point at personas.
type PersonaReferrer interface {
	PersonaRefs() []string
}

// UnknownRefs returns the refs of r not present in known, in order.
func UnknownRefs(r PersonaReferrer, known map[string]bool) []string {
	var unknown []string
	for _, id := range r.PersonaRefs() {
		if !known[id] {
			unknown = append(unknown, id)
		}
	}
	return unknown
}
