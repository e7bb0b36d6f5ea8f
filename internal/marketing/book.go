package marketing

import "strings"

// BookContext is the source material for a session. Content is fixed at
// creation; Metadata is filled in from analysis results when read.
type BookContext struct {
	Title     string       `json:"title"`
	Content   string       `json:"content"`
	WordCount int          `json:"word_count"`
	Metadata  BookMetadata `json:"metadata"`
}

type BookMetadata struct {
	Genre          string   `json:"genre,omitempty"`
	Themes         []string `json:"themes,omitempty"`
	CharacterTypes []string `json:"character_types,omitempty"`
	Setting        string   `json:"setting,omitempty"`
	NarrativeStyle string   `json:"narrative_style,omitempty"`
}

// NewBookContext builds a context from user supplied text.
func NewBookContext(title, content string) BookContext {
	return BookContext{
		Title:     strings.TrimSpace(title),
		Content:   content,
		WordCount: len(strings.Fields(content)),
	}
}

// Excerpt returns at most limit bytes of the content, cut on a word boundary.
func (b BookContext) Excerpt(limit int) string {
	if limit <= 0 || len(b.Content) <= limit {
		return b.Content
	}
	cut := strings.LastIndexAny(b.Content[:limit], " \n\t")
	if cut <= 0 {
		cut = limit
	}
	return b.Content[:cut]
}

// WithProfile returns a copy with metadata derived from a landscape result.
func (b BookContext) WithProfile(genre string, profile *BookProfile) BookContext {
	out := b
	out.Metadata = BookMetadata{Genre: genre}
	if profile != nil {
		out.Metadata.Themes = append([]string(nil), profile.Themes...)
		out.Metadata.CharacterTypes = append([]string(nil), profile.CharacterTypes...)
		out.Metadata.Setting = profile.Setting
		out.Metadata.NarrativeStyle = profile.NarrativeStyle
	}
	return out
}
