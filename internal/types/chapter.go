package types

import "time"

// KeyScene is one notable scene inside a chapter.
type KeyScene struct {
	Description  string `json:"description"`
	Significance string `json:"significance,omitempty"`
}

// CharacterAppearance records what a character does in a chapter.
type CharacterAppearance struct {
	Name     string   `json:"name"`
	Actions  []string `json:"actions,omitempty"`
	Dialogue []string `json:"dialogue,omitempty"`
}

// PlotPoints groups the narrative beats of a chapter.
type PlotPoints struct {
	Events      []string `json:"events,omitempty"`
	Conflicts   []string `json:"conflicts,omitempty"`
	Resolutions []string `json:"resolutions,omitempty"`
}

// ChapterMetadata is the extracted chapter-level metadata.
type ChapterMetadata struct {
	Summary              string                `json:"summary"`
	KeyScenes            []KeyScene            `json:"key_scenes,omitempty"`
	CharacterAppearances []CharacterAppearance `json:"character_appearances,omitempty"`
	PlotPoints           PlotPoints            `json:"plot_points"`
	WritingNotes         []string              `json:"writing_notes,omitempty"`
}

// Chapter belongs to exactly one Book, ordered by chapter number.
// Fingerprint is the content hash of the stored text; Embedding and its
// model version are set once the chapter has been embedded.
type Chapter struct {
	ID             string           `json:"id"`
	BookID         string           `json:"book_id"`
	ChapterNumber  int              `json:"chapter_number"`
	Title          string           `json:"title,omitempty"`
	Content        string           `json:"content,omitempty"`
	WordCount      int              `json:"word_count"`
	Fingerprint    string           `json:"fingerprint,omitempty"`
	Summary        string           `json:"summary,omitempty"`
	Metadata       *ChapterMetadata `json:"metadata,omitempty"`
	Confidence     float64          `json:"confidence,omitempty"`
	Embedding      []float32        `json:"-"`
	EmbeddingModel string           `json:"embedding_model,omitempty"`
	EmbeddedAt     time.Time        `json:"embedded_at,omitzero"`
	CreatedAt      time.Time        `json:"created_at"`
	UpdatedAt      time.Time        `json:"updated_at"`
}

// HasSummary reports whether extraction has produced a summary.
func (c *Chapter) HasSummary() bool { return c.Summary != "" }

// HasEmbedding reports whether the chapter-level vector is present.
func (c *Chapter) HasEmbedding() bool { return len(c.Embedding) > 0 }

// ChapterChunk is one overlapping word-window of a long chapter, embedded
// independently for fine-grained retrieval. Chunks exist only for chapters
// whose word count exceeds the chunking threshold.
type ChapterChunk struct {
	ID         string    `json:"id"`
	ChapterID  string    `json:"chapter_id"`
	ChunkIndex int       `json:"chunk_index"`
	Text       string    `json:"text"`
	WordCount  int       `json:"word_count"`
	Embedding  []float32 `json:"-"`
	CreatedAt  time.Time `json:"created_at"`
}
