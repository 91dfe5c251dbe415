// Package types provides shared types used across multiple packages.
// This package has no dependencies on other folio packages to avoid import cycles.
package types

import "time"

// Book is a registered manuscript. Created on first ingestion of a source
// document, updated on re-ingestion, never hard-deleted by the pipeline.
type Book struct {
	ID            string    `json:"id"`
	SourceID      string    `json:"source_id,omitempty"`
	Title         string    `json:"title"`
	TotalWords    int       `json:"total_words"`
	ChapterCount  int       `json:"chapter_count"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// CharacterRole classifies how central a character is to the story.
type CharacterRole string

const (
	RoleMain       CharacterRole = "main"
	RoleSupporting CharacterRole = "supporting"
	RoleMinor      CharacterRole = "minor"
)

// Character is one entry in a book's extracted cast list.
type Character struct {
	Name          string        `json:"name"`
	Role          CharacterRole `json:"role,omitempty"`
	Description   string        `json:"description,omitempty"`
	Relationships []string      `json:"relationships,omitempty"`
}

// WorldSetting describes the extracted world of the book.
type WorldSetting struct {
	Locations []string `json:"locations,omitempty"`
	Rules     []string `json:"rules,omitempty"`
	Timeline  string   `json:"timeline,omitempty"`
}

// WritingStyle captures tone, point of view, and narrative voice.
type WritingStyle struct {
	Tone  string `json:"tone,omitempty"`
	POV   string `json:"pov,omitempty"`
	Voice string `json:"voice,omitempty"`
}

// StoryArc is a three-act outline of the book.
type StoryArc struct {
	Act1 string `json:"act1,omitempty"`
	Act2 string `json:"act2,omitempty"`
	Act3 string `json:"act3,omitempty"`
}

// BookContext is the extracted book-level metadata, one-to-one with Book.
// Reprocessing fully replaces the row, it is never appended to.
type BookContext struct {
	BookID       string       `json:"book_id"`
	Summary      string       `json:"summary"`
	Characters   []Character  `json:"characters"`
	WorldSetting WorldSetting `json:"world_setting"`
	WritingStyle WritingStyle `json:"writing_style"`
	StoryArc     StoryArc     `json:"story_arc"`
	ModelVersion string       `json:"model_version"`
	Confidence   float64      `json:"confidence"`
	ExtractedAt  time.Time    `json:"extracted_at"`
}
