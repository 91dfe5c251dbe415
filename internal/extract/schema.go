package extract

import "encoding/json"

// JSON Schemas for structured extraction output. Required-field failures
// feed the confidence score; optional fields only generate warnings.

var bookContextSchema = json.RawMessage(`{
	"type": "object",
	"required": ["summary", "characters", "writing_style", "story_arc"],
	"properties": {
		"summary": {"type": "string"},
		"characters": {
			"type": "array",
			"items": {
				"type": "object",
				"required": ["name"],
				"properties": {
					"name": {"type": "string"},
					"role": {"type": "string"},
					"description": {"type": "string"},
					"relationships": {"type": "array", "items": {"type": "string"}}
				}
			}
		},
		"world_setting": {
			"type": "object",
			"properties": {
				"locations": {"type": "array", "items": {"type": "string"}},
				"rules": {"type": "array", "items": {"type": "string"}},
				"timeline": {"type": "string"}
			}
		},
		"writing_style": {
			"type": "object",
			"properties": {
				"tone": {"type": "string"},
				"pov": {"type": "string"},
				"voice": {"type": "string"}
			}
		},
		"story_arc": {
			"type": "object",
			"properties": {
				"act1": {"type": "string"},
				"act2": {"type": "string"},
				"act3": {"type": "string"}
			}
		}
	}
}`)

var chapterMetadataSchema = json.RawMessage(`{
	"type": "object",
	"required": ["summary", "plot_points"],
	"properties": {
		"summary": {"type": "string"},
		"key_scenes": {
			"type": "array",
			"items": {
				"type": "object",
				"required": ["description"],
				"properties": {
					"description": {"type": "string"},
					"significance": {"type": "string"}
				}
			}
		},
		"character_appearances": {
			"type": "array",
			"items": {
				"type": "object",
				"required": ["name"],
				"properties": {
					"name": {"type": "string"},
					"actions": {"type": "array", "items": {"type": "string"}},
					"dialogue": {"type": "array", "items": {"type": "string"}}
				}
			}
		},
		"plot_points": {
			"type": "object",
			"properties": {
				"events": {"type": "array", "items": {"type": "string"}},
				"conflicts": {"type": "array", "items": {"type": "string"}},
				"resolutions": {"type": "array", "items": {"type": "string"}}
			}
		},
		"writing_notes": {"type": "array", "items": {"type": "string"}}
	}
}`)
