package extract

import (
	"fmt"

	"github.com/folio-labs/folio/internal/providers"
)

const bookSystemPrompt = `You are a literary analyst. You read manuscripts and produce structured ` +
	`analysis as JSON. Respond with a single JSON object and nothing else.`

const chapterSystemPrompt = `You are a literary analyst. You read individual chapters and produce ` +
	`structured analysis as JSON. Respond with a single JSON object and nothing else.`

func bookPrompt(title, text string) string {
	return fmt.Sprintf(`Analyze the following book manuscript titled %q and extract:

1. A comprehensive summary (500-1000 words) covering the full narrative.
2. "characters": every named character with their role (main, supporting, or minor), a short description, and key relationships.
3. "world_setting": locations, any rules governing the world, and the timeline.
4. "writing_style": the tone, point of view (first, second, or third), and narrative voice.
5. "story_arc": what happens in act1, act2, and act3.

Return a JSON object with keys "summary", "characters", "world_setting", "writing_style", and "story_arc".

MANUSCRIPT:
%s`, title, text)
}

func chapterPrompt(number int, title, content string) string {
	return fmt.Sprintf(`Analyze chapter %d (%q) and extract:

1. "summary": a concise summary of about 200 words.
2. "key_scenes": the important scenes, each with a description and its significance.
3. "character_appearances": each character who appears, with their actions and notable dialogue.
4. "plot_points": events that occur, conflicts raised, and conflicts resolved.
5. "writing_notes": observations about craft worth carrying forward.

Return a JSON object with keys "summary", "key_scenes", "character_appearances", "plot_points", and "writing_notes".

CHAPTER:
%s`, number, title, content)
}

func jsonFormat(schema []byte) *providers.ResponseFormat {
	return &providers.ResponseFormat{Type: "json_object", JSONSchema: schema}
}
