package match

import (
	"encoding/json"
	"sort"
	"strings"

	"github.com/jobsift/jobsift/core"
)

const qualityMatchResponseSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "additionalProperties": {
    "type": "object",
    "properties": {
      "resumeText": { "type": "string" },
      "location": { "type": "string" }
    },
    "required": ["resumeText"],
    "additionalProperties": false
  }
}`

const qualityMatchTemplate = `Find verbatim evidence in the candidate text for each quality listed below.

Output ONLY valid JSON which complies with the schema given below. Do not include any preamble, explanation,
greeting, or acknowledgment. Start your response directly with the opening brace { and end with the closing
brace }. Your output must exactly follow this schema:

` + qualityMatchResponseSchema + `

Qualities to evidence, keyed by id:
{{QUALITIES}}

Rules:
- resumeText must be an exact verbatim excerpt of the candidate text. Never paraphrase.
- location names the section the excerpt came from, for example "experience" or "summary".
- At most one excerpt per quality. If no excerpt supports a quality, set resumeText to "".
- Never use the same excerpt for two qualities.
- The JSON must parse without errors; no trailing commas, no extra keys, and no extraneous text outside the object.{{USED_QUOTES}}`

const usedQuotesTemplate = `

Excerpts already attributed to other qualities. Do NOT reuse any of them:
{{LIST}}`

// buildInstructions renders the batch instructions, embedding the
// already-used excerpts as an explicit do-not-reuse constraint. The
// provider enforces uniqueness through this constraint; the caller only
// blanks collisions after the fact.
func buildInstructions(qualities map[string]core.Quality, usedQuotes []string) string {
	ids := make([]string, 0, len(qualities))
	for id := range qualities {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	var list strings.Builder
	for _, id := range ids {
		list.WriteString("- ")
		list.WriteString(id)
		list.WriteString(": ")
		list.WriteString(qualities[id].Name)
		list.WriteString("\n")
	}

	instructions := strings.ReplaceAll(qualityMatchTemplate, "{{QUALITIES}}", strings.TrimRight(list.String(), "\n"))

	if len(usedQuotes) == 0 {
		return strings.ReplaceAll(instructions, "{{USED_QUOTES}}", "")
	}

	quoted := make([]string, 0, len(usedQuotes))
	for _, quote := range usedQuotes {
		encoded, _ := json.Marshal(quote)
		quoted = append(quoted, "- "+string(encoded))
	}
	constraint := strings.ReplaceAll(usedQuotesTemplate, "{{LIST}}", strings.Join(quoted, "\n"))
	return strings.ReplaceAll(instructions, "{{USED_QUOTES}}", constraint)
}
