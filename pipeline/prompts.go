package pipeline

const extractInstructions = `Clean up the captured job posting text given by the user.

Remove navigation fragments, cookie banners, repeated headers, and any
content that is not part of the posting itself. Keep the posting text
verbatim otherwise. Respond with the cleaned text only, no preamble,
no explanation, no Markdown fences.`

const requirementsResponseSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "patternProperties": {
    "^req[0-9]+$": { "type": "string" }
  },
  "additionalProperties": false
}`

const requirementsInstructions = `Extract the concrete requirements from the job posting given by the user.

Output ONLY valid JSON which complies with the schema given below. Do not include any preamble, explanation,
greeting, or acknowledgment. Start your response directly with the opening brace { and end with the closing
brace }. Your output must exactly follow this schema:

` + requirementsResponseSchema + `

Rules:
- One entry per distinct requirement, keyed req1, req2, and so on.
- Keep each requirement a single short sentence quoting the posting's own wording where possible.
- Include only requirements explicitly stated in the posting. Do not hallucinate.
- The JSON must parse without errors; no trailing commas, no extra keys, and no extraneous text outside the object.`

const softSkillsResponseSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "additionalProperties": {
    "type": "object",
    "properties": {
      "name": { "type": "string" },
      "description": { "type": "string" },
      "assessment": { "type": "string" },
      "score": { "type": "integer", "minimum": 0, "maximum": 100 }
    },
    "required": ["name", "description"],
    "additionalProperties": false
  }
}`

const softSkillsInstructions = `Identify the soft skills this job posting asks for.

Output ONLY valid JSON which complies with the schema given below. Do not include any preamble, explanation,
greeting, or acknowledgment. Start your response directly with the opening brace { and end with the closing
brace }. Your output must exactly follow this schema:

` + softSkillsResponseSchema + `

Rules:
- Key each entry by a short lowercase identifier, for example "communication".
- The description states how the posting expresses the need for that skill.
- Include only skills the posting mentions or clearly implies. Do not hallucinate.
- The JSON must parse without errors; no trailing commas, no extra keys, and no extraneous text outside the object.`

const domainExpertiseResponseSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "properties": {
    "name": { "type": "string" },
    "assessment": { "type": "string" },
    "importance": { "type": "integer", "minimum": 1, "maximum": 5 },
    "score": { "type": "integer", "minimum": 0, "maximum": 100 }
  },
  "required": ["name", "assessment", "importance"],
  "additionalProperties": false
}`

const domainExpertiseInstructions = `Determine the single domain of expertise this job posting centers on.

Output ONLY valid JSON which complies with the schema given below. Do not include any preamble, explanation,
greeting, or acknowledgment. Start your response directly with the opening brace { and end with the closing
brace }. Your output must exactly follow this schema:

` + domainExpertiseResponseSchema + `

Rules:
- Name the domain in 1-3 words, for example "payments infrastructure".
- Importance is an integer from 1 (peripheral) to 5 (the core of the role).
- Base the assessment only on what the posting states. Do not hallucinate.
- The JSON must parse without errors; no trailing commas, no extra keys, and no extraneous text outside the object.`

const scoringResponseSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "properties": {
    "totalScore": { "type": "integer", "minimum": 0, "maximum": 100 },
    "summary": { "type": "string" },
    "matches": {
      "type": "array",
      "items": {
        "type": "object",
        "properties": {
          "requirement": { "type": "string" },
          "score": { "type": "integer", "minimum": 0, "maximum": 100 },
          "assessment": { "type": "string" }
        },
        "required": ["requirement", "score", "assessment"],
        "additionalProperties": false
      }
    }
  },
  "required": ["totalScore", "summary", "matches"],
  "additionalProperties": false
}`

const scoringInstructions = `Score how well the candidate profile fits the job posting given by the user.

Output ONLY valid JSON which complies with the schema given below. Do not include any preamble, explanation,
greeting, or acknowledgment. Start your response directly with the opening brace { and end with the closing
brace }. Your output must exactly follow this schema:

` + scoringResponseSchema + `

Rules:
- Score every requirement from 0 (no evidence) to 100 (fully met), with a one-sentence assessment each.
- totalScore reflects the overall fit on the same 0-100 scale.
- The summary is at most three sentences.
- Base every score only on the supplied text. Do not hallucinate.
- The JSON must parse without errors; no trailing commas, no extra keys, and no extraneous text outside the object.`
