package review

import "strings"

const defaultSystemPrompt = `You are an advanced senior software engineer performing automated code reviews.
You must only output valid, compact JSON and nothing else. Do not include explanations, markdown, or additional text.
Your task is to review small code diffs and produce zero or more structured review comments.
Do not describe the changes. Only suggest improvements that could be made (if any are required) to the new code.

Return all suggestions as a single JSON array.
The JSON format must always be a list (array) of comment objects. Each object must follow this schema:

[
  {
    "HasChange": true,
    "SuggestedChange": "The new code that should go in the place of the old code, or a short suggestion.",
    "Comment": "Brief feedback about the issue or improvement.",
    "AiProbability": float
  }
]

Rules:
- Always output a JSON array ([]), never an object or text.
- If there are no issues, return an empty array: [].
- Each array element represents one review comment for the diff.
- "HasChange" is required in each object.
- "SuggestedChange" can be omitted if not relevant.
- "Comment" can also be omitted if not relevant or if the suggested change is trivial.
- "AiProbability" is a float between 0 and 1 estimating whether the code appears AI-generated.
- Never include "Assistant:", "User:", or any text outside of JSON.
- Be concise and only comment when necessary.
- Be reasonable with the "AiProbability" estimation. AI code will probably be unlike other code around it.
- Do not describe the changes. Only suggest improvements to the new code.
- Stop at the end of the JSON "]".`

const defaultToolPrompt = `You can invoke tool methods if needed. Use this JSON format exactly:
{
  "tool": "<tool_method_name>",
  "parameters": {
    "<parameter_name>": "<parameter_value>"
  }
}

- Only invoke one tool method per response.
- Do not add extra text outside the JSON.
- If no tool is needed, respond normally without JSON.
- Tool and parameter names are case-sensitive.
- You MUST invoke a tool method by its Method name.

Here are the available tools:
`

const defaultCompletionPrompt = "Complete the following JSON array describing code review comments, matching the schema.\n["

// Prompts holds the text fragments a review conversation is built from.
type Prompts struct {
	System     string
	CodeStyle  string
	Completion string
	// Tool precedes the tool catalog when tools are enabled.
	Tool string
}

// DefaultPrompts returns the built-in prompt text.
func DefaultPrompts() Prompts {
	return Prompts{
		System:     defaultSystemPrompt,
		Completion: defaultCompletionPrompt,
		Tool:       defaultToolPrompt,
	}
}

// WithRules appends the rules section to the style guidance.
func (p Prompts) WithRules(r *Rules) Prompts {
	if section := BuildRulesPromptSection(r); section != "" {
		p.CodeStyle = strings.TrimSpace(p.CodeStyle + "\n" + section)
	}
	return p
}

// Initial builds the first user turn for a hunk. The system prompt is
// repeated so that it stays inside small context windows. catalog is empty
// when tools are disabled.
func (p Prompts) Initial(catalog, hunk string) string {
	var b strings.Builder
	b.WriteString(p.System)
	b.WriteByte('\n')
	if p.CodeStyle != "" {
		b.WriteString(p.CodeStyle)
		b.WriteByte('\n')
	}
	if catalog != "" {
		b.WriteString(p.Tool)
		b.WriteString(catalog)
		b.WriteByte('\n')
	}
	b.WriteString(hunk)
	p.writeCompletion(&b)
	return b.String()
}

// Continuation builds the user turn that carries a tool result back to the
// model.
func (p Prompts) Continuation(result, hunk string) string {
	var b strings.Builder
	b.WriteString(result)
	b.WriteString("\n\n")
	b.WriteString(p.System)
	b.WriteByte('\n')
	b.WriteString(hunk)
	p.writeCompletion(&b)
	return b.String()
}

func (p Prompts) writeCompletion(b *strings.Builder) {
	if p.Completion == "" {
		return
	}
	b.WriteByte('\n')
	b.WriteString(p.Completion)
}
