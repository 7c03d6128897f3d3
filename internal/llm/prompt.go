package llm

import "fmt"

const instructions = `You are the Query Engine for FLOAT.terminal.

SYSTEM_CONTEXT (JSON Database):
%s

The user message is a USER_QUERY (fuzzy or pseudo-code).

INSTRUCTIONS:
1. Interpret the USER_QUERY. It might be GraphQL, specific keywords, or natural language.
2. Filter, transform, or select data from the SYSTEM_CONTEXT based on the query.
3. If the query implies a "dispatch" or action, return a confirmation object.
4. Return ONLY valid JSON representing the result. Do not include markdown formatting.`

// BuildRequest wraps a serialized graph snapshot and block content into a
// structured-output request.
func BuildRequest(graphContext []byte, content string) Request {
	return Request{
		SystemContext: fmt.Sprintf(instructions, graphContext),
		UserContent:   content,
	}
}
