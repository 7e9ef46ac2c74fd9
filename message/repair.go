package message

import "strings"

// RepairJSON tolerates minor streaming corruption — unescaped newlines
// inside string literals — before a tool-call arguments buffer is parsed.
// Ported from sidekick's llm.RepairJson: the agent core's arguments-parse
// step (spec §4.3 step 1) runs this before falling back to a null value.
func RepairJSON(input string) string {
	return escapeNewlinesInJSON(input)
}

func escapeNewlinesInJSON(input string) string {
	var inString, wasBackslash bool
	var result strings.Builder

	for i := 0; i < len(input); i++ {
		c := input[i]
		if c == '\\' && !wasBackslash {
			wasBackslash = true
			result.WriteByte(c)
			continue
		}
		if c == '"' && !wasBackslash {
			inString = !inString
			result.WriteByte(c)
			continue
		}
		if inString && !wasBackslash {
			switch {
			case c == 'n' && i > 0 && input[i-1] == '\\':
				result.WriteString("n")
			case c == '\n':
				result.WriteString("\\n")
			case c == '\r' && i+1 < len(input) && input[i+1] == '\n':
				result.WriteString("\\r\\n")
				i++
			default:
				result.WriteByte(c)
			}
		} else {
			result.WriteByte(c)
		}
		wasBackslash = false
	}
	return result.String()
}
