package diff

import (
	"strconv"
	"strings"
)

// Unified renders the result in unified diff format. Returns the empty
// string when there are no changes.
func Unified(result Result, oldName, newName string) string {
	if !result.HasChanges() {
		return ""
	}

	var sb strings.Builder
	sb.WriteString("--- ")
	sb.WriteString(oldName)
	sb.WriteString("\n")
	sb.WriteString("+++ ")
	sb.WriteString(newName)
	sb.WriteString("\n")

	for _, hunk := range result.Hunks {
		sb.WriteString("@@ -")
		sb.WriteString(strconv.Itoa(hunk.OldStart))
		sb.WriteString(",")
		sb.WriteString(strconv.Itoa(hunk.OldCount))
		sb.WriteString(" +")
		sb.WriteString(strconv.Itoa(hunk.NewStart))
		sb.WriteString(",")
		sb.WriteString(strconv.Itoa(hunk.NewCount))
		sb.WriteString(" @@\n")

		for _, line := range hunk.Lines {
			sb.WriteString(line.Kind.String())
			sb.WriteString(line.Text)
			sb.WriteString("\n")
		}
	}

	return sb.String()
}
