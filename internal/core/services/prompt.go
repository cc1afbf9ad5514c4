package services

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/custodia-labs/sercha-rag/internal/core/domain"
	"github.com/custodia-labs/sercha-rag/internal/core/ports/driven"
)

// renderPrompt substitutes {{name}} placeholders in tmpl.
func renderPrompt(tmpl string, vars map[string]string) string {
	pairs := make([]string, 0, len(vars)*2)
	for k, v := range vars {
		pairs = append(pairs, "{{"+k+"}}", v)
	}
	return strings.NewReplacer(pairs...).Replace(tmpl)
}

// buildContext concatenates hits in rank order, each tagged with its source
// number and filename, stopping before the block would exceed maxChars.
// The first hit is always included, truncated if necessary.
// It returns the context and the hits actually used.
func buildContext(hits []driven.VectorHit, maxChars int) (string, []driven.VectorHit) {
	var b strings.Builder
	used := make([]driven.VectorHit, 0, len(hits))

	for i, hit := range hits {
		block := fmt.Sprintf("[Source %d: %s]\n%s\n\n", len(used)+1, hit.Filename, hit.Content)
		if maxChars > 0 && b.Len()+len(block) > maxChars {
			if i == 0 {
				b.WriteString(truncateUTF8(block, maxChars))
				used = append(used, hit)
			}
			break
		}
		b.WriteString(block)
		used = append(used, hit)
	}

	return strings.TrimSpace(b.String()), used
}

// formatHistory renders prior turns as "User: ..." / "Assistant: ..." lines.
func formatHistory(messages []domain.Message) string {
	if len(messages) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteString("Previous conversation:\n")
	for _, m := range messages {
		role := "User"
		if m.Role == domain.RoleAssistant {
			role = "Assistant"
		}
		fmt.Fprintf(&b, "%s: %s\n", role, m.Content)
	}
	b.WriteString("\n")
	return b.String()
}

// snippet returns the first n runes of s, with "..." appended when cut.
func snippet(s string, n int) string {
	s = strings.TrimSpace(s)
	runes := []rune(s)
	if n <= 0 || len(runes) <= n {
		return s
	}
	return string(runes[:n]) + "..."
}

// truncateUTF8 cuts s to at most n bytes without splitting a rune.
func truncateUTF8(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}
