package reply

import (
	"regexp"
	"strings"

	"github.com/lhdbsbz/inboxagent/internal/prompts"
)

var namePlaceholder = regexp.MustCompile(`\{\{\s*name\s*\}\}`)

// Render substitutes every {{name}} in template with the sender name, or the
// locale's neutral term when the name is blank. Unknown {{...}} tokens are
// left as they are.
func Render(template string, rc ReplyContext, locale string) string {
	name := displayName(rc, locale)
	return namePlaceholder.ReplaceAllLiteralString(template, name)
}

func displayName(rc ReplyContext, locale string) string {
	if name := strings.TrimSpace(rc.Name); name != "" {
		return name
	}
	return prompts.Get(locale).NeutralName
}
