package validation

import (
	"strings"
)

// checkExpression parses an if guard and returns the first syntax error,
// or "" when it parses. Template delimiters are optional.
func (v *Validator) checkExpression(expr string) string {
	src := strings.TrimSpace(expr)
	src = strings.ReplaceAll(src, "${{", "(")
	src = strings.ReplaceAll(src, "}}", ")")

	if strings.TrimSpace(src) == "" {
		return ""
	}

	_, issues := v.env.Parse(src)
	if issues == nil || issues.Err() == nil {
		return ""
	}

	if errs := issues.Errors(); len(errs) > 0 {
		return errs[0].Message
	}

	return issues.Err().Error()
}
