package core

import (
	"regexp"
	"strings"
)

var (
	classificationMarker = regexp.MustCompile(`\[\s*최종\s*분류\s*\]\s*[:：]?\s*(혐오|정상)`)
	rationaleMarker      = regexp.MustCompile(`\[\s*판단\s*근거\s*\]\s*[:：]?[ \t]*([^\r\n]*)`)
	roleEcho             = regexp.MustCompile(`(?i)[\s:]*assistant[\s:]*$`)
)

// ParseJudgment extracts the classification and one-line rationale from free text.
// It never fails: missing markers fall back to a keyword scan, then to Unclear.
func ParseJudgment(output string) (Classification, string) {
	classification := Unclear
	if m := classificationMarker.FindStringSubmatch(output); m != nil {
		classification = Classification(m[1])
	} else {
		hasHateful := strings.Contains(output, string(Hateful))
		hasNormal := strings.Contains(output, string(Normal))
		switch {
		case hasHateful && !hasNormal:
			classification = Hateful
		case hasNormal && !hasHateful:
			classification = Normal
		}
	}

	m := rationaleMarker.FindStringSubmatch(output)
	if m == nil {
		if classification != Unclear {
			return classification, RationaleMissing
		}
		return classification, RationaleParseFailed
	}

	rationale := strings.TrimSpace(m[1])
	for {
		stripped := strings.TrimSpace(roleEcho.ReplaceAllString(rationale, ""))
		if stripped == rationale {
			break
		}
		rationale = stripped
	}
	return classification, rationale
}
