package parsers

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/appliance-router/server/internal/agent/model"
	logx "github.com/appliance-router/server/pkg/logger"
)

// Labels recognized in slot-extraction replies. MODEL is an older spelling of IDENTIFIER.
const (
	LabelIdentifier = "IDENTIFIER:"
	LabelModel      = "MODEL:"
	LabelHelp       = "HELP:"
	LabelDetails    = "DETAILS:"
)

// basic safety limits to avoid pathological inputs
const (
	maxContentLen = 16 * 1024
	maxLines      = 200
	maxValueLen   = 512
	maxErrSnippet = 200
)

// ParseExtraction reads the labeled-line grammar emitted by the extraction prompt.
//
// Each line is trimmed and may carry a markdown bullet. Labels match
// case-sensitively at the start of the line; the first occurrence of a label
// wins. Output with no labels at all is kept as Freeform, which is how the
// oracle asks clarifying questions. The parser never fails: malformed input
// yields an empty result with the problems listed in ParsingMetadata.
func ParseExtraction(content string) (res *model.ExtractionResult) {
	res = &model.ExtractionResult{ParsingMetadata: map[string]any{}}

	defer func() {
		if r := recover(); r != nil {
			logx.Error().Str("component", "extraction_parser").Msgf("panic recovered: %v", r)
			res = &model.ExtractionResult{ParsingMetadata: map[string]any{"panic": fmt.Sprint(r)}}
		}
	}()

	addErr := func(msg string) {
		v, _ := res.ParsingMetadata["parsing_errors"].([]string)
		res.ParsingMetadata["parsing_errors"] = append(v, msg)
	}

	if len(content) > maxContentLen {
		logx.Warn().
			Str("component", "extraction_parser").
			Int("max_len", maxContentLen).
			Int("orig_len", len(content)).
			Msg("content truncated due to size limit")
		content = clip(content, maxContentLen)
		res.ParsingMetadata["truncated"] = true
	}
	if !utf8.ValidString(content) {
		content = strings.ToValidUTF8(content, "")
		addErr("invalid utf8 removed")
	}

	lines := strings.Split(strings.ReplaceAll(content, "\r\n", "\n"), "\n")
	if len(lines) > maxLines {
		lines = lines[:maxLines]
		res.ParsingMetadata["lines_capped"] = true
	}

	labeled := 0
	for _, line := range lines {
		line = stripBullet(strings.TrimSpace(line))
		if line == "" {
			continue
		}

		label, value, ok := splitLabel(line)
		if !ok {
			continue
		}
		labeled++
		if len(value) > maxValueLen {
			addErr(fmt.Sprintf("%s value too long", label))
			value = clip(value, maxValueLen)
		}

		switch label {
		case LabelIdentifier, LabelModel:
			if res.HasIdentifier {
				addErr("duplicate identifier line ignored")
				continue
			}
			res.Identifier, res.HasIdentifier = value, true
			if label == LabelModel {
				res.ParsingMetadata["identifier_label"] = "MODEL"
			}
		case LabelHelp:
			if res.HasHelpIntent {
				addErr("duplicate help line ignored")
				continue
			}
			res.HelpIntent, res.HasHelpIntent = value, true
		case LabelDetails:
			if res.HasDetails {
				addErr("duplicate details line ignored")
				continue
			}
			res.Details, res.HasDetails = value, true
		}
	}

	res.ParsingMetadata["labeled_lines"] = labeled
	if labeled == 0 {
		res.Freeform = strings.TrimSpace(content)
		if res.Freeform != "" {
			res.ParsingMetadata["freeform_snippet"] = safeSnippet(res.Freeform)
		}
	}
	return res
}

func splitLabel(line string) (label, value string, ok bool) {
	for _, l := range []string{LabelIdentifier, LabelModel, LabelHelp, LabelDetails} {
		if strings.HasPrefix(line, l) {
			return l, strings.TrimSpace(strings.TrimPrefix(line, l)), true
		}
	}
	return "", "", false
}

func stripBullet(line string) string {
	for _, b := range []string{"- ", "* ", "• "} {
		if strings.HasPrefix(line, b) {
			return strings.TrimSpace(strings.TrimPrefix(line, b))
		}
	}
	return line
}

func safeSnippet(s string) string {
	s = strings.TrimSpace(s)
	if len(s) <= maxErrSnippet {
		return s
	}
	return clip(s, maxErrSnippet)
}

// clip cuts s to at most n bytes without splitting a UTF-8 sequence.
func clip(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}
