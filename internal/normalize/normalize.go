// Package normalize maps provider payloads into a canonical answer text and
// classifies it as valid, malformed or empty.
package normalize

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/rotisserie/eris"
	"github.com/tidwall/gjson"
	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"

	"github.com/sells-group/domain-runner/internal/model"
)

const (
	// MinAnswerLength is the shortest answer, in characters, that is not empty.
	MinAnswerLength = 10
	// MalformedMaxLength bounds the answers that failure indicators can mark malformed.
	MalformedMaxLength = 100
)

// failureIndicators mark short answers that are error messages rather than content.
var failureIndicators = []string{"error", "exception", "failed", "invalid", "unavailable", "timeout"}

// Answer text locations per payload shape.
const (
	pathChat      = "choices.0.message.content"
	pathAnthropic = "content.0.text"
	pathGemini    = "candidates.0.content.parts.0.text"
)

var fieldPaths = map[string]string{
	"openai":     pathChat,
	"together":   pathChat,
	"groq":       pathChat,
	"deepseek":   pathChat,
	"mistral":    pathChat,
	"xai":        pathChat,
	"openrouter": pathChat,
	"perplexity": pathChat,
	"anthropic":  pathAnthropic,
	"google":     pathGemini,
}

var (
	fenceLine   = regexp.MustCompile("(?m)^[ \t]*```[A-Za-z0-9_+-]*[ \t]*$")
	spaceRun    = regexp.MustCompile(`[ \t\f\v]+`)
	folder      = cases.Fold()
	lineEndings = strings.NewReplacer("\r\n", "\n", "\r", "\n")
)

// FieldPath returns the JSON path of the answer text for provider.
func FieldPath(provider string) (string, bool) {
	p, ok := fieldPaths[provider]
	return p, ok
}

// Extract pulls the answer text out of a provider payload.
func Extract(provider string, payload []byte) (string, error) {
	path, ok := FieldPath(provider)
	if !ok {
		return "", eris.Errorf("normalize: unknown provider %q", provider)
	}
	if !gjson.ValidBytes(payload) {
		return "", eris.Errorf("normalize: %s payload is not valid JSON", provider)
	}
	res := gjson.GetBytes(payload, path)
	if !res.Exists() {
		return "", eris.Errorf("normalize: %s payload has no %s", provider, path)
	}
	return res.String(), nil
}

// Normalize derives the canonical answer of a raw response. The payload is
// preferred when present; the adapter-reported text is the fallback.
func Normalize(raw model.RawResponse) model.NormalizedResponse {
	text := raw.Text
	if len(raw.Payload) > 0 {
		if extracted, err := Extract(raw.Provider, raw.Payload); err == nil {
			text = extracted
		}
	}
	return NormalizeText(text)
}

// NormalizeText cleans and classifies already-extracted text.
func NormalizeText(text string) model.NormalizedResponse {
	cleaned := Clean(text)
	return model.NormalizedResponse{Text: cleaned, Status: Classify(cleaned)}
}

// Clean strips code fences, unifies line endings and collapses whitespace
// within each line. Clean is idempotent.
func Clean(text string) string {
	text = lineEndings.Replace(text)
	text = fenceLine.ReplaceAllString(text, "")
	text = strings.ReplaceAll(text, "```", "")

	lines := strings.Split(text, "\n")
	out := lines[:0]
	for _, line := range lines {
		line = strings.TrimSpace(spaceRun.ReplaceAllString(line, " "))
		if line == "" {
			continue
		}
		out = append(out, line)
	}
	// Composition runs last: stripping fences can join a combining mark to its base.
	return norm.NFC.String(strings.Join(out, "\n"))
}

// Classify assigns a status to cleaned text.
func Classify(text string) model.ResponseStatus {
	n := utf8.RuneCountInString(text)
	if n < MinAnswerLength {
		return model.StatusEmpty
	}
	if n < MalformedMaxLength && hasFailureIndicator(text) {
		return model.StatusMalformed
	}
	return model.StatusValid
}

// IsTooShort reports whether text is below the minimum answer length.
func IsTooShort(text string) bool {
	return utf8.RuneCountInString(strings.TrimSpace(text)) < MinAnswerLength
}

func hasFailureIndicator(text string) bool {
	folded := folder.String(text)
	for _, ind := range failureIndicators {
		if strings.Contains(folded, ind) {
			return true
		}
	}
	return false
}
