// Package imageintent guesses whether a chat message asks for an image.
//
// The heuristic is best effort. Callers are expected to confirm with the user
// (by offering a provider choice) before generating anything.
package imageintent

import (
	"regexp"
	"sort"
	"strings"
	"unicode"
)

// Result is the outcome of Classify
type Result struct {
	IsImageRequest bool
	Prompt         string
}

var verbs = []string{
	"gerar", "gere", "gera", "criar", "crie", "cria", "fazer", "faça", "faca", "faz",
	"desenhar", "desenhe", "desenha", "ilustrar", "ilustre", "produzir", "produza",
	"montar", "monte", "generate", "create", "make", "draw",
}

var nouns = []string{
	"imagem", "imagens", "foto", "fotos", "fotografia", "ilustração", "ilustracao",
	"desenho", "arte", "banner", "logo", "logotipo", "figura", "criativo",
	"image", "picture", "photo", "illustration",
}

// leadingPhrases are the prefixes that mark an explicit image command.
// Sorted longest first at init so prompt extraction strips the most specific.
var leadingPhrases = []string{
	"gerar imagem", "gerar uma imagem", "gere uma imagem", "gera uma imagem",
	"criar imagem", "criar uma imagem", "crie uma imagem", "cria uma imagem",
	"criar foto", "criar uma foto", "crie uma foto", "gerar foto", "gere uma foto",
	"fazer uma imagem", "faça uma imagem", "faca uma imagem", "faz uma imagem",
	"fazer um desenho", "faça um desenho", "desenhe", "desenhar",
	"criar ilustração", "crie uma ilustração", "gerar ilustração",
	"criar um banner", "crie um banner", "criar arte", "crie uma arte",
	"criar um logo", "crie um logo",
	"generate an image", "generate image", "create an image", "create image",
	"draw",
}

var (
	// verb + optional article + noun + preposition: "crie uma imagem de ..."
	verbNounPattern = regexp.MustCompile(`(?i)^\s*(?:` + alternation(verbs) + `)\s+(?:(?:um|uma|a|o|an|the)\s+)?(?:` + alternation(nouns) + `)\s+(?:de|do|da|dos|das|com|para|sobre|mostrando|of|with|for|showing)\b`)

	// imperative verb directly followed by a short description: "desenhe um gato"
	terseCommandPattern = regexp.MustCompile(`(?i)^\s*(?:desenhe|desenha|ilustre|draw)\s+\S+(?:\s+\S+){0,7}\s*[.!]?\s*$`)

	leadingPunctuation = func(r rune) bool {
		return unicode.IsSpace(r) || unicode.IsPunct(r)
	}
)

func init() {
	sort.SliceStable(leadingPhrases, func(i, j int) bool {
		return len(leadingPhrases[i]) > len(leadingPhrases[j])
	})
}

func alternation(words []string) string {
	quoted := make([]string, len(words))
	for i, w := range words {
		quoted[i] = regexp.QuoteMeta(w)
	}
	return strings.Join(quoted, "|")
}

// Classify reports whether text looks like an image request and, if so,
// the prompt left after removing the command phrase.
func Classify(text string) Result {
	normalized := strings.ToLower(strings.TrimSpace(text))
	if normalized == "" {
		return Result{}
	}

	if _, ok := leadingPhrase(normalized); !ok &&
		!verbNounPattern.MatchString(normalized) &&
		!terseCommandPattern.MatchString(normalized) {
		return Result{}
	}

	return Result{IsImageRequest: true, Prompt: ExtractPrompt(text)}
}

// ExtractPrompt strips the longest known command phrase and any leading
// punctuation. If nothing matched, text is returned unchanged.
func ExtractPrompt(text string) string {
	trimmed := strings.TrimSpace(text)

	if phrase, ok := leadingPhrase(trimmed); ok {
		if rest := strings.TrimLeftFunc(trimmed[len(phrase):], leadingPunctuation); rest != "" {
			return rest
		}
		return text
	}

	if loc := verbNounPattern.FindStringIndex(trimmed); loc != nil {
		if rest := strings.TrimLeftFunc(trimmed[loc[1]:], leadingPunctuation); rest != "" {
			return rest
		}
	}

	return text
}

// leadingPhrase returns the longest phrase s starts with, matched
// case-insensitively and ending on a word boundary.
func leadingPhrase(s string) (string, bool) {
	for _, phrase := range leadingPhrases {
		if len(s) < len(phrase) || !strings.EqualFold(s[:len(phrase)], phrase) {
			continue
		}
		if rest := s[len(phrase):]; rest != "" {
			r := []rune(rest)[0]
			if unicode.IsLetter(r) || unicode.IsDigit(r) {
				continue
			}
		}
		return phrase, true
	}
	return "", false
}
