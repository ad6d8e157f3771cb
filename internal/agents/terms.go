package agents

import (
	"strings"
	"unicode"
)

var stopwords = map[string]bool{
	"a": true, "an": true, "and": true, "are": true, "as": true, "at": true, "be": true, "can": true,
	"do": true, "does": true, "for": true, "from": true, "have": true, "how": true, "i": true,
	"if": true, "in": true, "is": true, "it": true, "me": true, "my": true, "of": true, "on": true,
	"or": true, "should": true, "so": true, "take": true, "taking": true, "that": true, "the": true,
	"this": true, "to": true, "was": true, "what": true, "when": true, "with": true, "would": true,
	"you": true, "your": true, "about": true, "eat": true, "ate": true, "had": true, "safe": true,
	"okay": true, "ok": true, "today": true, "some": true, "much": true, "many": true, "any": true,
}

const maxTermWords = 3

func words(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '-'
	})
}

// terms extracts candidate entity names from free text: every run of up to three words,
// skipping single stopwords. Knowledge backends match entities exactly, so over-generating
// candidates is harmless.
func terms(text string) []string {
	ws := words(text)
	seen := make(map[string]bool)
	var out []string
	for i := range ws {
		for n := 1; n <= maxTermWords && i+n <= len(ws); n++ {
			if n == 1 && stopwords[ws[i]] {
				continue
			}
			term := strings.Join(ws[i:i+n], " ")
			if !seen[term] {
				seen[term] = true
				out = append(out, term)
			}
		}
	}
	return out
}

// mentions returns the names that occur in text as whole words, case-insensitively
func mentions(text string, names []string) []string {
	padded := " " + strings.Join(words(text), " ") + " "
	var out []string
	for _, name := range names {
		n := strings.Join(words(name), " ")
		if n != "" && strings.Contains(padded, " "+n+" ") {
			out = append(out, name)
		}
	}
	return out
}
