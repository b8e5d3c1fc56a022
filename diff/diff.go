// Package diff derives minimal find-and-replace change sets from two text
// snapshots. Client editors run it to compress local edits into change
// engine requests instead of shipping whole document bodies.
//
// The computation is pure and deterministic. Applying the returned
// changes to the old text left to right, replacing the first occurrence
// of each TextToReplace, always yields the new text.
package diff

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// Change is one find-and-replace record. Position is the byte offset in
// the old text at which the replacement happens; positions are byte
// offsets, not code-point offsets, matching the change engine's
// first-occurrence semantics.
type Change struct {
	TextToReplace string `json:"textToReplace"`
	NewText       string `json:"newText"`
	Position      int    `json:"position"`
}

// Diff computes the change set transforming oldText into newText.
// Identical inputs produce an empty set. The result contains at most one
// change: a word-level middle span when the token pass finds one, a
// byte-level middle span otherwise, or a whole-text replacement as the
// last resort.
func Diff(oldText, newText string) []Change {
	if oldText == newText {
		return []Change{}
	}

	if ch, ok := wordDiff(oldText, newText); ok {
		return []Change{ch}
	}
	if ch, ok := byteDiff(oldText, newText); ok {
		return []Change{ch}
	}

	return []Change{{TextToReplace: oldText, NewText: newText, Position: 0}}
}

// wordDiff tokenizes both strings into alternating word and whitespace
// runs, strips the longest matching token prefix and suffix, and emits
// one change covering the differing middle. It reports false when both
// middles are empty, which happens when the strings differ only by token
// positioning and the byte-level pass must decide.
func wordDiff(oldText, newText string) (Change, bool) {
	oldTokens := tokenize(oldText)
	newTokens := tokenize(newText)

	prefix := 0
	for prefix < len(oldTokens) && prefix < len(newTokens) && oldTokens[prefix] == newTokens[prefix] {
		prefix++
	}

	suffix := 0
	for suffix < len(oldTokens)-prefix && suffix < len(newTokens)-prefix &&
		oldTokens[len(oldTokens)-1-suffix] == newTokens[len(newTokens)-1-suffix] {
		suffix++
	}

	oldMiddle := strings.Join(oldTokens[prefix:len(oldTokens)-suffix], "")
	newMiddle := strings.Join(newTokens[prefix:len(newTokens)-suffix], "")
	if oldMiddle == "" && newMiddle == "" {
		return Change{}, false
	}

	position := 0
	for _, tok := range oldTokens[:prefix] {
		position += len(tok)
	}

	return anchor(oldText, oldMiddle, newMiddle, position), true
}

// byteDiff strips the longest common byte prefix and suffix and emits one
// change for the differing middle. It reports false only for identical
// inputs.
func byteDiff(oldText, newText string) (Change, bool) {
	if oldText == newText {
		return Change{}, false
	}

	prefix := 0
	for prefix < len(oldText) && prefix < len(newText) && oldText[prefix] == newText[prefix] {
		prefix++
	}

	suffix := 0
	for suffix < len(oldText)-prefix && suffix < len(newText)-prefix &&
		oldText[len(oldText)-1-suffix] == newText[len(newText)-1-suffix] {
		suffix++
	}

	return anchor(oldText,
		oldText[prefix:len(oldText)-suffix],
		newText[prefix:len(newText)-suffix],
		prefix), true
}

// anchor widens a middle span leftward until its first occurrence in the
// old text is the occurrence at the recorded position. Without this an
// ambiguous span (or a pure insertion, whose empty TextToReplace matches
// at offset zero) would be applied at the wrong place by first-occurrence
// replacement.
func anchor(oldText, textToReplace, newText string, position int) Change {
	for position > 0 && strings.Index(oldText, textToReplace) != position {
		position--
		textToReplace = oldText[position:position+1] + textToReplace
		newText = oldText[position:position+1] + newText
	}
	return Change{TextToReplace: textToReplace, NewText: newText, Position: position}
}

// tokenize splits text into maximal runs of whitespace and non-whitespace
// runes, preserving separators as distinct tokens so the concatenation of
// all tokens reproduces the input exactly. Decoding rune by rune keeps
// multi-byte code points inside a single token.
func tokenize(text string) []string {
	if text == "" {
		return nil
	}

	var tokens []string
	start := 0
	first, _ := utf8.DecodeRuneInString(text)
	inSpace := unicode.IsSpace(first)
	for i := 0; i < len(text); {
		r, width := utf8.DecodeRuneInString(text[i:])
		isSpace := unicode.IsSpace(r)
		if isSpace != inSpace {
			tokens = append(tokens, text[start:i])
			start = i
			inSpace = isSpace
		}
		i += width
	}
	tokens = append(tokens, text[start:])
	return tokens
}

// Apply replays a change set on text with first-occurrence semantics.
// Clients use it to verify round trips; it mirrors the change engine's
// replacement step.
func Apply(text string, changes []Change) string {
	for _, ch := range changes {
		idx := strings.Index(text, ch.TextToReplace)
		if idx < 0 {
			continue
		}
		text = text[:idx] + ch.NewText + text[idx+len(ch.TextToReplace):]
	}
	return text
}
