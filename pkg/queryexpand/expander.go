// Copyright 2025 Kadir Pekel
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package queryexpand implements the query expander (C4): a small,
// deterministic set of query variants built from a static synonym
// thesaurus and prefix-rewrite rules, with a trivial-query boost path.
//
// An LLM-backed expander would delegate this step to a model call, but
// this engine's expander must be deterministic and offline, so the LLM round
// trip is replaced by the static thesaurus/rule approach below while
// keeping the same Expander interface shape.
package queryexpand

import (
	"context"
	"regexp"
	"strings"
)

// Expander produces query variants for the hybrid searcher's keyword leg.
type Expander interface {
	Expand(ctx context.Context, query string) ([]string, error)
}

const maxVariants = 6

var trivialQueries = map[string]bool{
	"test": true, "help": true, "hello": true, "hi": true, "hey": true,
	"ok": true, "okay": true, "thanks": true, "thank you": true,
}

// thesaurus maps a key term to up to two domain synonyms.
var thesaurus = map[string][]string{
	"error": {"failure", "exception"},
	"bug": {"defect", "issue"},
	"fast": {"quick", "rapid"},
	"slow": {"sluggish", "delayed"},
	"build": {"compile", "assemble"},
	"test": {"verify", "validate"},
	"config": {"configuration", "settings"},
	"database": {"datastore", "storage"},
	"document": {"file", "record"},
	"search": {"query", "lookup"},
	"delete": {"remove", "erase"},
	"create": {"generate", "make"},
	"update": {"modify", "revise"},
	"install": {"setup", "deploy"},
	"network": {"connection", "link"},
	"security": {"protection", "safety"},
	"user": {"account", "client"},
	"password": {"credential", "secret"},
	"server": {"host", "backend"},
	"performance": {"throughput", "speed"},
}

var prefixRules = []struct {
	pattern *regexp.Regexp
	replace string
}{
	{regexp.MustCompile(`(?i)^how do i `), "Instructions for "},
	{regexp.MustCompile(`(?i)^how to `), "Instructions for "},
	{regexp.MustCompile(`(?i)^what is `), "Information about "},
	{regexp.MustCompile(`(?i)^what are `), "Information about "},
	{regexp.MustCompile(`(?i)^when should `), "Timing for "},
	{regexp.MustCompile(`(?i)^why does `), "Explanation for "},
	{regexp.MustCompile(`(?i)^where is `), "Location of "},
}

// stopwords backs a crude but deterministic filter for "key terms":
// alphabetic tokens longer than 2 characters that are not one of these
// common closed-class words.
var stopwords = map[string]bool{
	"the": true, "and": true, "for": true, "are": true, "was": true,
	"were": true, "with": true, "this": true, "that": true, "from": true,
	"have": true, "has": true, "not": true, "but": true, "can": true,
	"you": true, "your": true, "all": true, "any": true,
}

// ThesaurusExpander is the engine's default, deterministic C4
// implementation.
type ThesaurusExpander struct{}

var _ Expander = (*ThesaurusExpander)(nil)

// New creates a ThesaurusExpander.
func New() *ThesaurusExpander { return &ThesaurusExpander{} }

// Expand implements rules in order: trivial-query boost
// short-circuits; otherwise key-term synonym substitution, a
// synonym-augmented variant, and prefix-pattern rewriting are combined,
// deduplicated with the original query first.
func (e *ThesaurusExpander) Expand(ctx context.Context, query string) ([]string, error) {
	trimmed := strings.TrimSpace(query)
	normalized := strings.ToLower(trimmed)
	tokens := strings.Fields(trimmed)
	keyTerms := keyTerms(tokens)

	if len(tokens) <= 1 || len(keyTerms) == 0 || trivialQueries[normalized] {
		variants := []string{
			trimmed,
			trimmed + " overview",
			trimmed + " summary",
			trimmed + " introduction",
			"overview",
			"summary",
		}
		return dedup(variants), nil
	}

	variants := []string{trimmed}

	// Per-key-term synonym substitution (at most two synonyms per term).
	var topSynonyms []string
	for _, kt := range keyTerms {
		syns, ok := thesaurus[strings.ToLower(kt)]
		if !ok {
			continue
		}
		for _, syn := range syns {
			variants = append(variants, replaceWord(trimmed, kt, syn))
			topSynonyms = append(topSynonyms, syn)
			if len(variants) >= maxVariants {
				break
			}
		}
	}

	if len(topSynonyms) > 0 {
		n := len(topSynonyms)
		if n > 2 {
			n = 2
		}
		variants = append(variants, trimmed+" "+strings.Join(topSynonyms[:n], " "))
	}

	if strings.HasSuffix(trimmed, "?") {
		stripped := strings.TrimSuffix(trimmed, "?")
		for _, rule := range prefixRules {
			if rule.pattern.MatchString(stripped) {
				variants = append(variants, rule.pattern.ReplaceAllString(stripped, rule.replace))
				break
			}
		}
	}

	return capAt(dedup(variants), maxVariants), nil
}

func keyTerms(tokens []string) []string {
	var out []string
	for _, tok := range tokens {
		clean := strings.ToLower(strings.Trim(tok, ".,!?;:\"'()"))
		if len(clean) > 2 && isAlpha(clean) && !stopwords[clean] {
			out = append(out, clean)
		}
	}
	return out
}

func isAlpha(s string) bool {
	for _, r := range s {
		if !((r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z')) {
			return false
		}
	}
	return len(s) > 0
}

func replaceWord(sentence, word, replacement string) string {
	re := regexp.MustCompile(`(?i)\b` + regexp.QuoteMeta(word) + `\b`)
	return re.ReplaceAllString(sentence, replacement)
}

func dedup(variants []string) []string {
	seen := make(map[string]bool, len(variants))
	out := make([]string, 0, len(variants))
	for _, v := range variants {
		key := strings.ToLower(strings.TrimSpace(v))
		if key == "" || seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, v)
	}
	return out
}

func capAt(variants []string, n int) []string {
	if len(variants) <= n {
		return variants
	}
	return variants[:n]
}
