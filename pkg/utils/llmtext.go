package utils

import (
	"encoding/json"
	"regexp"
	"strings"
)

// Model output rarely comes back as bare JSON: it tends to arrive wrapped in
// markdown fences or surrounded by prose. These helpers pull the payload out
// without being picky about the framing.

var (
	jsonFenceRe = regexp.MustCompile("(?s)```(?:json)?\\s*(\\{.*?\\})\\s*```")
	jsonBodyRe  = regexp.MustCompile(`(?s)\{.*\}`)
	yamlFenceRe = regexp.MustCompile("(?s)```(?:yaml|yml)?\\s*(.*?)\\s*```")
)

// ExtractJSON locates a JSON object inside model output text and unmarshals it
// into v. It tries, in order: a fenced code block, the outermost braces, the
// whole string. Returns false if no parseable JSON object was found.
func ExtractJSON(text string, v interface{}) bool {
	text = strings.TrimSpace(text)
	if text == "" {
		return false
	}

	if m := jsonFenceRe.FindStringSubmatch(text); m != nil {
		if json.Unmarshal([]byte(m[1]), v) == nil {
			return true
		}
	}

	if m := jsonBodyRe.FindString(text); m != "" {
		if json.Unmarshal([]byte(m), v) == nil {
			return true
		}
	}

	return json.Unmarshal([]byte(text), v) == nil
}

// ExtractYAML strips markdown fences from model output that should contain a
// YAML document. If there are no fences the trimmed text is returned as-is.
func ExtractYAML(text string) string {
	text = strings.TrimSpace(text)
	if text == "" {
		return ""
	}

	if m := yamlFenceRe.FindStringSubmatch(text); m != nil {
		return strings.TrimSpace(m[1])
	}

	return text
}
