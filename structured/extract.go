package structured

import "strings"

const (
	fence   = "```"
	jsonTag = "json"
)

// ExtractPayload isolates the structured payload inside model text.
//
// A fence tagged json, matched case-insensitively, marks the payload: it is
// everything after the tag line up to the next closing fence, or to the end
// of the text when the fence is never closed. The first such fence wins and
// fences with other tags are ignored. Without a json fence, the first
// untagged or differently tagged fence whose body starts like a JSON object
// or array is used. Otherwise the whole text is the payload. The result is
// trimmed of surrounding whitespace.
func ExtractPayload(text string) string {
	if body, ok := jsonFence(text); ok {
		return body
	}
	if body, ok := jsonLookingFence(text); ok {
		return body
	}
	return strings.TrimSpace(text)
}

// jsonFence returns the body of the first fence tagged json.
func jsonFence(text string) (string, bool) {
	for off := 0; ; {
		i := strings.Index(text[off:], fence)
		if i < 0 {
			return "", false
		}
		tagStart := off + i + len(fence)
		tagEnd := tagStart + len(jsonTag)
		if tagEnd <= len(text) && strings.EqualFold(text[tagStart:tagEnd], jsonTag) &&
			(tagEnd == len(text) || endsTag(text[tagEnd])) {
			body, _ := fencedBlock(text[tagEnd:])
			return body, true
		}
		off = tagStart
	}
}

// jsonLookingFence returns the body of the first fenced block starting with
// '{' or '['. Opening and closing fences are paired left to right.
func jsonLookingFence(text string) (string, bool) {
	for rest := text; ; {
		i := strings.Index(rest, fence)
		if i < 0 {
			return "", false
		}
		body, after := fencedBlock(rest[i+len(fence):])
		body = stripInlineTag(body)
		if body != "" && (body[0] == '{' || body[0] == '[') {
			return body, true
		}
		rest = after
	}
}

// fencedBlock splits the text following an opening fence into the trimmed
// block body, without its tag line, and the text after the closing fence.
func fencedBlock(rest string) (body, after string) {
	if nl := strings.IndexByte(rest, '\n'); nl >= 0 {
		// Drop the language tag, if any.
		if tag := strings.TrimSpace(rest[:nl]); !strings.ContainsAny(tag, "{[") {
			rest = rest[nl+1:]
		}
	}

	end := strings.Index(rest, fence)
	if end < 0 {
		return strings.TrimSpace(rest), ""
	}
	return strings.TrimSpace(rest[:end]), rest[end+len(fence):]
}

func endsTag(c byte) bool {
	switch c {
	case ' ', '\t', '\r', '\n', '{', '[':
		return true
	}
	return false
}

// stripInlineTag removes a language tag sharing the line with a single-line
// fenced payload, as in "```js {...}```".
func stripInlineTag(s string) string {
	if s == "" || s[0] == '{' || s[0] == '[' {
		return s
	}
	i := strings.IndexAny(s, " \t")
	if i < 0 {
		return s
	}
	if body := strings.TrimSpace(s[i:]); body != "" && (body[0] == '{' || body[0] == '[') {
		return body
	}
	return s
}
