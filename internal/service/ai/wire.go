package ai

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
)

// The completion stream crosses the HTTP boundary in a line-oriented wire
// format: `<tag>:"<escaped text>"`, where the numeric tag identifies the
// part type (0 for text fragments) rather than a sequence position. The
// encoder below produces it for the client, and the decoder reconstructs
// plain text from the buffered copy for persistence. Keeping both paths
// behind these two functions insulates the chat pipeline from framing
// changes.

const textPartTag = 0

// EncodeTextChunk formats one text fragment as a wire line.
func EncodeTextChunk(text string) []byte {
	quoted, err := json.Marshal(text)
	if err != nil {
		// json.Marshal of a string only fails on invalid UTF-8; degrade to
		// a quoted empty fragment rather than corrupting the stream.
		quoted = []byte(`""`)
	}
	return []byte(fmt.Sprintf("%d:%s\n", textPartTag, quoted))
}

var chunkLine = regexp.MustCompile(`^(\d+):(".*")$`)

// DecodeText extracts and concatenates the text fragments from buffered
// wire-format bytes. The tag is not inspected, so the decoder tolerates
// providers that number lines sequentially; lines that do not match the
// framing at all are skipped.
func DecodeText(data []byte) string {
	var b strings.Builder
	sc := bufio.NewScanner(bytes.NewReader(data))
	sc.Buffer(make([]byte, 0, 64*1024), 1<<20)
	for sc.Scan() {
		m := chunkLine.FindStringSubmatch(sc.Text())
		if m == nil {
			continue
		}
		var frag string
		if err := json.Unmarshal([]byte(m[2]), &frag); err != nil {
			continue
		}
		b.WriteString(frag)
	}
	return b.String()
}

const doubleNewlineToken = "[[DOUBLE_NEWLINE]]"

// NormalizeText restores literal `\n` escape sequences left in model output.
// Double newlines round-trip through a placeholder so paragraph breaks
// survive the blanket replacement.
func NormalizeText(text string) string {
	text = strings.ReplaceAll(text, `\n\n`, doubleNewlineToken)
	text = strings.ReplaceAll(text, `\n`, "\n")
	return strings.ReplaceAll(text, doubleNewlineToken, "\n\n")
}
