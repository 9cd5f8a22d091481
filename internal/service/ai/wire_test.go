package ai

import (
	"strings"
	"testing"
)

func TestEncodeTextChunk(t *testing.T) {
	got := string(EncodeTextChunk("Hello "))
	if got != "0:\"Hello \"\n" {
		t.Fatalf("unexpected wire line: %q", got)
	}
	got = string(EncodeTextChunk("line\nbreak"))
	if got != "0:\"line\\nbreak\"\n" {
		t.Fatalf("newline not escaped: %q", got)
	}
}

func TestEncodeTextChunkTagIsConstant(t *testing.T) {
	// Every text fragment carries the same part tag; the tag is not a
	// sequence counter.
	var buf []byte
	for _, frag := range []string{"a", "b", "c"} {
		buf = append(buf, EncodeTextChunk(frag)...)
	}
	for _, line := range strings.Split(strings.TrimRight(string(buf), "\n"), "\n") {
		if !strings.HasPrefix(line, "0:") {
			t.Fatalf("line %q does not carry the text part tag", line)
		}
	}
}

func TestDecodeTextRoundTrip(t *testing.T) {
	var buf []byte
	buf = append(buf, EncodeTextChunk("Hello ")...)
	buf = append(buf, EncodeTextChunk("world")...)
	if got := DecodeText(buf); got != "Hello world" {
		t.Fatalf("decode = %q, want %q", got, "Hello world")
	}
}

func TestDecodeTextIgnoresTagValue(t *testing.T) {
	// Some providers number lines sequentially; the decoder accepts any
	// numeric tag.
	data := "0:\"Hello \"\n7:\"world\"\n"
	if got := DecodeText([]byte(data)); got != "Hello world" {
		t.Fatalf("decode = %q, want %q", got, "Hello world")
	}
}

func TestDecodeTextSkipsMalformedLines(t *testing.T) {
	data := "garbage\n" +
		string(EncodeTextChunk("keep")) +
		"1:unquoted\n" +
		string(EncodeTextChunk(" this"))
	if got := DecodeText([]byte(data)); got != "keep this" {
		t.Fatalf("decode = %q, want %q", got, "keep this")
	}
}

func TestDecodeTextEmpty(t *testing.T) {
	if got := DecodeText(nil); got != "" {
		t.Fatalf("decode of empty input = %q", got)
	}
}

func TestNormalizeText(t *testing.T) {
	cases := []struct {
		in, want string
	}{
		{`plain text`, "plain text"},
		{`one\ntwo`, "one\ntwo"},
		{`para\n\nbreak`, "para\n\nbreak"},
		{`a\n\nb\nc`, "a\n\nb\nc"},
	}
	for _, tc := range cases {
		if got := NormalizeText(tc.in); got != tc.want {
			t.Errorf("NormalizeText(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestNormalizeTextPreservesRealNewlines(t *testing.T) {
	in := "already\nreal\n\nnewlines"
	if got := NormalizeText(in); got != in {
		t.Fatalf("real newlines changed: %q", got)
	}
}

func TestEncodeDecodeLongText(t *testing.T) {
	long := strings.Repeat("chunk of text ", 5000)
	var buf []byte
	for i := 0; i < 10; i++ {
		buf = append(buf, EncodeTextChunk(long[i*100:(i+1)*100])...)
	}
	want := long[:1000]
	if got := DecodeText(buf); got != want {
		t.Fatalf("long decode mismatch: got %d bytes, want %d", len(got), len(want))
	}
}
