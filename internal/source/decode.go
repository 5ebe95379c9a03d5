package source

// decode.go cleans raw CSV bytes before parsing:
//
//   - stripBOM: removes the UTF-8 BOM (0xEF 0xBB 0xBF) Windows tools prepend
//   - sanitizeUTF8: replaces invalid UTF-8 sequences with U+FFFD
//   - parseCSV: lenient parse that tolerates ragged rows and stray quotes
//   - detectComma: picks ",", ";" or tab from the first non-blank line

import (
	"bytes"
	"encoding/csv"
	"unicode/utf8"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

func stripBOM(data []byte) []byte {
	return bytes.TrimPrefix(data, utf8BOM)
}

func sanitizeUTF8(data []byte) []byte {
	if utf8.Valid(data) {
		return data
	}

	var buf bytes.Buffer
	buf.Grow(len(data))

	for len(data) > 0 {
		r, size := utf8.DecodeRune(data)
		if r == utf8.RuneError && size == 1 {
			buf.WriteRune(utf8.RuneError)
			data = data[1:]
		} else {
			buf.Write(data[:size])
			data = data[size:]
		}
	}

	return buf.Bytes()
}

func parseCSV(data []byte) ([][]string, error) {
	data = stripBOM(sanitizeUTF8(data))

	r := csv.NewReader(bytes.NewReader(data))
	r.Comma = detectComma(data)
	r.FieldsPerRecord = -1
	r.LazyQuotes = true
	return r.ReadAll()
}

// separators in tie-break order.
var separators = []rune{',', ';', '\t'}

// detectComma returns the separator occurring most often outside quotes on
// the first non-blank line. Ties and lines without any separator give ','.
func detectComma(data []byte) rune {
	line := firstLine(data)

	counts := make(map[rune]int, len(separators))
	inQuotes := false
	for _, c := range string(line) {
		switch {
		case c == '"':
			inQuotes = !inQuotes
		case !inQuotes:
			counts[c]++
		}
	}

	best := ','
	for _, sep := range separators {
		if counts[sep] > counts[best] {
			best = sep
		}
	}
	return best
}

func firstLine(data []byte) []byte {
	for len(data) > 0 {
		line := data
		rest := []byte(nil)
		if i := bytes.IndexByte(data, '\n'); i >= 0 {
			line, rest = data[:i], data[i+1:]
		}
		if len(bytes.TrimSpace(line)) > 0 {
			return line
		}
		data = rest
	}
	return nil
}
