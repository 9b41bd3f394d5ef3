package caption

import (
	"bufio"
	"fmt"
	"html"
	"io"
	"regexp"
	"strconv"
	"strings"
)

var (
	inlineTagRE  = regexp.MustCompile(`<[^>]*>`)
	whitespaceRE = regexp.MustCompile(`\s+`)
	timestampRE  = regexp.MustCompile(`^(?:(\d+):)?(\d{2}):(\d{2})[.,](\d{3})$`)
)

// Parse reads a WebVTT document and returns its cues in file order.
//
// The accepted subset is deliberately small: an optional cue identifier
// line, a timestamp line (with optional cue settings, which are ignored),
// and one or more text lines, each block separated by a blank line. NOTE,
// STYLE and REGION blocks are skipped. Inline tags such as <b>, <i>,
// <c.xxx>, <v Speaker> and timestamp tags are stripped from the text.
func Parse(r io.Reader) ([]Cue, error) {
	lines, err := readLines(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read input: %w", err)
	}

	headerLine, headerIdx := firstNonEmpty(lines, 0)
	if headerLine == "" || !strings.HasPrefix(strings.TrimSpace(headerLine), "WEBVTT") {
		return nil, &ParseError{Line: headerIdx + 1, Reason: "missing WEBVTT header"}
	}

	var cues []Cue
	i := headerIdx + 1
	for i < len(lines) {
		blockStart, idx := firstNonEmpty(lines, i)
		if blockStart == "" {
			break
		}

		block, nextIdx := collectBlock(lines, idx)
		i = nextIdx

		kind := strings.TrimSpace(block[0])
		if strings.HasPrefix(kind, "NOTE") || strings.HasPrefix(kind, "STYLE") || strings.HasPrefix(kind, "REGION") {
			continue
		}

		cue, err := parseBlock(block, idx+1)
		if err != nil {
			return nil, err
		}

		if len(cues) > 0 && cue.Start < cues[len(cues)-1].End {
			return nil, &ParseError{Line: idx + 1, Reason: "overlapping cue"}
		}

		cues = append(cues, cue)
	}

	return cues, nil
}

// parseBlock turns a single cue block (already split on blank lines) into a
// Cue. lineNo is the 1-indexed source line of block[0], used for errors.
func parseBlock(block []string, lineNo int) (Cue, error) {
	tsLineOffset := 0
	if !strings.Contains(block[0], "-->") {
		// First line is a cue identifier; discard it.
		tsLineOffset = 1
		if len(block) <= tsLineOffset {
			return Cue{}, &ParseError{Line: lineNo, Reason: "missing timestamp line"}
		}
	}

	tsLine := block[tsLineOffset]
	tsLineNo := lineNo + tsLineOffset
	if !strings.Contains(tsLine, "-->") {
		return Cue{}, &ParseError{Line: tsLineNo, Reason: "missing timestamp line"}
	}

	start, end, err := parseTimestampLine(tsLine, tsLineNo)
	if err != nil {
		return Cue{}, err
	}

	if end <= start {
		return Cue{}, &ParseError{Line: tsLineNo, Reason: "end time must be after start time"}
	}

	textLines := block[tsLineOffset+1:]
	text := sanitizeText(strings.Join(textLines, " "))
	if text == "" {
		return Cue{}, &ParseError{Line: tsLineNo, Reason: "empty cue text"}
	}

	return Cue{Start: start, End: end, Text: text}, nil
}

func parseTimestampLine(line string, lineNo int) (float64, float64, error) {
	parts := strings.SplitN(line, "-->", 2)
	if len(parts) != 2 {
		return 0, 0, &ParseError{Line: lineNo, Reason: "malformed timestamp line"}
	}

	startStr := strings.TrimSpace(parts[0])
	// The right side may carry cue settings after the end timestamp.
	endStr := strings.TrimSpace(parts[1])
	if fields := strings.Fields(endStr); len(fields) > 0 {
		endStr = fields[0]
	}

	start, err := parseTimestamp(startStr)
	if err != nil {
		return 0, 0, &ParseError{Line: lineNo, Reason: "malformed start timestamp: " + err.Error()}
	}

	end, err := parseTimestamp(endStr)
	if err != nil {
		return 0, 0, &ParseError{Line: lineNo, Reason: "malformed end timestamp: " + err.Error()}
	}

	return start, end, nil
}

func parseTimestamp(s string) (float64, error) {
	m := timestampRE.FindStringSubmatch(s)
	if m == nil {
		return 0, fmt.Errorf("invalid format %q", s)
	}

	var hours int64
	if m[1] != "" {
		var err error
		hours, err = strconv.ParseInt(m[1], 10, 64)
		if err != nil {
			return 0, err
		}
	}

	minutes, _ := strconv.ParseInt(m[2], 10, 64)
	seconds, _ := strconv.ParseInt(m[3], 10, 64)
	millis, _ := strconv.ParseInt(m[4], 10, 64)

	total := float64(hours)*3600 + float64(minutes)*60 + float64(seconds) + float64(millis)/1000
	return total, nil
}

func sanitizeText(s string) string {
	s = inlineTagRE.ReplaceAllString(s, "")
	s = html.UnescapeString(s)
	s = whitespaceRE.ReplaceAllString(s, " ")
	return strings.TrimSpace(s)
}

func readLines(r io.Reader) ([]string, error) {
	var lines []string
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return lines, nil
}

// firstNonEmpty returns the first non-blank line at or after idx, and its
// index. It returns ("", len(lines)) if none is found.
func firstNonEmpty(lines []string, idx int) (string, int) {
	for i := idx; i < len(lines); i++ {
		if strings.TrimSpace(lines[i]) != "" {
			return lines[i], i
		}
	}
	return "", len(lines)
}

// collectBlock gathers lines starting at idx up to (not including) the next
// blank line or EOF, and returns the index to resume scanning from.
func collectBlock(lines []string, idx int) ([]string, int) {
	var block []string
	i := idx
	for i < len(lines) && strings.TrimSpace(lines[i]) != "" {
		block = append(block, lines[i])
		i++
	}
	return block, i
}
