package analyzer

import (
	"bufio"
	"bytes"
	"encoding/json"
	"strings"

	"remedy/internal/diagnostic"
)

// clippyLine is one line of `cargo clippy --message-format=json`.
type clippyLine struct {
	Reason  string         `json:"reason"`
	Message *clippyMessage `json:"message"`
}

type clippyMessage struct {
	Code    *clippyCode  `json:"code"`
	Level   string       `json:"level"`
	Message string       `json:"message"`
	Spans   []clippySpan `json:"spans"`
}

type clippyCode struct {
	Code string `json:"code"`
}

type clippySpan struct {
	FileName             string  `json:"file_name"`
	ByteStart            int     `json:"byte_start"`
	ByteEnd              int     `json:"byte_end"`
	IsPrimary            bool    `json:"is_primary"`
	SuggestedReplacement *string `json:"suggested_replacement"`
}

// ParseClippyJSON parses cargo's JSON-lines stream. Lines that are not
// compiler messages (build artifacts, progress) are skipped, as are
// messages without a code or a primary span, such as the trailing
// "N warnings emitted" summaries.
func ParseClippyJSON(data []byte) ([]diagnostic.Raw, error) {
	raws := make([]diagnostic.Raw, 0)

	scanner := bufio.NewScanner(bytes.NewReader(data))
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 || line[0] != '{' {
			continue
		}

		var msg clippyLine
		if err := json.Unmarshal(line, &msg); err != nil {
			// Interleaved non-JSON output from the build; skip.
			continue
		}
		if msg.Reason != "compiler-message" || msg.Message == nil {
			continue
		}
		m := msg.Message
		if m.Code == nil {
			continue
		}

		primary := primarySpan(m.Spans)
		if primary == nil {
			continue
		}

		raw := diagnostic.Raw{
			Code:     normalizeClippyCode(m.Code.Code),
			Message:  m.Message,
			Severity: m.Level,
			File:     primary.FileName,
			Start:    primary.ByteStart,
			End:      primary.ByteEnd,
		}
		if primary.SuggestedReplacement != nil {
			raw.Suggestion = *primary.SuggestedReplacement
		}
		raws = append(raws, raw)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return raws, nil
}

func primarySpan(spans []clippySpan) *clippySpan {
	for i := range spans {
		if spans[i].IsPrimary {
			return &spans[i]
		}
	}
	return nil
}

// normalizeClippyCode strips the tool prefix and folds underscores so
// "clippy::unused_async" and "unused-async" mean the same strategy.
func normalizeClippyCode(code string) string {
	code = strings.TrimPrefix(code, "clippy::")
	return strings.ReplaceAll(code, "_", "-")
}

// ParseJSONLines parses the generic format: one raw diagnostic record
// as JSON per line. Used for tools fronted by a thin adapter script.
func ParseJSONLines(data []byte) ([]diagnostic.Raw, error) {
	raws := make([]diagnostic.Raw, 0)

	scanner := bufio.NewScanner(bytes.NewReader(data))
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		var raw diagnostic.Raw
		if err := json.Unmarshal(line, &raw); err != nil {
			continue
		}
		raws = append(raws, raw)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return raws, nil
}
