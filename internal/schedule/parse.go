package schedule

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/wasilibs/go-re2"
	"golang.org/x/text/unicode/norm"
)

// LLM replies routinely wrap JSON in markdown fences or prefix it with
// chatter. The extractor pulls the first JSON object out of the raw text.
var (
	codeFencePattern  = re2.MustCompile("(?s)```(?:json)?\\s*(\\{.*?\\})\\s*```")
	bareObjectPattern = re2.MustCompile(`(?s)\{.*\}`)
	zeroWidthPattern  = re2.MustCompile(`[\x{200B}-\x{200D}\x{FEFF}\x{00AD}]`)
)

// timeLayouts are tried in order; first success wins. Full-datetime forms
// come first so bare-clock layouts cannot shadow them.
var timeLayouts = []string{
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"15:04:05",
	"15:04",
	"3:04 PM",
	"3:04PM",
	"03:04 PM",
}

// bareClockLayouts are layouts carrying no date component. Values parsed
// with one of these resolve against the reference day.
var bareClockLayouts = map[string]bool{
	"15:04:05": true,
	"15:04":    true,
	"3:04 PM":  true,
	"3:04PM":   true,
	"03:04 PM": true,
}

// rawItem is the wire shape of one schedule item as produced by the LLM.
type rawItem struct {
	StartTime   string `json:"start_time"`
	EndTime     string `json:"end_time"`
	Activity    string `json:"activity"`
	Status      string `json:"status"`
	Description string `json:"description"`
	Location    string `json:"location"`
}

// rawDay is the wire shape of a full-day plan response.
type rawDay struct {
	Schedule []rawItem `json:"schedule"`
}

// ExtractJSON normalizes an LLM reply and extracts the first JSON object
// from it. Zero-width characters are stripped before extraction; they show
// up in model output and break json.Unmarshal.
func ExtractJSON(raw string) (string, bool) {
	cleaned := norm.NFC.String(raw)
	cleaned = zeroWidthPattern.ReplaceAllString(cleaned, "")
	cleaned = strings.TrimSpace(cleaned)

	if m := codeFencePattern.FindStringSubmatch(cleaned); m != nil {
		return m[1], true
	}
	if m := bareObjectPattern.FindString(cleaned); m != "" {
		return m, true
	}
	return "", false
}

// ParseItem parses one LLM schedule response into a validated Item.
// refDay anchors bare clock times ("15:04" and friends) to the agent's
// local calendar day. An end time at or before the start time with a bare
// clock layout rolls over to the next day, which is how cross-midnight
// sleep blocks ("23:30" to "08:00") parse correctly.
func ParseItem(raw string, refDay time.Time) (Item, error) {
	payload, ok := ExtractJSON(raw)
	if !ok {
		return Item{}, &ValidationError{Reason: "response contains no JSON object"}
	}

	var ri rawItem
	if err := json.Unmarshal([]byte(payload), &ri); err != nil {
		return Item{}, &ValidationError{Reason: "malformed JSON: " + err.Error()}
	}

	return itemFromRaw(ri, refDay)
}

// ParseDay parses a full-day plan response into an ordered item list.
// The response shape is {"schedule": [...]}; items must already be in
// chronological order.
func ParseDay(raw string, refDay time.Time) ([]Item, error) {
	payload, ok := ExtractJSON(raw)
	if !ok {
		return nil, &ValidationError{Reason: "response contains no JSON object"}
	}

	var rd rawDay
	if err := json.Unmarshal([]byte(payload), &rd); err != nil {
		return nil, &ValidationError{Reason: "malformed JSON: " + err.Error()}
	}
	if len(rd.Schedule) == 0 {
		return nil, &ValidationError{Missing: []string{"schedule"}}
	}

	items := make([]Item, 0, len(rd.Schedule))
	for _, ri := range rd.Schedule {
		it, err := itemFromRaw(ri, refDay)
		if err != nil {
			return nil, err
		}
		items = append(items, it)
	}
	return items, nil
}

func itemFromRaw(ri rawItem, refDay time.Time) (Item, error) {
	var missing []string
	if ri.StartTime == "" {
		missing = append(missing, "start_time")
	}
	if ri.EndTime == "" {
		missing = append(missing, "end_time")
	}
	if ri.Activity == "" {
		missing = append(missing, "activity")
	}
	if ri.Status == "" {
		missing = append(missing, "status")
	}
	if len(missing) > 0 {
		return Item{}, &ValidationError{Missing: missing}
	}

	status, err := ParseStatus(ri.Status)
	if err != nil {
		return Item{}, err
	}

	start, _, err := parseItemTime(ri.StartTime, refDay)
	if err != nil {
		return Item{}, err
	}
	end, endBare, err := parseItemTime(ri.EndTime, refDay)
	if err != nil {
		return Item{}, err
	}
	if endBare && !end.After(start) {
		end = end.AddDate(0, 0, 1)
	}

	item := Item{
		StartTime:   start,
		EndTime:     end,
		Activity:    strings.TrimSpace(ri.Activity),
		Status:      status,
		Description: strings.TrimSpace(ri.Description),
		Location:    strings.TrimSpace(ri.Location),
	}
	if err := item.Validate(); err != nil {
		return Item{}, err
	}
	return item, nil
}

// parseItemTime tries each accepted layout in order. bare reports whether
// the matched layout carried no date component.
func parseItemTime(s string, refDay time.Time) (t time.Time, bare bool, err error) {
	s = strings.TrimSpace(s)
	for _, layout := range timeLayouts {
		parsed, perr := time.ParseInLocation(layout, s, refDay.Location())
		if perr != nil {
			continue
		}
		if bareClockLayouts[layout] {
			return AtClock(refDay, parsed.Hour(), parsed.Minute()).
				Add(time.Duration(parsed.Second()) * time.Second), true, nil
		}
		return parsed, false, nil
	}
	return time.Time{}, false, &ValidationError{Reason: "unrecognized time format: " + s}
}
