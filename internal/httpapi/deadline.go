package httpapi

import (
	"fmt"
	"sync"
	"time"

	"github.com/olebedev/when"
	"github.com/olebedev/when/rules/common"
	"github.com/olebedev/when/rules/en"
)

var (
	deadlineParser     *when.Parser
	deadlineParserOnce sync.Once
)

func getDeadlineParser() *when.Parser {
	deadlineParserOnce.Do(func() {
		w := when.New(nil)
		w.Add(en.All...)
		w.Add(common.All...)
		deadlineParser = w
	})
	return deadlineParser
}

// parseDeadline accepts a strict RFC3339 timestamp or a free-text
// expression ("in two weeks", "next friday") for Involvement's
// expected_completion_date (spec §4.14 olebedev/when wiring). It tries
// RFC3339 first, since that's the unambiguous machine format, and falls
// back to the free-text parser.
func parseDeadline(raw string, now time.Time) (time.Time, error) {
	if raw == "" {
		return time.Time{}, fmt.Errorf("expected_completion_date is required")
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t, nil
	}

	r, err := getDeadlineParser().Parse(raw, now)
	if err != nil {
		return time.Time{}, fmt.Errorf("parsing expected_completion_date %q: %w", raw, err)
	}
	if r == nil {
		return time.Time{}, fmt.Errorf("could not understand expected_completion_date %q", raw)
	}
	return r.Time, nil
}
