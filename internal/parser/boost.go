package parser

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/acarl005/stripansi"

	"btp/internal/domain"
)

// UnknownLocation is the file token the binary prints when it has no location.
const UnknownLocation = "unknown location"

type grammar struct {
	kind    domain.EventKind
	pattern *regexp.Regexp
}

// Enter/leave grammars capture (context, name[, amount, unit]); error grammars
// capture (file, line, test path, message).
var grammars = []grammar{
	{domain.EventEnterSuite, regexp.MustCompile(`^(.+): Entering test suite "(.+)"$`)},
	{domain.EventLeaveSuite, regexp.MustCompile(`^(.+): Leaving test suite "(.+?)"(?:; testing time: (\d+)\s*([a-zµ]+))?$`)},
	{domain.EventEnterCase, regexp.MustCompile(`^(.+): Entering test case "(.+)"$`)},
	{domain.EventLeaveCase, regexp.MustCompile(`^(.+): Leaving test case "(.+?)"(?:; testing time: (\d+)\s*([a-zµ]+))?$`)},
	{domain.EventCaseError, regexp.MustCompile(`^(.+)\((\d+)\): error: in "(.+?)": (.*)$`)},
	{domain.EventCaseFatalError, regexp.MustCompile(`^(.+)\((\d+)\): fatal error: in "(.+?)": (.*)$`)},
}

// BoostParser classifies lines of a Boost.Test log printed with --log_level=test_suite.
type BoostParser struct{}

// NewBoostParser creates a new BoostParser
func NewBoostParser() *BoostParser {
	return &BoostParser{}
}

// Classify returns the event on the line, or an event of kind EventNone.
func (p *BoostParser) Classify(line string) domain.Event {
	line = strings.TrimRight(stripansi.Strip(line), "\r")

	for _, g := range grammars {
		m := g.pattern.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		switch g.kind {
		case domain.EventCaseError, domain.EventCaseFatalError:
			lineNo, err := strconv.Atoi(m[2])
			if err != nil {
				continue
			}
			return domain.Event{Kind: g.kind, File: m[1], Line: lineNo, Name: m[3], Message: m[4]}
		case domain.EventLeaveSuite, domain.EventLeaveCase:
			return domain.Event{Kind: g.kind, Name: m[2], Duration: parseDuration(m[3], m[4])}
		default:
			return domain.Event{Kind: g.kind, Name: m[2]}
		}
	}
	return domain.Event{Kind: domain.EventNone}
}

func parseDuration(amount, unit string) time.Duration {
	if amount == "" {
		return 0
	}
	n, err := strconv.ParseInt(amount, 10, 64)
	if err != nil {
		return 0
	}
	switch unit {
	case "ns":
		return time.Duration(n)
	case "us", "mks", "µs":
		return time.Duration(n) * time.Microsecond
	case "ms":
		return time.Duration(n) * time.Millisecond
	case "s":
		return time.Duration(n) * time.Second
	default:
		return 0
	}
}
