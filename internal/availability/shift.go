package availability

import (
	"regexp"
	"strings"
)

// Shift is the coarse time window a driver offered on a date.
type Shift string

const (
	ShiftAM    Shift = "AM"
	ShiftPM1   Shift = "PM1"
	ShiftAMPM1 Shift = "AM_PM1"
	ShiftOther Shift = "OTHER"
	ShiftNone  Shift = "NONE"
)

// Shifts lists every shift in display order.
var Shifts = []Shift{ShiftAM, ShiftPM1, ShiftAMPM1, ShiftOther, ShiftNone}

const (
	DefaultAMWindow  = "05:15-09:00"
	DefaultPM1Window = "11:45-14:30"
)

// Sentinel statuses that always mean "no offer".
var sentinels = []string{"", "--", "Not Available"}

var timeRange = regexp.MustCompile(`\d{2}:\d{2}-\d{2}:\d{2}`)

// Classification is the outcome of running a status through the rules.
type Classification struct {
	Available bool
	Shift     Shift
	Rule      string
}

// Rule is one entry of the ordered rule list. The first rule whose Match
// returns true decides the classification.
type Rule struct {
	Name      string
	Match     func(status string) bool
	Available bool
	Shift     Shift
}

// Classifier maps raw status cells to (available, shift).
type Classifier struct {
	rules []Rule
}

// NewClassifier builds the rule list for the given AM and PM1 window tokens.
// Empty windows fall back to the defaults.
func NewClassifier(amWindow, pm1Window string) *Classifier {
	if amWindow == "" {
		amWindow = DefaultAMWindow
	}
	if pm1Window == "" {
		pm1Window = DefaultPM1Window
	}
	return &Classifier{rules: []Rule{
		{
			Name:  "sentinel",
			Shift: ShiftNone,
			Match: func(status string) bool {
				trimmed := strings.TrimSpace(status)
				for _, sentinel := range sentinels {
					if trimmed == sentinel {
						return true
					}
				}
				return false
			},
		},
		{
			Name:      "am_pm1",
			Available: true,
			Shift:     ShiftAMPM1,
			Match: func(status string) bool {
				return strings.Contains(status, amWindow) && strings.Contains(status, pm1Window)
			},
		},
		{
			Name:      "am",
			Available: true,
			Shift:     ShiftAM,
			Match: func(status string) bool {
				return strings.Contains(status, amWindow)
			},
		},
		{
			Name:      "pm1",
			Available: true,
			Shift:     ShiftPM1,
			Match: func(status string) bool {
				return strings.Contains(status, pm1Window)
			},
		},
		{
			Name:      "time_range",
			Available: true,
			Shift:     ShiftOther,
			Match:     timeRange.MatchString,
		},
		{
			Name:  "fallback",
			Shift: ShiftNone,
			Match: func(string) bool { return true },
		},
	}}
}

// Rules returns the ordered rule list.
func (c *Classifier) Rules() []Rule {
	return append([]Rule(nil), c.rules...)
}

// Classify runs status through the rules. It is total: the last rule matches
// everything.
func (c *Classifier) Classify(status string) Classification {
	for _, rule := range c.rules {
		if rule.Match(status) {
			return Classification{Available: rule.Available, Shift: rule.Shift, Rule: rule.Name}
		}
	}
	return Classification{Shift: ShiftNone, Rule: "fallback"}
}

// Apply returns a copy of log with Available, Shift and Rule set on every record.
func (c *Classifier) Apply(log Log) Log {
	out := log
	out.Records = make([]Record, len(log.Records))
	for i, record := range log.Records {
		result := c.Classify(record.Status)
		record.Available = result.Available
		record.Shift = result.Shift
		record.Rule = result.Rule
		out.Records[i] = record
	}
	return out
}

// ParseShift maps a filter value onto a Shift.
func ParseShift(value string) (Shift, bool) {
	value = strings.ToUpper(strings.TrimSpace(value))
	value = strings.ReplaceAll(value, "|", "_")
	for _, shift := range Shifts {
		if string(shift) == value {
			return shift, true
		}
	}
	return "", false
}
