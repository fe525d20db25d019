// Package parser classifies social posts as show announcements and extracts
// show fields (date, venue, time of day) from free-form caption text.
package parser

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Result holds the outcome of classifying and extracting a single text.
type Result struct {
	IsShow   bool
	Date     time.Time // zero when no date was found
	Location string    // empty when no venue was found
	Time     string    // matched fragment kept verbatim, empty when none
}

// showKeywords suggest a post announces a show. Matching is by substring on
// the lowercased text; two distinct hits classify the post on their own.
var showKeywords = []string{
	"show", "concert", "gig", "performance", "event", "live",
	"tickets", "doors", "opening", "headliner", "support",
	"venue", "playing", "performing", "on stage", "tour",
	"tonight", "this week", "coming", "upcoming",
}

// eventTerms back up a lone date pattern in the classifier.
var eventTerms = []string{"ticket", "door", "venue", "stage", "live"}

// pastTolerance is how many days behind the reference date an extracted
// date may fall and still be accepted. Posts often go up a few days after
// the announced show.
const pastTolerance = 7

const (
	monthAlt   = `jan(?:uary)?|feb(?:ruary)?|mar(?:ch)?|apr(?:il)?|may|jun(?:e)?|jul(?:y)?|aug(?:ust)?|sep(?:tember)?|oct(?:ober)?|nov(?:ember)?|dec(?:ember)?`
	weekdayAlt = `mon(?:day)?|tue(?:sday)?|wed(?:nesday)?|thu(?:rsday)?|fri(?:day)?|sat(?:urday)?|sun(?:day)?`
)

// dateRule pairs a pattern with the function that turns one of its matches
// into a concrete date. Rules are tried in order; within a rule, matches
// are tried in text order.
type dateRule struct {
	re      *regexp.Regexp
	resolve func(m []string, ref time.Time) (time.Time, bool)
	// relative rules resolve against the reference date itself and are
	// exempt from the freshness window.
	relative bool
}

// Parser holds the compiled rule tables. It is read-only after New and safe
// for concurrent use.
type Parser struct {
	dateRules     []dateRule
	locationRules []*regexp.Regexp
	timeRules     []*regexp.Regexp
}

// New compiles the classification and extraction rules.
func New() *Parser {
	return &Parser{
		dateRules: []dateRule{
			// "March 14", "Mar 14th, 2026", "March 14 2026"
			{re: regexp.MustCompile(`(?i)\b(` + monthAlt + `)\s+(\d{1,2})(?:st|nd|rd|th)?(?:,?\s*(\d{4}))?\b`), resolve: resolveMonthDay},
			// "14th of March", "14 March"
			{re: regexp.MustCompile(`(?i)\b(\d{1,2})(?:st|nd|rd|th)?\s+(?:of\s+)?(` + monthAlt + `)\b`), resolve: resolveDayMonth},
			// "6/15", "15-6-24", "06/15/2026"
			{re: regexp.MustCompile(`\b(\d{1,2})[/-](\d{1,2})(?:[/-](\d{2,4}))?\b`), resolve: resolveNumeric},
			// "Friday the 14th", "Fri 14"
			{re: regexp.MustCompile(`(?i)\b(?:` + weekdayAlt + `)\s+(?:the\s+)?(\d{1,2})(?:st|nd|rd|th)?\b`), resolve: resolveWeekdayDay},
			// "this Friday", "on Sat", "next Sunday"
			{re: regexp.MustCompile(`(?i)\b(?:on|at|this|next)\s+(` + weekdayAlt + `)\b`), resolve: resolveNextWeekday},
			{re: regexp.MustCompile(`(?i)\b(?:tonight|today)\b`), resolve: resolveTonight, relative: true},
			{re: regexp.MustCompile(`(?i)\btomorrow\b`), resolve: resolveTomorrow, relative: true},
		},
		locationRules: []*regexp.Regexp{
			// venue name ending in a venue word: "at Grand Music Hall"
			regexp.MustCompile(`(?:[Aa]t|@)\s+([A-Z][a-zA-Z\s&]+(?:Theatre|Theater|Hall|Venue|Club|Bar|Lounge|Cafe|Café|Pub|Arena|Stadium))`),
			// any capitalized phrase after at/@: "at The Blue Note"
			regexp.MustCompile(`(?:[Aa]t|@)\s+([A-Z][a-zA-Z\s&]{3,30})`),
			// venue account mention: "@bluenotenyc"
			regexp.MustCompile(`@([a-zA-Z0-9_]+)`),
		},
		timeRules: []*regexp.Regexp{
			regexp.MustCompile(`(?i)\b\d{1,2}:\d{2}\s*(?:am|pm)\b`),
			regexp.MustCompile(`\b\d{1,2}:\d{2}\b`),
			regexp.MustCompile(`(?i)\b(?:doors|show|starts?)\s+(?:at|@)?\s*\d{1,2}(?::\d{2})?\s*(?:am|pm)?\b`),
		},
	}
}

// IsShowPost reports whether text looks like a show announcement. Two
// distinct keywords classify outright; otherwise a date pattern together
// with an event term is required.
func (p *Parser) IsShowPost(text string) bool {
	if text == "" {
		return false
	}
	lower := strings.ToLower(text)

	hits := 0
	for _, kw := range showKeywords {
		if strings.Contains(lower, kw) {
			hits++
		}
	}
	if hits >= 2 {
		return true
	}

	if !p.hasDatePattern(text) {
		return false
	}
	for _, term := range eventTerms {
		if strings.Contains(lower, term) {
			return true
		}
	}
	return false
}

// Parse classifies text and, when it looks like a show, extracts the show
// fields using ref to resolve partial dates.
func (p *Parser) Parse(text string, ref time.Time) Result {
	if !p.IsShowPost(text) {
		return Result{}
	}
	res := p.Extract(text, ref)
	res.IsShow = true
	return res
}

// Extract pulls show fields without classifying. Text recovered from images
// goes through here directly; the classifier only ever judges captions.
func (p *Parser) Extract(text string, ref time.Time) Result {
	var res Result
	res.Date, _ = p.ExtractDate(text, ref)
	res.Location = p.ExtractLocation(text)
	res.Time = p.ExtractTime(text)
	return res
}

// ExtractDate finds the first date mention that resolves to a date no more
// than pastTolerance days before ref. Candidates that fail to resolve or
// fall outside the window are skipped in favor of later matches.
func (p *Parser) ExtractDate(text string, ref time.Time) (time.Time, bool) {
	if text == "" {
		return time.Time{}, false
	}
	earliest := midnight(ref).AddDate(0, 0, -pastTolerance)
	for _, rule := range p.dateRules {
		for _, m := range rule.re.FindAllStringSubmatch(text, -1) {
			cand, ok := rule.resolve(m, ref)
			if !ok {
				continue
			}
			if !rule.relative && cand.Before(earliest) {
				continue
			}
			return cand, true
		}
	}
	return time.Time{}, false
}

// ExtractLocation finds the first venue-looking phrase of plausible length.
func (p *Parser) ExtractLocation(text string) string {
	if text == "" {
		return ""
	}
	for _, re := range p.locationRules {
		for _, m := range re.FindAllStringSubmatch(text, -1) {
			loc := strings.TrimSpace(m[1])
			if len(loc) > 2 && len(loc) < 100 {
				return loc
			}
		}
	}
	return ""
}

// ExtractTime returns the first time-of-day mention verbatim, trimmed but
// not normalized.
func (p *Parser) ExtractTime(text string) string {
	if text == "" {
		return ""
	}
	for _, re := range p.timeRules {
		if m := re.FindString(text); m != "" {
			return strings.TrimSpace(m)
		}
	}
	return ""
}

func (p *Parser) hasDatePattern(text string) bool {
	for _, rule := range p.dateRules {
		if rule.re.MatchString(text) {
			return true
		}
	}
	return false
}

func resolveMonthDay(m []string, ref time.Time) (time.Time, bool) {
	month, ok := monthByName(m[1])
	if !ok {
		return time.Time{}, false
	}
	day, _ := strconv.Atoi(m[2])
	year := ref.Year()
	if m[3] != "" {
		year, _ = strconv.Atoi(m[3])
	}
	return makeDate(year, month, day, ref)
}

func resolveDayMonth(m []string, ref time.Time) (time.Time, bool) {
	month, ok := monthByName(m[2])
	if !ok {
		return time.Time{}, false
	}
	day, _ := strconv.Atoi(m[1])
	return makeDate(ref.Year(), month, day, ref)
}

// resolveNumeric reads D/D or D/D/Y with the month first, swapping month
// and day when the first number cannot be a month. Both numbers above 12
// means the match is not a date.
func resolveNumeric(m []string, ref time.Time) (time.Time, bool) {
	month, _ := strconv.Atoi(m[1])
	day, _ := strconv.Atoi(m[2])
	if month > 12 {
		month, day = day, month
	}
	if month < 1 || month > 12 {
		return time.Time{}, false
	}
	year := ref.Year()
	if m[3] != "" {
		y, _ := strconv.Atoi(m[3])
		year = expandYear(y)
	}
	return makeDate(year, time.Month(month), day, ref)
}

// resolveWeekdayDay takes the day number in the reference month. The
// weekday name is not checked against the resulting date.
func resolveWeekdayDay(m []string, ref time.Time) (time.Time, bool) {
	day, _ := strconv.Atoi(m[1])
	return makeDate(ref.Year(), ref.Month(), day, ref)
}

// resolveNextWeekday finds the named weekday on or after the reference
// date.
func resolveNextWeekday(m []string, ref time.Time) (time.Time, bool) {
	wd, ok := weekdayByName(m[1])
	if !ok {
		return time.Time{}, false
	}
	base := midnight(ref)
	ahead := (int(wd) - int(base.Weekday()) + 7) % 7
	return base.AddDate(0, 0, ahead), true
}

// Relative words resolve to 20:00 on the day in question.

func resolveTonight(_ []string, ref time.Time) (time.Time, bool) {
	return evening(ref), true
}

func resolveTomorrow(_ []string, ref time.Time) (time.Time, bool) {
	return evening(ref.AddDate(0, 0, 1)), true
}

var monthsByStem = map[string]time.Month{
	"jan": time.January, "feb": time.February, "mar": time.March,
	"apr": time.April, "may": time.May, "jun": time.June,
	"jul": time.July, "aug": time.August, "sep": time.September,
	"oct": time.October, "nov": time.November, "dec": time.December,
}

var weekdaysByStem = map[string]time.Weekday{
	"mon": time.Monday, "tue": time.Tuesday, "wed": time.Wednesday,
	"thu": time.Thursday, "fri": time.Friday, "sat": time.Saturday,
	"sun": time.Sunday,
}

func monthByName(name string) (time.Month, bool) {
	m, ok := monthsByStem[stem(name)]
	return m, ok
}

func weekdayByName(name string) (time.Weekday, bool) {
	wd, ok := weekdaysByStem[stem(name)]
	return wd, ok
}

// stem reduces a month or weekday name to its three-letter form.
func stem(name string) string {
	s := strings.ToLower(name)
	if len(s) > 3 {
		s = s[:3]
	}
	return s
}

func makeDate(year int, month time.Month, day int, ref time.Time) (time.Time, bool) {
	if day < 1 || day > daysIn(month, year) {
		return time.Time{}, false
	}
	return time.Date(year, month, day, 0, 0, 0, 0, ref.Location()), true
}

func daysIn(month time.Month, year int) int {
	// day zero of the next month is the last day of this one
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

// expandYear maps two-digit years into the 2000s, or the 1900s from 50 up.
func expandYear(y int) int {
	switch {
	case y < 50:
		return y + 2000
	case y < 100:
		return y + 1900
	}
	return y
}

func midnight(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

func evening(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 20, 0, 0, 0, t.Location())
}
