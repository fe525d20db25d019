// Package feed renders found shows as an iCalendar document, so the scan
// results can be subscribed to from a calendar app.
package feed

import (
	"fmt"
	"hash/fnv"
	"strings"
	"time"

	ics "github.com/arran4/golang-ical"

	"showfinder/shows"
)

// Builder turns show lists into iCalendar documents.
type Builder struct {
	name string
}

// NewBuilder creates a feed builder. name becomes the calendar display
// name.
func NewBuilder(name string) *Builder {
	return &Builder{name: name}
}

// Calendar renders the shows as an all-day-event calendar. Shows without
// a resolved date are left out, since an event needs a day to land on.
func (b *Builder) Calendar(list []shows.Show) string {
	cal := ics.NewCalendar()
	cal.SetMethod(ics.MethodPublish)
	cal.SetProductId("-//showfinder//feed//EN")
	cal.SetName(b.name)
	cal.SetXWRCalName(b.name)

	now := time.Now()
	for _, s := range list {
		day, err := time.Parse(shows.DateLayout, s.Date)
		if err != nil {
			continue
		}

		event := cal.AddEvent(eventUID(s))
		event.SetDtStampTime(now)
		event.SetAllDayStartAt(day)
		event.SetAllDayEndAt(day.AddDate(0, 0, 1))
		event.SetSummary(summary(s))
		if s.Location != shows.Unknown {
			event.SetLocation(flatten(s.Location))
		}
		event.SetDescription(description(s))
		if s.PostURL != "" {
			event.SetURL(s.PostURL)
		}
	}

	return cal.Serialize()
}

// eventUID is stable across scans so calendar apps update events in place
// instead of duplicating them.
func eventUID(s shows.Show) string {
	h := fnv.New64a()
	h.Write([]byte(s.PostURL))
	h.Write([]byte(s.Date))
	return fmt.Sprintf("%x@showfinder", h.Sum64())
}

func summary(s shows.Show) string {
	if s.Location == shows.Unknown {
		return s.DisplayName
	}
	return s.DisplayName + " @ " + flatten(s.Location)
}

func description(s shows.Show) string {
	parts := []string{"Posted by @" + s.Username}
	if s.Time != shows.Unknown {
		parts = append([]string{"Time: " + s.Time}, parts...)
	}
	if caption := flatten(s.Caption); caption != "" {
		parts = append(parts, caption)
	}
	return strings.Join(parts, " | ")
}

// flatten collapses whitespace runs so multi-line captions fit a single
// text property value.
func flatten(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
