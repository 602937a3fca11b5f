// Package calendar exports the meal slots of every profile as an iCalendar feed,
// so that calendar clients can raise the same reminders offline.
package calendar

import (
	"bytes"
	"fmt"
	"time"

	"github.com/emersion/go-ical"

	"github.com/starford/feedwise/internal/models"
	"github.com/starford/feedwise/internal/nutrition"
	"github.com/starford/feedwise/internal/reminder"
)

const (
	ProdID  = "-//Feedwise//Reminders//EN"
	Name    = "Feeding"
	Domain  = "feedwise"
	Refresh = time.Hour

	floatingLayout = "20060102T150405"
)

// stub is served when no profile has a meal time; the encoder rejects a
// calendar without components.
const stub = "BEGIN:VCALENDAR\r\nVERSION:2.0\r\nPRODID:" + ProdID + "\r\nEND:VCALENDAR\r\n"

// Build encodes one daily recurring event per meal slot. DTSTART is the next
// occurrence in floating local time, so the event keeps its wall-clock time
// across DST changes on the client.
func Build(profiles []models.Profile, now time.Time, render reminder.Renderer) ([]byte, error) {
	cal := ical.NewCalendar()
	cal.Props.SetText(ical.PropVersion, "2.0")
	cal.Props.SetText(ical.PropProductID, ProdID)
	cal.Props.SetText("X-WR-CALNAME", Name)
	cal.Props.SetText(ical.PropCalendarScale, "GREGORIAN")
	cal.Props.SetText(ical.PropMethod, "PUBLISH")

	refresh := ical.NewProp("REFRESH-INTERVAL")
	refresh.SetDuration(Refresh)
	cal.Props.Set(refresh)

	stamp := ical.NewProp(ical.PropDateTimeStamp)
	stamp.SetDateTime(now.UTC())

	for _, p := range profiles {
		rec, err := nutrition.Recommend(p)
		if err != nil {
			continue
		}
		title, body := render.Render(p, rec)
		for idx, mt := range rec.MealTimes {
			h, m, err := models.ParseClock(mt)
			if err != nil {
				continue
			}
			event := slotEvent(p.ID, idx, reminder.NextOccurrence(now, h, m), title, body)
			event.Props.Set(stamp)
			cal.Children = append(cal.Children, event.Component)
		}
	}

	if len(cal.Children) == 0 {
		return []byte(stub), nil
	}

	var buf bytes.Buffer
	if err := ical.NewEncoder(&buf).Encode(cal); err != nil {
		return nil, fmt.Errorf("calendar: encode: %w", err)
	}
	return buf.Bytes(), nil
}

// UID is the stable identifier of a meal slot event.
func UID(profileID int64, mealIndex int) string {
	return reminder.Tag(profileID, mealIndex) + "@" + Domain
}

func slotEvent(profileID int64, idx int, start time.Time, title, body string) *ical.Event {
	event := ical.NewEvent()
	event.Props.SetText(ical.PropUID, UID(profileID, idx))
	event.Props.SetText(ical.PropSummary, title)
	event.Props.SetText(ical.PropDescription, body)

	dtStart := ical.NewProp(ical.PropDateTimeStart)
	dtStart.Value = start.Format(floatingLayout)
	event.Props.Set(dtStart)

	dur := ical.NewProp(ical.PropDuration)
	dur.SetDuration(15 * time.Minute)
	event.Props.Set(dur)

	// Set raw values to avoid a VALUE=TEXT param.
	rrule := ical.NewProp(ical.PropRecurrenceRule)
	rrule.Value = "FREQ=DAILY"
	event.Props.Set(rrule)

	alarm := ical.NewComponent(ical.CompAlarm)
	alarm.Props.SetText(ical.PropAction, "DISPLAY")
	alarm.Props.SetText(ical.PropDescription, body)
	trigger := ical.NewProp(ical.PropTrigger)
	trigger.Value = "PT0M"
	alarm.Props.Set(trigger)
	event.Children = append(event.Children, alarm)

	return event
}
