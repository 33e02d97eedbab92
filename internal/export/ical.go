package export

import (
	"errors"
	"fmt"
	"io"
	"net/url"
	"time"

	"github.com/emersion/go-ical"

	"emergency-dispatch/internal/models"
)

const productID = "-//emergency-dispatch//feed//JA"

// ErrNoEvents is returned by WriteCalendar when there is nothing to export.
// An iCalendar object must contain at least one component.
var ErrNoEvents = errors.New("no events to export")

// WriteCalendar writes events as an iCalendar object with one VEVENT per
// event. Apart from DTSTAMP, which is set to stamp, the output depends
// only on events.
func WriteCalendar(w io.Writer, events []models.Event, stamp time.Time) error {
	if len(events) == 0 {
		return ErrNoEvents
	}
	cal := ical.NewCalendar()
	cal.Props.SetText(ical.PropVersion, "2.0")
	cal.Props.SetText(ical.PropProductID, productID)
	for i := range events {
		cal.Children = append(cal.Children, toICal(&events[i], stamp))
	}
	if err := ical.NewEncoder(w).Encode(cal); err != nil {
		return fmt.Errorf("failed to encode events to iCal format: %w", err)
	}
	return nil
}

// toICal converts a resolved event to a VEVENT component.
func toICal(event *models.Event, stamp time.Time) *ical.Component {
	ve := ical.NewComponent(ical.CompEvent)
	ve.Props.SetText(ical.PropUID, event.GUID)
	ve.Props.SetText(ical.PropSummary, event.Title)
	ve.Props.SetDateTime(ical.PropDateTimeStamp, stamp.UTC())
	ve.Props.SetDateTime(ical.PropDateTimeStart, event.OccurredAt.UTC())

	if event.Address != "" {
		ve.Props.SetText(ical.PropLocation, event.Address)
		ve.Props.SetText(ical.PropDescription, event.Address)
	}
	if u, err := url.Parse(event.Link); err == nil && event.Link != "" {
		ve.Props.SetURI(ical.PropURL, u)
	}
	return ve
}
