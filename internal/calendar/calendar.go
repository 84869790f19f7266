package calendar

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/angelmondragon/bakehouse-backend/pkg/db/models"
	"github.com/angelmondragon/bakehouse-backend/pkg/types"
)

// Clock is the explicit source of "now" and of the bakery's timezone.
type Clock struct {
	Now      func() time.Time
	Location *time.Location
}

// NewClock returns a wall clock in loc.
func NewClock(loc *time.Location) Clock {
	return Clock{Now: time.Now, Location: loc}
}

func (c Clock) location() *time.Location {
	if c.Location == nil {
		return time.UTC
	}
	return c.Location
}

// LocalNow is the current instant expressed in the bakery's timezone.
func (c Clock) LocalNow() time.Time {
	now := time.Now
	if c.Now != nil {
		now = c.Now
	}
	return now().In(c.location())
}

// Today is the bakery's current calendar date.
func (c Clock) Today() types.Date {
	return types.DateOf(c.LocalNow(), c.location())
}

// Day is one date of the delivery horizon.
type Day struct {
	Date      types.Date `json:"date"`
	IsClosed  bool       `json:"isClosed"`
	IsPeakDay bool       `json:"isPeakDay"`
	LeadTime  bool       `json:"-"`
}

// Deliverable is a horizon day annotated with stock feasibility.
type Deliverable struct {
	Date      types.Date `json:"date"`
	Valid     bool       `json:"valid"`
	IsClosed  bool       `json:"isClosed"`
	IsPeakDay bool       `json:"isPeakDay"`
}

var cutoffLayouts = []string{"3:04 PM", "03:04 PM", "3:04PM", "15:04"}

// ParseCutoff reads the next-day cutoff ("3:00 PM" or "15:00") as an offset from midnight.
func ParseCutoff(value string) (time.Duration, error) {
	value = strings.ToUpper(strings.TrimSpace(value))
	for _, layout := range cutoffLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return time.Duration(t.Hour())*time.Hour + time.Duration(t.Minute())*time.Minute, nil
		}
	}
	return 0, fmt.Errorf("unrecognised time %q", value)
}

// OpenDates lists the horizon from tomorrow through today+DeliveryDays. Past the
// cutoff the horizon starts one day later. Blackout weekdays and dates are closed.
func OpenDates(setting *models.Setting, now time.Time, loc *time.Location) []Day {
	if setting == nil || setting.DeliveryDays <= 0 {
		return nil
	}
	if loc == nil {
		loc = time.UTC
	}
	local := now.In(loc)
	today := types.DateOf(local, loc)

	start := 1
	if strings.TrimSpace(setting.DeliveryNextDayTime) != "" {
		if offset, err := ParseCutoff(setting.DeliveryNextDayTime); err == nil {
			midnight := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc)
			if local.After(midnight.Add(offset)) {
				start++
			}
		}
	}

	blackout := toSet(setting.BlackoutDates)
	peak := toSet(setting.PeakDates)

	days := make([]Day, 0, setting.DeliveryDays)
	for i := start; i <= setting.DeliveryDays; i++ {
		d := today.AddDays(i)
		key := d.String()
		_, isBlackout := blackout[key]
		_, isPeak := peak[key]
		days = append(days, Day{
			Date:      d,
			IsClosed:  isBlackout || int(d.Weekday()) == setting.BlackoutWeekday,
			IsPeakDay: isPeak,
		})
	}
	return days
}

// ApplyPreparationLeadTime closes the first prepDays-1 open days. Days it closed are
// tagged, so applying it again leaves the partition unchanged.
func ApplyPreparationLeadTime(days []Day, prepDays int) []Day {
	out := make([]Day, len(days))
	copy(out, days)
	consumed := 0
	for i := 0; i < len(out) && consumed < prepDays-1; i++ {
		switch {
		case out[i].LeadTime:
			consumed++
		case !out[i].IsClosed:
			out[i].IsClosed = true
			out[i].LeadTime = true
			consumed++
		}
	}
	return out
}

func toSet(values []string) map[string]struct{} {
	set := make(map[string]struct{}, len(values))
	for _, v := range values {
		if d, err := types.ParseDate(v); err == nil {
			set[d.String()] = struct{}{}
		}
	}
	return set
}

// SettingsProvider is the read side of the settings singleton.
type SettingsProvider interface {
	Get(ctx context.Context) (*models.Setting, error)
}

// FeasibleFunc decides whether a cart can be fulfilled on date.
type FeasibleFunc func(ctx context.Context, date types.Date) (bool, error)

// Service answers calendar questions against the current settings.
type Service struct {
	settings SettingsProvider
	clock    Clock
}

func NewService(settings SettingsProvider, clock Clock) (*Service, error) {
	if settings == nil {
		return nil, errors.New("settings provider required")
	}
	return &Service{settings: settings, clock: clock}, nil
}

func (s *Service) Clock() Clock {
	return s.clock
}

// Days returns the horizon with blackout and lead-time closures applied.
func (s *Service) Days(ctx context.Context) ([]Day, error) {
	setting, err := s.settings.Get(ctx)
	if err != nil {
		return nil, err
	}
	days := OpenDates(setting, s.clock.LocalNow(), s.clock.location())
	return ApplyPreparationLeadTime(days, setting.PreparationDays), nil
}

// DeliverableDates checks feasible on every open day. Closed days are never valid.
func (s *Service) DeliverableDates(ctx context.Context, feasible FeasibleFunc) ([]Deliverable, error) {
	days, err := s.Days(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]Deliverable, 0, len(days))
	for _, day := range days {
		d := Deliverable{Date: day.Date, IsClosed: day.IsClosed, IsPeakDay: day.IsPeakDay}
		if !day.IsClosed && feasible != nil {
			ok, err := feasible(ctx, day.Date)
			if err != nil {
				return nil, err
			}
			d.Valid = ok
		}
		out = append(out, d)
	}
	return out, nil
}

// IsDeliverable reports whether date is a valid delivery date for the cart.
func (s *Service) IsDeliverable(ctx context.Context, date types.Date, feasible FeasibleFunc) (bool, error) {
	days, err := s.Days(ctx)
	if err != nil {
		return false, err
	}
	for _, day := range days {
		if !day.Date.Equal(date) {
			continue
		}
		if day.IsClosed {
			return false, nil
		}
		if feasible == nil {
			return true, nil
		}
		return feasible(ctx, date)
	}
	return false, nil
}

// IsPeakDay reports whether date is on the peak-day surcharge list.
func (s *Service) IsPeakDay(ctx context.Context, date types.Date) (bool, error) {
	setting, err := s.settings.Get(ctx)
	if err != nil {
		return false, err
	}
	_, ok := toSet(setting.PeakDates)[date.String()]
	return ok, nil
}
