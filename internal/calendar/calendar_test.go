package calendar

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/angelmondragon/bakehouse-backend/pkg/db/models"
	"github.com/angelmondragon/bakehouse-backend/pkg/types"
)

var singapore = time.FixedZone("SGT", 8*3600)

type stubSettings struct {
	setting *models.Setting
	err     error
}

func (s stubSettings) Get(context.Context) (*models.Setting, error) {
	return s.setting, s.err
}

func baseSetting() *models.Setting {
	return &models.Setting{
		PreparationDays: 1,
		DeliveryDays:    7,
		BlackoutWeekday: models.NoBlackoutWeekday,
	}
}

func TestOpenDatesHorizon(t *testing.T) {
	// Wednesday 1 May 2024, 10:00 local.
	now := time.Date(2024, 5, 1, 10, 0, 0, 0, singapore)
	setting := baseSetting()
	setting.BlackoutWeekday = int(time.Monday)
	setting.BlackoutDates = []string{"2024-05-04"}
	setting.PeakDates = []string{"2024-05-03"}

	days := OpenDates(setting, now, singapore)
	if len(days) != 7 {
		t.Fatalf("expected 7 days, got %d", len(days))
	}
	if days[0].Date.String() != "2024-05-02" || days[6].Date.String() != "2024-05-08" {
		t.Fatalf("unexpected horizon %s..%s", days[0].Date, days[6].Date)
	}
	closed := map[string]bool{}
	for _, d := range days {
		if d.IsClosed {
			closed[d.Date.String()] = true
		}
	}
	if !closed["2024-05-04"] || !closed["2024-05-06"] || len(closed) != 2 {
		t.Fatalf("unexpected closed days %v", closed)
	}
	if !days[1].IsPeakDay {
		t.Fatalf("expected 2024-05-03 to be a peak day")
	}
}

func TestOpenDatesCutoffShiftsStart(t *testing.T) {
	setting := baseSetting()
	setting.DeliveryNextDayTime = "3:00 PM"

	before := OpenDates(setting, time.Date(2024, 5, 1, 14, 59, 0, 0, singapore), singapore)
	after := OpenDates(setting, time.Date(2024, 5, 1, 15, 1, 0, 0, singapore), singapore)

	if before[0].Date.String() != "2024-05-02" {
		t.Fatalf("before cutoff should start tomorrow, got %s", before[0].Date)
	}
	if after[0].Date.String() != "2024-05-03" {
		t.Fatalf("after cutoff should start in two days, got %s", after[0].Date)
	}
	if len(after) != len(before)-1 {
		t.Fatalf("horizon end should not move: %d vs %d", len(after), len(before))
	}
}

func TestOpenDatesUsesBakeryTimezone(t *testing.T) {
	// 17:00 UTC on 1 May is already 2 May in Singapore.
	now := time.Date(2024, 5, 1, 17, 0, 0, 0, time.UTC)
	days := OpenDates(baseSetting(), now, singapore)
	if days[0].Date.String() != "2024-05-03" {
		t.Fatalf("expected horizon to start 2024-05-03, got %s", days[0].Date)
	}
}

func mkDays(closed ...bool) []Day {
	start := types.MustParseDate("2024-05-03")
	days := make([]Day, len(closed))
	for i, c := range closed {
		days[i] = Day{Date: start.AddDays(i), IsClosed: c}
	}
	return days
}

func firstOpen(days []Day) int {
	for i, d := range days {
		if !d.IsClosed {
			return i
		}
	}
	return -1
}

func TestApplyPreparationLeadTime(t *testing.T) {
	cases := []struct {
		name     string
		days     []Day
		prep     int
		earliest int
	}{
		{"skips closed first day", mkDays(true, false, false, true), 2, 2},
		{"lead time consumes open days only", mkDays(true, true, false, true, false), 2, 4},
		{"first day open", mkDays(false, true, false, true, false), 2, 2},
		{"prep of one closes nothing", mkDays(false, false), 1, 0},
		{"runs out of days", mkDays(false, true), 5, -1},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := ApplyPreparationLeadTime(tc.days, tc.prep)
			if idx := firstOpen(got); idx != tc.earliest {
				t.Fatalf("expected earliest %d, got %d", tc.earliest, idx)
			}
			closedBefore, closedAfter := 0, 0
			for i := range got {
				if tc.days[i].IsClosed {
					closedBefore++
					if !got[i].IsClosed {
						t.Fatalf("already-closed day %d was reopened", i)
					}
				}
				if got[i].IsClosed {
					closedAfter++
				}
			}
			openBefore := len(tc.days) - closedBefore
			want := tc.prep - 1
			if want > openBefore {
				want = openBefore
			}
			if closedAfter-closedBefore != want {
				t.Fatalf("expected %d newly closed, got %d", want, closedAfter-closedBefore)
			}
			again := ApplyPreparationLeadTime(got, tc.prep)
			for i := range again {
				if again[i].IsClosed != got[i].IsClosed {
					t.Fatalf("re-application changed day %d", i)
				}
			}
		})
	}
}

func TestDeliverableDatesNeverValidWhenClosed(t *testing.T) {
	setting := baseSetting()
	setting.PreparationDays = 2
	setting.BlackoutDates = []string{"2024-05-04"}
	clock := Clock{Now: func() time.Time { return time.Date(2024, 5, 1, 9, 0, 0, 0, singapore) }, Location: singapore}
	svc, err := NewService(stubSettings{setting: setting}, clock)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}

	checked := 0
	out, err := svc.DeliverableDates(context.Background(), func(context.Context, types.Date) (bool, error) {
		checked++
		return true, nil
	})
	if err != nil {
		t.Fatalf("deliverable dates: %v", err)
	}
	open := 0
	for _, d := range out {
		if d.IsClosed && d.Valid {
			t.Fatalf("closed day %s marked valid", d.Date)
		}
		if !d.IsClosed {
			open++
		}
	}
	if checked != open {
		t.Fatalf("feasibility should run once per open day: %d vs %d", checked, open)
	}
	if out[0].Date.String() != "2024-05-02" || !out[0].IsClosed {
		t.Fatalf("first day should be consumed by lead time: %+v", out[0])
	}

	ok, err := svc.IsDeliverable(context.Background(), types.MustParseDate("2024-05-04"), nil)
	if err != nil || ok {
		t.Fatalf("blackout date should not be deliverable (ok=%v err=%v)", ok, err)
	}
	ok, err = svc.IsDeliverable(context.Background(), types.MustParseDate("2024-05-03"), nil)
	if err != nil || !ok {
		t.Fatalf("2024-05-03 should be deliverable (ok=%v err=%v)", ok, err)
	}
}

func TestDeliverableDatesPropagatesErrors(t *testing.T) {
	boom := errors.New("db down")
	svc, _ := NewService(stubSettings{err: boom}, NewClock(singapore))
	if _, err := svc.DeliverableDates(context.Background(), nil); !errors.Is(err, boom) {
		t.Fatalf("expected settings error, got %v", err)
	}
}

func TestParseCutoff(t *testing.T) {
	for input, want := range map[string]time.Duration{
		"3:00 PM":  15 * time.Hour,
		"03:30 pm": 15*time.Hour + 30*time.Minute,
		"09:15":    9*time.Hour + 15*time.Minute,
	} {
		got, err := ParseCutoff(input)
		if err != nil || got != want {
			t.Fatalf("ParseCutoff(%q) = %s, %v", input, got, err)
		}
	}
	if _, err := ParseCutoff("teatime"); err == nil {
		t.Fatalf("expected error")
	}
}
