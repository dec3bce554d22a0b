package schedule

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mkItem(day time.Time, startH, startM, endH, endM int, activity string, status Status) Item {
	return Item{
		StartTime: AtClock(day, startH, startM),
		EndTime:   AtClock(day, endH, endM),
		Activity:  activity,
		Status:    status,
	}
}

func TestItemValidate(t *testing.T) {
	day := tokyoDay(t)

	valid := mkItem(day, 9, 0, 10, 0, "Work", StatusWorking)
	require.NoError(t, valid.Validate())

	inverted := mkItem(day, 10, 0, 9, 0, "Work", StatusWorking)
	assert.Error(t, inverted.Validate())

	zeroLength := mkItem(day, 9, 0, 9, 0, "Work", StatusWorking)
	assert.Error(t, zeroLength.Validate())

	noActivity := mkItem(day, 9, 0, 10, 0, "", StatusWorking)
	assert.Error(t, noActivity.Validate())

	badStatus := mkItem(day, 9, 0, 10, 0, "Work", Status("bogus"))
	assert.Error(t, badStatus.Validate())
}

func TestItemContainsAndExpired(t *testing.T) {
	day := tokyoDay(t)
	item := mkItem(day, 9, 0, 10, 0, "Work", StatusWorking)

	assert.True(t, item.Contains(AtClock(day, 9, 0)))
	assert.True(t, item.Contains(AtClock(day, 9, 59)))
	assert.False(t, item.Contains(AtClock(day, 10, 0)), "interval is half-open")
	assert.False(t, item.Contains(AtClock(day, 8, 59)))

	assert.False(t, item.Expired(AtClock(day, 9, 59)))
	assert.True(t, item.Expired(AtClock(day, 10, 0)))

	assert.Equal(t, 30*time.Minute, item.Remaining(AtClock(day, 9, 30)))
	assert.Equal(t, time.Duration(0), item.Remaining(AtClock(day, 11, 0)))
}

func fullDay(t *testing.T, day time.Time) DaySchedule {
	t.Helper()
	return DaySchedule{
		AgentID: "mio",
		Date:    AtClock(day, 0, 0),
		Items: []Item{
			mkItem(day, 0, 0, 8, 0, "Sleeping", StatusSleeping),
			mkItem(day, 8, 0, 9, 0, "Breakfast", StatusEating),
			mkItem(day, 9, 0, 22, 0, "Work", StatusWorking),
			{
				StartTime: AtClock(day, 22, 0),
				EndTime:   MidnightAfter(day),
				Activity:  "Sleeping",
				Status:    StatusSleeping,
			},
		},
	}
}

func TestDayScheduleValidate(t *testing.T) {
	day := tokyoDay(t)
	require.NoError(t, fullDay(t, day).Validate())

	// Contiguity: consecutive items must share their boundary.
	gapped := fullDay(t, day)
	gapped.Items[1].EndTime = AtClock(day, 8, 45)
	assert.Error(t, gapped.Validate())

	// First and last items must be sleeping blocks.
	noLeadingSleep := fullDay(t, day)
	noLeadingSleep.Items[0].Status = StatusAvailable
	assert.Error(t, noLeadingSleep.Validate())

	empty := DaySchedule{AgentID: "mio"}
	assert.Error(t, empty.Validate())
}

func TestDayScheduleContiguityInvariant(t *testing.T) {
	day := tokyoDay(t)
	plan := fullDay(t, day)

	for i := 1; i < len(plan.Items); i++ {
		assert.True(t, plan.Items[i-1].EndTime.Equal(plan.Items[i].StartTime),
			"item %d must start when item %d ends", i, i-1)
	}
	assert.Equal(t, StatusSleeping, plan.Items[0].Status)
	assert.Equal(t, StatusSleeping, plan.Items[len(plan.Items)-1].Status)
	assert.True(t, plan.Items[0].StartTime.Equal(AtClock(day, 0, 0)))
	assert.True(t, plan.Items[len(plan.Items)-1].EndTime.Equal(MidnightAfter(day)))
}

func TestDayScheduleLookup(t *testing.T) {
	day := tokyoDay(t)
	plan := fullDay(t, day)

	item, ok := plan.ItemAt(AtClock(day, 8, 30))
	require.True(t, ok)
	assert.Equal(t, "Breakfast", item.Activity)

	_, ok = plan.ItemAt(MidnightAfter(day).Add(time.Hour))
	assert.False(t, ok)

	next, ok := plan.ItemAfter(plan.Items[1])
	require.True(t, ok)
	assert.Equal(t, "Work", next.Activity)

	_, ok = plan.ItemAfter(plan.Items[len(plan.Items)-1])
	assert.False(t, ok)
}
