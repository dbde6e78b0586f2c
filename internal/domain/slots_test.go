package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateSlots_DefaultDay(t *testing.T) {
	slots := GenerateSlots(SlotConfig{
		Open:        NewTimeOfDay(8, 0),
		Close:       NewTimeOfDay(23, 0),
		SlotMinutes: 90,
		StepMinutes: 30,
	})

	require.NotEmpty(t, slots)
	assert.Equal(t, Window{Start: NewTimeOfDay(8, 0), End: NewTimeOfDay(9, 30)}, slots[0])
	assert.Equal(t, Window{Start: NewTimeOfDay(8, 30), End: NewTimeOfDay(10, 0)}, slots[1])

	last := slots[len(slots)-1]
	assert.Equal(t, NewTimeOfDay(21, 30), last.Start)
	assert.Equal(t, NewTimeOfDay(23, 0), last.End)
	for _, s := range slots {
		assert.Less(t, s.Start, NewTimeOfDay(22, 0))
	}
	assert.Len(t, slots, 28)
}

func TestGenerateSlots_Properties(t *testing.T) {
	configs := []SlotConfig{
		{Open: NewTimeOfDay(8, 0), Close: NewTimeOfDay(23, 0), SlotMinutes: 90, StepMinutes: 30},
		{Open: NewTimeOfDay(0, 0), Close: NewTimeOfDay(24, 0), SlotMinutes: 60, StepMinutes: 60},
		{Open: NewTimeOfDay(9, 15), Close: NewTimeOfDay(12, 0), SlotMinutes: 45, StepMinutes: 20},
		{Open: NewTimeOfDay(10, 0), Close: NewTimeOfDay(11, 0), SlotMinutes: 60, StepMinutes: 5},
	}
	for _, cfg := range configs {
		t.Run(cfg.String(), func(t *testing.T) {
			slots := GenerateSlots(cfg)
			for i, s := range slots {
				assert.Equal(t, cfg.SlotMinutes, s.Minutes())
				assert.GreaterOrEqual(t, s.Start, cfg.Open)
				assert.LessOrEqual(t, s.End, cfg.Close)
				if i > 0 {
					assert.Equal(t, cfg.StepMinutes, int(s.Start-slots[i-1].Start))
				}
			}
			assert.Equal(t, slots, GenerateSlots(cfg), "generation is deterministic")
		})
	}
}

func TestGenerateSlots_Degenerate(t *testing.T) {
	short := SlotConfig{Open: NewTimeOfDay(10, 0), Close: NewTimeOfDay(11, 0), SlotMinutes: 90, StepMinutes: 30}
	assert.Empty(t, GenerateSlots(short))
	assert.NoError(t, short.Validate())

	zeroStep := SlotConfig{Open: NewTimeOfDay(8, 0), Close: NewTimeOfDay(23, 0), SlotMinutes: 90}
	assert.Empty(t, GenerateSlots(zeroStep))
	assert.ErrorIs(t, zeroStep.Validate(), ErrValidation)

	negative := SlotConfig{Open: NewTimeOfDay(8, 0), Close: NewTimeOfDay(23, 0), SlotMinutes: -30, StepMinutes: 30}
	assert.Empty(t, GenerateSlots(negative))
	assert.ErrorIs(t, negative.Validate(), ErrValidation)
}

func TestParseTimeOfDay(t *testing.T) {
	tod, err := ParseTimeOfDay("21:30")
	require.NoError(t, err)
	assert.Equal(t, NewTimeOfDay(21, 30), tod)
	assert.Equal(t, "21:30", tod.String())

	end, err := ParseTimeOfDay("24:00")
	require.NoError(t, err)
	assert.Equal(t, TimeOfDay(MinutesPerDay), end)

	for _, bad := range []string{"", "8:00", "24:01", "25:00", "12:60", "ab:cd", "-1:00", "+1:00", "+9:30", "1 :00", "08:+5"} {
		_, err := ParseTimeOfDay(bad)
		assert.Error(t, err, bad)
	}
}
