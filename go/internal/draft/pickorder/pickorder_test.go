package pickorder

import (
	"math/rand"
	"testing"

	"github.com/mcdev12/draftroom/go/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPickerForOverallPick_SnakeProperty(t *testing.T) {
	rng := rand.New(rand.NewSource(42))

	for i := 0; i < 200; i++ {
		teamCount := 2 + rng.Intn(19) // 2..20
		rounds := 1 + rng.Intn(16)

		for overall := 1; overall <= teamCount*rounds; overall++ {
			r := (overall + teamCount - 1) / teamCount // ceil(overall / teamCount)
			p := overall - (r-1)*teamCount

			want := p
			if r%2 == 0 {
				want = teamCount - p + 1
			}

			got := PickerForOverallPick(overall, teamCount, models.DraftFormatSnake)
			if got != want {
				t.Fatalf("teams=%d overall=%d round=%d: got team %d, want %d", teamCount, overall, r, got, want)
			}
		}
	}
}

func TestPickerForOverallPick_SnakeRoundsAreMirrored(t *testing.T) {
	for teamCount := 2; teamCount <= 20; teamCount++ {
		for p := 1; p <= teamCount; p++ {
			odd := PickerForOverallPick(OverallPickForRoundPick(1, p, teamCount, models.DraftFormatSnake), teamCount, models.DraftFormatSnake)
			even := PickerForOverallPick(OverallPickForRoundPick(2, teamCount-p+1, teamCount, models.DraftFormatSnake), teamCount, models.DraftFormatSnake)
			assert.Equal(t, odd, even, "teams=%d pick=%d", teamCount, p)
		}
	}
}

func TestPickerForOverallPick_Linear(t *testing.T) {
	rng := rand.New(rand.NewSource(7))

	for i := 0; i < 100; i++ {
		teamCount := 1 + rng.Intn(20)
		rounds := 1 + rng.Intn(10)
		for overall := 1; overall <= teamCount*rounds; overall++ {
			want := ((overall - 1) % teamCount) + 1
			require.Equal(t, want, PickerForOverallPick(overall, teamCount, models.DraftFormatLinear))
		}
	}
}

func TestTwelveTeamSnakeWrap(t *testing.T) {
	assert.Equal(t, 1, PickerForOverallPick(1, 12, models.DraftFormatSnake))
	assert.Equal(t, 2, PickerForOverallPick(2, 12, models.DraftFormatSnake))
	assert.Equal(t, 12, PickerForOverallPick(12, 12, models.DraftFormatSnake))
	assert.Equal(t, 12, PickerForOverallPick(13, 12, models.DraftFormatSnake))
	assert.Equal(t, 1, PickerForOverallPick(24, 12, models.DraftFormatSnake))
	assert.Equal(t, 1, PickerForOverallPick(25, 12, models.DraftFormatSnake))

	slot := SlotFor(13, 12, models.DraftFormatSnake)
	assert.Equal(t, Slot{Overall: 13, Round: 2, Pick: 1, TeamID: 12}, slot)
}

func TestOverallPickForRoundPick_RoundTrip(t *testing.T) {
	for teamCount := 1; teamCount <= 14; teamCount++ {
		for overall := 1; overall <= teamCount*5; overall++ {
			round, pick := RoundPickForOverall(overall, teamCount)
			assert.Equal(t, overall, OverallPickForRoundPick(round, pick, teamCount, models.DraftFormatSnake))
		}
	}
}

func TestOrder(t *testing.T) {
	slots := Order(3, 2, models.DraftFormatSnake)
	require.Len(t, slots, 6)

	teams := make([]int, 0, len(slots))
	for _, s := range slots {
		teams = append(teams, s.TeamID)
	}
	assert.Equal(t, []int{1, 2, 3, 3, 2, 1}, teams)
}

func TestInvalidArgumentsPanic(t *testing.T) {
	assert.Panics(t, func() { PickerForOverallPick(0, 12, models.DraftFormatSnake) })
	assert.Panics(t, func() { PickerForOverallPick(1, 0, models.DraftFormatSnake) })
	assert.Panics(t, func() { PickerForOverallPick(1, 12, models.DraftFormat("AUCTION")) })
	assert.Panics(t, func() { OverallPickForRoundPick(1, 13, 12, models.DraftFormatLinear) })
	assert.Panics(t, func() { TotalPicks(12, 0) })
}
