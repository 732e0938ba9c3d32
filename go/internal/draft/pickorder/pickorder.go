// Package pickorder maps draft slots to the team on the clock.
//
// The functions hold no state and are shared by the coordinator and by clients,
// so an optimistic client view agrees with the authoritative one when no race occurred.
// Invalid arguments are programming errors and panic.
package pickorder

import (
	"fmt"

	"github.com/mcdev12/draftroom/go/internal/models"
)

// Slot describes one position in the draft.
type Slot struct {
	Overall int `json:"overall_pick"`
	Round   int `json:"round"`
	Pick    int `json:"pick"`
	TeamID  int `json:"team_id"`
}

// PickerForOverallPick returns the 1-based team index on the clock for an overall pick.
func PickerForOverallPick(overall, teamCount int, format models.DraftFormat) int {
	mustPositive("overall", overall)
	mustPositive("teamCount", teamCount)

	round, pick := RoundPickForOverall(overall, teamCount)
	return pickerForRoundPick(round, pick, teamCount, format)
}

// OverallPickForRoundPick returns the overall pick number for a round and pick within it.
// The format does not change the numbering; it is accepted so callers can validate it once.
func OverallPickForRoundPick(round, pickInRound, teamCount int, format models.DraftFormat) int {
	mustPositive("round", round)
	mustPositive("pickInRound", pickInRound)
	mustPositive("teamCount", teamCount)
	mustFormat(format)
	if pickInRound > teamCount {
		panic(fmt.Sprintf("pickorder: pickInRound %d exceeds teamCount %d", pickInRound, teamCount))
	}

	return (round-1)*teamCount + pickInRound
}

// RoundPickForOverall splits an overall pick number into its round and pick within the round.
func RoundPickForOverall(overall, teamCount int) (round, pickInRound int) {
	mustPositive("overall", overall)
	mustPositive("teamCount", teamCount)

	round = (overall-1)/teamCount + 1
	pickInRound = (overall-1)%teamCount + 1
	return round, pickInRound
}

// SlotFor resolves every coordinate of an overall pick.
func SlotFor(overall, teamCount int, format models.DraftFormat) Slot {
	round, pick := RoundPickForOverall(overall, teamCount)
	return Slot{
		Overall: overall,
		Round:   round,
		Pick:    pick,
		TeamID:  pickerForRoundPick(round, pick, teamCount, format),
	}
}

// TotalPicks is the number of slots in a draft of the given size.
func TotalPicks(teamCount, rounds int) int {
	mustPositive("teamCount", teamCount)
	mustPositive("rounds", rounds)
	return teamCount * rounds
}

// Order lists every slot of a draft in overall order.
func Order(teamCount, rounds int, format models.DraftFormat) []Slot {
	total := TotalPicks(teamCount, rounds)
	slots := make([]Slot, 0, total)
	for overall := 1; overall <= total; overall++ {
		slots = append(slots, SlotFor(overall, teamCount, format))
	}
	return slots
}

func pickerForRoundPick(round, pick, teamCount int, format models.DraftFormat) int {
	switch format {
	case models.DraftFormatLinear:
		return pick
	case models.DraftFormatSnake:
		// Even rounds run in reverse
		if round%2 == 0 {
			return teamCount - pick + 1
		}
		return pick
	default:
		panic(fmt.Sprintf("pickorder: unsupported draft format %q", format))
	}
}

func mustPositive(name string, v int) {
	if v < 1 {
		panic(fmt.Sprintf("pickorder: %s must be >= 1, got %d", name, v))
	}
}

func mustFormat(format models.DraftFormat) {
	if !format.Valid() {
		panic(fmt.Sprintf("pickorder: unsupported draft format %q", format))
	}
}
