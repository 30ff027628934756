package config

import (
	"fmt"
	"time"
)

// RangeMode selects how the fetch window is derived.
type RangeMode string

const (
	// ModeLast12Months covers the 365 days before now.
	ModeLast12Months RangeMode = "last-12-months"

	// ModeLast24Months covers the 730 days before now.
	ModeLast24Months RangeMode = "last-24-months"

	// ModeSince2019 covers everything from 2019-01-01 to now.
	ModeSince2019 RangeMode = "since-2019"

	// ModeCustom uses caller-supplied start and end dates.
	ModeCustom RangeMode = "custom"
)

// HistoricalStart is the fixed lower bound for ModeSince2019.
const HistoricalStart = "2019-01-01"

// dateLayout is the YYYY-MM-DD format the SODA filter expects.
const dateLayout = "2006-01-02"

// Range is the resolved fetch window handed to the pagination loop,
// decoupling range policy from the core algorithm.
type Range struct {
	Mode  RangeMode
	Start string
	End   string
}

// ParseMode maps menu choices ("1".."4") and mode names to a RangeMode.
func ParseMode(choice string) (RangeMode, error) {
	switch choice {
	case "1", string(ModeLast12Months):
		return ModeLast12Months, nil
	case "2", string(ModeLast24Months):
		return ModeLast24Months, nil
	case "3", string(ModeSince2019):
		return ModeSince2019, nil
	case "4", string(ModeCustom):
		return ModeCustom, nil
	default:
		return "", fmt.Errorf("unknown mode %q", choice)
	}
}

// ResolveRange produces the date window for mode at time now.
//
// Custom start/end values are passed through verbatim: the remote API is
// the authority on date syntax, and a malformed value surfaces as a 4xx
// there (an empty custom start is still rejected here, since the request
// would be meaningless). A custom range with an empty end defaults to
// today, matching the menu behavior.
func ResolveRange(mode RangeMode, start, end string, now time.Time) (Range, error) {
	today := now.Format(dateLayout)

	switch mode {
	case ModeLast12Months:
		return Range{Mode: mode, Start: now.AddDate(0, 0, -365).Format(dateLayout), End: today}, nil
	case ModeLast24Months:
		return Range{Mode: mode, Start: now.AddDate(0, 0, -730).Format(dateLayout), End: today}, nil
	case ModeSince2019:
		return Range{Mode: mode, Start: HistoricalStart, End: today}, nil
	case ModeCustom:
		if start == "" {
			return Range{}, fmt.Errorf("custom range requires a start date")
		}
		if end == "" {
			end = today
		}
		return Range{Mode: mode, Start: start, End: end}, nil
	default:
		return Range{}, fmt.Errorf("unknown range mode %q", mode)
	}
}
