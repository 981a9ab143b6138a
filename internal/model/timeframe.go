package model

import (
	"strconv"

	"github.com/yanun0323/errors"
)

// ErrUnsupportedTimeframe reports a timeframe string the aggregation layer
// does not recognize. It fails fast at configuration time.
var ErrUnsupportedTimeframe = errors.New("unsupported timeframe")

const (
	msPerSecond int64 = 1000
	msPerMinute       = 60 * msPerSecond
	msPerHour         = 60 * msPerMinute
	msPerDay          = 24 * msPerHour
	msPerWeek         = 7 * msPerDay
)

// TimeframeMs returns the bucket duration in milliseconds for timeframe
// strings like "1m", "5m", "1h", "8h", "1d", "1w".
func TimeframeMs(timeframe string) (int64, error) {
	if len(timeframe) < 2 {
		return 0, errors.Wrapf(ErrUnsupportedTimeframe, "%q", timeframe)
	}

	n, err := strconv.Atoi(timeframe[:len(timeframe)-1])
	if err != nil || n <= 0 {
		return 0, errors.Wrapf(ErrUnsupportedTimeframe, "%q", timeframe)
	}

	var unit int64
	switch timeframe[len(timeframe)-1] {
	case 's':
		unit = msPerSecond
	case 'm':
		unit = msPerMinute
	case 'h':
		unit = msPerHour
	case 'd':
		unit = msPerDay
	case 'w':
		unit = msPerWeek
	default:
		return 0, errors.Wrapf(ErrUnsupportedTimeframe, "%q", timeframe)
	}

	return int64(n) * unit, nil
}

// AlignMs floors a timestamp down to its bucket boundary.
func AlignMs(timestampMs, bucketMs int64) int64 {
	if bucketMs <= 0 {
		return timestampMs
	}
	return timestampMs / bucketMs * bucketMs
}
