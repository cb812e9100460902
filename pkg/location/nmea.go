package location

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/adrianmo/go-nmea"
)

// TagSeparator splits the collar id from the relayed sentence.
const TagSeparator = "|"

var (
	// ErrUntagged is returned for lines without a device id prefix.
	ErrUntagged = errors.New("sentence is not tagged with a device id")
	// ErrNoFix is returned for sentences that carry no usable position.
	ErrNoFix = errors.New("sentence carries no valid fix")
)

// ParseTaggedSentence parses a gateway line of the form
// "<device_id>|$GPRMC,...". Only RMC sentences with an active fix and a full
// date and time are accepted.
func ParseTaggedSentence(line string) (Fix, error) {
	line = strings.TrimSpace(line)
	deviceID, raw, ok := strings.Cut(line, TagSeparator)
	deviceID = strings.TrimSpace(deviceID)
	if !ok || deviceID == "" {
		return Fix{}, ErrUntagged
	}

	sentence, err := nmea.Parse(strings.TrimSpace(raw))
	if err != nil {
		return Fix{}, fmt.Errorf("failed to parse sentence for %s: %w", deviceID, err)
	}

	rmc, ok := sentence.(nmea.RMC)
	if !ok {
		return Fix{}, fmt.Errorf("%w: %s sentence", ErrNoFix, sentence.DataType())
	}
	if rmc.Validity != nmea.ValidRMC || !rmc.Date.Valid || !rmc.Time.Valid {
		return Fix{}, ErrNoFix
	}

	return Fix{
		DeviceID:  deviceID,
		Latitude:  rmc.Latitude,
		Longitude: rmc.Longitude,
		Timestamp: fixTime(rmc.Date, rmc.Time),
	}, nil
}

// fixTime combines the RMC date and time. Two-digit years pivot at 1970.
func fixTime(d nmea.Date, t nmea.Time) time.Time {
	year := 2000 + d.YY
	if d.YY >= 70 {
		year = 1900 + d.YY
	}
	return time.Date(year, time.Month(d.MM), d.DD,
		t.Hour, t.Minute, t.Second, t.Millisecond*int(time.Millisecond), time.UTC)
}

// ScanFixes reads lines from r until EOF. Lines that do not yield a fix are
// counted in skipped; only read errors are returned.
func ScanFixes(r io.Reader) (fixes []Fix, skipped int, err error) {
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := scanner.Text()
		if strings.TrimSpace(line) == "" {
			continue
		}
		fix, err := ParseTaggedSentence(line)
		if err != nil {
			skipped++
			continue
		}
		fixes = append(fixes, fix)
	}
	return fixes, skipped, scanner.Err()
}
