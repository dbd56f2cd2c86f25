package telemetry

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	nmea "github.com/adrianmo/go-nmea"
)

// Column names produced by ReadNMEA, matching the PX4 GPS topic
const (
	LatitudeColumn  = "latitude_deg"
	LongitudeColumn = "longitude_deg"
	AltitudeColumn  = "altitude_msl_m"
)

const microsPerDay = int64(24 * 60 * 60 * 1_000_000)

// NMEAStats reports what ReadNMEA consumed
type NMEAStats struct {
	Lines     int // Non-empty lines read
	Fixes     int // GGA sentences with a valid fix
	Skipped   int // Lines that failed to parse
	NoFix     int // GGA sentences without a fix
	Rollovers int // Number of UTC midnight crossings
}

// ReadNMEA decodes GGA sentences from an NMEA log into a table with latitude,
// longitude and MSL altitude columns. Timestamps are the UTC time of day in
// microseconds, continuing past midnight instead of wrapping. Sentences that
// fail to parse are skipped and counted.
func ReadNMEA(r io.Reader, topic string) (*Table, NMEAStats, error) {
	var stats NMEAStats

	t := &Table{
		Topic: topic,
		Columns: map[string][]float64{
			LatitudeColumn:  nil,
			LongitudeColumn: nil,
			AltitudeColumn:  nil,
		},
	}

	var dayOffset, last int64
	first := true

	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		stats.Lines++

		sentence, err := nmea.Parse(line)
		if err != nil {
			stats.Skipped++
			continue
		}
		if sentence.DataType() != nmea.TypeGGA {
			continue
		}

		gga := sentence.(nmea.GGA)
		if gga.FixQuality == nmea.Invalid || !gga.Time.Valid {
			stats.NoFix++
			continue
		}

		ts := timeOfDayMicros(gga.Time) + dayOffset
		if !first && ts < last {
			dayOffset += microsPerDay
			ts += microsPerDay
			stats.Rollovers++
		}
		first = false
		last = ts

		t.Timestamps = append(t.Timestamps, ts)
		t.Columns[LatitudeColumn] = append(t.Columns[LatitudeColumn], gga.Latitude)
		t.Columns[LongitudeColumn] = append(t.Columns[LongitudeColumn], gga.Longitude)
		t.Columns[AltitudeColumn] = append(t.Columns[AltitudeColumn], gga.Altitude)
		stats.Fixes++
	}
	if err := scanner.Err(); err != nil {
		return nil, stats, fmt.Errorf("reading NMEA: %w", err)
	}

	return t, stats, nil
}

func timeOfDayMicros(t nmea.Time) int64 {
	seconds := int64(t.Hour)*3600 + int64(t.Minute)*60 + int64(t.Second)
	return seconds*1_000_000 + int64(t.Millisecond)*1_000
}
