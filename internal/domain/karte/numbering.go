package karte

import (
	"context"
	"fmt"
	"regexp"
	"time"

	"github.com/karte/backend/internal/domain/shared"
)

// RangeSuffix closes the lexicographic range of record numbers sharing a
// prefix: every "D-250110-NNN" sorts below "D-250110" + RangeSuffix.
const RangeSuffix = "\uf8ff"

// FallbackSerial is used when the sequence cannot be determined
const FallbackSerial = 1

var prefixPattern = regexp.MustCompile(`^[DI]-`)

// NumberPrefix maps a travel type to its record number letter
func NumberPrefix(t TravelType) string {
	if t == TravelTypeInternational {
		return "I"
	}
	return "D"
}

// DatePart formats a day as YYMMDD
func DatePart(day time.Time) string {
	return day.Format("060102")
}

// SequencePrefix is the part of a record number shared by all records of
// one travel type created on one day, e.g. "D-250110".
func SequencePrefix(t TravelType, day time.Time) string {
	return NumberPrefix(t) + "-" + DatePart(day)
}

// FormatNumber renders a complete record number
func FormatNumber(t TravelType, day time.Time, serial int) string {
	return fmt.Sprintf("%s-%03d", SequencePrefix(t, day), serial)
}

// RewritePrefix replaces the travel type letter of a record number and keeps
// the rest. An empty number stays empty.
func RewritePrefix(number string, t TravelType) string {
	if number == "" {
		return ""
	}
	return NumberPrefix(t) + "-" + prefixPattern.ReplaceAllString(number, "")
}

// SerialSource yields the next serial for a sequence prefix.
type SerialSource interface {
	NextSerial(ctx context.Context, sequencePrefix string) (int, error)
}

// NumberGenerator produces human-readable record numbers
type NumberGenerator struct {
	source   SerialSource
	location *time.Location
}

// NewNumberGenerator creates a generator. Dates are taken in loc.
func NewNumberGenerator(source SerialSource, loc *time.Location) *NumberGenerator {
	if loc == nil {
		loc = time.UTC
	}
	return &NumberGenerator{source: source, location: loc}
}

// Generate returns a record number for travelType on today. It always
// returns a usable number: when the serial cannot be obtained it falls
// back to FallbackSerial and also returns an error wrapping
// shared.ErrNumberingDegraded, which callers log and otherwise ignore.
func (g *NumberGenerator) Generate(ctx context.Context, travelType TravelType, today time.Time) (string, error) {
	day := today.In(g.location)
	serial, err := g.source.NextSerial(ctx, SequencePrefix(travelType, day))
	if err != nil || serial < 1 {
		if err == nil {
			err = fmt.Errorf("invalid serial %d", serial)
		}
		degraded := *shared.ErrNumberingDegraded
		degraded.Cause = err
		return FormatNumber(travelType, day, FallbackSerial), &degraded
	}
	return FormatNumber(travelType, day, serial), nil
}
