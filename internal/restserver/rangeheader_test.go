package restserver

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseRangeStartEnd(t *testing.T) {
	r, err := ParseRange("bytes=10-19", 100)
	require.NoError(t, err)
	require.True(t, r.Satisfied)
	require.EqualValues(t, 10, r.Start)
	require.EqualValues(t, 19, r.End)
}

func TestParseRangeOpenEnded(t *testing.T) {
	r, err := ParseRange("bytes=90-", 100)
	require.NoError(t, err)
	require.True(t, r.Satisfied)
	require.EqualValues(t, 90, r.Start)
	require.EqualValues(t, 99, r.End)
}

func TestParseRangeSuffix(t *testing.T) {
	r, err := ParseRange("bytes=-10", 100)
	require.NoError(t, err)
	require.True(t, r.Satisfied)
	require.EqualValues(t, 90, r.Start)
	require.EqualValues(t, 99, r.End)
}

func TestParseRangeSuffixLargerThanSize(t *testing.T) {
	r, err := ParseRange("bytes=-1000", 100)
	require.NoError(t, err)
	require.True(t, r.Satisfied)
	require.EqualValues(t, 0, r.Start)
	require.EqualValues(t, 99, r.End)
}

func TestParseRangeEndClampedToSize(t *testing.T) {
	r, err := ParseRange("bytes=0-999", 100)
	require.NoError(t, err)
	require.True(t, r.Satisfied)
	require.EqualValues(t, 99, r.End)
}

func TestParseRangeStartBeyondSizeUnsatisfiable(t *testing.T) {
	r, err := ParseRange("bytes=200-300", 100)
	require.NoError(t, err)
	require.False(t, r.Satisfied)
}

func TestParseRangeMissingPrefixIsMalformed(t *testing.T) {
	_, err := ParseRange("10-19", 100)
	require.Error(t, err)
	require.True(t, errors.Is(err, errMalformedRange))
}

func TestParseRangeMultiRangeIsMalformed(t *testing.T) {
	_, err := ParseRange("bytes=0-10,20-30", 100)
	require.Error(t, err)
	require.True(t, errors.Is(err, errMalformedRange))
}

func TestParseRangeInvertedIsMalformed(t *testing.T) {
	_, err := ParseRange("bytes=50-10", 100)
	require.Error(t, err)
	require.True(t, errors.Is(err, errMalformedRange))
}

func TestParseRangeZeroLengthSuffixUnsatisfiable(t *testing.T) {
	r, err := ParseRange("bytes=-0", 100)
	require.NoError(t, err)
	require.False(t, r.Satisfied)
}
