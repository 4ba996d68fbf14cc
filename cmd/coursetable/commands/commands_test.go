package commands

import (
	"testing"
	"time"

	"coursetable/internal/term"

	"github.com/stretchr/testify/require"
)

func TestParseTerm(t *testing.T) {
	id, err := parseTerm("WS24/25")
	require.NoError(t, err)
	require.Equal(t, term.MustNew(203), id)

	id, err = parseTerm("198")
	require.NoError(t, err)
	require.Equal(t, term.MustNew(198), id)

	_, err = parseTerm("201")
	require.ErrorIs(t, err, term.ErrInvalidTermID)
	_, err = parseTerm("summer")
	require.ErrorIs(t, err, term.ErrInvalidTermID)
}

type fixedClock time.Time

func (c fixedClock) Now() time.Time {
	return time.Time(c)
}

func TestTermFlag(t *testing.T) {
	clock := fixedClock(time.Date(2024, time.November, 12, 9, 0, 0, 0, time.UTC))

	id, err := termFlag("", clock)
	require.NoError(t, err)
	require.Equal(t, term.MustNew(203), id)

	id, err = termFlag("SS24", clock)
	require.NoError(t, err)
	require.Equal(t, term.MustNew(200), id)
}
