package query

import (
	"math"
	"net/url"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDefaults(t *testing.T) {
	p, err := Parse(url.Values{}, 0)
	require.NoError(t, err)
	assert.Equal(t, Params{Page: 1, Limit: 10}, p)
	assert.Equal(t, 0, p.Offset())
	assert.False(t, p.HasSearch())
}

func TestParseValues(t *testing.T) {
	p, err := Parse(url.Values{"page": {"3"}, "limit": {"25"}, "search": {"  Ann "}}, 100)
	require.NoError(t, err)
	assert.Equal(t, 3, p.Page)
	assert.Equal(t, 25, p.Limit)
	assert.Equal(t, "Ann", p.Search)
	assert.Equal(t, 50, p.Offset())
}

func TestParseClampsLimit(t *testing.T) {
	p, err := Parse(url.Values{"limit": {"5000"}}, 100)
	require.NoError(t, err)
	assert.Equal(t, 100, p.Limit)

	p, err = Parse(url.Values{"limit": {"60"}}, 50)
	require.NoError(t, err)
	assert.Equal(t, 50, p.Limit)
}

func TestParseRejectsBadValues(t *testing.T) {
	cases := []url.Values{
		{"page": {"0"}},
		{"page": {"-2"}},
		{"page": {"two"}},
		{"limit": {"0"}},
		{"limit": {"1.5"}},
		{"page": {"9223372036854775807"}, "limit": {"10"}},
		{"page": {"99999999999999999999"}},
	}
	for _, v := range cases {
		_, err := Parse(v, 100)
		assert.ErrorIs(t, err, ErrInvalidParam, v.Encode())
	}
}

func TestParseLastAddressablePage(t *testing.T) {
	page := math.MaxInt/10 + 1
	p, err := Parse(url.Values{"page": {strconv.Itoa(page)}, "limit": {"10"}}, 100)
	require.NoError(t, err)
	assert.Equal(t, page, p.Page)
	assert.GreaterOrEqual(t, p.Offset(), 0)

	_, err = Parse(url.Values{"page": {strconv.Itoa(page + 1)}, "limit": {"10"}}, 100)
	assert.ErrorIs(t, err, ErrInvalidParam)
}

func TestPatternEscapesMetacharacters(t *testing.T) {
	assert.Equal(t, "%a@b%", Params{Search: "A@B"}.Pattern())
	assert.Equal(t, "%50!%!_off!!%", Params{Search: "50%_off!"}.Pattern())
	assert.Equal(t, "%%", Params{}.Pattern())
}

func TestTotalPages(t *testing.T) {
	cases := []struct {
		total int64
		limit int
		want  int
	}{
		{0, 10, 0},
		{1, 10, 1},
		{10, 10, 1},
		{11, 10, 2},
		{99, 1, 99},
		{101, 100, 2},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, TotalPages(c.total, c.limit), "total=%d limit=%d", c.total, c.limit)
	}
}

func TestValuesRoundTrip(t *testing.T) {
	in := Params{Page: 2, Limit: 20, Search: "math"}
	out, err := Parse(in.Values(), 100)
	require.NoError(t, err)
	assert.Equal(t, in, out)
}
