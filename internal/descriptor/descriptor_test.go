package descriptor

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const igramDescriptor = `###################################
[Common]
###################################
[Function-1]
generateIgram :
    master : /work/master
    slave : /work/coreg_slaves/20180113
    interferogram : /work/interferograms/20180101_20180113
    flatten : False
    interferogram_prefix : fine
    overlap : False
[Function-2]
mergeBurst :
    stack : /work/stack
    dirname : /work/interferograms/20180101_20180113
    name_pattern : fine*int
    outfile : /work/merged/interferograms/20180101_20180113/fine.int
    method : top
    aligned : True
    valid_only : True
    use_virtual_files : True
    multilook : True
    range_looks : 9
    azimuth_looks : 3
`

func TestParseRoundTrip(t *testing.T) {
	t.Parallel()

	d, err := Parse(strings.NewReader(igramDescriptor))
	require.NoError(t, err)
	require.Len(t, d.Functions, 2)

	first := d.Functions[0]
	assert.Equal(t, "[Function-1]", first.Marker)
	assert.Equal(t, "generateIgram", first.Operation)
	master, ok := first.Get("master")
	require.True(t, ok)
	assert.Equal(t, "/work/master", master)

	second, ok := d.Function("[Function-2]")
	require.True(t, ok)
	looks, _ := second.Get("range_looks")
	assert.Equal(t, "9", looks)

	assert.Equal(t, igramDescriptor, d.String())
}

func TestNewNumbersFunctions(t *testing.T) {
	t.Parallel()

	d := New(
		&Function{Operation: "unpack", Fields: []Field{{Key: "inp", Value: "a.zip b.zip"}}},
		&Function{Operation: "computeBaseline"},
	)
	assert.Equal(t, "[Function-1]", d.Functions[0].Marker)
	assert.Equal(t, "[Function-2]", d.Functions[1].Marker)

	d.Functions[1].Set("master", "/work/master")
	d.Functions[1].Set("master", "/work/merged/SLC/20180101")
	require.Len(t, d.Functions[1].Fields, 1)

	parsed, err := Parse(strings.NewReader(d.String()))
	require.NoError(t, err)
	assert.Equal(t, d, parsed)
}

func TestParseRejectsLayoutDeviations(t *testing.T) {
	t.Parallel()

	cases := map[string]string{
		"no sections":         "[Common]\n",
		"field outside":       "[Common]\n    master : /work/master\n",
		"missing operation":   "[Function-1]\n[Function-2]\nmergeBurst : \n",
		"trailing no op":      "[Function-1]\nunpack : \n[Function-2]\n",
		"missing separator":   "[Function-1]\nunpack : \n    just some words\n",
		"unknown section":     "[Function-1]\nunpack : \n[Extra]\n",
		"operation has value": "[Function-1]\nunpack : now\n",
		"unindented field":    "[Function-1]\nunpack : \nmaster : /work/master\n",
	}
	for name, input := range cases {
		_, err := Parse(strings.NewReader(input))
		require.ErrorIs(t, err, ErrFormat, name)
		var formatErr *FormatError
		require.ErrorAs(t, err, &formatErr, name)
	}
}
