package track

import (
	"math"
	"sync"
	"testing"

	"github.com/roadlens/trackmark/pkg/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleFixes() []core.GpsFix {
	return []core.GpsFix{
		{Second: 0, Lat: 10.0, Lon: 20.0, TotalDistance: 0},
		{Second: 2, Lat: 10.001, Lon: 20.0, TotalDistance: 111},
		{Second: 5, Lat: 10.002, Lon: 20.0, TotalDistance: 222},
	}
}

func TestNew_SortsAndDedupes(t *testing.T) {
	tr, err := New([]core.GpsFix{
		{Second: 5, TotalDistance: 50},
		{Second: 0, TotalDistance: 0},
		{Second: 2, TotalDistance: 20, Lat: 1},
		{Second: 2, TotalDistance: 25, Lat: 2},
	}, 0)
	require.NoError(t, err)
	require.Equal(t, 3, tr.Len())
	assert.Equal(t, 0.0, tr.At(0).Second)
	assert.Equal(t, 2.0, tr.At(1).Second)
	assert.Equal(t, 1.0, tr.At(1).Lat, "first fix of a duplicated second wins")
	assert.Equal(t, 5.0, tr.Duration())
	assert.Equal(t, 50.0, tr.Length())
}

func TestNew_RejectsDecreasingDistance(t *testing.T) {
	_, err := New([]core.GpsFix{
		{Second: 0, TotalDistance: 10},
		{Second: 1, TotalDistance: 5},
	}, 0)
	assert.ErrorIs(t, err, ErrDistanceDecreasing)
}

func TestNew_RejectsInvalidSecond(t *testing.T) {
	_, err := New([]core.GpsFix{{Second: math.NaN()}}, 0)
	assert.Error(t, err)
	_, err = New([]core.GpsFix{{Second: -1}}, 0)
	assert.Error(t, err)
}

func TestNew_DoesNotAliasInput(t *testing.T) {
	in := sampleFixes()
	tr, err := New(in, 0)
	require.NoError(t, err)
	in[0].Lat = 99
	assert.Equal(t, 10.0, tr.At(0).Lat)

	out := tr.Fixes()
	out[1].Lat = 99
	assert.Equal(t, 10.001, tr.At(1).Lat)
}

func TestEmptyTrack(t *testing.T) {
	tr, err := FromData(nil)
	require.NoError(t, err)
	assert.True(t, tr.Empty())
	assert.Equal(t, 0.0, tr.Duration())
	assert.Equal(t, 0.0, tr.Length())
}

func TestStartOffset(t *testing.T) {
	tr, err := FromData(&core.TrackData{Fixes: sampleFixes(), StartOffsetKm: 2})
	require.NoError(t, err)
	assert.Equal(t, 2.0, tr.StartOffsetKm())
	assert.Equal(t, 2111.0, tr.DisplayDistance(tr.At(1)))

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			tr.SetStartOffsetKm(float64(i))
			_ = tr.StartOffsetKm()
		}(i)
	}
	wg.Wait()
}
