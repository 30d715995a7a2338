package convert

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFloatsRoundTrip(t *testing.T) {
	in := []float32{0, 1, -1, 0.5, 3.25}
	b := FloatsToBytes(in)
	require.Len(t, b, len(in)*BytesPerFloat)
	// 1.0 is 0x3f800000
	assert.Equal(t, []byte{0x00, 0x00, 0x80, 0x3f}, b[4:8])

	out, err := BytesToFloats(nil, b)
	require.NoError(t, err)
	assert.Equal(t, in, out)
}

func TestBytesToFloatsRejectsPartial(t *testing.T) {
	_, err := BytesToFloats(nil, []byte{1, 2, 3})
	assert.Error(t, err)
}

func TestPutFloatsInPlace(t *testing.T) {
	dst := make([]byte, 2*BytesPerFloat)
	PutFloats(dst, []float32{2, -2})
	out, err := BytesToFloats(make([]float32, 0, 8), dst)
	require.NoError(t, err)
	assert.Equal(t, []float32{2, -2}, out)
}
