package tracked

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/voxelhost/entitysync/internal/value"
)

func TestInitDataSortedAndTerminated(t *testing.T) {
	td := New()
	assert.Nil(t, td.InitData())

	td.InsertInitValue(16, value.Bool(true))
	td.InsertInitValue(0, value.Byte(2))
	td.InsertInitValue(1, value.Int(300))

	assert.Equal(t, []byte{
		0x00, byte(value.TagByte), 0x02,
		0x01, byte(value.TagInt), 0xac, 0x02,
		0x10, byte(value.TagBool), 0x01,
		0xff,
	}, td.InitData())

	got, err := DecodeEntries(td.InitData(), true)
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, uint8(0), got[0].Index)
	assert.Equal(t, value.Int(300), got[1].Value)
	assert.Equal(t, value.Bool(true), got[2].Value)
}

func TestInsertReplacesAndRemoveDrops(t *testing.T) {
	td := New()
	td.InsertInitValue(9, value.Float(5))
	td.InsertInitValue(9, value.Float(7))
	assert.Equal(t, 1, td.BaselineLen())

	e, ok := td.InitValue(9)
	require.True(t, ok)
	assert.Equal(t, value.Marshal(value.Float(7)), e.Data)

	assert.True(t, td.RemoveInitValue(9))
	assert.False(t, td.RemoveInitValue(9))
	assert.Nil(t, td.InitData())
}

func TestUpdateDataUnterminatedAndCleared(t *testing.T) {
	td := New()
	assert.True(t, td.IsAdded())
	assert.Nil(t, td.UpdateData())

	td.InsertInitValue(16, value.Bool(true))
	td.AppendUpdateValue(16, value.Bool(true))
	td.AppendUpdateValue(16, value.Bool(false))

	data := td.UpdateData()
	assert.Equal(t, []byte{0x10, byte(value.TagBool), 0x01, 0x10, byte(value.TagBool), 0x00}, data)

	got, err := DecodeEntries(data, false)
	require.NoError(t, err)
	assert.Len(t, got, 2)

	td.ClearUpdateValues()
	assert.False(t, td.IsAdded())
	assert.Zero(t, td.UpdateLen())
	assert.Nil(t, td.UpdateData())
	assert.Equal(t, 1, td.BaselineLen(), "baseline survives clearing")
}

func TestIndex254RoundTrips(t *testing.T) {
	td := New()
	td.InsertInitValue(254, value.Long(-1))
	got, err := DecodeEntries(td.InitData(), true)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, uint8(254), got[0].Index)
	assert.Equal(t, value.Long(-1), got[0].Value)

	assert.Panics(t, func() { td.InsertInitValue(Terminator, value.Byte(0)) })
}

func TestDecodeEntriesErrors(t *testing.T) {
	_, err := DecodeEntries([]byte{0x00, byte(value.TagByte), 0x01}, true)
	assert.Error(t, err, "missing terminator")

	_, err = DecodeEntries([]byte{0xff}, false)
	assert.ErrorIs(t, err, ErrBadIndex)

	_, err = DecodeEntries([]byte{0x00, byte(value.TagOptionalGlobalPos), 0x00, 0xff}, true)
	assert.ErrorIs(t, err, value.ErrUnsupportedShape)

	_, err = DecodeEntries([]byte{0x00, byte(value.TagInt)}, false)
	assert.Error(t, err)

	_, err = DecodeEntries([]byte{0xff, 0x00}, true)
	assert.Error(t, err, "bytes after terminator")
}

func TestConcurrentWriters(t *testing.T) {
	td := New()
	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func(idx uint8) {
			defer wg.Done()
			td.InsertInitValue(idx, value.Int(int32(idx)))
			td.AppendUpdateValue(idx, value.Int(int32(idx)))
		}(uint8(i))
	}
	wg.Wait()
	assert.Equal(t, 32, td.BaselineLen())
	assert.Equal(t, 32, td.UpdateLen())
}
