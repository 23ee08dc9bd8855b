package event

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBusDeliversNextTick(t *testing.T) {
	b := NewBus()
	var got []int32
	Subscribe(b, func(e EntityInitialized) { got = append(got, e.ID) })
	Subscribe(b, func(EntityRemoved) { t.Fatal("no removals emitted") })

	Emit(b, EntityInitialized{ID: 7})
	Emit(b, EntityInitialized{ID: 8})
	assert.Equal(t, 2, b.Pending())
	assert.Zero(t, b.DispatchAll(), "nothing deliverable before the swap")

	b.SwapBuffers()
	assert.Equal(t, 2, b.DispatchAll())
	assert.Equal(t, []int32{7, 8}, got)

	b.SwapBuffers()
	assert.Zero(t, b.DispatchAll())
}

func TestEmitOnNilBus(t *testing.T) {
	assert.NotPanics(t, func() { Emit[EntityRemoved](nil, EntityRemoved{ID: 1}) })
}
