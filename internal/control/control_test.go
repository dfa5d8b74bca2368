package control

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

// TestPID_Feedback verifies the proportional, derivative and integral terms.
func TestPID_Feedback(t *testing.T) {
	c := NewPID(2, 0.5, 1)
	// e=1: p=2, d=1, i=0.5
	assert.InDelta(t, 3.5, c.Feedback(1, 1), 1e-12)
	// e=3: p=6, d=2, i=0.5*4=2
	assert.InDelta(t, 10.0, c.Feedback(3, 1), 1e-12)
	assert.Equal(t, 3.0, c.Error())
	assert.Equal(t, 4.0, c.Acc())

	c.SetAcc(0)
	// e=3: p=6, d=0, i=1.5
	assert.InDelta(t, 7.5, c.Feedback(3, 1), 1e-12)

	c.Reset()
	assert.Zero(t, c.Error())
	assert.Zero(t, c.Acc())
}

// TestPID_TimeStep verifies dt scales the derivative and integral terms.
func TestPID_TimeStep(t *testing.T) {
	c := NewPID(0, 1, 1)
	// diff = 2/0.5 = 4, acc = 2*0.5 = 1
	assert.InDelta(t, 5.0, c.Feedback(2, 0.5), 1e-12)
}

// TestEMA verifies exponential smoothing.
func TestEMA(t *testing.T) {
	e := NewEMA(0.75, 4)
	assert.InDelta(t, 5.0, e.Add(8), 1e-12)
	assert.InDelta(t, 3.75, e.Add(0), 1e-12)

	var fresh EMA
	assert.Equal(t, 9.0, fresh.Add(9))
}

// TestWindow verifies the moving average evicts old samples.
func TestWindow(t *testing.T) {
	w := NewWindow(3)
	assert.Zero(t, w.Mean())
	assert.Equal(t, 1.0, w.Add(1))
	assert.Equal(t, 1.5, w.Add(2))
	assert.Equal(t, 2.0, w.Add(3))
	assert.Equal(t, 3.0, w.Add(4))
	assert.Equal(t, 3, w.Len())
}
