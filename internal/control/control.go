// Package control provides the feedback primitives used by calibration: a
// PID controller and exponential and windowed moving averages.
package control

// PID is a proportional/integral/derivative controller.
type PID struct {
	Kp, Ki, Kd float64

	last float64 // Previous error
	acc  float64 // Accumulated error
}

// NewPID returns a controller with the given gains.
func NewPID(kp, ki, kd float64) *PID {
	return &PID{Kp: kp, Ki: ki, Kd: kd}
}

// Feedback records error over the interval dt and returns the correction
// kp*e + kd*de/dt + ki*∫e.
func (c *PID) Feedback(err, dt float64) float64 {
	if dt <= 0 {
		dt = 1
	}
	diff := (err - c.last) / dt
	c.last = err
	c.acc += err * dt
	return c.Kp*err + c.Kd*diff + c.Ki*c.acc
}

// Error returns the last recorded error.
func (c *PID) Error() float64 { return c.last }

// Acc returns the accumulated error.
func (c *PID) Acc() float64 { return c.acc }

// SetAcc overwrites the accumulated error.
func (c *PID) SetAcc(v float64) { c.acc = v }

// Reset clears the controller state, keeping the gains.
func (c *PID) Reset() {
	c.last, c.acc = 0, 0
}

// EMA is an exponential moving average: mean = p*mean + (1-p)*x.
type EMA struct {
	mean   float64
	p      float64
	primed bool
}

// NewEMA returns an average with memory p in [0,1) starting at initial.
func NewEMA(p, initial float64) *EMA {
	return &EMA{mean: initial, p: p, primed: true}
}

// Add folds x into the average and returns the new mean. An unprimed
// average adopts its first sample.
func (e *EMA) Add(x float64) float64 {
	if !e.primed {
		e.mean, e.primed = x, true
		return x
	}
	e.mean = e.mean*e.p + (1-e.p)*x
	return e.mean
}

// Mean returns the current average.
func (e *EMA) Mean() float64 { return e.mean }

// Window is a moving average over the last n samples.
type Window struct {
	buf  []float64
	next int
	full bool
	sum  float64
}

// NewWindow returns a moving average over n samples (at least one).
func NewWindow(n int) *Window {
	if n < 1 {
		n = 1
	}
	return &Window{buf: make([]float64, n)}
}

// Add pushes x, evicting the oldest sample when full, and returns the mean.
func (w *Window) Add(x float64) float64 {
	w.sum += x - w.buf[w.next]
	w.buf[w.next] = x
	w.next++
	if w.next == len(w.buf) {
		w.next, w.full = 0, true
	}
	return w.Mean()
}

// Len returns the number of samples held.
func (w *Window) Len() int {
	if w.full {
		return len(w.buf)
	}
	return w.next
}

// Mean returns the average of the held samples, or 0 when empty.
func (w *Window) Mean() float64 {
	if n := w.Len(); n > 0 {
		return w.sum / float64(n)
	}
	return 0
}
