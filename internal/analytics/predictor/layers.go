package predictor

import (
	"math"
	"math/rand"

	"gonum.org/v1/gonum/floats"
)

// param is a trainable tensor with its gradient and Adam moments
type param struct {
	value []float64
	grad  []float64
	m     []float64
	v     []float64
}

func newParam(n int) *param {
	return &param{
		value: make([]float64, n),
		grad:  make([]float64, n),
		m:     make([]float64, n),
		v:     make([]float64, n),
	}
}

// glorot fills p with Glorot-uniform values
func (p *param) glorot(fanIn, fanOut int, rng *rand.Rand) *param {
	limit := math.Sqrt(6 / float64(fanIn+fanOut))
	for i := range p.value {
		p.value[i] = (rng.Float64()*2 - 1) * limit
	}
	return p
}

// layer processes one sample at a time and caches what backward needs.
// Sequences are flattened time-major: x[t*channels+c].
type layer interface {
	forward(x []float64) []float64
	// backward accumulates parameter gradients and returns dL/dx
	backward(dy []float64) []float64
	params() []*param
}

// dense is a fully connected layer
type dense struct {
	in, out int
	w, b    *param
	x       []float64
}

func newDense(in, out int, rng *rand.Rand) *dense {
	return &dense{
		in:  in,
		out: out,
		w:   newParam(in*out).glorot(in, out, rng),
		b:   newParam(out),
	}
}

func (d *dense) forward(x []float64) []float64 {
	d.x = x
	y := make([]float64, d.out)
	for o := 0; o < d.out; o++ {
		y[o] = d.b.value[o] + floats.Dot(d.w.value[o*d.in:(o+1)*d.in], x)
	}
	return y
}

func (d *dense) backward(dy []float64) []float64 {
	dx := make([]float64, d.in)
	for o := 0; o < d.out; o++ {
		row := o * d.in
		floats.AddScaled(d.w.grad[row:row+d.in], dy[o], d.x)
		floats.AddScaled(dx, dy[o], d.w.value[row:row+d.in])
		d.b.grad[o] += dy[o]
	}
	return dx
}

func (d *dense) params() []*param {
	return []*param{d.w, d.b}
}

// relu is an elementwise max(0, x)
type relu struct {
	x []float64
}

func (r *relu) forward(x []float64) []float64 {
	r.x = x
	y := make([]float64, len(x))
	for i, v := range x {
		if v > 0 {
			y[i] = v
		}
	}
	return y
}

func (r *relu) backward(dy []float64) []float64 {
	dx := make([]float64, len(dy))
	for i, v := range r.x {
		if v > 0 {
			dx[i] = dy[i]
		}
	}
	return dx
}

func (r *relu) params() []*param {
	return nil
}

// conv1d is a causal 1-D convolution: output step t sees inputs t-k+1..t,
// with zeros before the start of the sequence.
type conv1d struct {
	steps, cin, cout, kernel int
	w, b                     *param
	x                        []float64
}

func newConv1D(steps, cin, cout, kernel int, rng *rand.Rand) *conv1d {
	return &conv1d{
		steps:  steps,
		cin:    cin,
		cout:   cout,
		kernel: kernel,
		w:      newParam(cout*kernel*cin).glorot(kernel*cin, kernel*cout, rng),
		b:      newParam(cout),
	}
}

// weight index of filter co, tap j, input channel ci
func (c *conv1d) wi(co, j, ci int) int {
	return (co*c.kernel+j)*c.cin + ci
}

func (c *conv1d) forward(x []float64) []float64 {
	c.x = x
	y := make([]float64, c.steps*c.cout)
	for t := 0; t < c.steps; t++ {
		for co := 0; co < c.cout; co++ {
			sum := c.b.value[co]
			for j := 0; j < c.kernel; j++ {
				src := t - c.kernel + 1 + j
				if src < 0 {
					continue
				}
				for ci := 0; ci < c.cin; ci++ {
					sum += c.w.value[c.wi(co, j, ci)] * x[src*c.cin+ci]
				}
			}
			y[t*c.cout+co] = sum
		}
	}
	return y
}

func (c *conv1d) backward(dy []float64) []float64 {
	dx := make([]float64, c.steps*c.cin)
	for t := 0; t < c.steps; t++ {
		for co := 0; co < c.cout; co++ {
			g := dy[t*c.cout+co]
			if g == 0 {
				continue
			}
			c.b.grad[co] += g
			for j := 0; j < c.kernel; j++ {
				src := t - c.kernel + 1 + j
				if src < 0 {
					continue
				}
				for ci := 0; ci < c.cin; ci++ {
					k := c.wi(co, j, ci)
					c.w.grad[k] += g * c.x[src*c.cin+ci]
					dx[src*c.cin+ci] += g * c.w.value[k]
				}
			}
		}
	}
	return dx
}

func (c *conv1d) params() []*param {
	return []*param{c.w, c.b}
}

// globalAvgPool averages every channel over time
type globalAvgPool struct {
	steps, channels int
}

func (g *globalAvgPool) forward(x []float64) []float64 {
	y := make([]float64, g.channels)
	for t := 0; t < g.steps; t++ {
		floats.Add(y, x[t*g.channels:(t+1)*g.channels])
	}
	floats.Scale(1/float64(g.steps), y)
	return y
}

func (g *globalAvgPool) backward(dy []float64) []float64 {
	dx := make([]float64, g.steps*g.channels)
	scale := 1 / float64(g.steps)
	for t := 0; t < g.steps; t++ {
		floats.AddScaled(dx[t*g.channels:(t+1)*g.channels], scale, dy)
	}
	return dx
}

func (g *globalAvgPool) params() []*param {
	return nil
}

// simpleRNN is an Elman layer returning the last hidden state:
// h_t = tanh(Wx x_t + Wh h_{t-1} + b)
type simpleRNN struct {
	steps, cin, hidden int
	wx, wh, b          *param
	x                  []float64
	// h[t+1] is the state after step t, h[0] the zero initial state
	h [][]float64
}

func newSimpleRNN(steps, cin, hidden int, rng *rand.Rand) *simpleRNN {
	return &simpleRNN{
		steps:  steps,
		cin:    cin,
		hidden: hidden,
		wx:     newParam(hidden*cin).glorot(cin, hidden, rng),
		wh:     newParam(hidden*hidden).glorot(hidden, hidden, rng),
		b:      newParam(hidden),
	}
}

func (r *simpleRNN) forward(x []float64) []float64 {
	r.x = x
	r.h = make([][]float64, r.steps+1)
	r.h[0] = make([]float64, r.hidden)
	for t := 0; t < r.steps; t++ {
		xt := x[t*r.cin : (t+1)*r.cin]
		prev := r.h[t]
		h := make([]float64, r.hidden)
		for k := 0; k < r.hidden; k++ {
			a := r.b.value[k] +
				floats.Dot(r.wx.value[k*r.cin:(k+1)*r.cin], xt) +
				floats.Dot(r.wh.value[k*r.hidden:(k+1)*r.hidden], prev)
			h[k] = math.Tanh(a)
		}
		r.h[t+1] = h
	}
	out := make([]float64, r.hidden)
	copy(out, r.h[r.steps])
	return out
}

func (r *simpleRNN) backward(dy []float64) []float64 {
	dx := make([]float64, r.steps*r.cin)
	dh := append([]float64(nil), dy...)
	da := make([]float64, r.hidden)

	for t := r.steps - 1; t >= 0; t-- {
		h, prev := r.h[t+1], r.h[t]
		xt := r.x[t*r.cin : (t+1)*r.cin]
		for k := 0; k < r.hidden; k++ {
			da[k] = dh[k] * (1 - h[k]*h[k])
		}

		next := make([]float64, r.hidden)
		for k := 0; k < r.hidden; k++ {
			if da[k] == 0 {
				continue
			}
			floats.AddScaled(r.wx.grad[k*r.cin:(k+1)*r.cin], da[k], xt)
			floats.AddScaled(r.wh.grad[k*r.hidden:(k+1)*r.hidden], da[k], prev)
			r.b.grad[k] += da[k]
			floats.AddScaled(dx[t*r.cin:(t+1)*r.cin], da[k], r.wx.value[k*r.cin:(k+1)*r.cin])
			floats.AddScaled(next, da[k], r.wh.value[k*r.hidden:(k+1)*r.hidden])
		}
		dh = next
	}
	return dx
}

func (r *simpleRNN) params() []*param {
	return []*param{r.wx, r.wh, r.b}
}
