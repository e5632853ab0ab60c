package bpu

// Perceptron implements a per-PC perceptron branch predictor: each
// perceptron is a weight vector over the global history bits plus a
// bias, and the predicted direction is the sign of the weighted sum.
type Perceptron struct {
	weights [][]int32 // [perceptronIdx][0..histLen] , index histLen is the bias
	history []int8    // +1/-1 encoded global history, most recent at index 0
	histLen int
	count   int
	theta   int32
}

// NewPerceptron returns a Perceptron predictor with count independent
// perceptrons, each covering histLen history bits, trained with
// threshold theta.
func NewPerceptron(count int, histLen uint, theta int32) *Perceptron {
	p := &Perceptron{
		weights: make([][]int32, count),
		history: make([]int8, histLen),
		histLen: int(histLen),
		count:   count,
		theta:   theta,
	}
	for i := range p.weights {
		p.weights[i] = make([]int32, histLen+1)
	}
	return p
}

func (p *Perceptron) index(pc uint64) int {
	return int(pc % uint64(p.count))
}

func (p *Perceptron) sum(idx int) int32 {
	w := p.weights[idx]
	s := w[p.histLen]
	for i, h := range p.history {
		s += w[i] * int32(h)
	}
	return s
}

// Predict returns true (taken) iff the weighted sum is non-negative.
func (p *Perceptron) Predict(pc uint64) bool {
	return p.sum(p.index(pc)) >= 0
}

// Update trains the indexed perceptron when the prediction was wrong or
// the magnitude of the sum was below theta, then shifts the outcome into
// global history.
func (p *Perceptron) Update(pc uint64, taken bool) {
	idx := p.index(pc)
	s := p.sum(idx)
	predicted := s >= 0
	outcome := int32(-1)
	if taken {
		outcome = 1
	}
	if predicted != taken || abs32(s) < p.theta {
		w := p.weights[idx]
		w[p.histLen] += outcome
		for i, h := range p.history {
			w[i] += outcome * int32(h)
		}
	}
	copy(p.history[1:], p.history[:len(p.history)-1])
	p.history[0] = int8(outcome)
}

func abs32(v int32) int32 {
	if v < 0 {
		return -v
	}
	return v
}
