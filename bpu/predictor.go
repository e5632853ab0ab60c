// Package bpu implements branch direction and target prediction: the
// direction predictors (static, gshare, tournament, perceptron, TAGE),
// a branch target buffer, and a return address stack.
package bpu

// PredictorKind selects one of the closed set of direction predictors.
type PredictorKind uint8

const (
	KindStatic PredictorKind = iota
	KindGShare
	KindTournament
	KindPerceptron
	KindTAGE
)

// Predictor is the direction-prediction interface every policy
// implements. Predict is called in fetch before the branch resolves;
// Update trains the predictor once the true outcome is known.
type Predictor interface {
	Predict(pc uint64) bool
	Update(pc uint64, taken bool)
}

// NewPredictor constructs the predictor named by kind, using cfg for the
// table-size/history-length parameters the kind needs.
func NewPredictor(kind PredictorKind, cfg Config) Predictor {
	switch kind {
	case KindGShare:
		return NewGShare(cfg.TableBits, cfg.HistoryBits)
	case KindTournament:
		return NewTournament(cfg.TableBits, cfg.HistoryBits)
	case KindPerceptron:
		return NewPerceptron(cfg.PerceptronCount, cfg.HistoryBits, cfg.Theta)
	case KindTAGE:
		t := NewTAGE(cfg.TAGETables, cfg.TableBits)
		if cfg.ResetInterval > 0 {
			t.resetInterval = cfg.ResetInterval
		}
		return t
	default:
		return NewStatic()
	}
}

// Config bundles the sizing knobs for every predictor kind; unused
// fields for a given kind are ignored.
type Config struct {
	TableBits       uint   // log2 of the (g)share/tournament/TAGE table sizes
	HistoryBits     uint   // global history register width
	PerceptronCount int    // number of per-PC perceptrons
	Theta           int32  // perceptron training threshold
	TAGETables      int    // number of tagged tables beyond the bimodal base
	ResetInterval   uint64 // TAGE usefulness-counter periodic reset period
}

// saturating2Bit is the classic 2-bit saturating counter used by gshare,
// tournament's components, and TAGE's bimodal base: 0,1 predict
// not-taken, 2,3 predict taken.
type saturating2Bit uint8

func (c saturating2Bit) taken() bool { return c >= 2 }

func (c *saturating2Bit) update(taken bool) {
	if taken {
		if *c < 3 {
			*c++
		}
	} else if *c > 0 {
		*c--
	}
}

// Static always predicts not-taken. Backward-branch bias (the "taken"
// half of the classic static policy) requires knowing the branch target
// relative to pc, which the narrow Predictor interface does not carry,
// and the pipeline does not apply it either: with Static every branch is
// predicted not-taken.
type Static struct{}

// NewStatic returns a Static predictor. It is stateless.
func NewStatic() *Static { return &Static{} }

// Predict always returns false (not-taken).
func (s *Static) Predict(pc uint64) bool { return false }

// Update is a no-op; Static carries no history.
func (s *Static) Update(pc uint64, taken bool) {}
