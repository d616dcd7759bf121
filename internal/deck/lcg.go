package deck

// The dealer's generator is the classic 9301/49297/233280 linear congruential
// recurrence. It is not meant to be strong, only identical on every client.
const (
	lcgMultiplier = 9301
	lcgIncrement  = 49297
	lcgModulus    = 233280
)

// LCG is the published integer-only generator used for dealing.
type LCG struct {
	state int64
}

// NewLCG seeds the generator. Any int64 is accepted; the seed is reduced
// modulo the generator's modulus, which leaves the sequence unchanged.
func NewLCG(seed int64) *LCG {
	s := seed % lcgModulus
	if s < 0 {
		s += lcgModulus
	}
	return &LCG{state: s}
}

// Next advances the recurrence and returns the new state in [0, 233280).
func (g *LCG) Next() int64 {
	g.state = (g.state*lcgMultiplier + lcgIncrement) % lcgModulus
	return g.state
}

// Intn returns a value in [0, n) by scaling the next state.
func (g *LCG) Intn(n int) int {
	return int(g.Next() * int64(n) / lcgModulus)
}
