package rating

// Option applies a configuration option to the Elo calculator.
type Option func(*Elo)

// WithKFactor sets the K-factor. Non-positive values are ignored.
func WithKFactor(k float64) Option {
	return func(e *Elo) {
		if k > 0 {
			e.k = k
		}
	}
}
