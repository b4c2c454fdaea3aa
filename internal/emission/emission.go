// Package emission implements the Emission<V> interface (§4.3) and the
// five emission families §6 requires — bitflip, gaussian, simple_string,
// bigram_string, categorical(k=N) — plus the sometimes_<E> wrapper.
//
// An Emission is a Distribution over value.Pair{Clean, Dirty} with two
// extra operations: SampleCorrupted draws a dirty value given a clean one,
// and ProposeClean returns a peaked (not necessarily Bayes-optimal) guess
// at the clean value given a list of observed dirties.
package emission

import (
	"github.com/pclean-go/pclean/internal/distribution"
	"github.com/pclean-go/pclean/internal/prng"
	"github.com/pclean-go/pclean/internal/value"
)

// Emission is a stochastic channel clean -> dirty.
type Emission interface {
	distribution.Distribution
	SampleCorrupted(clean value.Value, s *prng.Stream) value.Value
	ProposeClean(dirties []value.Value, s *prng.Stream) value.Value
}
