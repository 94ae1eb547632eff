package metrics

import (
	"github.com/mantlenetworkio/op-celestia-host/op-program/host/sources"
)

type Metricer interface {
	RecordInfo(version string)
	RecordUp()

	// RecordHint tracks a routed hint. onDone must be called with the outcome of the route.
	RecordHint(name string) (onDone func(err error))
	RecordPreimageRequest(kind string, err error)
	RecordFallback(kind string)

	sources.FetchMetricer
}
