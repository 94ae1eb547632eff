package metrics

type NoopMetrics struct{}

func (n NoopMetrics) RecordInfo(version string) {}

func (n NoopMetrics) RecordUp() {}

func (n NoopMetrics) RecordHint(name string) (onDone func(err error)) {
	return func(err error) {}
}

func (n NoopMetrics) RecordPreimageRequest(kind string, err error) {}

func (n NoopMetrics) RecordFallback(kind string) {}

func (n NoopMetrics) RecordFetch(source string, op string, attempts int, err error) {}

var _ Metricer = NoopMetrics{}
