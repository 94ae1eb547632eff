package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	gocl "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/require"
)

// Snapshot is a gathered registry that tests query by metric name and labels.
type Snapshot struct {
	t        require.TestingT
	families map[string]*gocl.MetricFamily
}

func Gather(t require.TestingT, reg *prometheus.Registry) *Snapshot {
	families, err := reg.Gather()
	require.NoError(t, err, "must gather metrics")
	byName := make(map[string]*gocl.MetricFamily, len(families))
	for _, f := range families {
		byName[f.GetName()] = f
	}
	return &Snapshot{t: t, families: byName}
}

// find returns the single series of name carrying every label in labels, failing the test otherwise.
func (s *Snapshot) find(name string, labels map[string]string) *gocl.Metric {
	fam, ok := s.families[name]
	require.Truef(s.t, ok, "no metric named %s", name)
	var found *gocl.Metric
	for _, m := range fam.Metric {
		have := make(map[string]string, len(m.Label))
		for _, l := range m.Label {
			have[l.GetName()] = l.GetValue()
		}
		matches := true
		for k, v := range labels {
			if have[k] != v {
				matches = false
				break
			}
		}
		if matches {
			require.Nilf(s.t, found, "labels %v match more than one series of %s", labels, name)
			found = m
		}
	}
	require.NotNilf(s.t, found, "no series of %s with labels %v", name, labels)
	return found
}

func (s *Snapshot) Counter(name string, labels map[string]string) float64 {
	m := s.find(name, labels)
	require.NotNilf(s.t, m.Counter, "%s is not a counter", name)
	return m.Counter.GetValue()
}

// HistogramCount is the number of observations of a histogram series.
func (s *Snapshot) HistogramCount(name string, labels map[string]string) uint64 {
	m := s.find(name, labels)
	require.NotNilf(s.t, m.Histogram, "%s is not a histogram", name)
	return m.Histogram.GetSampleCount()
}
