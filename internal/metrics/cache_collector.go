package metrics

import (
	"sync"
	"time"

	"github.com/osvaldoandrade/tokengate/pkg/auth/certs"
	"github.com/prometheus/client_golang/prometheus"
)

const expiringWindow = 7 * 24 * time.Hour

type cacheCollector struct {
	cache *certs.Cache
	now   func() time.Time

	countDesc    *prometheus.Desc
	ageDesc      *prometheus.Desc
	expiringDesc *prometheus.Desc
	readyDesc    *prometheus.Desc
}

func newCacheCollector(cache *certs.Cache) *cacheCollector {
	return &cacheCollector{
		cache: cache,
		now:   time.Now,
		countDesc: prometheus.NewDesc(
			"tokengate_signing_certificates",
			"Number of signing certificates in the committed snapshot.",
			nil, nil,
		),
		ageDesc: prometheus.NewDesc(
			"tokengate_signing_certificates_age_seconds",
			"Seconds since the committed snapshot was fetched.",
			nil, nil,
		),
		expiringDesc: prometheus.NewDesc(
			"tokengate_signing_certificates_expiring",
			"Certificates in the snapshot whose validity ends within seven days.",
			nil, nil,
		),
		readyDesc: prometheus.NewDesc(
			"tokengate_signing_certificates_ready",
			"1 once a certificate snapshot has been committed, 0 before.",
			nil, nil,
		),
	}
}

func (c *cacheCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.countDesc
	ch <- c.ageDesc
	ch <- c.expiringDesc
	ch <- c.readyDesc
}

func (c *cacheCollector) Collect(ch chan<- prometheus.Metric) {
	set, ok := c.cache.Current()
	if !ok {
		emitGauge(ch, c.readyDesc, 0)
		return
	}
	now := c.now()

	var expiring int
	for _, cert := range set.Certificates() {
		if !cert.NotAfter.IsZero() && cert.NotAfter.Sub(now) < expiringWindow {
			expiring++
		}
	}

	emitGauge(ch, c.readyDesc, 1)
	emitGauge(ch, c.countDesc, float64(set.Len()))
	emitGauge(ch, c.ageDesc, now.Sub(set.FetchedAt()).Seconds())
	emitGauge(ch, c.expiringDesc, float64(expiring))
}

func emitGauge(ch chan<- prometheus.Metric, desc *prometheus.Desc, v float64, labelValues ...string) {
	m, err := prometheus.NewConstMetric(desc, prometheus.GaugeValue, v, labelValues...)
	if err != nil {
		return
	}
	ch <- m
}

var registerCacheCollectorOnce sync.Once

func RegisterCacheCollector(cache *certs.Cache) {
	registerCacheCollectorOnce.Do(func() {
		prometheus.MustRegister(newCacheCollector(cache))
	})
}
