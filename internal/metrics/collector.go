package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Collector holds the transfer counters recorded by the storage client.
// A nil Collector is valid and records nothing.
type Collector struct {
	uploads         prometheus.Counter
	downloads       prometheus.Counter
	bytesUploaded   prometheus.Counter
	bytesDownloaded prometheus.Counter
	partsUploaded   prometheus.Counter
	multipartAborts prometheus.Counter
	operationErrors *prometheus.CounterVec
}

// NewCollector creates a Collector and registers its metrics with registry.
func NewCollector(registry prometheus.Registerer) *Collector {
	c := &Collector{
		uploads: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "spaces_uploads_total",
			Help: "Total number of completed object uploads",
		}),
		downloads: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "spaces_downloads_total",
			Help: "Total number of opened object reads",
		}),
		bytesUploaded: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "spaces_bytes_uploaded_total",
			Help: "Total bytes uploaded to the bucket",
		}),
		bytesDownloaded: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "spaces_bytes_downloaded_total",
			Help: "Total bytes streamed from the bucket",
		}),
		partsUploaded: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "spaces_multipart_parts_total",
			Help: "Total number of multipart parts uploaded",
		}),
		multipartAborts: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "spaces_multipart_aborts_total",
			Help: "Total number of aborted multipart upload sessions",
		}),
		operationErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "spaces_operation_errors_total",
			Help: "Total number of failed storage operations by operation",
		}, []string{"operation"}),
	}

	registry.MustRegister(
		c.uploads,
		c.downloads,
		c.bytesUploaded,
		c.bytesDownloaded,
		c.partsUploaded,
		c.multipartAborts,
		c.operationErrors,
	)
	return c
}

// ObserveUpload records one completed upload of n bytes.
func (c *Collector) ObserveUpload(n int64) {
	if c == nil {
		return
	}
	c.uploads.Inc()
	c.bytesUploaded.Add(float64(n))
}

// ObserveDownload records one opened read.
func (c *Collector) ObserveDownload() {
	if c == nil {
		return
	}
	c.downloads.Inc()
}

// AddBytesDownloaded records n bytes streamed back to a caller.
func (c *Collector) AddBytesDownloaded(n int64) {
	if c == nil {
		return
	}
	c.bytesDownloaded.Add(float64(n))
}

// ObservePart records one uploaded multipart part of n bytes.
func (c *Collector) ObservePart(n int64) {
	if c == nil {
		return
	}
	c.partsUploaded.Inc()
	c.bytesUploaded.Add(float64(n))
}

// ObserveAbort records one aborted multipart session.
func (c *Collector) ObserveAbort() {
	if c == nil {
		return
	}
	c.multipartAborts.Inc()
}

// ObserveError records one failed operation.
func (c *Collector) ObserveError(operation string) {
	if c == nil {
		return
	}
	c.operationErrors.WithLabelValues(operation).Inc()
}
