package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestCollector_Counters(t *testing.T) {
	c := NewCollector(prometheus.NewRegistry())

	c.ObserveUpload(100)
	c.ObserveUpload(50)
	c.ObserveDownload()
	c.AddBytesDownloaded(30)
	c.ObservePart(25)
	c.ObserveAbort()
	c.ObserveError("connect")
	c.ObserveError("connect")
	c.ObserveError("delete_file")

	assert.Equal(t, 2.0, testutil.ToFloat64(c.uploads))
	assert.Equal(t, 175.0, testutil.ToFloat64(c.bytesUploaded))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.downloads))
	assert.Equal(t, 30.0, testutil.ToFloat64(c.bytesDownloaded))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.partsUploaded))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.multipartAborts))
	assert.Equal(t, 2.0, testutil.ToFloat64(c.operationErrors.WithLabelValues("connect")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.operationErrors.WithLabelValues("delete_file")))
}

func TestCollector_NilIsNoop(t *testing.T) {
	var c *Collector

	// None of these may panic.
	c.ObserveUpload(1)
	c.ObserveDownload()
	c.AddBytesDownloaded(1)
	c.ObservePart(1)
	c.ObserveAbort()
	c.ObserveError("x")
}

func TestCollector_RegistersWithRegistry(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)
	c.ObserveUpload(10)

	families, err := reg.Gather()
	assert.NoError(t, err)
	assert.NotEmpty(t, families)
}
