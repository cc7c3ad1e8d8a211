// Package httpmetrics counts served requests by path, method, and status.
package httpmetrics

import (
	"net/http"
	"strconv"

	"github.com/golang/glog"
	"go.opencensus.io/stats"
	"go.opencensus.io/stats/view"
	"go.opencensus.io/tag"
)

type Wrapper struct {
	requestCount     *stats.Int64Measure
	requestCountView *view.View

	inner http.Handler
}

func New(inner http.Handler) *Wrapper {
	r := &Wrapper{}

	r.requestCount = stats.Int64("requests", "", stats.UnitDimensionless)
	r.requestCountView = &view.View{
		Name:        "requests",
		Description: "Counter of requests that have been handled",

		TagKeys: []tag.Key{tag.MustNewKey("path"), tag.MustNewKey("method"), tag.MustNewKey("status")},

		Measure:     r.requestCount,
		Aggregation: view.Count(),
	}

	r.inner = inner

	return r
}

func (h *Wrapper) RegisterMetrics() {
	view.Register(h.requestCountView)
}

// statusRecorder captures the status code written by the inner handler.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func (h *Wrapper) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
	h.inner.ServeHTTP(rec, r)

	glog.Infof("Served path=%q method=%q status=%d", r.URL.Path, r.Method, rec.status)

	stats.RecordWithOptions(
		r.Context(),
		stats.WithTags(
			tag.Insert(tag.MustNewKey("path"), r.URL.Path),
			tag.Insert(tag.MustNewKey("method"), r.Method),
			tag.Insert(tag.MustNewKey("status"), strconv.Itoa(rec.status)),
		),
		stats.WithMeasurements(h.requestCount.M(1)))
}
