package server

import (
	"errors"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	errDatasetUnknown  = errors.New("unknown data_type")
	errBadBlindedPoint = errors.New("blinded point must be 32 bytes hex-encoded")
)

func metricsHandler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}
