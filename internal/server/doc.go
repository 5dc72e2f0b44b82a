// Package server contains the UDP receiver that drives the packet pipeline
// and an optional HTTP server exposing health, stream and statistics
// endpoints alongside Prometheus metrics.
package server
