// Package internaldefs holds the metric families, histogram bounds and
// session bucketing shared by the Prometheus and OTel exporters.
package internaldefs
