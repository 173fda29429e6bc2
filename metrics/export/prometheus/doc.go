// Package prometheus renders dualAuth metrics in the Prometheus text
// exposition format.
//
// Engine counters are grouped into labelled families such as
// dualauth_logins_total{outcome} and dualauth_login_codes_total{mode}. When
// built with [New] the exporter also lists the engine's session store on every
// scrape and reports dualauth_sessions{auth_mode,state}. Nothing is
// registered globally; callers mount [Exporter.Handler].
package prometheus
