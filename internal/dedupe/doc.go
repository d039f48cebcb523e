// Package dedupe suppresses duplicate chat deliveries using a time-based
// window, so ingress retries of the same message are processed once.
package dedupe
