/*
Package health tracks OS process liveness for the worker pool, using
the same Checker/Status/Config shape the rest of the pack applies to
container health endpoints - here pointed at a worker subprocess's pid
instead of an HTTP or TCP target.

# Why Not pkg/worker

pkg/worker already detects a dead process the moment its stdout pipe
closes, which is immediate and reliable and does not need polling.
This package is not that crash path. pkg/worker's Pool.ProbeHealth
runs a PIDChecker against each occupied slot, and the metrics
collector publishes the failures as a gauge. A signal-0 probe only
shows that the pid exists; whether a connected worker has gone
unresponsive is answered by pkg/task.IsDefunct from the daemon side by
timestamp.

# Hysteresis

Status.Update requires Config.Retries consecutive failures before
flipping Healthy to false, and any single success resets the streak -
the same flap-avoidance behavior the source design applied to
container health, now applied to "is this pid still around".
*/
package health
