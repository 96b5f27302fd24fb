/*
Package api serves the worker's HTTP status endpoints.

	/health   liveness, always 200 while the process runs
	/ready    200 only while the dispatch loop is serving a controller
	/metrics  Prometheus metrics

The server runs on its own goroutine beside the dispatch loop and only
reads the loop state through StatusSource.
*/
package api
