/*
Package worker implements the worker side of the DRP job fleet.

A worker dials one controller (or a proxy in front of it), then answers
requests on that single connection until the controller hangs up. The
controller drives everything: it asks who the worker is, pushes files into
the worker's work directory, runs programs from there, and pulls result
files back.

# Lifecycle

	Connecting ──dial ok──▶ Serving ──peer close──▶ Closed
	     │                     │
	     └──dial failed──▶ Fatal ◀──decode / transport / send error

Run covers the whole lifecycle. Serve runs only the Serving phase on a
connection the caller already opened, which is how tests and embedders
drive a worker.

# Requests

Requests are handled strictly one at a time, in arrival order. Every
request gets exactly one response carrying the same request type:

  - Welcome reports the hostname and logical CPU count.
  - CopyIn writes a file. Existing files with any execute bit are refused.
  - Execute runs a program without a shell or PATH search and reports its
    exit status, 128+signal when killed, or -1 when it could not start.
  - CopyOut reads a file back.

All pathnames are relative to the work directory and are checked with
pathutil.IsPathnameLocal before the filesystem is touched. Handler failures
are reported in the response payload and never stop the loop. A request
type the worker does not know gets a response with Error set.

Execute has no timeout. A program that never exits blocks the worker.
*/
package worker
