// Package server implements the HTTP side of File Drop: the chi router, the
// upload handler, the static asset responder and the operational endpoints
// (/health, /metrics). A Server is built from an explicit Config so tests can
// construct isolated instances against temporary directories.
package server
