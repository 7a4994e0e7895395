// Package server implements the HTTP API for the flowtree engine
//
// Message routes live under /api/messages and flow routes under
// /api/flows. Engine error codes map onto 400, 404, 409 and 500 responses
package server
