// Package api exposes the command protocol over REST. Every command is
// a POST to /api/v1/cli/<command>/<kind>; the response body is always
// the uniform envelope, with the envelope's status mirrored as the HTTP
// status code.
package api
