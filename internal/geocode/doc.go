// Package geocode resolves GPS coordinates to human-readable places. The
// Service consults the catalog's rounded-coordinate cache first and sends
// at most one upstream request per second, backing off exponentially when
// the upstream throttles.
package geocode
