// Package tlsroots loads TLS material for both ends of the HTTP
// transport.
//
// The server side serves a certificate pair that is reloaded when the
// files change on disk, so certificates can be rotated without a
// restart. The client side builds a root pool from the system roots plus
// an optional private CA bundle.
package tlsroots
