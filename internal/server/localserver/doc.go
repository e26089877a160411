// Package localserver provides the local management socket of
// kernelgate-server.
//
// The server listens on a Unix domain socket and speaks a line protocol:
// each request is one line holding a command and its arguments, and each
// reply is one JSON object on its own line. Access is controlled by file
// system permissions on the socket (mode 0600).
//
// Commands:
//
//	ping              liveness check
//	status            registry and build summary
//	sessions          live sessions, tokens masked
//	drain             close every session and refuse new ones
//	level [LEVEL]     show or set the log level
//	reload            re-read the configuration file
//	shutdown          begin graceful shutdown
package localserver
