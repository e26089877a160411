// Package config provides the kernelgate-cli configuration.
//
// The file (~/.kernelgate/cli.yaml by default) stores named connection
// profiles and output preferences:
//
//	default_output: table
//	current_profile: lab
//	profiles:
//	  lab:
//	    server: http://10.0.0.5:5080
//	    socket: /run/kernelgate/admin.sock
package config
