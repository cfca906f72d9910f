package core

import (
	"os"
	"os/user"
	"sync"
)

var (
	hostOnce    sync.Once
	machineName string
	identity    string
)

func loadHost() {
	if name, err := os.Hostname(); err == nil {
		machineName = name
	}
	if u, err := user.Current(); err == nil {
		identity = u.Username
	}
}

// MachineName is the host name, resolved once per process
func MachineName() string {
	hostOnce.Do(loadHost)
	return machineName
}

// Identity is the user the process runs as, resolved once per process
func Identity() string {
	hostOnce.Do(loadHost)
	return identity
}
