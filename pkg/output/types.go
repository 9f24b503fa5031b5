package output

import (
	"encoding/csv"
	"net"
	"os"
	"sync"
)

var (
	outputFile      *os.File
	csvWriter       *csv.Writer
	mu              sync.Mutex
	headerWritten   bool
	sockListener    net.Listener
	sockConnections = make(map[net.Conn]bool)
	sockConnMutex   sync.Mutex
)
