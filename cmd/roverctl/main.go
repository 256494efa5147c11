// roverctl is the operator console for a robot running roverd (or the
// original firmware): it streams commands over the serial link and
// follows telemetry.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"time"

	"go.bug.st/serial"

	"github.com/apwcr/rover.go/pkg/console"
)

var (
	port   = "/dev/ttyACM0"
	baud   = 230400
	sendHz = 20
)

func init() {
	flag.StringVar(&port, "port", port, "Serial device of the command link.")
	flag.IntVar(&baud, "baud", baud, "Serial baud rate.")
	flag.IntVar(&sendHz, "rate", sendHz, "Command refresh rate in Hz.")
}

func main() {
	flag.Parse()
	log.SetFlags(log.Lmicroseconds)

	p, err := serial.Open(port, &serial.Mode{BaudRate: baud})
	if err != nil {
		log.Fatalf("open %s: %v", port, err)
	}

	session := console.NewSession(p, sendHz)
	ctx, cancel := context.WithCancel(context.Background())
	sessionDone := make(chan error, 1)
	go func() { sessionDone <- session.Run(ctx) }()

	sh := console.NewShell(session)
	runErr := sh.Run(flag.Args()...)

	cancel()
	select {
	case err := <-sessionDone:
		if err != nil && err != context.Canceled {
			log.Printf("session: %v", err)
		}
	case <-time.After(2 * time.Second):
		log.Print("session did not stop in time")
	}
	if runErr != nil {
		log.Fatalln(fmt.Errorf("shell: %w", runErr))
	}
}
