package console

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/abiosoft/ishell"

	"github.com/apwcr/rover.go/pkg/config"
)

const sessionKey = "$session"

// Shell is the ishell frontend over a Session.
type Shell struct {
	Shell   *ishell.Shell
	Session *Session
}

// NewShell builds the shell with the rover command set.
func NewShell(s *Session) *Shell {
	sh := &Shell{Shell: ishell.New(), Session: s}
	sh.Shell.Set(sessionKey, s)
	sh.Shell.SetPrompt("rover > ")
	for _, cmd := range commands {
		sh.Shell.AddCmd(cmd)
	}
	return sh
}

// Run processes args as a one-shot command, or enters the interactive
// loop when args is empty.
func (sh *Shell) Run(args ...string) error {
	if len(args) > 0 {
		return sh.Shell.Process(args...)
	}
	sh.Shell.Run()
	return nil
}

func sessionFrom(c *ishell.Context) *Session {
	return c.Get(sessionKey).(*Session)
}

func parseFloatArg(c *ishell.Context, i int, name string) (float64, bool) {
	v, err := strconv.ParseFloat(c.Args[i], 64)
	if err != nil {
		c.Err(fmt.Errorf("invalid %s: %v", name, err))
		return 0, false
	}
	return v, true
}

var commands = []*ishell.Cmd{
	{
		Name:    "drive",
		Aliases: []string{"d"},
		Help:    "LINEAR(ft/s) ANGULAR(deg/s)",
		Func: func(c *ishell.Context) {
			if len(c.Args) < 2 {
				c.Err(fmt.Errorf("LINEAR and ANGULAR required"))
				return
			}
			linear, ok := parseFloatArg(c, 0, "LINEAR")
			if !ok {
				return
			}
			angular, ok := parseFloatArg(c, 1, "ANGULAR")
			if !ok {
				return
			}
			sessionFrom(c).SetDrive(linear, angular)
		},
	},
	{
		Name:    "stop",
		Aliases: []string{"s"},
		Help:    "",
		Func: func(c *ishell.Context) {
			sessionFrom(c).Stop()
		},
	},
	{
		Name: "lid",
		Help: "open | close | DEGREES",
		Func: func(c *ishell.Context) {
			if len(c.Args) < 1 {
				c.Err(fmt.Errorf("position required"))
				return
			}
			s := sessionFrom(c)
			switch strings.ToLower(c.Args[0]) {
			case "open":
				s.SetLid(config.LidOpenDeg)
			case "close":
				s.SetLid(config.LidClosedDeg)
			default:
				deg, ok := parseFloatArg(c, 0, "DEGREES")
				if !ok {
					return
				}
				s.SetLid(deg)
			}
		},
	},
	{
		Name: "sweep",
		Help: "deploy | stow | DEGREES",
		Func: func(c *ishell.Context) {
			if len(c.Args) < 1 {
				c.Err(fmt.Errorf("position required"))
				return
			}
			s := sessionFrom(c)
			switch strings.ToLower(c.Args[0]) {
			case "deploy":
				s.SetSweep(config.SweepDeployDeg)
			case "stow":
				s.SetSweep(config.SweepStowDeg)
			default:
				deg, ok := parseFloatArg(c, 0, "DEGREES")
				if !ok {
					return
				}
				s.SetSweep(deg)
			}
		},
	},
	{
		Name: "motor",
		Help: "rhs|lhs duty|pos VALUE",
		Func: func(c *ishell.Context) {
			if len(c.Args) < 3 {
				c.Err(fmt.Errorf("usage: motor rhs|lhs duty|pos VALUE"))
				return
			}
			var side Side
			switch strings.ToLower(c.Args[0]) {
			case "rhs":
				side = SideRHS
			case "lhs":
				side = SideLHS
			default:
				c.Err(fmt.Errorf("unknown motor %q", c.Args[0]))
				return
			}
			v, ok := parseFloatArg(c, 2, "VALUE")
			if !ok {
				return
			}
			s := sessionFrom(c)
			switch strings.ToLower(c.Args[1]) {
			case "duty":
				s.SetMotorDuty(side, v)
			case "pos":
				s.SetMotorPos(side, v)
			default:
				c.Err(fmt.Errorf("unknown mode %q", c.Args[1]))
			}
		},
	},
	{
		Name:    "status",
		Aliases: []string{"st"},
		Help:    "",
		Func: func(c *ishell.Context) {
			s := sessionFrom(c)
			tel, at, ok := s.Last()
			if !ok {
				c.Println("no telemetry yet")
				return
			}
			c.Println(FormatTelemetry(tel, at, s.Seq()))
		},
	},
}
