// Package console provides an interactive prompt that injects simulated
// edges into a gpio.FakeWatcher, for exercising the monitor without the
// overlay board attached.
package console

import (
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/chzyer/readline"

	"github.com/sweeney/status-overlay/internal/gpio"
	"github.com/sweeney/status-overlay/internal/logic"
)

// Trigger injects an edge on a pin.
type Trigger interface {
	Trigger(pin int, edge gpio.Edge) (bool, error)
}

// CountsFunc reports event counts for the status command.
type CountsFunc func() logic.EventCounts

// ErrQuit is returned by Execute when the user asks to leave.
var ErrQuit = errors.New("quit")

// Console reads commands from a readline prompt.
type Console struct {
	rl      *readline.Instance
	trigger Trigger
	counts  CountsFunc
}

// New opens a readline prompt on the terminal.
func New(trigger Trigger, counts CountsFunc) (*Console, error) {
	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "overlay> ",
		InterruptPrompt: "^C",
		EOFPrompt:       "quit",
	})
	if err != nil {
		return nil, fmt.Errorf("readline init: %w", err)
	}
	return &Console{rl: rl, trigger: trigger, counts: counts}, nil
}

// Stdout returns a writer that keeps the prompt intact while asynchronous
// output is printed.
func (c *Console) Stdout() io.Writer {
	return c.rl.Stdout()
}

// Run reads and executes commands until quit, Ctrl-C or EOF.
func (c *Console) Run() {
	fmt.Fprintln(c.rl.Stdout(), "type 'help' for commands")
	for {
		line, err := c.rl.Readline()
		if err != nil {
			// readline.ErrInterrupt on Ctrl-C, io.EOF on Ctrl-D
			return
		}
		err = Execute(c.rl.Stdout(), c.trigger, c.counts, line)
		if errors.Is(err, ErrQuit) {
			return
		}
		if err != nil {
			fmt.Fprintf(c.rl.Stdout(), "error: %v\n", err)
		}
	}
}

// Close releases the terminal.
func (c *Console) Close() error {
	return c.rl.Close()
}

// Execute runs a single command line.
func Execute(out io.Writer, trigger Trigger, counts CountsFunc, line string) error {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return nil
	}

	switch fields[0] {
	case "soc":
		_, err := trigger.Trigger(gpio.PinSOC, gpio.EdgeFalling)
		return err

	case "power":
		_, err := trigger.Trigger(gpio.PinPower, gpio.EdgeFalling)
		return err

	case "fall", "rise":
		if len(fields) != 2 {
			return fmt.Errorf("usage: %s <pin>", fields[0])
		}
		pin, err := strconv.Atoi(fields[1])
		if err != nil {
			return fmt.Errorf("invalid pin %q", fields[1])
		}
		edge := gpio.EdgeFalling
		if fields[0] == "rise" {
			edge = gpio.EdgeRising
		}
		_, err = trigger.Trigger(pin, edge)
		return err

	case "status":
		c := counts()
		fmt.Fprintf(out, "soc=%d power_button=%d\n", c.SOC, c.PowerButton)
		return nil

	case "help":
		fmt.Fprintln(out, "Commands:")
		fmt.Fprintf(out, "  soc          - falling edge on GPIO%d (fuel gauge GPOUT)\n", gpio.PinSOC)
		fmt.Fprintf(out, "  power        - falling edge on GPIO%d (power button)\n", gpio.PinPower)
		fmt.Fprintln(out, "  fall <pin>   - falling edge on any watched pin")
		fmt.Fprintln(out, "  rise <pin>   - rising edge on any watched pin")
		fmt.Fprintln(out, "  status       - show event counts")
		fmt.Fprintln(out, "  quit         - exit")
		return nil

	case "quit", "exit":
		return ErrQuit
	}

	return fmt.Errorf("unknown command: %s (try 'help')", fields[0])
}
