package event

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/AOE-khkhan/moe-serifu-agent/internal/cmd"
)

// Registrar is the command registry contract the event module consumes.
type Registrar interface {
	Register(c *cmd.Command) error
	Unregister(name string)
}

// Commands returns the module's built-in commands, backed by this
// dispatcher.
func (d *Dispatcher) Commands() []*cmd.Command {
	return []*cmd.Command{
		{
			Name:        "TIMER",
			Description: "It schedules a command to execute in the future",
			Usage:       "time-ms command",
			Options:     "r",
			Handler:     d.cmdTimer,
		},
		{
			Name:        "DELTIMER",
			Description: "It deletes a timer",
			Usage:       "timer-id",
			Handler:     d.cmdDeltimer,
		},
	}
}

// Setup registers the built-in commands with the registry.
func (d *Dispatcher) Setup(reg Registrar) error {
	for _, c := range d.Commands() {
		if err := reg.Register(c); err != nil {
			return fmt.Errorf("register %s: %w", c.Name, err)
		}
	}
	return nil
}

// Teardown withdraws the built-in commands from the registry.
func (d *Dispatcher) Teardown(reg Registrar) {
	for _, c := range d.Commands() {
		reg.Unregister(c.Name)
	}
}

func (d *Dispatcher) cmdTimer(params cmd.ParamList) error {
	recurring := params.HasOption('r')
	if params.ArgCount() < 2 {
		d.speaker.Say("You gotta give me a time and a command to execute, $USER_TITLE.")
		return nil
	}
	period, err := strconv.Atoi(params.Arg(0))
	if err != nil {
		d.speaker.Say("Sorry, $USER_TITLE, but '" + params.Arg(0) + "' isn't a number of milliseconds.")
		return nil
	}
	ms := time.Duration(period) * time.Millisecond
	cmdStr := strings.Join(params.Args[1:], " ")

	var id int16
	if recurring {
		id, err = d.AddTimer(ms, TopicTextInput, NewTextArgs(cmdStr))
	} else {
		id, err = d.Delay(ms, TopicTextInput, NewTextArgs(cmdStr))
	}
	if err != nil || id == -1 {
		d.speaker.Say("Oh no! I'm sorry, $USER_TITLE, that didn't work quite right!")
		return err
	}

	plural := "s"
	if ms == time.Millisecond {
		plural = ""
	}
	kind := "in"
	if recurring {
		kind = "every"
	}
	d.speaker.Say(fmt.Sprintf("Okay, $USER_TITLE, I will do that %s %d millisecond%s!",
		kind, ms.Milliseconds(), plural))
	d.speaker.Say(fmt.Sprintf("The timer ID is %d.", id))
	return nil
}

func (d *Dispatcher) cmdDeltimer(params cmd.ParamList) error {
	if params.ArgCount() < 1 {
		d.speaker.Say("Ahh... $USER_TITLE, I need to know which timer I should delete.")
		return nil
	}
	id, err := strconv.Atoi(params.Arg(0))
	if err != nil {
		d.speaker.Say("Sorry, $USER_TITLE, but '" + params.Arg(0) + "' isn't an integer.")
		return nil
	}
	if err := d.RemoveTimer(int16(id)); err != nil {
		if errors.Is(err, ErrNoSuchTimer) {
			d.speaker.Say(fmt.Sprintf("Hmm, $USER_TITLE, I can't find a timer with ID %d.", id))
		}
		return err
	}
	d.speaker.Say(fmt.Sprintf("Okay! I stopped timer %d for you, $USER_TITLE.", id))
	return nil
}
