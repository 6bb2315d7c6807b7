package main

import (
	"strings"
)

// commandKind identifies a line typed into `bar join`.
type commandKind uint8

const (
	cmdNone commandKind = iota
	cmdChat
	cmdPress
	cmdRelease
	cmdStop
	cmdWho
	cmdWhere
	cmdPing
	cmdQuit
	cmdHelp
	cmdUnknown
)

// command is one parsed input line.
type command struct {
	kind commandKind
	// arg is the chat text, the key name, or the unknown command.
	arg string
}

const joinHelp = `Commands:
  +w  +a  +s  +d      hold a movement key (arrow names work too)
  -w  -a  -s  -d      release it
  /stop               release every key
  /who                list the people in the room
  /where              print your position and last round trip
  /ping               measure the round trip
  /quit               leave
  anything else       say it in chat`

// parseCommand interprets a line of input. Blank lines yield cmdNone.
func parseCommand(line string) command {
	line = strings.TrimSpace(line)
	if line == "" {
		return command{kind: cmdNone}
	}

	switch line[0] {
	case '+':
		return command{kind: cmdPress, arg: strings.TrimSpace(line[1:])}
	case '-':
		if key := strings.TrimSpace(line[1:]); key != "" && !strings.ContainsAny(key, " \t") {
			return command{kind: cmdRelease, arg: key}
		}
		return command{kind: cmdChat, arg: line}
	case '/':
	default:
		return command{kind: cmdChat, arg: line}
	}

	name, rest, _ := strings.Cut(line[1:], " ")
	rest = strings.TrimSpace(rest)
	switch strings.ToLower(name) {
	case "press":
		return command{kind: cmdPress, arg: rest}
	case "release":
		return command{kind: cmdRelease, arg: rest}
	case "stop":
		return command{kind: cmdStop}
	case "who":
		return command{kind: cmdWho}
	case "where":
		return command{kind: cmdWhere}
	case "ping":
		return command{kind: cmdPing}
	case "quit", "exit", "leave":
		return command{kind: cmdQuit}
	case "help", "?":
		return command{kind: cmdHelp}
	case "say":
		return command{kind: cmdChat, arg: rest}
	}
	return command{kind: cmdUnknown, arg: name}
}
