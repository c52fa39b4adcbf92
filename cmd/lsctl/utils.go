// Copyright (c) 2019-present Mattermost, Inc. All Rights Reserved.
// See LICENSE.txt for license information.

package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/fatih/color"
)

// prompter asks questions on out and reads the answers from in.
type prompter struct {
	in  *bufio.Reader
	out io.Writer
}

func newPrompter(in io.Reader, out io.Writer) *prompter {
	return &prompter{in: bufio.NewReader(in), out: out}
}

// ask prints label and returns the answer, or def when the answer is empty.
// Answers rejected by check are asked again.
func (p *prompter) ask(label, def string, check func(string) error) (string, error) {
	for {
		fmt.Fprint(p.out, color.GreenString(label))
		if def != "" {
			fmt.Fprintf(p.out, " (default: %s)", color.CyanString(def))
		}
		fmt.Fprint(p.out, ": ")

		line, err := p.in.ReadString('\n')
		if err != nil && !(errors.Is(err, io.EOF) && line != "") {
			return "", fmt.Errorf("unable to read answer from user: %w", err)
		}

		answer := strings.TrimSpace(line)
		if answer == "" {
			answer = def
		}
		if check != nil {
			if err := check(answer); err != nil {
				fmt.Fprintln(p.out, color.RedString("%s. Retry:", err))
				continue
			}
		}
		return answer, nil
	}
}

// confirm asks a yes/no question, returning def on an empty answer.
func (p *prompter) confirm(label string, def bool) (bool, error) {
	hint := "[y/N]"
	if def {
		hint = "[Y/n]"
	}
	for {
		answer, err := p.ask(label+" "+hint, "", nil)
		if err != nil {
			return false, err
		}
		switch strings.ToLower(answer) {
		case "":
			return def, nil
		case "y", "yes":
			return true, nil
		case "n", "no":
			return false, nil
		}
		fmt.Fprintln(p.out, color.RedString("please answer yes or no. Retry:"))
	}
}

// askForConfirmation prints the prompt to the standard output, followed by the
// string " [y/N] ". Then it reads from the standard input and returns true if
// and only if the read input is either "y" or "yes". It is case-insensitive.
func askForConfirmation(prompt string) (bool, error) {
	return newPrompter(os.Stdin, os.Stdout).confirm(prompt, false)
}
