package cli

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"golang.org/x/term"
)

// readPassword is a test seam for term.ReadPassword.
var readPassword = term.ReadPassword

// errUsage is returned by handlers called with the wrong arguments.
var errUsage = errors.New("usage")

// GetSimpleText prints a prompt to w and reads a single trimmed line from
// reader. A final line without a newline is still returned.
func GetSimpleText(reader *bufio.Reader, prompt string, w io.Writer) (string, error) {
	if _, err := fmt.Fprint(w, prompt+"\n> "); err != nil {
		return "", err
	}
	line, err := reader.ReadString('\n')
	if err != nil {
		if errors.Is(err, io.EOF) && len(line) > 0 {
			return strings.TrimSpace(line), nil
		}
		return "", err
	}
	return strings.TrimSpace(line), nil
}

// GetPassword prompts on w and reads a secret from the terminal without
// echo. The caller should wipe the result.
func GetPassword(prompt string, w io.Writer) ([]byte, error) {
	if _, err := fmt.Fprint(w, prompt+": "); err != nil {
		return nil, err
	}
	pw, err := readPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(w)
	if err != nil {
		return nil, err
	}
	return pw, nil
}

// usage prints the expected form of cmd and returns errUsage when args has
// fewer than min elements.
func usage(args []string, min int, form string) error {
	if len(args) < min {
		printlnFn("Usage:", form)
		return errUsage
	}
	return nil
}

func parseIndex(s string) (uint64, error) {
	idx, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		printlnFn("Invalid index:", s)
		return 0, err
	}
	return idx, nil
}

// report prints err for the user and passes it through.
func report(err error) error {
	if err != nil {
		printlnFn("Error:", err.Error())
	}
	return err
}
