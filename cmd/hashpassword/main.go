// Command hashpassword prints a bcrypt hash for ADMIN_PASSWORD_HASH.
//
// The password is read from the first argument, or from stdin when no
// argument is given so it stays out of shell history.
package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/trpi/scheduling-server-go/internal/util"
)

func main() {
	password, err := readPassword()
	if err != nil {
		fmt.Fprintf(os.Stderr, "hashpassword: %v\n", err)
		os.Exit(1)
	}

	hash, err := util.HashPassword(password)
	if err != nil {
		fmt.Fprintf(os.Stderr, "hashpassword: %v\n", err)
		os.Exit(1)
	}
	if !util.CheckPasswordHash(password, hash) {
		fmt.Fprintln(os.Stderr, "hashpassword: generated hash did not verify")
		os.Exit(1)
	}

	fmt.Println(hash)
}

func readPassword() (string, error) {
	if len(os.Args) > 1 {
		return os.Args[1], nil
	}

	fmt.Fprint(os.Stderr, "password: ")
	line, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil && line == "" {
		return "", fmt.Errorf("read password: %w", err)
	}
	password := strings.TrimRight(line, "\r\n")
	if password == "" {
		return "", fmt.Errorf("empty password")
	}
	return password, nil
}
