// Command hashpass prints a bcrypt hash for admin.password_hash.
//
//	go run ./cmd/hashpass            # prompts on stdin
//	go run ./cmd/hashpass -p secret
package main

import (
	"bufio"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/lk2023060901/startpage-backend/internal/admin"
)

var password = flag.String("p", "", "password to hash (read from stdin when empty)")

func main() {
	flag.Parse()

	pw := *password
	if pw == "" {
		fmt.Fprint(os.Stderr, "password: ")
		line, err := bufio.NewReader(os.Stdin).ReadString('\n')
		if err != nil && line == "" {
			fmt.Fprintln(os.Stderr, "failed to read password:", err)
			os.Exit(1)
		}
		pw = strings.TrimRight(line, "\r\n")
	}
	if pw == "" {
		fmt.Fprintln(os.Stderr, "password must not be empty")
		os.Exit(1)
	}

	hash, err := admin.HashPassword(pw)
	if err != nil {
		fmt.Fprintln(os.Stderr, "failed to hash password:", err)
		os.Exit(1)
	}
	fmt.Println(hash)
}
