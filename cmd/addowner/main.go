// Command addowner creates the owner account from the command line, for
// deployments where the first-run HTTP bootstrap is not practical.
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"

	"campusledger/internal/auth"
	"campusledger/internal/storage"
)

func main() {
	if err := run(os.Args[1:], os.Stdin, os.Stdout, os.Stderr); err != nil {
		if err == flag.ErrHelp {
			os.Exit(0)
		}
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string, stdin io.Reader, stdout, stderr io.Writer) error {
	fs := flag.NewFlagSet("addowner", flag.ContinueOnError)
	fs.SetOutput(stderr)

	studentID := fs.String("id", "", "Owner student id")
	passwordFlag := fs.String("password", "", "Password (optional, will prompt if omitted)")
	dbPath := fs.String("db", "./data/campusledger.db", "Path to database file")

	if err := fs.Parse(args); err != nil {
		return err
	}

	if *studentID == "" {
		fmt.Fprintln(stdout, "Usage: addowner -id <student_id> [-password <password>] [-db <db_path>]")
		fs.PrintDefaults()
		return fmt.Errorf("missing required flags: id")
	}

	password := *passwordFlag
	if password == "" {
		fmt.Fprint(stdout, "Password: ")
		var err error
		password, err = readPassword(stdin)
		if err != nil {
			return fmt.Errorf("failed to read password: %w", err)
		}
		fmt.Fprintln(stdout)
	}

	if strings.TrimSpace(password) == "" {
		return fmt.Errorf("password cannot be empty")
	}

	if path := os.Getenv("SQLITE_DB_PATH"); path != "" && *dbPath == "./data/campusledger.db" {
		*dbPath = path
	}

	repo, err := storage.NewRepository(*dbPath)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer repo.Close()

	svc := auth.NewService(repo)
	id, err := svc.Bootstrap(context.Background(), *studentID, password)
	if err != nil {
		return fmt.Errorf("failed to create owner: %w", err)
	}

	fmt.Fprintf(stdout, "Owner %s created successfully with ID %d\n", *studentID, id)
	return nil
}

func readPassword(stdin io.Reader) (string, error) {
	if f, ok := stdin.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		bytePassword, err := term.ReadPassword(int(f.Fd()))
		if err != nil {
			return "", err
		}
		return string(bytePassword), nil
	}

	// Fallback for non-terminal input (tests, pipes).
	scanner := bufio.NewScanner(stdin)
	if scanner.Scan() {
		return scanner.Text(), nil
	}
	if err := scanner.Err(); err != nil {
		return "", err
	}
	return "", io.EOF
}
