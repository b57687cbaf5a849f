package main

import (
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
)

// cmdOpen opens a problem and makes it current
func cmdOpen(args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("problem required (e.g., codelab open algo-101/two-sum)")
	}
	key, err := parseKey(args[0])
	if err != nil {
		return err
	}
	reload := len(args) > 1 && args[1] == "--reload"

	if err := callView(http.MethodPost, key, "open", map[string]bool{"reload": reload}); err != nil {
		return err
	}
	return saveCurrent(key)
}

func cmdShow(args []string) error {
	key, _, err := resolveKey(args, 0)
	if err != nil {
		return err
	}
	return callView(http.MethodGet, key, "", nil)
}

// cmdEdit replaces the code buffer from a file, or stdin for "-"
func cmdEdit(args []string) error {
	key, rest, err := resolveKey(args, 1)
	if err != nil {
		return err
	}
	if len(rest) < 1 {
		return fmt.Errorf("source file required (use - for stdin)")
	}
	code, err := readSource(rest[0])
	if err != nil {
		return err
	}
	return callView(http.MethodPut, key, "code", map[string]string{"code": code})
}

func cmdLang(args []string) error {
	key, rest, err := resolveKey(args, 1)
	if err != nil {
		return err
	}
	if len(rest) < 1 {
		return fmt.Errorf("language required (e.g., python, cpp, javascript)")
	}
	return callView(http.MethodPut, key, "language", map[string]string{"language": rest[0]})
}

func cmdCase(args []string) error {
	key, rest, err := resolveKey(args, 1)
	if err != nil {
		return err
	}
	if len(rest) < 1 {
		return fmt.Errorf("test case number required")
	}
	index, err := strconv.Atoi(rest[0])
	if err != nil {
		return fmt.Errorf("invalid test case number %q", rest[0])
	}
	return callView(http.MethodPut, key, "active-case", map[string]int{"index": index})
}

func cmdRun(args []string) error {
	key, _, err := resolveKey(args, 0)
	if err != nil {
		return err
	}
	fmt.Println("Running test cases...")
	return callView(http.MethodPost, key, "run", nil)
}

// cmdCustom runs against custom stdin read from a file, from stdin for "-",
// or given inline when no such file exists
func cmdCustom(args []string) error {
	key, rest, err := resolveKey(args, 1)
	if err != nil {
		return err
	}
	if len(rest) < 1 {
		return fmt.Errorf("custom input required (file, - for stdin, or inline text)")
	}
	input := rest[0]
	if info, err := os.Stat(input); input == "-" || (err == nil && !info.IsDir()) {
		if input, err = readSource(input); err != nil {
			return err
		}
	}
	return callView(http.MethodPost, key, "run-custom", map[string]string{"input": input})
}

func cmdSubmit(args []string) error {
	key, _, err := resolveKey(args, 0)
	if err != nil {
		return err
	}
	fmt.Println("Re-running test cases before submitting...")
	return callView(http.MethodPost, key, "submit", nil)
}

func readSource(name string) (string, error) {
	var (
		data []byte
		err  error
	)
	if name == "-" {
		data, err = io.ReadAll(os.Stdin)
	} else {
		data, err = os.ReadFile(name)
	}
	if err != nil {
		return "", fmt.Errorf("read source: %w", err)
	}
	return string(data), nil
}
