package main

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	jmespath "github.com/jmespath-community/go-jmespath"
)

type outputOptions struct {
	JSON  bool
	Query string
}

// validate compiles the query up front so a typo fails before any I/O.
func (o outputOptions) validate() error {
	if strings.TrimSpace(o.Query) == "" {
		return nil
	}
	if _, err := jmespath.Compile(o.Query); err != nil {
		return fmt.Errorf("invalid -query: %w", err)
	}
	return nil
}

func (o outputOptions) wantsJSON() bool {
	return o.JSON || strings.TrimSpace(o.Query) != ""
}

// writeJSON renders v as indented JSON, filtered through the JMESPath query
// when one is set.
func writeJSON(w io.Writer, v any, query string) error {
	var doc any = v
	if strings.TrimSpace(query) != "" {
		raw, err := json.Marshal(v)
		if err != nil {
			return fmt.Errorf("encode output: %w", err)
		}
		var generic any
		if err := json.Unmarshal(raw, &generic); err != nil {
			return fmt.Errorf("decode output: %w", err)
		}
		doc, err = jmespath.Search(query, generic)
		if err != nil {
			return fmt.Errorf("evaluate -query: %w", err)
		}
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(doc)
}

// readSecret takes the first line of r so passwords never appear in argv or
// shell history.
func readSecret(r io.Reader) (string, error) {
	if r == nil {
		return "", errors.New("no input to read the password from")
	}
	line, err := bufio.NewReader(r).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("read password: %w", err)
	}
	secret := strings.TrimRight(line, "\r\n")
	if secret == "" {
		return "", errors.New("password must be provided on stdin")
	}
	return secret, nil
}
