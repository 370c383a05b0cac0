package main

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/itchyny/gojq"
	"github.com/urfave/cli/v2"
)

func wantsJSON(c *cli.Context) bool {
	return c.Bool("json") || len(c.StringSlice("jq")) > 0
}

// printOutput writes v as JSON when --json or --jq is given and calls human
// otherwise. --jq filters run as a pipeline: each filter is applied to every
// output of the previous one. String results are printed raw.
func printOutput(c *cli.Context, v interface{}, human func(w io.Writer)) error {
	w := c.App.Writer
	if !wantsJSON(c) {
		human(w)
		return nil
	}

	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to marshal output: %w", err)
	}

	filters := c.StringSlice("jq")
	if len(filters) == 0 {
		fmt.Fprintln(w, string(data))
		return nil
	}

	var doc interface{}
	if err := json.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("failed to decode output for jq: %w", err)
	}

	results, err := applyJQ(filters, doc)
	if err != nil {
		return err
	}

	for _, r := range results {
		if s, ok := r.(string); ok {
			fmt.Fprintln(w, s)
			continue
		}
		out, err := json.Marshal(r)
		if err != nil {
			return fmt.Errorf("failed to marshal jq result: %w", err)
		}
		fmt.Fprintln(w, string(out))
	}
	return nil
}

func applyJQ(filters []string, doc interface{}) ([]interface{}, error) {
	inputs := []interface{}{doc}
	for _, filter := range filters {
		query, err := gojq.Parse(filter)
		if err != nil {
			return nil, fmt.Errorf("failed to parse jq filter %q: %w", filter, err)
		}
		code, err := gojq.Compile(query)
		if err != nil {
			return nil, fmt.Errorf("failed to compile jq filter %q: %w", filter, err)
		}

		var outputs []interface{}
		for _, in := range inputs {
			iter := code.Run(in)
			for {
				v, ok := iter.Next()
				if !ok {
					break
				}
				if err, isErr := v.(error); isErr {
					return nil, fmt.Errorf("jq filter %q failed: %w", filter, err)
				}
				outputs = append(outputs, v)
			}
		}
		inputs = outputs
	}
	return inputs, nil
}

// readInput returns the first argument, or the first line of stdin when
// no argument is given.
func readInput(c *cli.Context, what string) (string, error) {
	if c.NArg() > 0 {
		return c.Args().First(), nil
	}

	scanner := bufio.NewScanner(c.App.Reader)
	scanner.Buffer(make([]byte, 0, 4096), 1<<20)
	if !scanner.Scan() {
		if err := scanner.Err(); err != nil {
			return "", fmt.Errorf("failed to read %s: %w", what, err)
		}
		return "", fmt.Errorf("%s is required (argument or first line of stdin)", what)
	}
	line := strings.TrimSpace(scanner.Text())
	if line == "" {
		return "", fmt.Errorf("%s is required (argument or first line of stdin)", what)
	}
	return line, nil
}
