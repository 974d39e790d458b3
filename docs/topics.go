// Package docs embeds the user documentation of ctax.
//
// readme.md is the index: each "* name: summary" line lists the topic stored in
// name.md.
package docs

import (
	"bufio"
	"bytes"
	"embed"
	"fmt"
	"regexp"
	"strings"
)

//go:embed *.md
var files embed.FS

// Topic is one page of the documentation.
type Topic struct {
	Name    string
	Summary string
}

var indexLine = regexp.MustCompile(`^\*\s+([^:]+):\s*(.*)$`)

// Index returns the topics listed in readme.md, in order.
func Index() ([]Topic, error) {
	content, err := files.ReadFile("readme.md")
	if err != nil {
		return nil, err
	}
	var topics []Topic
	sc := bufio.NewScanner(bytes.NewReader(content))
	for sc.Scan() {
		if m := indexLine.FindStringSubmatch(sc.Text()); m != nil {
			topics = append(topics, Topic{Name: strings.TrimSpace(m[1]), Summary: m[2]})
		}
	}
	return topics, sc.Err()
}

// Get returns the content of the named topics, separated by a blank line. "*"
// stands for every topic of the index, "readme" for the index itself.
func Get(names ...string) (string, error) {
	var b strings.Builder
	for _, name := range names {
		if name == "*" {
			topics, err := Index()
			if err != nil {
				return "", err
			}
			for _, t := range topics {
				if err := write(&b, t.Name); err != nil {
					return "", err
				}
			}
			continue
		}
		if err := write(&b, name); err != nil {
			return "", err
		}
	}
	return b.String(), nil
}

func write(b *strings.Builder, name string) error {
	content, err := files.ReadFile(name + ".md")
	if err != nil {
		return fmt.Errorf("topic %q not found: %w", name, err)
	}
	if b.Len() > 0 {
		b.WriteString("\n")
	}
	b.Write(content)
	return nil
}
