package utils

import (
	"bufio"
	"os"
	"strings"
)

// ExcludedTitles holds titles the user has permanently blocked from
// recommendations, loaded from a plain text file (one title per line)
type ExcludedTitles struct {
	titles []string
}

// LoadExcludedTitles loads blocked titles from a file
func LoadExcludedTitles(path string) (*ExcludedTitles, error) {
	// If file doesn't exist, return empty list
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return &ExcludedTitles{titles: []string{}}, nil
	}

	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	var titles []string
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		title := strings.TrimSpace(scanner.Text())
		if title != "" && !strings.HasPrefix(title, "#") {
			titles = append(titles, title)
		}
	}

	if err := scanner.Err(); err != nil {
		return nil, err
	}

	return &ExcludedTitles{titles: titles}, nil
}

// Titles returns the blocked titles
func (e *ExcludedTitles) Titles() []string {
	return e.titles
}
