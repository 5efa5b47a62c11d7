//go:build ignore

// Convert UD English Web Treebank CoNLL-U files into sentsplit-bench gold
// files: one sentence per line, a blank line after every document.
// Documents follow the treebank's "# newdoc" markers; paragraphs are not
// split out because sentence-splitter treats a line as one document.
// Usage: go run ./scripts/process-ud-ewt.go [DIR]
package main

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

func main() {
	dir := "testdata/ud-ewt"
	if len(os.Args) > 1 {
		dir = os.Args[1]
	}

	for _, split := range []string{"train", "dev", "test"} {
		inFile := filepath.Join(dir, fmt.Sprintf("en_ewt-ud-%s.conllu", split))
		outFile := filepath.Join(dir, fmt.Sprintf("%s.gold.txt", split))

		fmt.Printf("Processing %s...\n", split)
		docs, err := readCoNLLU(inFile)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error processing %s: %v\n", inFile, err)
			continue
		}
		if err := writeGold(outFile, docs); err != nil {
			fmt.Fprintf(os.Stderr, "Error writing %s: %v\n", outFile, err)
			continue
		}

		sentences := 0
		for _, d := range docs {
			sentences += len(d)
		}
		fmt.Printf("  -> %s (%d documents, %d sentences)\n", outFile, len(docs), sentences)
	}
}

// readCoNLLU returns the "# text" sentences of path grouped by document.
func readCoNLLU(path string) ([][]string, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening file: %w", err)
	}
	defer file.Close()

	var (
		docs    [][]string
		current []string
	)
	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Text()

		if strings.HasPrefix(line, "# newdoc") && len(current) > 0 {
			docs = append(docs, current)
			current = nil
			continue
		}
		if text, ok := strings.CutPrefix(line, "# text = "); ok {
			if text = strings.TrimSpace(text); text != "" {
				current = append(current, text)
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scanning file: %w", err)
	}
	if len(current) > 0 {
		docs = append(docs, current)
	}
	return docs, nil
}

func writeGold(path string, docs [][]string) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating file: %w", err)
	}
	w := bufio.NewWriter(file)
	for _, doc := range docs {
		for _, sent := range doc {
			fmt.Fprintln(w, sent)
		}
		fmt.Fprintln(w)
	}
	if err := w.Flush(); err != nil {
		file.Close()
		return err
	}
	return file.Close()
}
