package main

import (
	"bufio"
	"bytes"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

const schemaFilename = "schema_dynamodb.yaml"

// discoverSchemas finds all schema_dynamodb.yaml files below root.
// Inside a git work tree it asks git, which honors .gitignore; otherwise it
// walks the directory tree.
func discoverSchemas(root string) ([]string, error) {
	if files, err := discoverWithGit(root); err == nil && len(files) > 0 {
		return files, nil
	}
	return discoverWithWalk(root)
}

func discoverWithGit(root string) ([]string, error) {
	if _, err := exec.LookPath("git"); err != nil {
		return nil, err
	}

	cmd := exec.Command("git", "ls-files", "--cached", "--others", "--exclude-standard")
	cmd.Dir = root
	output, err := cmd.Output()
	if err != nil {
		return nil, err
	}

	var files []string
	scanner := bufio.NewScanner(bytes.NewReader(output))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if filepath.Base(line) == schemaFilename {
			files = append(files, absPath(filepath.Join(root, line)))
		}
	}
	return files, scanner.Err()
}

func discoverWithWalk(root string) ([]string, error) {
	var files []string

	skipDirs := map[string]bool{
		".git":         true,
		"node_modules": true,
		"vendor":       true,
		defaultDataDir: true,
	}

	err := filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if d.IsDir() {
			if path != root && skipDirs[d.Name()] {
				return filepath.SkipDir
			}
			return nil
		}
		if d.Name() == schemaFilename {
			files = append(files, absPath(path))
		}
		return nil
	})
	return files, err
}

func absPath(path string) string {
	abs, err := filepath.Abs(path)
	if err != nil {
		return path
	}
	return abs
}
