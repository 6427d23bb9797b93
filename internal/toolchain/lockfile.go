package toolchain

import (
	"bufio"
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

const (
	pnpmLock = "pnpm-lock.yaml"
	yarnLock = "yarn.lock"
	bunLockb = "bun.lockb"
	bunLock  = "bun.lock"
	npmLock  = "package-lock.json"
)

// detectLockfile returns the package manager implied by the first lockfile present.
func detectLockfile(root string) (PackageManager, string) {
	candidates := []struct {
		name string
		pm   PackageManager
	}{
		{pnpmLock, PNPM},
		{yarnLock, Yarn},
		{bunLockb, Bun},
		{bunLock, Bun},
		{npmLock, NPM},
	}
	for _, c := range candidates {
		if fileExists(filepath.Join(root, c.name)) {
			return c.pm, c.name
		}
	}
	return "", ""
}

// pnpmMajorForLockfile maps a pnpm-lock.yaml lockfileVersion to the pnpm major that
// writes it. Installing with a newer pnpm would rewrite the lockfile.
func pnpmMajorForLockfile(path string) string {
	data, err := os.ReadFile(path)
	if err != nil {
		return ""
	}
	var doc struct {
		LockfileVersion any `yaml:"lockfileVersion"`
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return ""
	}
	var v float64
	switch lv := doc.LockfileVersion.(type) {
	case string:
		v, _ = strconv.ParseFloat(lv, 64)
	case float64:
		v = lv
	case int:
		v = float64(lv)
	}
	switch {
	case v >= 9:
		return "9"
	case v >= 6:
		return "8"
	case v >= 5.4:
		return "7"
	case v >= 5.3:
		return "6"
	case v > 0:
		return "5"
	}
	return ""
}

// yarnIsBerry reports whether yarn.lock was written by Yarn 2 or newer.
func yarnIsBerry(root string) bool {
	if fileExists(filepath.Join(root, ".yarnrc.yml")) {
		return true
	}
	f, err := os.Open(filepath.Join(root, yarnLock))
	if err != nil {
		return false
	}
	defer f.Close()
	scanner := bufio.NewScanner(f)
	for i := 0; scanner.Scan() && i < 20; i++ {
		if strings.HasPrefix(scanner.Text(), "__metadata:") {
			return true
		}
	}
	return false
}

// npmLockfileVersion returns package-lock.json's lockfileVersion, 0 if unknown.
func npmLockfileVersion(path string) int {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0
	}
	var doc struct {
		LockfileVersion int `json:"lockfileVersion"`
	}
	if err := json.NewDecoder(bytes.NewReader(data)).Decode(&doc); err != nil {
		return 0
	}
	return doc.LockfileVersion
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
