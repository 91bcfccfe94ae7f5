// Package policy implements the follow/ignore path regex lists that scope
// a filesystem crawl (spec §4.2): one regex per line, "#" comments, blank
// lines ignored, matched against a platform-normalized path.
/*
 * Copyright (c) 2018-2020, NVIDIA CORPORATION. All rights reserved.
 */
package policy

import (
	"bufio"
	"io"
	"os"
	"regexp"
	"strings"

	"github.com/nsdconnect/crawler/cmn"
)

// List holds a compiled set of regexes loaded from a follow or ignore
// file. A nil or empty List matches nothing (isMatched always false), so
// callers treat "no file configured" as "no filtering".
type List struct {
	patterns []*regexp.Regexp
}

// Load reads fpath as a newline-delimited regex list. An empty fpath
// returns an empty, always-non-matching List.
func Load(fpath string) (*List, error) {
	if fpath == "" {
		return &List{}, nil
	}
	f, err := os.Open(fpath)
	if err != nil {
		return nil, cmn.ErrConfigInvalid("opening policy file %s: %v", fpath, err)
	}
	defer f.Close()
	return parse(f, fpath)
}

func parse(r io.Reader, fpath string) (*List, error) {
	l := &List{}
	scanner := bufio.NewScanner(r)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		re, err := regexp.Compile(line)
		if err != nil {
			return nil, cmn.ErrConfigInvalid("%s:%d: invalid regex %q: %v", fpath, lineNo, line, err)
		}
		l.patterns = append(l.patterns, re)
	}
	if err := scanner.Err(); err != nil {
		return nil, cmn.ErrConfigInvalid("reading policy file %s: %v", fpath, err)
	}
	return l, nil
}

// isMatched reports whether path matches any pattern in the list.
func (l *List) isMatched(path string) bool {
	if l == nil {
		return false
	}
	for _, re := range l.patterns {
		if re.MatchString(path) {
			return true
		}
	}
	return false
}

// IsMatchedNormalized matches path against the list after normalizing
// platform separators to "/" and stripping a leading Windows drive letter
// ("C:\foo\bar" -> "/foo/bar"), so a follow/ignore file authored on one
// platform matches paths walked on another (spec §4.2).
func (l *List) IsMatchedNormalized(path string) bool {
	return l.isMatched(normalize(path))
}

func normalize(path string) string {
	p := strings.ReplaceAll(path, `\`, "/")
	if len(p) >= 2 && p[1] == ':' {
		p = p[2:]
	}
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	return p
}

// Empty reports whether the list has no patterns, i.e. was loaded from an
// unconfigured (empty) path.
func (l *List) Empty() bool { return l == nil || len(l.patterns) == 0 }
