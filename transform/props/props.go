// Package props implements the Java-properties-style "key = value"
// parser shared by field-mapper, pc-collapse and parent-child-collapse
// (spec §6 "Field-mapper file" / "pc-collapse file", §9: "splits on the
// first = after key trimming"). Deliberately hand-written rather than a
// generic properties library: a library that trims or normalizes keys
// would violate the literal "keys may contain whitespace" requirement.
/*
 * Copyright (c) 2018-2020, NVIDIA CORPORATION. All rights reserved.
 */
package props

import (
	"bufio"
	"os"
	"strings"

	"github.com/nsdconnect/crawler/cmn"
)

// Load reads fpath as an ordered sequence of "key = value" lines, "#"
// starting a comment line, blank lines ignored. Each line splits on its
// first "=" only; both sides are trimmed, so internal whitespace within
// a key is preserved.
func Load(fpath string) (map[string]string, error) {
	f, err := os.Open(fpath)
	if err != nil {
		return nil, cmn.ErrConfigInvalid("opening properties file %s: %v", fpath, err)
	}
	defer f.Close()

	out := map[string]string{}
	scanner := bufio.NewScanner(f)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := scanner.Text()
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || strings.HasPrefix(trimmed, "#") {
			continue
		}
		i := strings.IndexByte(line, '=')
		if i < 0 {
			return nil, cmn.ErrConfigInvalid("%s:%d: missing '=' in %q", fpath, lineNo, line)
		}
		key := strings.TrimSpace(line[:i])
		value := strings.TrimSpace(line[i+1:])
		out[key] = value
	}
	if err := scanner.Err(); err != nil {
		return nil, cmn.ErrConfigInvalid("reading properties file %s: %v", fpath, err)
	}
	return out, nil
}
