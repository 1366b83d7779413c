// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package gateway

import "regexp"

// blockRule pairs a compiled pattern with the human-readable reason
// reported when a command matches it.
type blockRule struct {
	reason  string
	pattern *regexp.Regexp
}

// blockRules is the fixed destructive-command blocklist. Matching is
// case-insensitive and happens before any process is spawned. The list
// is a blunt instrument against catastrophic operator input, not a
// sandbox: anything subtler than these patterns is the bearer token
// holder's responsibility.
var blockRules = []blockRule{
	{
		reason: "recursive root deletion",
		// rm with an r flag (any order, any clustering) whose target
		// is / or /*.
		pattern: regexp.MustCompile(`(?i)(^|[\s;&|])rm\s+(-[a-z]+\s+)*-[a-z]*r[a-z]*(\s+-[a-z]+)*\s+/(\s|\*|$|;)`),
	},
	{
		reason:  "filesystem creation",
		pattern: regexp.MustCompile(`(?i)(^|[\s;&|])mkfs`),
	},
	{
		reason:  "dd on a device node",
		pattern: regexp.MustCompile(`(?i)(^|[\s;&|])dd\s+[^;&|]*\b(if|of)=\S*/dev/`),
	},
	{
		reason:  "redirection into /dev",
		pattern: regexp.MustCompile(`>\s*/dev/`),
	},
	{
		reason:  "system shutdown",
		pattern: regexp.MustCompile(`(?i)(^|[\s;&|])shutdown\b`),
	},
	{
		reason:  "system reboot",
		pattern: regexp.MustCompile(`(?i)(^|[\s;&|])reboot\b`),
	},
	{
		reason:  "password manipulation",
		pattern: regexp.MustCompile(`(?i)(^|[\s;&|])passwd\b`),
	},
	{
		reason:  "account creation",
		pattern: regexp.MustCompile(`(?i)(^|[\s;&|])useradd\b`),
	},
	{
		reason:  "account deletion",
		pattern: regexp.MustCompile(`(?i)(^|[\s;&|])userdel\b`),
	},
}

// CheckCommand tests a shell command against the destructive
// blocklist. Returns a *BlockedError naming the matched rule, or nil
// when the command is permitted.
func CheckCommand(command string) error {
	for _, rule := range blockRules {
		if rule.pattern.MatchString(command) {
			return &BlockedError{Reason: rule.reason}
		}
	}
	return nil
}
