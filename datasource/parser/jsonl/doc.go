// Package jsonl parses JSON Lines data. This parser uses https://github.com/tidwall/gjson to process data, and resolves column references as gjson paths.
package jsonl
