// tool icon rules: user-configurable glyph and color per tool.
//
// the rule file is YAML (JSON is accepted, being YAML). either a bare list
// or a document with a top-level `rules:` list:
//
//	rules:
//	  - tool: "mcp__*"
//	    icon: "⚙"
//	    color: "5"
//	  - tool: Bash
//	    inputContains: "git "
//	    icon: "⎇"
//
// first match wins. built-in defaults are tried after the user's rules.

package main

import (
	"fmt"
	"log"
	"os"
	"regexp"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"gopkg.in/yaml.v3"
)

type iconRule struct {
	Tool          string `yaml:"tool"`
	Source        string `yaml:"source"`
	InputContains string `yaml:"inputContains"`
	InputPattern  string `yaml:"inputPattern"`
	Icon          string `yaml:"icon"`
	Color         string `yaml:"color"`
}

type compiledRule struct {
	iconRule
	glob    bool
	pattern *regexp.Regexp
}

// iconHint is what the viewer draws for a node.
type iconHint struct {
	icon  string
	color string // lipgloss color, "" for the default
}

type iconRules struct {
	rules []compiledRule
}

var defaultIconRules = []iconRule{
	{Tool: "{Read,read,view}", Icon: "≡", Color: "4"},
	{Tool: "{Write,write,Edit,edit,MultiEdit,NotebookEdit}", Icon: "✎", Color: "3"},
	{Tool: "{Bash,bash}", Icon: "$", Color: "2"},
	{Tool: "{Grep,grep,Glob,glob,list,LS}", Icon: "⌕", Color: "6"},
	{Tool: "{Task,task}", Icon: "⟐", Color: "5"},
	{Tool: "{WebFetch,webfetch,WebSearch}", Icon: "⇣", Color: "4"},
	{Tool: "{TodoWrite,todowrite,todoread}", Icon: "☐", Color: "8"},
}

// loadIconRules reads the rule file at path. a missing file yields the
// built-in defaults only. rules with an invalid glob or regexp are skipped.
func loadIconRules(path string) (*iconRules, error) {
	var user []iconRule
	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			user, err = parseIconRules(data)
			if err != nil {
				return nil, fmt.Errorf("parse icon rules %s: %w", path, err)
			}
		case !os.IsNotExist(err):
			return nil, fmt.Errorf("read icon rules: %w", err)
		}
	}
	return compileIconRules(append(user, defaultIconRules...)), nil
}

func parseIconRules(data []byte) ([]iconRule, error) {
	var list []iconRule
	if err := yaml.Unmarshal(data, &list); err == nil {
		return list, nil
	}
	var doc struct {
		Rules []iconRule `yaml:"rules"`
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, err
	}
	return doc.Rules, nil
}

func compileIconRules(rules []iconRule) *iconRules {
	out := &iconRules{}
	for _, r := range rules {
		if r.Icon == "" {
			continue
		}
		c := compiledRule{iconRule: r}
		if strings.ContainsAny(r.Tool, "*?[{") {
			if !doublestar.ValidatePattern(r.Tool) {
				log.Printf("icons: skipping rule with invalid tool glob %q", r.Tool)
				continue
			}
			c.glob = true
		}
		if r.InputPattern != "" {
			re, err := regexp.Compile(r.InputPattern)
			if err != nil {
				log.Printf("icons: skipping rule with invalid pattern %q: %v", r.InputPattern, err)
				continue
			}
			c.pattern = re
		}
		out.rules = append(out.rules, c)
	}
	return out
}

func (c compiledRule) matches(n node) bool {
	if n.tool == nil {
		return false
	}
	if c.Tool != "" {
		if c.glob {
			ok, err := doublestar.Match(c.Tool, n.tool.name)
			if err != nil || !ok {
				return false
			}
		} else if c.Tool != n.tool.name {
			return false
		}
	}
	if c.Source != "" && c.Source != string(n.source) {
		return false
	}
	if c.InputContains != "" && !strings.Contains(n.tool.input, c.InputContains) {
		return false
	}
	if c.pattern != nil && !c.pattern.MatchString(n.tool.input) {
		return false
	}
	return true
}

// lookup returns the icon for n: the first matching rule, else the node
// kind's default glyph. failed tool calls always keep the failure glyph.
func (r *iconRules) lookup(n node) iconHint {
	fallback := iconHint{icon: nodeGlyph(n)}
	if r == nil || n.tool == nil || n.tool.isError || n.kind == kindToolResult {
		return fallback
	}
	for _, c := range r.rules {
		if c.matches(n) {
			return iconHint{icon: c.Icon, color: c.Color}
		}
	}
	return fallback
}
