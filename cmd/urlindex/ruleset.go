package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/AdguardTeam/golibs/errors"
	"github.com/AdguardTeam/urlindex/rules"
	"gopkg.in/yaml.v2"
)

// ruleSet is the structure of the YAML rule file.
type ruleSet struct {
	// Rules are the rules to index.
	Rules []*ruleConfig `yaml:"rules"`
}

// ruleConfig is a single rule in the rule file.
type ruleConfig struct {
	// Text is the original text of the rule, used for reporting.
	Text string `yaml:"text"`

	// Hostname is the hostname the rule is anchored to, if any.
	Hostname string `yaml:"hostname"`

	// Modifier is the payload of the $redirect, $csp, or $removeparam
	// modifier.
	Modifier string `yaml:"modifier"`

	// Tag is the category of the rule.
	Tag string `yaml:"tag"`

	// Patterns are the alternative URL patterns.
	Patterns []string `yaml:"patterns"`

	// Options are the names of the options, like "third-party" or
	// "important".
	Options []string `yaml:"options"`

	// Types are the names of the request types, like "script".
	Types []string `yaml:"types"`

	// Domains are the source domains the rule is restricted to.
	Domains []string `yaml:"domains"`

	// ExcludedDomains are the source domains the rule is disabled on.
	ExcludedDomains []string `yaml:"excluded_domains"`
}

// readRuleSet reads and converts the rules from the YAML file at path.
func readRuleSet(path string) (rs []*rules.NetworkRule, err error) {
	// #nosec G304 -- Trust the file path that is given from the command line.
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading rule file: %w", err)
	}

	return parseRuleSet(b)
}

// parseRuleSet converts the YAML rule file contents into rules.
func parseRuleSet(b []byte) (rs []*rules.NetworkRule, err error) {
	set := &ruleSet{}
	err = yaml.UnmarshalStrict(b, set)
	if err != nil {
		return nil, fmt.Errorf("parsing rule file: %w", err)
	}

	var errs []error
	rs = make([]*rules.NetworkRule, 0, len(set.Rules))
	for i, c := range set.Rules {
		var f *rules.NetworkRule
		f, err = c.toInternal()
		if err != nil {
			errs = append(errs, fmt.Errorf("rule at index %d: %w", i, err))

			continue
		}

		rs = append(rs, f)
	}

	err = errors.Join(errs...)
	if err != nil {
		return nil, err
	}

	return rs, nil
}

// toInternal returns the rule described by c.  It returns an error if c has
// unknown options or types or if the resulting rule isn't valid.
func (c *ruleConfig) toInternal() (f *rules.NetworkRule, err error) {
	if c == nil {
		return nil, errors.ErrNoValue
	}

	var m rules.Mask
	for _, name := range c.Options {
		o, ok := rules.ParseOption(name)
		if !ok {
			return nil, fmt.Errorf("options: %w: %q", errors.ErrBadEnumValue, name)
		}

		m |= o
	}

	var types rules.RequestType
	for _, name := range c.Types {
		t, ok := rules.ParseRequestType(name)
		if !ok {
			return nil, fmt.Errorf("types: %w: %q", errors.ErrBadEnumValue, name)
		}

		types |= t
	}

	m |= rules.MaskFromTypes(types)

	patterns := c.Patterns
	if !m.Has(rules.OptionMatchCase) && !m.Has(rules.OptionRegex) {
		patterns = make([]string, 0, len(c.Patterns))
		for _, p := range c.Patterns {
			patterns = append(patterns, strings.ToLower(p))
		}
	}

	f = &rules.NetworkRule{
		RuleText:          c.Text,
		Hostname:          strings.ToLower(c.Hostname),
		Modifier:          c.Modifier,
		Tag:               c.Tag,
		Patterns:          patterns,
		PermittedDomains:  rules.NewDomainSet(c.Domains...),
		RestrictedDomains: rules.NewDomainSet(c.ExcludedDomains...),
		Mask:              m,
	}

	err = f.Validate()
	if err != nil {
		return nil, err
	}

	return f, nil
}
