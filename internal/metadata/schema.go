// Package metadata maps recording paths to subject, group and condition codes.
package metadata

import (
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/himanishpuri/TapAlign/internal/model"
)

var (
	ErrUnknownGroup     = errors.New("unknown subject group")
	ErrUnknownCondition = errors.New("unknown condition")
	ErrBadLayout        = errors.New("path does not follow <Subject>-<Group>/<Condition>/<File>.wav")
)

// ConditionSpec is the export code and matching policy of a condition label.
type ConditionSpec struct {
	Code      int
	Condition model.Condition
}

// Schema holds the lookup tables for one experiment. Labels are matched
// case-insensitively.
type Schema struct {
	Groups     map[string]int
	Conditions map[string]ConditionSpec
}

// FileInfo describes one recording.
type FileInfo struct {
	Subject        string
	Group          string
	GroupCode      int
	ConditionLabel string
	ConditionCode  int
	Condition      model.Condition
	File           string
}

// DefaultSchema returns the PWS/PNS group table and the Aperiodic/PeriodicAlong conditions.
func DefaultSchema() Schema {
	return Schema{
		Groups: map[string]int{"pws": 1, "pns": 2},
		Conditions: map[string]ConditionSpec{
			"aperiodic":     {Code: 1, Condition: model.Free},
			"periodicalong": {Code: 2, Condition: model.Synchronous},
		},
	}
}

// ParseGroups parses "PWS=1,PNS=2".
func ParseGroups(s string) (map[string]int, error) {
	groups := make(map[string]int)
	for _, item := range splitList(s) {
		label, value, ok := strings.Cut(item, "=")
		if !ok {
			return nil, fmt.Errorf("group %q: expected LABEL=CODE", item)
		}
		code, err := strconv.Atoi(strings.TrimSpace(value))
		if err != nil {
			return nil, fmt.Errorf("group %q: invalid code: %w", item, err)
		}
		groups[normalize(label)] = code
	}
	return groups, nil
}

// ParseConditions parses "Aperiodic=1:free,PeriodicAlong=2:synchronous".
func ParseConditions(s string) (map[string]ConditionSpec, error) {
	conditions := make(map[string]ConditionSpec)
	for _, item := range splitList(s) {
		label, value, ok := strings.Cut(item, "=")
		if !ok {
			return nil, fmt.Errorf("condition %q: expected LABEL=CODE:POLICY", item)
		}
		codeStr, policy, ok := strings.Cut(value, ":")
		if !ok {
			return nil, fmt.Errorf("condition %q: missing matching policy", item)
		}
		code, err := strconv.Atoi(strings.TrimSpace(codeStr))
		if err != nil {
			return nil, fmt.Errorf("condition %q: invalid code: %w", item, err)
		}
		c, err := model.ParseCondition(strings.TrimSpace(policy))
		if err != nil {
			return nil, fmt.Errorf("condition %q: %w", item, err)
		}
		conditions[normalize(label)] = ConditionSpec{Code: code, Condition: c}
	}
	return conditions, nil
}

// ParseSchema builds a schema from the two flag strings. An empty string keeps
// the corresponding default table.
func ParseSchema(groups, conditions string) (Schema, error) {
	s := DefaultSchema()
	if strings.TrimSpace(groups) != "" {
		g, err := ParseGroups(groups)
		if err != nil {
			return Schema{}, err
		}
		s.Groups = g
	}
	if strings.TrimSpace(conditions) != "" {
		c, err := ParseConditions(conditions)
		if err != nil {
			return Schema{}, err
		}
		s.Conditions = c
	}
	return s, nil
}

// Resolve looks up the codes for explicitly given values.
func (s Schema) Resolve(subject, group, condition, file string) (FileInfo, error) {
	groupCode, ok := s.lookupGroup(group)
	if !ok {
		return FileInfo{}, fmt.Errorf("%w: %q (known: %s)", ErrUnknownGroup, group, strings.Join(s.groupLabels(), ", "))
	}
	spec, ok := s.lookupCondition(condition)
	if !ok {
		return FileInfo{}, fmt.Errorf("%w: %q (known: %s)", ErrUnknownCondition, condition, strings.Join(s.conditionLabels(), ", "))
	}
	return FileInfo{
		Subject:        subject,
		Group:          group,
		GroupCode:      groupCode,
		ConditionLabel: condition,
		ConditionCode:  spec.Code,
		Condition:      spec.Condition,
		File:           file,
	}, nil
}

// ParsePath reads subject, group and condition from the directory layout
// .../<Subject>-<Group>/<Condition>/<File>.wav. Both slash styles are accepted.
func (s Schema) ParsePath(path string) (FileInfo, error) {
	parts := strings.FieldsFunc(path, func(r rune) bool { return r == '/' || r == '\\' })
	if len(parts) < 3 {
		return FileInfo{}, fmt.Errorf("%w: %s", ErrBadLayout, path)
	}

	base := parts[len(parts)-1]
	condition := parts[len(parts)-2]
	subjectDir := parts[len(parts)-3]

	idx := strings.LastIndex(subjectDir, "-")
	if idx <= 0 || idx == len(subjectDir)-1 {
		return FileInfo{}, fmt.Errorf("%w: %s", ErrBadLayout, path)
	}

	file := strings.TrimSuffix(base, filepath.Ext(base))
	return s.Resolve(subjectDir[:idx], subjectDir[idx+1:], condition, file)
}

func (s Schema) lookupGroup(label string) (int, bool) {
	code, ok := s.Groups[normalize(label)]
	return code, ok
}

func (s Schema) lookupCondition(label string) (ConditionSpec, bool) {
	spec, ok := s.Conditions[normalize(label)]
	return spec, ok
}

func (s Schema) groupLabels() []string {
	labels := make([]string, 0, len(s.Groups))
	for l := range s.Groups {
		labels = append(labels, l)
	}
	sort.Strings(labels)
	return labels
}

func (s Schema) conditionLabels() []string {
	labels := make([]string, 0, len(s.Conditions))
	for l := range s.Conditions {
		labels = append(labels, l)
	}
	sort.Strings(labels)
	return labels
}

func normalize(label string) string {
	return strings.ToLower(strings.TrimSpace(label))
}

func splitList(s string) []string {
	var items []string
	for _, item := range strings.Split(s, ",") {
		if item = strings.TrimSpace(item); item != "" {
			items = append(items, item)
		}
	}
	return items
}
