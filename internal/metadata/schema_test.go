package metadata

import (
	"errors"
	"reflect"
	"testing"

	"github.com/himanishpuri/TapAlign/internal/model"
)

func TestParsePath(t *testing.T) {
	s := DefaultSchema()

	tests := []struct {
		name     string
		path     string
		expected FileInfo
	}{
		{
			name: "unix path",
			path: "data/Grp5/S13-PWS/PeriodicAlong/S13_0009-BaT.wav",
			expected: FileInfo{
				Subject: "S13", Group: "PWS", GroupCode: 1,
				ConditionLabel: "PeriodicAlong", ConditionCode: 2, Condition: model.Synchronous,
				File: "S13_0009-BaT",
			},
		},
		{
			name: "windows path",
			path: `C:\study\S02-PNS\Aperiodic\S02_0001.wav`,
			expected: FileInfo{
				Subject: "S02", Group: "PNS", GroupCode: 2,
				ConditionLabel: "Aperiodic", ConditionCode: 1, Condition: model.Free,
				File: "S02_0001",
			},
		},
		{
			name: "subject with dash",
			path: "S-07-pws/aperiodic/take.wav",
			expected: FileInfo{
				Subject: "S-07", Group: "pws", GroupCode: 1,
				ConditionLabel: "aperiodic", ConditionCode: 1, Condition: model.Free,
				File: "take",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := s.ParsePath(tt.path)
			if err != nil {
				t.Fatalf("ParsePath() error: %v", err)
			}
			if got != tt.expected {
				t.Errorf("ParsePath() = %+v, expected %+v", got, tt.expected)
			}
		})
	}
}

func TestParsePathErrors(t *testing.T) {
	s := DefaultSchema()

	tests := []struct {
		path     string
		expected error
	}{
		{"file.wav", ErrBadLayout},
		{"Aperiodic/file.wav", ErrBadLayout},
		{"S13/Aperiodic/file.wav", ErrBadLayout},
		{"S13-/Aperiodic/file.wav", ErrBadLayout},
		{"S13-XYZ/Aperiodic/file.wav", ErrUnknownGroup},
		{"S13-PWS/Metronome/file.wav", ErrUnknownCondition},
	}

	for _, tt := range tests {
		if _, err := s.ParsePath(tt.path); !errors.Is(err, tt.expected) {
			t.Errorf("ParsePath(%q) error = %v, expected %v", tt.path, err, tt.expected)
		}
	}
}

func TestParseGroups(t *testing.T) {
	got, err := ParseGroups(" PWS=1, PNS = 2 ,")
	if err != nil {
		t.Fatalf("ParseGroups() error: %v", err)
	}
	if !reflect.DeepEqual(got, map[string]int{"pws": 1, "pns": 2}) {
		t.Errorf("ParseGroups() = %v", got)
	}

	for _, bad := range []string{"PWS", "PWS=one"} {
		if _, err := ParseGroups(bad); err == nil {
			t.Errorf("ParseGroups(%q) should fail", bad)
		}
	}
}

func TestParseConditions(t *testing.T) {
	got, err := ParseConditions("Aperiodic=1:free,Metronome=3:sync")
	if err != nil {
		t.Fatalf("ParseConditions() error: %v", err)
	}
	expected := map[string]ConditionSpec{
		"aperiodic": {Code: 1, Condition: model.Free},
		"metronome": {Code: 3, Condition: model.Synchronous},
	}
	if !reflect.DeepEqual(got, expected) {
		t.Errorf("ParseConditions() = %v", got)
	}

	for _, bad := range []string{"Aperiodic", "Aperiodic=1", "Aperiodic=x:free", "Aperiodic=1:sometimes"} {
		if _, err := ParseConditions(bad); err == nil {
			t.Errorf("ParseConditions(%q) should fail", bad)
		}
	}
}

func TestParseSchemaKeepsDefaults(t *testing.T) {
	s, err := ParseSchema("", "Metronome=3:sync")
	if err != nil {
		t.Fatalf("ParseSchema() error: %v", err)
	}
	if !reflect.DeepEqual(s.Groups, DefaultSchema().Groups) {
		t.Errorf("groups = %v, expected defaults", s.Groups)
	}
	if _, ok := s.Conditions["aperiodic"]; ok {
		t.Error("conditions should be replaced, not merged")
	}
}

func TestResolve(t *testing.T) {
	info, err := DefaultSchema().Resolve("S01", "pns", "APERIODIC", "take1")
	if err != nil {
		t.Fatalf("Resolve() error: %v", err)
	}
	if info.GroupCode != 2 || info.ConditionCode != 1 || info.Condition != model.Free {
		t.Errorf("Resolve() = %+v", info)
	}
}
