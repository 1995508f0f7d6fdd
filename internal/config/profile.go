package config

import (
	"bytes"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/hashicorp/go-multierror"
	"gopkg.in/yaml.v3"

	"github.com/wesleyorama2/gabsload/internal/actor"
	"github.com/wesleyorama2/gabsload/internal/failure"
	"github.com/wesleyorama2/gabsload/internal/profile"
	"github.com/wesleyorama2/gabsload/internal/scheduler"
	"github.com/wesleyorama2/gabsload/internal/threshold"
)

// Duration is a time.Duration written as a string such as "30s" or "2h".
type Duration time.Duration

// MarshalYAML implements yaml.Marshaler.
func (d Duration) MarshalYAML() (interface{}, error) {
	return time.Duration(d).String(), nil
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}

	if s == "" {
		*d = 0
		return nil
	}

	dur, err := time.ParseDuration(s)
	if err != nil {
		return err
	}
	*d = Duration(dur)
	return nil
}

// String returns the duration as a string.
func (d Duration) String() string {
	return time.Duration(d).String()
}

// StageSpec is one stage in a profile file.
type StageSpec struct {
	Duration Duration `yaml:"duration"`
	Target   int      `yaml:"target"`
}

// ProfileFile is a custom run profile. Every field is optional; whatever
// is set overrides the base test type.
//
//	base: load
//	stages:
//	  - {duration: 1m, target: 50}
//	  - {duration: 30s, target: 0}
//	thresholds:
//	  - metric: http_req_duration
//	    expressions: ["p(95)<1500"]
//	mix: {customer: 5, vendor: 1, rider: 1}
type ProfileFile struct {
	Base               string           `yaml:"base"`
	Name               string           `yaml:"name"`
	Description        string           `yaml:"description"`
	Stages             []StageSpec      `yaml:"stages"`
	Thresholds         []threshold.Spec `yaml:"thresholds"`
	Mix                map[string]int   `yaml:"mix"`
	MaxJourneyDuration Duration         `yaml:"max_journey_duration"`
}

// LoadProfileFile reads and strictly decodes a profile file.
func LoadProfileFile(path string) (*ProfileFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, failure.Configf(KeyProfileFile, "error reading %s: %v", path, err)
	}

	var pf ProfileFile
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&pf); err != nil {
		return nil, failure.Configf(KeyProfileFile, "error parsing %s: %v", path, err)
	}
	return &pf, nil
}

// Apply overlays the file onto p in place.
func (pf *ProfileFile) Apply(p *profile.Profile) error {
	var errs *multierror.Error

	if pf.Name != "" {
		p.Name = pf.Name
	}
	if pf.Description != "" {
		p.Description = pf.Description
	}
	if len(pf.Stages) > 0 {
		p.Stages = make([]scheduler.Stage, len(pf.Stages))
		for i, st := range pf.Stages {
			p.Stages[i] = scheduler.Stage{Duration: time.Duration(st.Duration), Target: st.Target}
		}
	}
	for _, spec := range pf.Thresholds {
		p.SetThreshold(spec.Metric, spec.Expressions...)
	}
	if len(pf.Mix) > 0 {
		p.Mix = make(map[actor.Kind]int, len(pf.Mix))
		for name, w := range pf.Mix {
			kind, err := actor.Parse(name)
			if err != nil {
				errs = multierror.Append(errs, failure.Configf("mix."+name, "%v", err))
				continue
			}
			p.Mix[kind] = w
		}
	}
	if pf.MaxJourneyDuration > 0 {
		p.MaxJourneyDuration = time.Duration(pf.MaxJourneyDuration)
	}

	return errs.ErrorOrNil()
}

// ParseStages parses "30s:10, 1m:10, 30s:0" into stages.
func ParseStages(s string) ([]scheduler.Stage, error) {
	var stages []scheduler.Stage
	var errs *multierror.Error

	for i, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		field := fmt.Sprintf("%s[%d]", KeyStages, i)

		durStr, targetStr, ok := strings.Cut(part, ":")
		if !ok {
			errs = multierror.Append(errs, failure.Configf(field, "want duration:target, got %q", part))
			continue
		}
		d, err := time.ParseDuration(strings.TrimSpace(durStr))
		if err != nil {
			errs = multierror.Append(errs, failure.Configf(field, "invalid duration %q", durStr))
			continue
		}
		target, err := strconv.Atoi(strings.TrimSpace(targetStr))
		if err != nil {
			errs = multierror.Append(errs, failure.Configf(field, "invalid target %q", targetStr))
			continue
		}
		stages = append(stages, scheduler.Stage{Duration: d, Target: target})
	}

	if err := errs.ErrorOrNil(); err != nil {
		return nil, err
	}
	if len(stages) == 0 {
		return nil, failure.Configf(KeyStages, "no stages given")
	}
	return stages, nil
}

// ResolveProfile picks the test type and applies the profile file and the
// inline stages from s. testType may be empty when the profile file names
// a base. The result is not validated.
func ResolveProfile(testType string, s *Settings) (*profile.Profile, error) {
	var pf *ProfileFile
	if s.ProfileFile != "" {
		var err error
		if pf, err = LoadProfileFile(s.ProfileFile); err != nil {
			return nil, err
		}
		if testType == "" {
			testType = pf.Base
		}
	}
	if testType == "" {
		return nil, failure.Configf("test_type", "a test type is required (one of %s)", strings.Join(profile.Names(), ", "))
	}

	p, err := profile.Lookup(testType)
	if err != nil {
		return nil, err
	}

	if pf != nil {
		if err := pf.Apply(p); err != nil {
			return nil, err
		}
	}
	if s.Stages != "" {
		if p.Stages, err = ParseStages(s.Stages); err != nil {
			return nil, err
		}
	}
	return p, nil
}
