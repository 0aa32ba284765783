package file

import (
	"fmt"
	"strings"
)

// Step is one workflow operation on a File.
type Step int

const (
	StepLoad Step = iota
	StepCompile
	StepParse
	StepInline
	StepReplaceReferences
	StepReplaceEnvironment
	StepLint
	StepEscape
	StepCompress
	StepWrap
	StepConcat
)

var stepNames = []string{
	StepLoad:               "load",
	StepCompile:            "compile",
	StepParse:              "parse",
	StepInline:             "inline",
	StepReplaceReferences:  "replaceReferences",
	StepReplaceEnvironment: "replaceEnvironment",
	StepLint:               "lint",
	StepEscape:             "escape",
	StepCompress:           "compress",
	StepWrap:               "wrap",
	StepConcat:             "concat",
}

func (s Step) String() string {
	if int(s) < 0 || int(s) >= len(stepNames) {
		return fmt.Sprintf("step(%d)", int(s))
	}
	return stepNames[s]
}

// ParseStep converts a step name.
func ParseStep(name string) (Step, error) {
	for i, n := range stepNames {
		if n == name {
			return Step(i), nil
		}
	}
	return 0, fmt.Errorf("unknown workflow step: %q", name)
}

// Flag is a boolean build property a Task can be conditioned on.
type Flag int

const (
	FlagBatch Flag = iota
	FlagBoilerplate
	FlagBootstrap
	FlagBundle
	FlagCompress
	FlagLazy
	FlagWatch
)

var flagNames = []string{
	FlagBatch:       "batch",
	FlagBoilerplate: "boilerplate",
	FlagBootstrap:   "bootstrap",
	FlagBundle:      "bundle",
	FlagCompress:    "compress",
	FlagLazy:        "lazy",
	FlagWatch:       "watch",
}

func (f Flag) String() string {
	if int(f) < 0 || int(f) >= len(flagNames) {
		return fmt.Sprintf("flag(%d)", int(f))
	}
	return flagNames[f]
}

// ParseFlag converts a flag name.
func ParseFlag(name string) (Flag, error) {
	for i, n := range flagNames {
		if n == name {
			return Flag(i), nil
		}
	}
	return 0, fmt.Errorf("unknown workflow condition: %q", name)
}

// Options are the per-build switches a File run is evaluated against.
type Options struct {
	Batch       bool
	Boilerplate bool
	Bootstrap   bool
	Bundle      bool
	Compress    bool
	Lazy        bool
	Watch       bool
	// IgnoredFiles are paths claimed by child builds. They are referenced
	// but never adopted as dependencies.
	IgnoredFiles []string
	// Version is stamped into generated headers.
	Version string
}

// Has reports whether flag is set.
func (o Options) Has(flag Flag) bool {
	switch flag {
	case FlagBatch:
		return o.Batch
	case FlagBoilerplate:
		return o.Boilerplate
	case FlagBootstrap:
		return o.Bootstrap
	case FlagBundle:
		return o.Bundle
	case FlagCompress:
		return o.Compress
	case FlagLazy:
		return o.Lazy
	case FlagWatch:
		return o.Watch
	}
	return false
}

func (o Options) ignores(path string) bool {
	for _, p := range o.IgnoredFiles {
		if p == path {
			return true
		}
	}
	return false
}

// Task is a Step guarded by flags that must all be set.
type Task struct {
	Step Step
	When []Flag
}

// ParseTask parses "step" or "step:flag[:flag...]".
func ParseTask(s string) (Task, error) {
	parts := strings.Split(strings.TrimSpace(s), ":")
	step, err := ParseStep(parts[0])
	if err != nil {
		return Task{}, err
	}
	task := Task{Step: step}
	for _, name := range parts[1:] {
		flag, err := ParseFlag(name)
		if err != nil {
			return Task{}, fmt.Errorf("invalid task %q: %w", s, err)
		}
		task.When = append(task.When, flag)
	}
	return task, nil
}

func (t Task) String() string {
	parts := []string{t.Step.String()}
	for _, f := range t.When {
		parts = append(parts, f.String())
	}
	return strings.Join(parts, ":")
}

// Enabled reports whether every condition holds for opts.
func (t Task) Enabled(opts Options) bool {
	for _, f := range t.When {
		if !opts.Has(f) {
			return false
		}
	}
	return true
}

// Stage is an ordered list of tasks run together.
type Stage []Task

// Steps returns the steps enabled for opts.
func (s Stage) Steps(opts Options) []Step {
	var steps []Step
	for _, t := range s {
		if t.Enabled(opts) {
			steps = append(steps, t.Step)
		}
	}
	return steps
}

// Workflow is the sequence of stages for one file type. Stage 0 runs on
// every referenced file, stage 1 only on writeable files.
type Workflow []Stage

// ParseWorkflow parses stages of task strings.
func ParseWorkflow(stages [][]string) (Workflow, error) {
	workflow := make(Workflow, 0, len(stages))
	for _, names := range stages {
		stage := make(Stage, 0, len(names))
		for _, name := range names {
			task, err := ParseTask(name)
			if err != nil {
				return nil, err
			}
			stage = append(stage, task)
		}
		workflow = append(workflow, stage)
	}
	return workflow, nil
}

// MustParseWorkflow is ParseWorkflow for static tables.
func MustParseWorkflow(stages ...[]string) Workflow {
	w, err := ParseWorkflow(stages)
	if err != nil {
		panic(err)
	}
	return w
}

// StepsKey identifies a step list so a file runs each list only once.
func StepsKey(steps []Step) string {
	names := make([]string, len(steps))
	for i, s := range steps {
		names[i] = s.String()
	}
	return strings.Join(names, ",")
}
