// Package main provides CMA-ES optimization for flux physics parameters.
package main

import (
	"github.com/pthm-cable/flux/config"
)

// ParamSpec defines a single optimizable parameter.
type ParamSpec struct {
	Name    string  // Human-readable name
	Path    string  // Config path; selects the field ApplyToConfig writes
	Min     float64 // Lower bound
	Max     float64 // Upper bound
	Default float64 // Default value
}

// ParamVector holds the set of all optimizable parameters.
type ParamVector struct {
	Specs []ParamSpec
}

// NewParamVector creates the standard set of optimizable parameters: the
// constitutive knobs that trade settling speed against stability.
func NewParamVector() *ParamVector {
	return &ParamVector{
		Specs: []ParamSpec{
			{Name: "stiffness", Path: "physics.stiffness", Min: 0.5, Max: 10.0, Default: 3.0},
			{Name: "dynamic_viscosity", Path: "physics.dynamic_viscosity", Min: 0.01, Max: 1.0, Default: 0.1},
			{Name: "dt", Path: "physics.dt", Min: 0.2, Max: 2.0, Default: 1.0},
			{Name: "noise", Path: "physics.noise", Min: 0.0, Max: 0.5, Default: 0.0},
		},
	}
}

// Dim returns the number of parameters.
func (pv *ParamVector) Dim() int { return len(pv.Specs) }

// DefaultVector returns the raw default values.
func (pv *ParamVector) DefaultVector() []float64 {
	out := make([]float64, len(pv.Specs))
	for i, s := range pv.Specs {
		out[i] = s.Default
	}
	return out
}

// Normalize maps raw values into [0,1] per spec bounds.
func (pv *ParamVector) Normalize(raw []float64) []float64 {
	out := make([]float64, len(raw))
	for i, s := range pv.Specs {
		out[i] = (raw[i] - s.Min) / (s.Max - s.Min)
	}
	return out
}

// Denormalize maps [0,1] values back to raw parameter space.
func (pv *ParamVector) Denormalize(x []float64) []float64 {
	out := make([]float64, len(x))
	for i, s := range pv.Specs {
		out[i] = s.Min + x[i]*(s.Max-s.Min)
	}
	return out
}

// Clamp bounds raw values to their specs.
func (pv *ParamVector) Clamp(raw []float64) []float64 {
	out := make([]float64, len(raw))
	for i, s := range pv.Specs {
		v := raw[i]
		if v < s.Min {
			v = s.Min
		} else if v > s.Max {
			v = s.Max
		}
		out[i] = v
	}
	return out
}

// ApplyToConfig writes raw parameter values into a config.
func (pv *ParamVector) ApplyToConfig(cfg *config.Config, raw []float64) {
	for i, s := range pv.Specs {
		v := raw[i]
		switch s.Path {
		case "physics.stiffness":
			cfg.Physics.Stiffness = v
		case "physics.dynamic_viscosity":
			cfg.Physics.DynamicViscosity = v
		case "physics.dt":
			cfg.Physics.DT = v
		case "physics.noise":
			cfg.Physics.Noise = v
		}
	}
}
