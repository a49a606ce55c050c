// Mgmt
// Copyright (C) James Shubin and the project contributors
// Written by James Shubin <james@shubin.ca> and the project contributors
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with this program.  If not, see <https://www.gnu.org/licenses/>.

// Package distributions contains the library of distribution families that
// the graph builder resolves sample and observe sites against.
package distributions

import (
	"fmt"
	"sort"
	"strings"

	"github.com/purpleidea/probgraph/lang/ast"
	"github.com/purpleidea/probgraph/lang/interfaces"
	"github.com/purpleidea/probgraph/util/errwrap"

	"github.com/iancoleman/strcase"
)

// Prefix is the namespace that the emitted code puts every family in. Names
// that carry it are looked up without it.
const Prefix = "dist."

// registeredDistributions is a global map of all the families which can be
// used, keyed by their normalized name. You should never touch this map
// directly. Use methods like Register instead.
var registeredDistributions = make(map[string]*interfaces.Distribution) // must initialize

// registeredAliases maps alternate normalized names to normalized names.
var registeredAliases = make(map[string]string)

// Register makes a family available for use. It is commonly called in the
// init() method at program startup. There is no matching Unregister function.
func Register(d *interfaces.Distribution) {
	key := Normalize(d.Name)
	if _, exists := registeredDistributions[key]; exists {
		panic(fmt.Sprintf("a distribution named %s is already registered", d.Name))
	}
	registeredDistributions[key] = d
}

// RegisterAlias adds an alternate name for a registered family.
func RegisterAlias(alias, name string) {
	key := Normalize(alias)
	if _, exists := registeredAliases[key]; exists {
		panic(fmt.Sprintf("an alias named %s is already registered", alias))
	}
	registeredAliases[key] = Normalize(name)
}

// Normalize returns the lookup key of a family name. Case and word separators
// don't matter, so Normal, normal and dist.Normal are the same family, as are
// LogNormal and log_normal.
func Normalize(name string) string {
	return strcase.ToSnake(strings.TrimPrefix(name, Prefix))
}

// vector is the dimension of a family whose draws are as long as its first
// argument.
func vector(args []ast.Node) int {
	if len(args) > 0 {
		if v, ok := args[0].(*ast.Vector); ok {
			return len(v.Items)
		}
	}
	return 1
}

func init() {
	continuous := func(name string, params ...string) *interfaces.Distribution {
		return &interfaces.Distribution{Name: name, Params: params, Continuous: true}
	}
	discrete := func(name string, params ...string) *interfaces.Distribution {
		return &interfaces.Distribution{Name: name, Params: params, Continuous: false}
	}

	Register(discrete("Bernoulli", "probs"))
	Register(continuous("Beta", "alpha", "beta"))
	Register(discrete("Binomial", "total_count", "probs"))
	Register(discrete("Categorical", "probs"))
	Register(continuous("Cauchy", "mu", "gamma"))
	Register(&interfaces.Distribution{Name: "Dirichlet", Params: []string{"alpha"}, Continuous: true, Dimension: vector})
	Register(&interfaces.Distribution{Name: "Discrete", Params: nil, Continuous: false}) // any arity
	Register(continuous("Exponential", "rate"))
	Register(continuous("Gamma", "alpha", "beta"))
	Register(continuous("HalfCauchy", "mu", "gamma"))
	Register(continuous("LogGamma", "alpha", "beta"))
	Register(continuous("LogNormal", "mu", "sigma"))
	Register(discrete("Multinomial", "total_count", "probs", "n"))
	Register(&interfaces.Distribution{Name: "MultivariateNormal", Params: []string{"mean", "covariance_matrix"}, Continuous: true, Dimension: vector})
	Register(continuous("Normal", "loc", "scale"))
	Register(discrete("Poisson", "rate"))
	Register(continuous("Uniform", "low", "high"))

	RegisterAlias("mvn", "MultivariateNormal")
	RegisterAlias("multivariatenormal", "MultivariateNormal")
	RegisterAlias("lognormal", "LogNormal")
	RegisterAlias("loggamma", "LogGamma")
	RegisterAlias("halfcauchy", "HalfCauchy")
}

// Registry is a set of families. It implements the interfaces.Distributions
// lookup.
type Registry struct {
	families map[string]*interfaces.Distribution
	aliases  map[string]string
}

// Default returns a registry of every registered family.
func Default() *Registry {
	obj := &Registry{
		families: make(map[string]*interfaces.Distribution),
		aliases:  make(map[string]string),
	}
	for k, v := range registeredDistributions {
		obj.families[k] = v
	}
	for k, v := range registeredAliases {
		obj.aliases[k] = v
	}
	return obj
}

// NewRegistry builds a registry of the given families and aliases. The result
// is validated.
func NewRegistry(families []*interfaces.Distribution, aliases map[string]string) (*Registry, error) {
	obj := &Registry{
		families: make(map[string]*interfaces.Distribution),
		aliases:  make(map[string]string),
	}
	var reterr error
	for _, d := range families {
		key := Normalize(d.Name)
		if _, exists := obj.families[key]; exists {
			reterr = errwrap.Append(reterr, fmt.Errorf("duplicate family `%s`", d.Name))
			continue
		}
		obj.families[key] = d
	}
	for alias, name := range aliases {
		obj.aliases[Normalize(alias)] = Normalize(name)
	}
	if err := obj.Validate(); err != nil {
		reterr = errwrap.Append(reterr, err)
	}
	return obj, reterr
}

// Validate checks every family and alias, and returns all of the problems it
// found.
func (obj *Registry) Validate() error {
	var reterr error
	for _, key := range obj.keys() {
		d := obj.families[key]
		if d.Name == "" || key == "" {
			reterr = errwrap.Append(reterr, fmt.Errorf("family with an empty name"))
			continue
		}
		seen := []string{}
		for _, p := range d.Params {
			for _, s := range seen {
				if s == p {
					reterr = errwrap.Append(reterr, fmt.Errorf("family `%s` has a duplicate parameter `%s`", d.Name, p))
				}
			}
			seen = append(seen, p)
		}
	}
	aliases := []string{}
	for alias := range obj.aliases {
		aliases = append(aliases, alias)
	}
	sort.Strings(aliases)
	for _, alias := range aliases {
		name := obj.aliases[alias]
		if _, exists := obj.families[name]; !exists {
			reterr = errwrap.Append(reterr, fmt.Errorf("alias `%s` refers to unknown family `%s`", alias, name))
		}
		if _, exists := obj.families[alias]; exists {
			reterr = errwrap.Append(reterr, fmt.Errorf("alias `%s` shadows a family", alias))
		}
	}
	return reterr
}

func (obj *Registry) keys() []string {
	keys := []string{}
	for k := range obj.families {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Lookup returns the family with this name.
func (obj *Registry) Lookup(name string) (*interfaces.Distribution, error) {
	key := Normalize(name)
	if alias, exists := obj.aliases[key]; exists {
		key = alias
	}
	d, exists := obj.families[key]
	if !exists {
		return nil, errwrap.Wrapf(interfaces.ErrUnknownDistribution, "`%s`", name)
	}
	return d, nil
}

// Families returns every family sorted by name.
func (obj *Registry) Families() []*interfaces.Distribution {
	out := []*interfaces.Distribution{}
	for _, k := range obj.keys() {
		out = append(out, obj.families[k])
	}
	return out
}
