// Licensed to the Apache Software Foundation (ASF) under one or more
// contributor license agreements.  See the NOTICE file distributed with
// this work for additional information regarding copyright ownership.
// The ASF licenses this file to You under the Apache License, Version 2.0
// (the "License"); you may not use this file except in compliance with
// the License.  You may obtain a copy of the License at
//
//    http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package config parses the YAML settings of the local runner.
//
// A settings file declares one or more named variants. Each variant
// configures some of the registered handlers, and every handler decodes
// into its own characteristic struct:
//
//	default: <variant name>
//	<variant name>:
//	  <handler name>:
//	    <characteristic fields>
//
// Handlers left out of a variant take the zero value of their
// characteristic, which must describe the default behavior.
package config

import (
	"bytes"
	"os"
	"reflect"
	"sort"
	"strings"

	"github.com/apache/beam/localrunner/internal/errors"
	"golang.org/x/exp/maps"
	"gopkg.in/yaml.v3"
)

// file is the whole decoded settings file.
type file struct {
	Version  int
	Default  string
	Variants map[string]*rawVariant `yaml:",inline"`
}

// rawVariant holds the undecoded handler settings of a variant.
type rawVariant struct {
	Handlers map[string]yaml.Node `yaml:",inline"`
}

// HandlerMetadata describes a configurable handler: the name settings refer
// to it by, and the type its settings decode into.
type HandlerMetadata interface {
	ConfigURN() string
	ConfigCharacteristic() reflect.Type
}

// validator is implemented by characteristics that check their own fields.
type validator interface {
	Validate() error
}

type unknownHandlersErr struct {
	variantsByHandler map[string][]string
}

func (e *unknownHandlersErr) add(handler, variant string) {
	if e.variantsByHandler == nil {
		e.variantsByHandler = map[string][]string{}
	}
	e.variantsByHandler[handler] = append(e.variantsByHandler[handler], variant)
}

func (e *unknownHandlersErr) Error() string {
	var sb strings.Builder
	sb.WriteString("settings reference unknown handlers")
	hs := maps.Keys(e.variantsByHandler)
	sort.Strings(hs)
	for _, h := range hs {
		vs := e.variantsByHandler[h]
		sort.Strings(vs)
		sb.WriteString("\n\t")
		sb.WriteString(h)
		sb.WriteString(" in variants ")
		sb.WriteString(strings.Join(vs, ","))
	}
	return sb.String()
}

func (e *unknownHandlersErr) Unwrap() error {
	return errors.ErrInvalidArgument
}

// Variant is one named set of handler settings.
type Variant struct {
	parent *HandlerRegistry

	name     string
	handlers map[string]yaml.Node
}

// Name returns the variant name.
func (v *Variant) Name() string {
	if v == nil {
		return ""
	}
	return v.name
}

// GetCharacteristics returns the decoded settings of handler in this variant.
// It returns the zero characteristic when the variant leaves the handler
// unset, and nil when the handler is not registered or v is nil.
func (v *Variant) GetCharacteristics(handler string) any {
	if v == nil {
		return nil
	}
	md, ok := v.parent.metadata[handler]
	if !ok {
		return nil
	}
	rtv := reflect.New(md.ConfigCharacteristic())
	yn, ok := v.handlers[handler]
	if !ok {
		return rtv.Elem().Interface()
	}
	if err := yn.Decode(rtv.Interface()); err != nil {
		// Settings were checked strictly when loaded.
		panic(errors.Errorf("decoding %v settings of variant %v: %v", handler, v.name, err))
	}
	return rtv.Elem().Interface()
}

// HandlerRegistry holds the registered handlers and the variants loaded
// against them.
type HandlerRegistry struct {
	variants map[string]*rawVariant
	metadata map[string]HandlerMetadata
	def      string

	variantIDs, handlerIDs []string
}

// NewHandlerRegistry returns an empty registry.
func NewHandlerRegistry() *HandlerRegistry {
	return &HandlerRegistry{
		variants: map[string]*rawVariant{},
		metadata: map[string]HandlerMetadata{},
	}
}

// RegisterHandlers registers handler metadata by URN.
func (r *HandlerRegistry) RegisterHandlers(mds ...HandlerMetadata) {
	for _, md := range mds {
		r.metadata[md.ConfigURN()] = md
	}
}

// LoadFromYaml decodes settings and checks them eagerly. Settings for
// unregistered handlers, unknown characteristic fields, and a default that
// names no variant are all errors.
func (r *HandlerRegistry) LoadFromYaml(in []byte) error {
	f := file{Variants: r.variants}
	if err := yaml.NewDecoder(bytes.NewReader(in)).Decode(&f); err != nil {
		return errors.Wrap(err, "decoding runner settings")
	}

	unknown := &unknownHandlersErr{}
	used := map[string]struct{}{}
	for v, raw := range r.variants {
		if raw == nil {
			continue
		}
		for h, node := range raw.Handlers {
			used[h] = struct{}{}
			md, ok := r.metadata[h]
			if !ok {
				unknown.add(h, v)
				continue
			}
			if err := decodeStrict(node, md.ConfigCharacteristic()); err != nil {
				return errors.WithContextf(err, "checking %v settings of variant %v", h, v)
			}
		}
	}
	if unknown.variantsByHandler != nil {
		return unknown
	}
	if f.Default != "" {
		if _, ok := r.variants[f.Default]; !ok {
			return errors.InvalidArgumentf("default variant %q is not defined", f.Default)
		}
	}
	r.def = f.Default

	r.variantIDs = maps.Keys(r.variants)
	sort.Strings(r.variantIDs)
	r.handlerIDs = maps.Keys(used)
	sort.Strings(r.handlerIDs)
	return nil
}

// LoadFromFile reads and loads the settings file at path.
func (r *HandlerRegistry) LoadFromFile(path string) error {
	in, err := os.ReadFile(path)
	if err != nil {
		return errors.Wrapf(err, "reading runner settings %v", path)
	}
	return r.LoadFromYaml(in)
}

// decodeStrict decodes node into a new rt, rejecting unknown fields. Field
// checking does not survive decoding a yaml.Node directly, so the node is
// re-encoded first.
func decodeStrict(node yaml.Node, rt reflect.Type) error {
	b, err := yaml.Marshal(&node)
	if err != nil {
		return err
	}
	dec := yaml.NewDecoder(bytes.NewReader(b))
	dec.KnownFields(true)
	rtv := reflect.New(rt)
	if err := dec.Decode(rtv.Interface()); err != nil {
		return errors.InvalidArgumentf("strict decoding: %v", err)
	}
	if v, ok := rtv.Interface().(validator); ok {
		return v.Validate()
	}
	return nil
}

// Variants returns the sorted names of the loaded variants.
func (r *HandlerRegistry) Variants() []string {
	return r.variantIDs
}

// UsedHandlers returns the sorted names of handlers configured by any
// variant.
func (r *HandlerRegistry) UsedHandlers() []string {
	return r.handlerIDs
}

// GetVariant returns the named variant, or nil if there is none.
func (r *HandlerRegistry) GetVariant(name string) *Variant {
	raw, ok := r.variants[name]
	if !ok {
		return nil
	}
	var hs map[string]yaml.Node
	if raw != nil {
		hs = raw.Handlers
	}
	return &Variant{parent: r, name: name, handlers: hs}
}

// DefaultVariant returns the variant named by the file's default field, or
// nil when the file has none.
func (r *HandlerRegistry) DefaultVariant() *Variant {
	if r.def == "" {
		return nil
	}
	return r.GetVariant(r.def)
}
