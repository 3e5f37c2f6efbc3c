// Package config defines the format-agnostic model of graph definition
// files, along with the Loader and Converter interfaces implemented by the
// format packages.
//
// The `config.Model` is the single input of the `builder` package. Concrete
// loaders live in `internal/hcl` and `internal/yamlcfg`; both produce
// hcl.Expression values for every expression-valued field so the builder
// evaluates them the same way regardless of the source format.
package config
