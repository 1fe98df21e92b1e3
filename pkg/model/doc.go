// Package model provides concrete node behaviors for building statistical
// models on a [graph.Graph], a builder to assemble them in code and a loader
// for model documents.
//
// # Behaviors
//
// Fundamental nodes:
//   - [Variable]: a settable value with a range, the unit of integration
//   - [Constant]: a fixed value
//
// Functions (derived, not pdf-like):
//   - [Sum], [Product]
//   - [Generic] without the pdf flag: an expression over its servers
//
// Pdfs:
//   - [Gaussian] and [Exponential], with analytic integrals over their
//     observable
//   - [Uniform] over any number of observables
//   - [Generic] with the pdf flag
//   - [ProdPdf]: a product of pdfs, some of them conditional on observables
//     they are not normalized over
//   - [AddPdf]: a coefficient-weighted sum of pdfs, self-normalized
//   - [CachedPdf]: a self-normalized pdf of the cached kind that keeps one
//     normalization integral per prepared set
//
// Numerics are intentionally simple: anything without an analytic integral
// falls back to [graph.Graph.NumericIntegral].
//
// # Building
//
//	b := model.NewBuilder()
//	x := b.Var("x", 1, -5, 5)
//	sig := b.Gaussian("sig", x, b.Const("mu", 0), b.Const("sigma", 1))
//	bkg := b.Exponential("bkg", x, b.Const("c", -0.5))
//	top := b.Sum("top", sig, bkg)
//	g, err := b.Build()
//
// Builder methods record the first error and turn every later call into a
// no-op, so errors are checked once in [Builder.Build].
//
// # Documents
//
// [Load] and [Decode] read TOML, YAML or JSON documents. See [Document] for
// the schema.
package model
