// Package testutil provides testing utilities for tabgo.
//
// This package is intended for use in tests and benchmarks only.
// It provides helpers for generating deterministic random documents and
// the sample dashboard schemas used throughout the test suites.
//
// # Deterministic Document Generation
//
//	rng := testutil.NewRNG(seed)
//	doc := testutil.CustomerDoc(rng, 1)
//
// # Sample Schemas
//
//	schemas := testutil.DashboardSchemas()
package testutil
