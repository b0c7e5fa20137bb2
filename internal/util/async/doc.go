// Package async provides utilities for parallel task execution with
// error collection.
//
// [RunParallel] executes independent operations concurrently and returns
// all of their errors. The network step uses it to probe every endpoint at
// once.
package async
