// Package retry provides exponential backoff retry logic for transient failures.
//
// The [Do] function retries an operation with configurable max attempts,
// initial delay, and maximum delay. It is used for API calls that race a
// freshly started admission webhook or a service that is still warming up.
package retry
