// Package testutil contains fluent builders used across tests to reduce
// boilerplate when scripting model turns and seeding run memory. They are
// not intended for production usage.
package testutil
