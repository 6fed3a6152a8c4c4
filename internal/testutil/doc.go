// Package testutil contains helper builders used across tests to reduce
// boilerplate when constructing turns, guidelines and scripted model
// replies. It is not intended for production usage.
package testutil
