// Package registry holds the process-local connection bookkeeping: which
// connections are in which groups, and which connection currently
// represents an identity.
//
// Both registries are constructed once per process and injected into
// their consumers. They are consistent within this instance only;
// cross-instance fan-out rides on the shared Redis backplane.
package registry
