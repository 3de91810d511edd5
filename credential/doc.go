// Package credential resolves and holds the engine credential.
//
// A Source produces a credential string: a static value, an environment
// variable, an AWS SSM parameter or an entry in the OS keyring. Resolve
// retries a Source with exponential backoff. A Holder stores the resolved
// value as an immutable snapshot that workers read atomically for every
// question; Set replaces the snapshot for credential rotation without
// disturbing questions that are already running.
package credential
