// Package builderr defines the failure taxonomy shared by the configuration
// tree, the stage dispatcher and the step executors.
//
// There are three kinds of failure. A ConfigurationError reports malformed or
// missing configuration and is never retried. A CommandError reports an
// external tool that exited non-zero. Anything else is treated as a defect.
// All three abort a run the same way; they differ only in how they are logged
// and in the process exit code reported by ExitCode.
package builderr
