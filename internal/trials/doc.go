// Package trials holds the executables shipped with the host: a stimulus
// list presenter and a clock probe.
package trials
