// Package pools provides object pooling for reducing GC pressure on the
// Monte Carlo reliability engine's hot scenario-evaluation loop, where a
// fresh set of per-scenario bus/branch scratch maps would otherwise be
// allocated and discarded for every one of N scenarios.
//
//   - BytePool: Size-class based byte slice pooling
//   - StringMapPool: Pooling for scratch maps
package pools
